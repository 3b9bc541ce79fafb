// CBOR encoding for the checkpoint types, written by hand in the shape of
// github.com/whyrusleeping/cbor-gen's generated code.

package checkpoint

import (
	"fmt"
	"io"

	"github.com/filecoin-project/go-state-types/abi"
	cbg "github.com/whyrusleeping/cbor-gen"
	"golang.org/x/xerrors"

	"github.com/consensus-shipyard/ipc-checkpoint-agent/types/subnetid"
)

var lengthBufChildCheck = []byte{130}

func (t *ChildCheck) MarshalCBOR(w io.Writer) error {
	if t == nil {
		_, err := w.Write(cbg.CborNull)
		return err
	}
	if _, err := w.Write(lengthBufChildCheck); err != nil {
		return err
	}

	scratch := make([]byte, 9)

	if err := cbg.WriteString(w, t.Source); err != nil {
		return err
	}

	if err := cbg.WriteCid(w, t.Check); err != nil {
		return xerrors.Errorf("failed to write cid field t.Check: %w", err)
	}

	_ = scratch
	return nil
}

func (t *ChildCheck) UnmarshalCBOR(r io.Reader) (err error) {
	*t = ChildCheck{}

	br := cbg.GetPeeker(r)
	scratch := make([]byte, 8)

	maj, extra, err := cbg.CborReadHeaderBuf(br, scratch)
	if err != nil {
		return err
	}
	if maj != cbg.MajArray {
		return fmt.Errorf("cbor input should be of type array")
	}
	if extra != 2 {
		return fmt.Errorf("cbor input had wrong number of fields for ChildCheck")
	}

	t.Source, err = cbg.ReadString(br)
	if err != nil {
		return xerrors.Errorf("failed to read Source: %w", err)
	}

	c, err := cbg.ReadCid(br)
	if err != nil {
		return xerrors.Errorf("failed to read Check: %w", err)
	}
	t.Check = c

	return nil
}

var lengthBufCrossMsg = []byte{134}

func (t *CrossMsg) MarshalCBOR(w io.Writer) error {
	if t == nil {
		_, err := w.Write(cbg.CborNull)
		return err
	}
	if _, err := w.Write(lengthBufCrossMsg); err != nil {
		return err
	}

	scratch := make([]byte, 9)

	if err := cbg.WriteMajorTypeHeaderBuf(scratch, w, cbg.MajUnsignedInt, t.Nonce); err != nil {
		return err
	}

	if err := t.To.MarshalCBOR(w); err != nil {
		return xerrors.Errorf("failed to write To: %w", err)
	}

	if err := t.From.MarshalCBOR(w); err != nil {
		return xerrors.Errorf("failed to write From: %w", err)
	}

	if err := t.Value.MarshalCBOR(w); err != nil {
		return xerrors.Errorf("failed to write Value: %w", err)
	}

	if err := cbg.WriteMajorTypeHeaderBuf(scratch, w, cbg.MajUnsignedInt, uint64(t.Method)); err != nil {
		return err
	}

	if err := cbg.WriteByteArray(w, t.Params); err != nil {
		return xerrors.Errorf("failed to write Params: %w", err)
	}

	return nil
}

func (t *CrossMsg) UnmarshalCBOR(r io.Reader) (err error) {
	*t = CrossMsg{}

	br := cbg.GetPeeker(r)
	scratch := make([]byte, 8)

	maj, extra, err := cbg.CborReadHeaderBuf(br, scratch)
	if err != nil {
		return err
	}
	if maj != cbg.MajArray {
		return fmt.Errorf("cbor input should be of type array")
	}
	if extra != 6 {
		return fmt.Errorf("cbor input had wrong number of fields for CrossMsg")
	}

	maj, nonce, err := cbg.CborReadHeaderBuf(br, scratch)
	if err != nil {
		return err
	}
	if maj != cbg.MajUnsignedInt {
		return fmt.Errorf("wrong type for Nonce field")
	}
	t.Nonce = nonce

	if err := t.To.UnmarshalCBOR(br); err != nil {
		return xerrors.Errorf("failed to read To: %w", err)
	}
	if err := t.From.UnmarshalCBOR(br); err != nil {
		return xerrors.Errorf("failed to read From: %w", err)
	}
	if err := t.Value.UnmarshalCBOR(br); err != nil {
		return xerrors.Errorf("failed to read Value: %w", err)
	}

	maj, method, err := cbg.CborReadHeaderBuf(br, scratch)
	if err != nil {
		return err
	}
	if maj != cbg.MajUnsignedInt {
		return fmt.Errorf("wrong type for Method field")
	}
	t.Method = abi.MethodNum(method)

	params, err := cbg.ReadByteArray(br, cbg.ByteArrayMaxLen)
	if err != nil {
		return xerrors.Errorf("failed to read Params: %w", err)
	}
	t.Params = params

	return nil
}

var lengthBufBottomUp = []byte{134}

func (t *BottomUp) MarshalCBOR(w io.Writer) error {
	if t == nil {
		_, err := w.Write(cbg.CborNull)
		return err
	}
	if _, err := w.Write(lengthBufBottomUp); err != nil {
		return err
	}

	scratch := make([]byte, 9)

	if err := cbg.WriteString(w, t.Source.String()); err != nil {
		return xerrors.Errorf("failed to write Source: %w", err)
	}

	if t.Epoch >= 0 {
		if err := cbg.WriteMajorTypeHeaderBuf(scratch, w, cbg.MajUnsignedInt, uint64(t.Epoch)); err != nil {
			return err
		}
	} else {
		if err := cbg.WriteMajorTypeHeaderBuf(scratch, w, cbg.MajNegativeInt, uint64(-t.Epoch)-1); err != nil {
			return err
		}
	}

	if t.PrevCheck == nil {
		if _, err := w.Write(cbg.CborNull); err != nil {
			return err
		}
	} else if err := cbg.WriteCid(w, *t.PrevCheck); err != nil {
		return xerrors.Errorf("failed to write PrevCheck: %w", err)
	}

	if err := cbg.WriteMajorTypeHeaderBuf(scratch, w, cbg.MajArray, uint64(len(t.Children))); err != nil {
		return err
	}
	for _, c := range t.Children {
		if err := c.MarshalCBOR(w); err != nil {
			return err
		}
	}

	if err := cbg.WriteMajorTypeHeaderBuf(scratch, w, cbg.MajArray, uint64(len(t.CrossMsgs))); err != nil {
		return err
	}
	for _, m := range t.CrossMsgs {
		if err := m.MarshalCBOR(w); err != nil {
			return err
		}
	}

	if err := cbg.WriteByteArray(w, t.Proof); err != nil {
		return xerrors.Errorf("failed to write Proof: %w", err)
	}

	return nil
}

func (t *BottomUp) UnmarshalCBOR(r io.Reader) (err error) {
	*t = BottomUp{}

	br := cbg.GetPeeker(r)
	scratch := make([]byte, 8)

	maj, extra, err := cbg.CborReadHeaderBuf(br, scratch)
	if err != nil {
		return err
	}
	if maj != cbg.MajArray {
		return fmt.Errorf("cbor input should be of type array")
	}
	if extra != 6 {
		return fmt.Errorf("cbor input had wrong number of fields for BottomUp")
	}

	source, err := cbg.ReadString(br)
	if err != nil {
		return xerrors.Errorf("failed to read Source: %w", err)
	}
	t.Source, err = subnetid.Parse(source)
	if err != nil {
		return xerrors.Errorf("failed to parse Source: %w", err)
	}

	maj, extraI, err := cbg.CborReadHeaderBuf(br, scratch)
	if err != nil {
		return err
	}
	switch maj {
	case cbg.MajUnsignedInt:
		t.Epoch = abi.ChainEpoch(extraI)
	case cbg.MajNegativeInt:
		t.Epoch = abi.ChainEpoch(-int64(extraI) - 1)
	default:
		return fmt.Errorf("wrong type for Epoch field")
	}

	peek, err := br.Peek(1)
	if err != nil {
		return err
	}
	if peek[0] == cbg.CborNull[0] {
		if _, err := br.Discard(1); err != nil {
			return err
		}
		t.PrevCheck = nil
	} else {
		c, err := cbg.ReadCid(br)
		if err != nil {
			return xerrors.Errorf("failed to read PrevCheck: %w", err)
		}
		t.PrevCheck = &c
	}

	maj, n, err := cbg.CborReadHeaderBuf(br, scratch)
	if err != nil {
		return err
	}
	if maj != cbg.MajArray {
		return fmt.Errorf("expected array for Children")
	}
	t.Children = make([]ChildCheck, n)
	for i := range t.Children {
		if err := t.Children[i].UnmarshalCBOR(br); err != nil {
			return err
		}
	}

	maj, n, err = cbg.CborReadHeaderBuf(br, scratch)
	if err != nil {
		return err
	}
	if maj != cbg.MajArray {
		return fmt.Errorf("expected array for CrossMsgs")
	}
	t.CrossMsgs = make([]CrossMsg, n)
	for i := range t.CrossMsgs {
		if err := t.CrossMsgs[i].UnmarshalCBOR(br); err != nil {
			return err
		}
	}

	proof, err := cbg.ReadByteArray(br, cbg.ByteArrayMaxLen)
	if err != nil {
		return xerrors.Errorf("failed to read Proof: %w", err)
	}
	t.Proof = proof

	return nil
}

var lengthBufTopDown = []byte{130}

func (t *TopDown) MarshalCBOR(w io.Writer) error {
	if t == nil {
		_, err := w.Write(cbg.CborNull)
		return err
	}
	if _, err := w.Write(lengthBufTopDown); err != nil {
		return err
	}

	scratch := make([]byte, 9)

	if err := cbg.WriteMajorTypeHeaderBuf(scratch, w, cbg.MajUnsignedInt, uint64(t.Epoch)); err != nil {
		return err
	}

	if err := cbg.WriteMajorTypeHeaderBuf(scratch, w, cbg.MajArray, uint64(len(t.TopDownMsgs))); err != nil {
		return err
	}
	for _, m := range t.TopDownMsgs {
		if err := m.MarshalCBOR(w); err != nil {
			return err
		}
	}

	return nil
}

func (t *TopDown) UnmarshalCBOR(r io.Reader) (err error) {
	*t = TopDown{}

	br := cbg.GetPeeker(r)
	scratch := make([]byte, 8)

	maj, extra, err := cbg.CborReadHeaderBuf(br, scratch)
	if err != nil {
		return err
	}
	if maj != cbg.MajArray {
		return fmt.Errorf("cbor input should be of type array")
	}
	if extra != 2 {
		return fmt.Errorf("cbor input had wrong number of fields for TopDown")
	}

	maj, epoch, err := cbg.CborReadHeaderBuf(br, scratch)
	if err != nil {
		return err
	}
	if maj != cbg.MajUnsignedInt {
		return fmt.Errorf("wrong type for Epoch field")
	}
	t.Epoch = abi.ChainEpoch(epoch)

	maj, n, err := cbg.CborReadHeaderBuf(br, scratch)
	if err != nil {
		return err
	}
	if maj != cbg.MajArray {
		return fmt.Errorf("expected array for TopDownMsgs")
	}
	t.TopDownMsgs = make([]CrossMsg, n)
	for i := range t.TopDownMsgs {
		if err := t.TopDownMsgs[i].UnmarshalCBOR(br); err != nil {
			return err
		}
	}

	return nil
}
