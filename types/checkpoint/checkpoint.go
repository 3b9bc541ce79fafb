// Package checkpoint holds the bottom-up and top-down checkpoint payload
// types exchanged between the checkpoint manager and the chain adapters, and
// their CBOR wire encoding (cbor-gen idiom, matching ipc-gateway's on-chain
// representation).
package checkpoint

import (
	"bytes"
	"crypto/sha256"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"
	"golang.org/x/xerrors"

	"github.com/consensus-shipyard/ipc-checkpoint-agent/errs"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/types/subnetid"
)

// ChildCheck is a reference to one child subnet's committed checkpoint,
// included in its parent's bottom-up checkpoint.
type ChildCheck struct {
	Source string
	Check  cid.Cid
}

// CrossMsg is a cross-subnet message, ordered within a subnet by Nonce.
type CrossMsg struct {
	Nonce  uint64
	To     address.Address
	From   address.Address
	Value  abi.TokenAmount
	Method abi.MethodNum
	Params []byte
}

// Template is the (children, cross_msgs) pair a chain returns for an
// as-yet-unsubmitted epoch, per the chain adapter's checkpoint_template call.
type Template struct {
	Children  []ChildCheck
	CrossMsgs []CrossMsg
}

// BottomUp is a child-to-parent checkpoint: the child subnet's committed
// state at Epoch, linked to its predecessor by PrevCheck.
type BottomUp struct {
	Source    subnetid.ID
	Epoch     abi.ChainEpoch
	PrevCheck *cid.Cid
	Children  []ChildCheck
	CrossMsgs []CrossMsg
	Proof     []byte
}

// TopDown is a parent-to-child checkpoint: the contiguous run of top-down
// cross messages to execute on the child at Epoch.
type TopDown struct {
	Epoch       abi.ChainEpoch
	TopDownMsgs []CrossMsg
}

// Validate enforces well-formedness: children deduplicated by source,
// cross messages sorted by ascending nonce with no gaps.
func (b *BottomUp) Validate() error {
	seen := make(map[string]struct{}, len(b.Children))
	for _, c := range b.Children {
		if _, dup := seen[c.Source]; dup {
			return xerrors.Errorf("duplicate child checkpoint source %s", c.Source)
		}
		seen[c.Source] = struct{}{}
	}

	for i := 1; i < len(b.CrossMsgs); i++ {
		if b.CrossMsgs[i].Nonce != b.CrossMsgs[i-1].Nonce+1 {
			return xerrors.Errorf("cross messages not contiguous: nonce %d follows %d",
				b.CrossMsgs[i].Nonce, b.CrossMsgs[i-1].Nonce)
		}
	}
	return nil
}

// ValidateNonceGap enforces top-down contiguity: TopDownMsgs must run
// [fromNonce, fromNonce+1, ..., fromNonce+k] with no gap, given the nonce
// the submission window starts at.
func (t *TopDown) ValidateNonceGap(fromNonce uint64) error {
	for i, m := range t.TopDownMsgs {
		want := fromNonce + uint64(i)
		if m.Nonce != want {
			return xerrors.Errorf("%w: expected nonce %d, got %d at index %d", errs.ErrMessageGap, want, m.Nonce, i)
		}
	}
	return nil
}

// Digest returns a content digest over the checkpoint's Source, Epoch,
// PrevCheck, Children and CrossMsgs (Proof is not included), used to decide
// equivalence of two checkpoints sharing (Source, Epoch).
func (b *BottomUp) Digest() ([32]byte, error) {
	buf, err := b.encodeData()
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(buf), nil
}

// Equivalent reports whether two checkpoints share (Source, Epoch) and their
// payload digests agree.
func (b *BottomUp) Equivalent(other *BottomUp) (bool, error) {
	if !b.Source.Equal(other.Source) || b.Epoch != other.Epoch {
		return false, nil
	}
	d1, err := b.Digest()
	if err != nil {
		return false, err
	}
	d2, err := other.Digest()
	if err != nil {
		return false, err
	}
	return d1 == d2, nil
}

func (b *BottomUp) encodeData() ([]byte, error) {
	var buf bytes.Buffer
	if err := (&BottomUp{
		Source:    b.Source,
		Epoch:     b.Epoch,
		PrevCheck: b.PrevCheck,
		Children:  b.Children,
		CrossMsgs: b.CrossMsgs,
	}).MarshalCBOR(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NextSubmissionEpoch computes the next submission epoch from a
// CheckpointPeriod: the smallest multiple of period greater than
// lastExecuted that is not after current, or false if none is due yet.
func NextSubmissionEpoch(period, current, lastExecuted abi.ChainEpoch) (abi.ChainEpoch, bool) {
	if period <= 0 {
		return 0, false
	}
	next := ((lastExecuted / period) + 1) * period
	if next <= lastExecuted {
		next += period
	}
	if next > current {
		return 0, false
	}
	return next, true
}
