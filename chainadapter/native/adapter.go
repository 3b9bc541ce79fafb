package native

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/consensus-shipyard/ipc-checkpoint-agent/chainadapter"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/errs"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/types/checkpoint"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/types/subnetid"
)

var log = logging.Logger("chainadapter/native")

// submitBottomUpMethod and submitTopDownMethod are the subnet actor and
// gateway actor method numbers the agent invokes to submit checkpoints,
// matching the sca actor's dispatch table (sa8-eudico's sca_actor.go).
const (
	submitBottomUpMethod = abi.MethodNum(2)
	submitTopDownMethod  = abi.MethodNum(3)
)

// waitConfidence is the number of epochs a submission must be built upon
// before StateWaitMsg is considered to have observed a final receipt.
const waitConfidence = 0

// Adapter implements chainadapter.Adapter against a native (Lotus-style)
// chain reached over JSON-RPC.
type Adapter struct {
	client  *Client
	gateway address.Address
}

var _ chainadapter.Adapter = (*Adapter)(nil)

// New wraps an already-dialed Client. gateway is the subnet's gateway actor
// address, as read from config.
func New(client *Client, gateway address.Address) *Adapter {
	return &Adapter{client: client, gateway: gateway}
}

func (a *Adapter) ChainHead(ctx context.Context) (chainadapter.ChainHead, error) {
	ts, err := a.client.internal.ChainHead(ctx)
	if err != nil {
		return chainadapter.ChainHead{}, xerrors.Errorf("ChainHead: %w: %s", errs.ErrTransient, err)
	}
	if len(ts.Cids) != 1 {
		return chainadapter.ChainHead{}, xerrors.Errorf("%w: non-singleton tipset at height %d", errs.ErrFatal, ts.Height)
	}
	return chainadapter.ChainHead{Height: ts.Height, TipsetCID: ts.Cids[0]}, nil
}

func (a *Adapter) SubnetActorState(ctx context.Context, child subnetid.ID, at chainadapter.ChainHead) (chainadapter.SubnetActorState, error) {
	actor, ok := child.SubnetActor()
	if !ok {
		return chainadapter.SubnetActorState{}, xerrors.Errorf("%w: subnet %s has no actor", errs.ErrConfiguration, child)
	}
	st, err := a.client.internal.IpcReadSubnetActorState(ctx, actor.String(), at.TipsetCID)
	if err != nil {
		return chainadapter.SubnetActorState{}, xerrors.Errorf("IpcReadSubnetActorState: %w: %s", errs.ErrTransient, err)
	}
	return chainadapter.SubnetActorState{CheckPeriod: st.CheckPeriod, Validators: st.Validators}, nil
}

func (a *Adapter) GatewayState(ctx context.Context, at chainadapter.ChainHead) (chainadapter.GatewayState, error) {
	st, err := a.client.internal.IpcReadGatewayState(ctx, at.TipsetCID)
	if err != nil {
		return chainadapter.GatewayState{}, xerrors.Errorf("IpcReadGatewayState: %w: %s", errs.ErrTransient, err)
	}
	return chainadapter.GatewayState{
		TopDownCheckPeriod:      st.TopDownCheckPeriod,
		LastVotingExecutedEpoch: st.LastVotingExecutedEpoch,
		AppliedTopDownNonce:     st.AppliedTopDownNonce,
	}, nil
}

func (a *Adapter) PrevCheckpointCID(ctx context.Context, child subnetid.ID) (*cid.Cid, error) {
	c, err := a.client.internal.IpcGetPrevCheckpointForChild(ctx, child.String())
	if err != nil {
		return nil, xerrors.Errorf("IpcGetPrevCheckpointForChild: %w: %s", errs.ErrTransient, err)
	}
	return c, nil
}

func (a *Adapter) CheckpointTemplate(ctx context.Context, epoch abi.ChainEpoch) (checkpoint.Template, error) {
	tmpl, err := a.client.internal.IpcGetCheckpointTemplate(ctx, epoch)
	if err != nil {
		return checkpoint.Template{}, xerrors.Errorf("IpcGetCheckpointTemplate: %w: %s", errs.ErrTransient, err)
	}
	return checkpoint.Template{Children: tmpl.Children, CrossMsgs: tmpl.CrossMsgs}, nil
}

func (a *Adapter) TopDownMessages(ctx context.Context, child subnetid.ID, fromNonce uint64) ([]checkpoint.CrossMsg, error) {
	msgs, err := a.client.internal.IpcGetTopDownMsgs(ctx, child.String(), fromNonce)
	if err != nil {
		return nil, xerrors.Errorf("IpcGetTopDownMsgs: %w: %s", errs.ErrTransient, err)
	}
	out := make([]checkpoint.CrossMsg, len(msgs))
	for i, m := range msgs {
		out[i] = *m
	}
	return out, nil
}

func (a *Adapter) HasVoted(ctx context.Context, child *subnetid.ID, epoch abi.ChainEpoch, validator address.Address) (bool, error) {
	if child == nil {
		voted, err := a.client.internal.IpcHasVotedTopDownCheckpoint(ctx, epoch, validator)
		if err != nil {
			return false, xerrors.Errorf("IpcHasVotedTopDownCheckpoint: %w: %s", errs.ErrTransient, err)
		}
		return voted, nil
	}
	voted, err := a.client.internal.IpcHasVotedBottomUpCheckpoint(ctx, child.String(), epoch, validator)
	if err != nil {
		return false, xerrors.Errorf("IpcHasVotedBottomUpCheckpoint: %w: %s", errs.ErrTransient, err)
	}
	return voted, nil
}

func (a *Adapter) SubmitBottomUp(ctx context.Context, child subnetid.ID, validator address.Address, ch checkpoint.BottomUp) (chainadapter.Receipt, error) {
	actor, ok := child.SubnetActor()
	if !ok {
		return chainadapter.Receipt{}, xerrors.Errorf("%w: subnet %s has no actor", errs.ErrConfiguration, child)
	}
	params, err := encodeCBOR(&ch)
	if err != nil {
		return chainadapter.Receipt{}, xerrors.Errorf("encoding bottom-up checkpoint: %w", err)
	}
	return a.submit(ctx, validator, actor, submitBottomUpMethod, params)
}

func (a *Adapter) SubmitTopDown(ctx context.Context, validator address.Address, ch checkpoint.TopDown) (chainadapter.Receipt, error) {
	params, err := encodeCBOR(&ch)
	if err != nil {
		return chainadapter.Receipt{}, xerrors.Errorf("encoding top-down checkpoint: %w", err)
	}
	return a.submit(ctx, validator, a.gateway, submitTopDownMethod, params)
}

func (a *Adapter) submit(ctx context.Context, from, to address.Address, method abi.MethodNum, params []byte) (chainadapter.Receipt, error) {
	mcid, err := a.client.internal.MpoolPushMessage(ctx, &rpcMessage{To: to, From: from, Method: method, Params: params})
	if err != nil {
		if isAlreadyVoted(err) {
			return chainadapter.Receipt{}, xerrors.Errorf("%w: %s", errs.ErrAlreadyVoted, err)
		}
		return chainadapter.Receipt{}, xerrors.Errorf("MpoolPushMessage: %w: %s", errs.ErrTransient, err)
	}

	log.Infow("checkpoint submission pushed", "cid", mcid, "from", from, "method", method)

	lookup, err := chainadapter.PollReceipt(ctx, func(ctx context.Context) (*rpcMsgLookup, bool, error) {
		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		l, err := a.client.internal.StateWaitMsg(waitCtx, mcid, waitConfidence)
		if err != nil {
			if xerrors.Is(err, context.DeadlineExceeded) {
				return nil, false, nil
			}
			return nil, false, err
		}
		return l, l != nil, nil
	})
	if err != nil {
		return chainadapter.Receipt{}, err
	}
	return chainadapter.Receipt{Epoch: lookup.Height}, nil
}

// isAlreadyVoted recognizes the sca actor's exit message for a validator
// that has already cast a vote for the epoch in question (sa8-eudico's
// sca_actor.go ErrAlreadyVoted path). go-jsonrpc errors cross the wire as
// plain strings, so actor exit reasons are matched textually rather than
// through error wrapping.
func isAlreadyVoted(err error) bool {
	return err != nil && strings.Contains(err.Error(), "already voted")
}

// cborMarshaler is satisfied by the cbor-gen generated types in the
// checkpoint package.
type cborMarshaler interface {
	MarshalCBOR(w io.Writer) error
}

func encodeCBOR(v cborMarshaler) ([]byte, error) {
	var buf bytes.Buffer
	if err := v.MarshalCBOR(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
