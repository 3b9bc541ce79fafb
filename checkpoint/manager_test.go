package checkpoint

import (
	"context"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/consensus-shipyard/ipc-checkpoint-agent/chainadapter"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/errs"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/types/checkpoint"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/types/subnetid"
)

// fakeAdapter is a minimal in-memory chainadapter.Adapter for exercising the
// manager's orchestration without a real chain.
type fakeAdapter struct {
	head         chainadapter.ChainHead
	subnetState  chainadapter.SubnetActorState
	gatewayState chainadapter.GatewayState
	prevCheck    *cid.Cid
	template     checkpoint.Template
	topDownMsgs  []checkpoint.CrossMsg
	votedEpochs  map[abi.ChainEpoch]bool
	submittedBU  []checkpoint.BottomUp
	submittedTD  []checkpoint.TopDown
	submitErr    error
}

func (f *fakeAdapter) ChainHead(context.Context) (chainadapter.ChainHead, error) { return f.head, nil }

func (f *fakeAdapter) SubnetActorState(context.Context, subnetid.ID, chainadapter.ChainHead) (chainadapter.SubnetActorState, error) {
	return f.subnetState, nil
}

func (f *fakeAdapter) GatewayState(context.Context, chainadapter.ChainHead) (chainadapter.GatewayState, error) {
	return f.gatewayState, nil
}

func (f *fakeAdapter) PrevCheckpointCID(context.Context, subnetid.ID) (*cid.Cid, error) {
	return f.prevCheck, nil
}

func (f *fakeAdapter) CheckpointTemplate(context.Context, abi.ChainEpoch) (checkpoint.Template, error) {
	return f.template, nil
}

func (f *fakeAdapter) TopDownMessages(context.Context, subnetid.ID, uint64) ([]checkpoint.CrossMsg, error) {
	return f.topDownMsgs, nil
}

func (f *fakeAdapter) HasVoted(_ context.Context, _ *subnetid.ID, epoch abi.ChainEpoch, _ address.Address) (bool, error) {
	return f.votedEpochs[epoch], nil
}

func (f *fakeAdapter) SubmitBottomUp(_ context.Context, _ subnetid.ID, _ address.Address, bu checkpoint.BottomUp) (chainadapter.Receipt, error) {
	if f.submitErr != nil {
		return chainadapter.Receipt{}, f.submitErr
	}
	f.submittedBU = append(f.submittedBU, bu)
	return chainadapter.Receipt{Epoch: bu.Epoch}, nil
}

func (f *fakeAdapter) SubmitTopDown(_ context.Context, _ address.Address, td checkpoint.TopDown) (chainadapter.Receipt, error) {
	if f.submitErr != nil {
		return chainadapter.Receipt{}, f.submitErr
	}
	f.submittedTD = append(f.submittedTD, td)
	return chainadapter.Receipt{Epoch: td.Epoch}, nil
}

var _ chainadapter.Adapter = (*fakeAdapter)(nil)

func testPair(t *testing.T) Pair {
	validator, err := address.NewIDAddress(101)
	require.NoError(t, err)
	child := subnetid.New(subnetid.NewRoot("test"), validator)
	return Pair{Child: child, Parent: subnetid.NewRoot("test")}
}

func TestBottomUpManagerBuildAndSubmit(t *testing.T) {
	pair := testPair(t)
	child := &fakeAdapter{
		gatewayState: chainadapter.GatewayState{LastVotingExecutedEpoch: 10},
		template: checkpoint.Template{
			CrossMsgs: []checkpoint.CrossMsg{{Nonce: 0}, {Nonce: 1}},
		},
	}
	parent := &fakeAdapter{
		head:        chainadapter.ChainHead{Height: 25},
		subnetState: chainadapter.SubnetActorState{CheckPeriod: 10},
		votedEpochs: map[abi.ChainEpoch]bool{},
	}
	m := NewBottomUpManager(pair, child, parent)

	next, due, err := m.NextSubmissionEpoch(context.Background())
	require.NoError(t, err)
	require.True(t, due)
	require.Equal(t, abi.ChainEpoch(20), next)

	bu, err := m.Build(context.Background(), next)
	require.NoError(t, err)
	require.Equal(t, next, bu.Epoch)

	validator, _ := address.NewIDAddress(7)
	require.NoError(t, m.Submit(context.Background(), validator, bu))
	require.Len(t, parent.submittedBU, 1)
}

func TestBottomUpManagerSkipsAlreadyVoted(t *testing.T) {
	pair := testPair(t)
	child := &fakeAdapter{}
	parent := &fakeAdapter{votedEpochs: map[abi.ChainEpoch]bool{5: true}}
	m := NewBottomUpManager(pair, child, parent)

	validator, _ := address.NewIDAddress(7)
	require.NoError(t, m.Submit(context.Background(), validator, checkpoint.BottomUp{Epoch: 5}))
	require.Empty(t, parent.submittedBU)
}

func TestBottomUpManagerSubmitSuppressesAlreadyVotedFromSubmit(t *testing.T) {
	pair := testPair(t)
	child := &fakeAdapter{}
	parent := &fakeAdapter{
		votedEpochs: map[abi.ChainEpoch]bool{},
		submitErr:   xerrors.Errorf("%w: %s", errs.ErrAlreadyVoted, "lost the race"),
	}
	m := NewBottomUpManager(pair, child, parent)

	validator, _ := address.NewIDAddress(7)
	require.NoError(t, m.Submit(context.Background(), validator, checkpoint.BottomUp{Epoch: 5}))
	require.Empty(t, parent.submittedBU)
}

func TestTopDownManagerSubmitSuppressesAlreadyVotedFromSubmit(t *testing.T) {
	pair := testPair(t)
	child := &fakeAdapter{
		votedEpochs: map[abi.ChainEpoch]bool{},
		submitErr:   xerrors.Errorf("%w: %s", errs.ErrAlreadyVoted, "lost the race"),
	}
	parent := &fakeAdapter{}
	m := NewTopDownManager(pair, child, parent)

	validator, _ := address.NewIDAddress(7)
	require.NoError(t, m.Submit(context.Background(), validator, checkpoint.TopDown{Epoch: 5}))
	require.Empty(t, child.submittedTD)
}

func TestTopDownManagerBuildRejectsNonceGap(t *testing.T) {
	pair := testPair(t)
	child := &fakeAdapter{gatewayState: chainadapter.GatewayState{AppliedTopDownNonce: 9}}
	parent := &fakeAdapter{topDownMsgs: []checkpoint.CrossMsg{{Nonce: 10}, {Nonce: 12}}}
	m := NewTopDownManager(pair, child, parent)

	_, err := m.Build(context.Background(), 100)
	require.ErrorContains(t, err, "nonce gap")
}

func TestTopDownManagerBuildAndSubmit(t *testing.T) {
	pair := testPair(t)
	child := &fakeAdapter{
		gatewayState: chainadapter.GatewayState{AppliedTopDownNonce: 9},
		votedEpochs:  map[abi.ChainEpoch]bool{},
	}
	parent := &fakeAdapter{topDownMsgs: []checkpoint.CrossMsg{{Nonce: 10}, {Nonce: 11}}}
	m := NewTopDownManager(pair, child, parent)

	td, err := m.Build(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, td.TopDownMsgs, 2)

	validator, _ := address.NewIDAddress(7)
	require.NoError(t, m.Submit(context.Background(), validator, td))
	require.Len(t, child.submittedTD, 1)
}
