// Package checkpoint implements the Checkpoint Manager (C2): per-validator
// assembly and submission of bottom-up and top-down checkpoints, built
// against the chainadapter.Adapter abstraction so the same manager logic
// drives both native and EVM subnet pairs.
package checkpoint

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/consensus-shipyard/ipc-checkpoint-agent/chainadapter"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/errs"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/types/checkpoint"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/types/subnetid"
)

var log = logging.Logger("checkpoint")

// Pair names a child/parent subnet pair under management. Bottom-up
// checkpoints flow FROM Child TO Parent; top-down checkpoints flow FROM
// Parent TO Child.
type Pair struct {
	Child  subnetid.ID
	Parent subnetid.ID
}

// BottomUpManager submits the child subnet's committed state to the parent
// subnet, once per validator per due epoch.
type BottomUpManager struct {
	pair   Pair
	child  chainadapter.Adapter
	parent chainadapter.Adapter
}

// NewBottomUpManager builds a manager for pair, reading child state through
// childAdapter and submitting to the parent through parentAdapter.
func NewBottomUpManager(pair Pair, childAdapter, parentAdapter chainadapter.Adapter) *BottomUpManager {
	return &BottomUpManager{pair: pair, child: childAdapter, parent: parentAdapter}
}

// NextSubmissionEpoch reports the next epoch, if any, at which a bottom-up
// checkpoint is due for submission.
func (m *BottomUpManager) NextSubmissionEpoch(ctx context.Context) (abi.ChainEpoch, bool, error) {
	parentHead, err := m.parent.ChainHead(ctx)
	if err != nil {
		return 0, false, err
	}
	state, err := m.parent.SubnetActorState(ctx, m.pair.Child, parentHead)
	if err != nil {
		return 0, false, err
	}
	childHead, err := m.child.ChainHead(ctx)
	if err != nil {
		return 0, false, err
	}
	gw, err := m.child.GatewayState(ctx, childHead)
	if err != nil {
		return 0, false, err
	}
	next, due := checkpoint.NextSubmissionEpoch(state.CheckPeriod, parentHead.Height, gw.LastVotingExecutedEpoch)
	return next, due, nil
}

// Build assembles the bottom-up checkpoint for epoch from the child chain's
// template and its previous checkpoint link.
func (m *BottomUpManager) Build(ctx context.Context, epoch abi.ChainEpoch) (checkpoint.BottomUp, error) {
	tmpl, err := m.child.CheckpointTemplate(ctx, epoch)
	if err != nil {
		return checkpoint.BottomUp{}, err
	}
	prev, err := m.parent.PrevCheckpointCID(ctx, m.pair.Child)
	if err != nil {
		return checkpoint.BottomUp{}, err
	}
	bu := checkpoint.BottomUp{
		Source:    m.pair.Child,
		Epoch:     epoch,
		PrevCheck: prev,
		Children:  tmpl.Children,
		CrossMsgs: tmpl.CrossMsgs,
	}
	if err := bu.Validate(); err != nil {
		return checkpoint.BottomUp{}, xerrors.Errorf("assembled checkpoint failed validation: %w", err)
	}
	return bu, nil
}

// Submit submits a bottom-up checkpoint on behalf of validator, skipping
// (not erroring) when the validator has already voted this epoch.
func (m *BottomUpManager) Submit(ctx context.Context, validator address.Address, bu checkpoint.BottomUp) error {
	voted, err := m.parent.HasVoted(ctx, &m.pair.Child, bu.Epoch, validator)
	if err != nil {
		return err
	}
	if voted {
		log.Debugw("validator already voted, skipping", "child", m.pair.Child, "epoch", bu.Epoch, "validator", validator)
		return nil
	}

	receipt, err := m.parent.SubmitBottomUp(ctx, m.pair.Child, validator, bu)
	if err != nil {
		if xerrors.Is(err, errs.ErrAlreadyVoted) {
			log.Debugw("lost race to vote, treating as success", "child", m.pair.Child, "epoch", bu.Epoch)
			return nil
		}
		return err
	}
	log.Infow("bottom-up checkpoint submitted", "child", m.pair.Child, "epoch", bu.Epoch, "includedAt", receipt.Epoch)
	return nil
}

// TopDownManager submits the contiguous run of parent-to-child cross
// messages to the child subnet, once per validator per due epoch.
type TopDownManager struct {
	pair   Pair
	child  chainadapter.Adapter
	parent chainadapter.Adapter
}

// NewTopDownManager builds a manager for pair, reading parent messages
// through parentAdapter and submitting to the child through childAdapter.
func NewTopDownManager(pair Pair, childAdapter, parentAdapter chainadapter.Adapter) *TopDownManager {
	return &TopDownManager{pair: pair, child: childAdapter, parent: parentAdapter}
}

// NextSubmissionEpoch reports the next epoch, if any, at which a top-down
// checkpoint is due.
func (m *TopDownManager) NextSubmissionEpoch(ctx context.Context) (abi.ChainEpoch, bool, error) {
	parentHead, err := m.parent.ChainHead(ctx)
	if err != nil {
		return 0, false, err
	}
	childHead, err := m.child.ChainHead(ctx)
	if err != nil {
		return 0, false, err
	}
	gw, err := m.child.GatewayState(ctx, childHead)
	if err != nil {
		return 0, false, err
	}
	next, due := checkpoint.NextSubmissionEpoch(gw.TopDownCheckPeriod, parentHead.Height, gw.LastVotingExecutedEpoch)
	return next, due, nil
}

// Build reads the contiguous run of top-down messages due for submission at
// epoch, starting just after the child's last applied nonce. The applied
// nonce is read from the child gateway at the child's current chain head; no
// tipset at a specific height (such as last executed epoch + 2) is resolved.
func (m *TopDownManager) Build(ctx context.Context, epoch abi.ChainEpoch) (checkpoint.TopDown, error) {
	childHead, err := m.child.ChainHead(ctx)
	if err != nil {
		return checkpoint.TopDown{}, err
	}
	gw, err := m.child.GatewayState(ctx, childHead)
	if err != nil {
		return checkpoint.TopDown{}, err
	}
	fromNonce := gw.AppliedTopDownNonce + 1

	msgs, err := m.parent.TopDownMessages(ctx, m.pair.Child, fromNonce)
	if err != nil {
		return checkpoint.TopDown{}, err
	}
	td := checkpoint.TopDown{Epoch: epoch, TopDownMsgs: msgs}
	if err := td.ValidateNonceGap(fromNonce); err != nil {
		return checkpoint.TopDown{}, err
	}
	return td, nil
}

// Submit submits a top-down checkpoint on behalf of validator, skipping
// when the validator has already voted.
func (m *TopDownManager) Submit(ctx context.Context, validator address.Address, td checkpoint.TopDown) error {
	voted, err := m.child.HasVoted(ctx, nil, td.Epoch, validator)
	if err != nil {
		return err
	}
	if voted {
		log.Debugw("validator already voted, skipping", "child", m.pair.Child, "epoch", td.Epoch, "validator", validator)
		return nil
	}

	receipt, err := m.child.SubmitTopDown(ctx, validator, td)
	if err != nil {
		if xerrors.Is(err, errs.ErrAlreadyVoted) {
			log.Debugw("lost race to vote, treating as success", "child", m.pair.Child, "epoch", td.Epoch)
			return nil
		}
		return err
	}
	log.Infow("top-down checkpoint submitted", "child", m.pair.Child, "epoch", td.Epoch, "includedAt", receipt.Epoch)
	return nil
}
