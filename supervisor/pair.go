// Package supervisor implements the Pair Supervisor (C3) and Checkpoint
// Subsystem (C4): the concurrency and lifecycle layer that drives the
// checkpoint managers for every subnet pair under management, using
// context cancellation and golang.org/x/sync/errgroup for structured
// shutdown.
package supervisor

import (
	"context"
	"time"

	"github.com/filecoin-project/go-address"
	logging "github.com/ipfs/go-log/v2"

	"github.com/consensus-shipyard/ipc-checkpoint-agent/checkpoint"
)

var log = logging.Logger("supervisor")

// PollInterval is the frequency at which a pair supervisor re-checks chain
// heads for a due checkpoint.
const PollInterval = 10 * time.Second

// PairSupervisor drives checkpoint submission, in both directions, for one
// child/parent subnet pair, on behalf of every validator account this agent
// holds a key for.
type PairSupervisor struct {
	pair       checkpoint.Pair
	bottomUp   *checkpoint.BottomUpManager
	topDown    *checkpoint.TopDownManager
	validators []address.Address
}

// NewPairSupervisor builds a supervisor for pair, submitting on behalf of
// validators (already filtered to accounts this agent can sign for).
func NewPairSupervisor(pair checkpoint.Pair, bottomUp *checkpoint.BottomUpManager, topDown *checkpoint.TopDownManager, validators []address.Address) *PairSupervisor {
	return &PairSupervisor{pair: pair, bottomUp: bottomUp, topDown: topDown, validators: validators}
}

// Run polls both checkpoint directions for pair until ctx is cancelled. A
// single validator's transient failure is logged and retried next tick; it
// does not stop the supervisor.
func (p *PairSupervisor) Run(ctx context.Context) error {
	if len(p.validators) == 0 {
		log.Warnw("no validators to manage for pair, idling", "child", p.pair.Child, "parent", p.pair.Parent)
	}

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		p.tick(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *PairSupervisor) tick(ctx context.Context) {
	for _, validator := range p.validators {
		if ctx.Err() != nil {
			return
		}
		p.tryBottomUp(ctx, validator)
		p.tryTopDown(ctx, validator)
	}
}

func (p *PairSupervisor) tryBottomUp(ctx context.Context, validator address.Address) {
	epoch, due, err := p.bottomUp.NextSubmissionEpoch(ctx)
	if err != nil {
		log.Errorw("bottom-up epoch check failed", "child", p.pair.Child, "validator", validator, "error", err)
		return
	}
	if !due {
		return
	}
	bu, err := p.bottomUp.Build(ctx, epoch)
	if err != nil {
		log.Errorw("bottom-up checkpoint build failed", "child", p.pair.Child, "epoch", epoch, "error", err)
		return
	}
	if err := p.bottomUp.Submit(ctx, validator, bu); err != nil {
		log.Errorw("bottom-up checkpoint submission failed", "child", p.pair.Child, "epoch", epoch, "validator", validator, "error", err)
	}
}

func (p *PairSupervisor) tryTopDown(ctx context.Context, validator address.Address) {
	epoch, due, err := p.topDown.NextSubmissionEpoch(ctx)
	if err != nil {
		log.Errorw("top-down epoch check failed", "child", p.pair.Child, "validator", validator, "error", err)
		return
	}
	if !due {
		return
	}
	td, err := p.topDown.Build(ctx, epoch)
	if err != nil {
		log.Errorw("top-down checkpoint build failed", "child", p.pair.Child, "epoch", epoch, "error", err)
		return
	}
	if err := p.topDown.Submit(ctx, validator, td); err != nil {
		log.Errorw("top-down checkpoint submission failed", "child", p.pair.Child, "epoch", epoch, "validator", validator, "error", err)
		return
	}

	// Second opportunity: if the submission unblocked another epoch
	// immediately (e.g. catching up after downtime), take it now rather
	// than waiting a full poll interval.
	nextEpoch, due, err := p.topDown.NextSubmissionEpoch(ctx)
	if err != nil || !due || nextEpoch == epoch {
		return
	}
	td2, err := p.topDown.Build(ctx, nextEpoch)
	if err != nil {
		log.Errorw("top-down second-opportunity build failed", "child", p.pair.Child, "epoch", nextEpoch, "error", err)
		return
	}
	if err := p.topDown.Submit(ctx, validator, td2); err != nil {
		log.Errorw("top-down second-opportunity submission failed", "child", p.pair.Child, "epoch", nextEpoch, "error", err)
	}
}
