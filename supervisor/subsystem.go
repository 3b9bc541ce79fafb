package supervisor

import (
	"context"
	"time"

	"github.com/filecoin-project/go-address"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/consensus-shipyard/ipc-checkpoint-agent/chainadapter"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/checkpoint"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/config"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/wallet"
)

var subsystemLog = logging.Logger("supervisor/subsystem")

// ShutdownGrace bounds how long the subsystem waits for a retiring
// generation of pair supervisors to exit before it gives up waiting and moves
// on. The generation's context is cancelled first, and submissions run under
// that context, so an in-flight submission's receipt polling is aborted
// rather than carried to completion.
const ShutdownGrace = 10 * time.Second

// AdapterFactory dials the chain adapter for a parsed subnet config entry,
// selecting native or EVM based on its Backend field. Injected so tests can
// substitute fakes and cmd/ipcd can wire the real native/evm dialers.
type AdapterFactory func(ctx context.Context, subnet config.ParsedSubnet) (chainadapter.Adapter, error)

// Subsystem is the Checkpoint Subsystem (C4): it watches a Reloadable
// config, computes the set of subnet pairs under management, and keeps one
// PairSupervisor running per pair, restarting the whole set whenever the
// config changes.
type Subsystem struct {
	config *config.Reloadable
	wallet *wallet.Wallet
	dial   AdapterFactory
}

// NewSubsystem builds a Subsystem reading from cfg, signing with wallet,
// and dialing chain adapters through dial.
func NewSubsystem(cfg *config.Reloadable, w *wallet.Wallet, dial AdapterFactory) *Subsystem {
	return &Subsystem{config: cfg, wallet: w, dial: dial}
}

// Run drives the subsystem until ctx is cancelled: cancellation propagates
// to every pair supervisor and Run returns once they have all exited.
func (s *Subsystem) Run(ctx context.Context) error {
	reloads := s.config.Subscribe()

	for {
		generationCtx, cancelGeneration := context.WithCancel(ctx)
		g, gctx := errgroup.WithContext(generationCtx)

		pairs, err := s.pairsToManage(gctx, s.config.Snapshot())
		if err != nil {
			cancelGeneration()
			return xerrors.Errorf("computing subnet pairs to manage: %w", err)
		}
		subsystemLog.Infow("starting pair supervisors", "count", len(pairs))
		for _, p := range pairs {
			p := p
			g.Go(func() error { return p.Run(gctx) })
		}

		select {
		case <-ctx.Done():
			cancelGeneration()
			waitWithGrace(g, ShutdownGrace)
			return nil
		case <-reloads:
			subsystemLog.Infow("config changed, restarting pair supervisors")
			cancelGeneration()
			waitWithGrace(g, ShutdownGrace)
		}
	}
}

// waitWithGrace waits for g to finish, logging (but not blocking forever)
// if it overruns grace: the generation's context is already cancelled, so
// an overrun means a pair supervisor ignored cancellation, not that more
// time would help.
func waitWithGrace(g *errgroup.Group, grace time.Duration) {
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			subsystemLog.Errorw("pair supervisor exited with error during shutdown", "error", err)
		}
	case <-time.After(grace):
		subsystemLog.Warnw("pair supervisors did not stop within shutdown grace period", "grace", grace)
	}
}

// pairsToManage computes the (child, parent) subnet pairs this agent must
// actively manage: a subnet whose parent also appears in the snapshot, and
// whose validator set (the subnet actor's on-chain validators, intersected
// with the subnet's configured accounts, intersected with the addresses
// this agent holds a signing key for) is non-empty. It builds a
// PairSupervisor for each, in the validators' config declaration order. A
// pair whose adapters cannot be dialed or whose subnet actor state cannot be
// read is logged and skipped; the other pairs are still managed.
func (s *Subsystem) pairsToManage(ctx context.Context, snap config.Snapshot) ([]*PairSupervisor, error) {
	var supervisors []*PairSupervisor

	for _, child := range snap.Subnets {
		if len(child.Accounts) == 0 {
			continue
		}
		parentID, ok := child.ID.Parent()
		if !ok {
			continue
		}
		parent, ok := snap.Subnets[parentID.String()]
		if !ok {
			continue
		}

		childAdapter, err := s.dial(ctx, child)
		if err != nil {
			subsystemLog.Errorw("dialing child subnet failed, skipping pair", "child", child.ID, "error", err)
			continue
		}
		parentAdapter, err := s.dial(ctx, parent)
		if err != nil {
			subsystemLog.Errorw("dialing parent subnet failed, skipping pair", "child", child.ID, "parent", parent.ID, "error", err)
			continue
		}

		parentHead, err := parentAdapter.ChainHead(ctx)
		if err != nil {
			subsystemLog.Errorw("fetching parent chain head failed, skipping pair", "child", child.ID, "error", err)
			continue
		}
		actorState, err := parentAdapter.SubnetActorState(ctx, child.ID, parentHead)
		if err != nil {
			subsystemLog.Errorw("reading subnet actor state failed, skipping pair", "child", child.ID, "error", err)
			continue
		}

		onChainAccounts := intersectAddresses(child.Accounts, actorState.Validators)
		validators := s.manageableValidators(onChainAccounts)
		if len(validators) == 0 {
			continue
		}

		pair := checkpoint.Pair{Child: child.ID, Parent: parent.ID}
		bu := checkpoint.NewBottomUpManager(pair, childAdapter, parentAdapter)
		td := checkpoint.NewTopDownManager(pair, childAdapter, parentAdapter)
		supervisors = append(supervisors, NewPairSupervisor(pair, bu, td, validators))
	}

	return supervisors, nil
}

// manageableValidators intersects accounts (already narrowed to validators
// the subnet actor recognizes) with the addresses this agent holds a
// signing key for.
func (s *Subsystem) manageableValidators(accounts []address.Address) []address.Address {
	var out []address.Address
	for _, a := range accounts {
		if s.wallet.Has(a) {
			out = append(out, a)
		}
	}
	return out
}

// intersectAddresses returns the elements of a that also appear in b,
// preserving a's order.
func intersectAddresses(a, b []address.Address) []address.Address {
	set := make(map[address.Address]struct{}, len(b))
	for _, x := range b {
		set[x] = struct{}{}
	}
	var out []address.Address
	for _, x := range a {
		if _, ok := set[x]; ok {
			out = append(out, x)
		}
	}
	return out
}
