package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"

	"github.com/consensus-shipyard/ipc-checkpoint-agent/chainadapter"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/config"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/types/checkpoint"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/types/subnetid"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/wallet"
)

// noopAdapter is a fake chainadapter.Adapter whose SubnetActorState reports
// validators as a fixed, injectable set so tests can control which
// configured accounts survive the on-chain validator intersection.
type noopAdapter struct {
	validators []address.Address
}

func (noopAdapter) ChainHead(context.Context) (chainadapter.ChainHead, error) {
	return chainadapter.ChainHead{}, nil
}
func (a noopAdapter) SubnetActorState(context.Context, subnetid.ID, chainadapter.ChainHead) (chainadapter.SubnetActorState, error) {
	return chainadapter.SubnetActorState{Validators: a.validators}, nil
}
func (noopAdapter) GatewayState(context.Context, chainadapter.ChainHead) (chainadapter.GatewayState, error) {
	return chainadapter.GatewayState{}, nil
}
func (noopAdapter) PrevCheckpointCID(context.Context, subnetid.ID) (*cid.Cid, error) { return nil, nil }
func (noopAdapter) CheckpointTemplate(context.Context, abi.ChainEpoch) (checkpoint.Template, error) {
	return checkpoint.Template{}, nil
}
func (noopAdapter) TopDownMessages(context.Context, subnetid.ID, uint64) ([]checkpoint.CrossMsg, error) {
	return nil, nil
}
func (noopAdapter) HasVoted(context.Context, *subnetid.ID, abi.ChainEpoch, address.Address) (bool, error) {
	return true, nil
}
func (noopAdapter) SubmitBottomUp(context.Context, subnetid.ID, address.Address, checkpoint.BottomUp) (chainadapter.Receipt, error) {
	return chainadapter.Receipt{}, nil
}
func (noopAdapter) SubmitTopDown(context.Context, address.Address, checkpoint.TopDown) (chainadapter.Receipt, error) {
	return chainadapter.Receipt{}, nil
}

var _ chainadapter.Adapter = noopAdapter{}

func writeConfig(t *testing.T, contents string) *config.Reloadable {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	r, err := config.Load(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestPairsToManageFiltersByAccountAndParent(t *testing.T) {
	cfg := writeConfig(t, `
[[subnets]]
id = "/root"
backend = "native"
rpc_url = "http://localhost"
accounts = []

[[subnets]]
id = "/root/f01001"
backend = "native"
rpc_url = "http://localhost"
accounts = ["f01001"]

[[subnets]]
id = "/root/f01002"
backend = "native"
rpc_url = "http://localhost"
accounts = ["f01002"]
`)

	w := wallet.New()
	managed, err := address.NewIDAddress(1001)
	require.NoError(t, err)
	w.Add(managed, nil)

	s := NewSubsystem(cfg, w, func(context.Context, config.ParsedSubnet) (chainadapter.Adapter, error) {
		return noopAdapter{validators: []address.Address{managed}}, nil
	})

	pairs, err := s.pairsToManage(context.Background(), cfg.Snapshot())
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	require.Equal(t, "/root/f01001", pairs[0].pair.Child.String())
}

func TestPairsToManageExcludesAccountsNotOnChainValidatorSet(t *testing.T) {
	cfg := writeConfig(t, `
[[subnets]]
id = "/root"
backend = "native"
rpc_url = "http://localhost"
accounts = []

[[subnets]]
id = "/root/f01001"
backend = "native"
rpc_url = "http://localhost"
accounts = ["f01001"]
`)

	w := wallet.New()
	managed, err := address.NewIDAddress(1001)
	require.NoError(t, err)
	w.Add(managed, nil)

	// managed is configured and wallet-held, but the subnet actor's
	// on-chain validator set does not recognize it: the pair must be
	// excluded, not just filtered by config/wallet membership.
	s := NewSubsystem(cfg, w, func(context.Context, config.ParsedSubnet) (chainadapter.Adapter, error) {
		return noopAdapter{validators: nil}, nil
	})

	pairs, err := s.pairsToManage(context.Background(), cfg.Snapshot())
	require.NoError(t, err)
	require.Empty(t, pairs)
}

func TestSubsystemRunStopsOnContextCancel(t *testing.T) {
	cfg := writeConfig(t, `
[[subnets]]
id = "/root"
backend = "native"
rpc_url = "http://localhost"
accounts = []
`)
	w := wallet.New()
	s := NewSubsystem(cfg, w, func(context.Context, config.ParsedSubnet) (chainadapter.Adapter, error) {
		return noopAdapter{}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subsystem did not stop after cancellation")
	}
}
