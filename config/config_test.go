package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleTOML = `
[[subnets]]
id = "/root"
backend = "native"
rpc_url = "http://localhost:1234/rpc/v1"
accounts = ["f01001"]

[[subnets]]
id = "/root/f01001"
backend = "evm"
rpc_url = "http://localhost:8545"
gateway_addr = "f01002"
accounts = ["f01001"]
`

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadParsesSubnets(t *testing.T) {
	path := writeTemp(t, sampleTOML)
	r, err := Load(path)
	require.NoError(t, err)
	defer r.Close()

	snap := r.Snapshot()
	require.Len(t, snap.Subnets, 2)

	root, ok := snap.Subnets["/root"]
	require.True(t, ok)
	require.Equal(t, BackendNative, root.Backend)
	require.Len(t, root.Accounts, 1)
}

func TestLoadRejectsBadSubnetID(t *testing.T) {
	path := writeTemp(t, `
[[subnets]]
id = "not-a-valid-id"
backend = "native"
rpc_url = "http://localhost"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestReloadNotifiesSubscribers(t *testing.T) {
	path := writeTemp(t, sampleTOML)
	r, err := Load(path)
	require.NoError(t, err)
	defer r.Close()

	sub := r.Subscribe()

	updated := sampleTOML + "\n# trailing comment to trigger a write event\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case <-sub:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload notification")
	}
}
