package wallet

import (
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/crypto"
	"github.com/stretchr/testify/require"
)

type stubSigner struct{}

func (stubSigner) Sign(addr address.Address, msg []byte) (*crypto.Signature, error) {
	return &crypto.Signature{Type: crypto.SigTypeSecp256k1, Data: msg}, nil
}

func TestWalletSignRoundTrip(t *testing.T) {
	w := New()
	addr, err := address.NewIDAddress(1000)
	require.NoError(t, err)

	require.False(t, w.Has(addr))
	w.Add(addr, stubSigner{})
	require.True(t, w.Has(addr))

	sig, err := w.Sign(addr, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), sig.Data)

	require.Len(t, w.List(), 1)
}

func TestWalletSignUnknownAddress(t *testing.T) {
	w := New()
	addr, err := address.NewIDAddress(2000)
	require.NoError(t, err)

	_, err = w.Sign(addr, []byte("hello"))
	require.ErrorContains(t, err, "no signing key registered")
}
