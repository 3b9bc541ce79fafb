// Package wallet holds the validator signing keys the checkpoint manager
// submits transactions with, as a concurrency-safe keystore.
package wallet

import (
	"sync"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/crypto"
	"golang.org/x/xerrors"

	"github.com/consensus-shipyard/ipc-checkpoint-agent/errs"
)

// Signer signs a message digest on behalf of addr. Implementations wrap a
// concrete key type (secp256k1, BLS, or an EVM-style ECDSA key).
type Signer interface {
	Sign(addr address.Address, msg []byte) (*crypto.Signature, error)
}

// Wallet is a concurrency-safe registry of validator signing keys, keyed by
// address. One Wallet instance is shared across all pair supervisors so a
// validator account configured for multiple subnets reuses a single key.
type Wallet struct {
	mu      sync.RWMutex
	signers map[address.Address]Signer
}

// New returns an empty Wallet.
func New() *Wallet {
	return &Wallet{signers: make(map[address.Address]Signer)}
}

// Add registers signer for addr, replacing any previous registration.
func (w *Wallet) Add(addr address.Address, signer Signer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.signers[addr] = signer
}

// Sign signs msg on behalf of addr, or returns errs.ErrConfiguration if no
// key is registered for that address.
func (w *Wallet) Sign(addr address.Address, msg []byte) (*crypto.Signature, error) {
	w.mu.RLock()
	signer, ok := w.signers[addr]
	w.mu.RUnlock()
	if !ok {
		return nil, xerrors.Errorf("%w: no signing key registered for %s", errs.ErrConfiguration, addr)
	}
	return signer.Sign(addr, msg)
}

// List returns every address with a registered signing key.
func (w *Wallet) List() []address.Address {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]address.Address, 0, len(w.signers))
	for addr := range w.signers {
		out = append(out, addr)
	}
	return out
}

// Has reports whether addr has a registered signing key.
func (w *Wallet) Has(addr address.Address) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.signers[addr]
	return ok
}
