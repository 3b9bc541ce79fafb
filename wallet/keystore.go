package wallet

import (
	"encoding/hex"
	"encoding/json"
	"os"

	"github.com/filecoin-project/go-address"
	gocrypto "github.com/filecoin-project/go-crypto"
	"github.com/filecoin-project/go-state-types/crypto"
	"golang.org/x/xerrors"

	"github.com/consensus-shipyard/ipc-checkpoint-agent/errs"
)

// keyEntry is the on-disk shape of one keystore record: a validator address
// and its raw secp256k1 private key, hex-encoded. The same private key
// backs both the native (Filecoin secp256k1) and EVM signing paths, since
// address conversion (chainadapter/evm's ToEVMAddress) maps one to the
// other deterministically.
type keyEntry struct {
	Address    string `json:"address"`
	PrivateKey string `json:"private_key"`
}

// secpSigner signs with a raw secp256k1 private key via go-crypto.
type secpSigner struct {
	privateKey []byte
}

func (s secpSigner) Sign(_ address.Address, msg []byte) (*crypto.Signature, error) {
	sig, err := gocrypto.Sign(s.privateKey, msg)
	if err != nil {
		return nil, xerrors.Errorf("signing with secp256k1 key: %w", err)
	}
	return &crypto.Signature{Type: crypto.SigTypeSecp256k1, Data: sig}, nil
}

// PrivateKey returns the raw secp256k1 key backing this signer, for callers
// that need to derive an *ecdsa.PrivateKey for the EVM adapter
// (chainadapter/evm.Dial) rather than sign directly.
func (s secpSigner) PrivateKey() []byte {
	return s.privateKey
}

// LoadKeystore reads a JSON array of keyEntry records from path and returns
// a populated Wallet plus the raw private key bytes per address, so callers
// can derive backend-specific key material (e.g. an ECDSA key for EVM)
// without re-parsing the keystore file.
func LoadKeystore(path string) (*Wallet, map[address.Address][]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, xerrors.Errorf("reading keystore %s: %w: %s", path, errs.ErrConfiguration, err)
	}

	var entries []keyEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, nil, xerrors.Errorf("parsing keystore %s: %w: %s", path, errs.ErrConfiguration, err)
	}

	w := New()
	keys := make(map[address.Address][]byte, len(entries))
	for _, e := range entries {
		addr, err := address.NewFromString(e.Address)
		if err != nil {
			return nil, nil, xerrors.Errorf("keystore entry address %q: %w: %s", e.Address, errs.ErrConfiguration, err)
		}
		priv, err := hex.DecodeString(e.PrivateKey)
		if err != nil {
			return nil, nil, xerrors.Errorf("keystore entry %q private key is not hex: %w: %s", e.Address, errs.ErrConfiguration, err)
		}
		w.Add(addr, secpSigner{privateKey: priv})
		keys[addr] = priv
	}

	return w, keys, nil
}
