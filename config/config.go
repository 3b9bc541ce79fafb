// Package config loads and hot-reloads the agent's subnet configuration,
// using BurntSushi/toml to decode the file and fsnotify to watch it for
// changes.
package config

import (
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/filecoin-project/go-address"
	"github.com/fsnotify/fsnotify"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/consensus-shipyard/ipc-checkpoint-agent/errs"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/types/subnetid"
)

var log = logging.Logger("config")

// Backend selects which chain adapter implementation a subnet's config
// entry is bound to.
type Backend string

const (
	BackendNative Backend = "native"
	BackendEVM    Backend = "evm"
)

// Subnet is one entry of the config file's [[subnets]] table: everything
// needed to dial and authenticate against a subnet's chain, plus the
// validator accounts this agent submits checkpoints on behalf of.
type Subnet struct {
	ID          string   `toml:"id"`
	Backend     Backend  `toml:"backend"`
	RPCURL      string   `toml:"rpc_url"`
	AuthToken   string   `toml:"auth_token"`
	GatewayAddr string   `toml:"gateway_addr"`
	Accounts    []string `toml:"accounts"`
}

// ParsedSubnet is a Subnet with its string fields resolved into their
// typed equivalents, ready for use by the supervisor and chain adapters.
type ParsedSubnet struct {
	ID          subnetid.ID
	Backend     Backend
	RPCURL      string
	AuthToken   string
	GatewayAddr address.Address
	Accounts    []address.Address
}

// file is the root TOML document shape.
type file struct {
	Subnets []Subnet `toml:"subnets"`
}

// Snapshot is an immutable, parsed view of the config at a point in time,
// keyed by subnet ID so pair lookups don't re-parse addresses.
type Snapshot struct {
	Subnets map[string]ParsedSubnet
}

func parseSnapshot(f file) (Snapshot, error) {
	snap := Snapshot{Subnets: make(map[string]ParsedSubnet, len(f.Subnets))}
	for _, s := range f.Subnets {
		id, err := subnetid.Parse(s.ID)
		if err != nil {
			return Snapshot{}, xerrors.Errorf("subnet id %q: %w: %s", s.ID, errs.ErrConfiguration, err)
		}
		var gateway address.Address
		if s.GatewayAddr != "" {
			gateway, err = address.NewFromString(s.GatewayAddr)
			if err != nil {
				return Snapshot{}, xerrors.Errorf("gateway address %q: %w: %s", s.GatewayAddr, errs.ErrConfiguration, err)
			}
		}
		accounts := make([]address.Address, len(s.Accounts))
		for i, a := range s.Accounts {
			accounts[i], err = address.NewFromString(a)
			if err != nil {
				return Snapshot{}, xerrors.Errorf("account %q of subnet %q: %w: %s", a, s.ID, errs.ErrConfiguration, err)
			}
		}
		snap.Subnets[id.String()] = ParsedSubnet{
			ID:          id,
			Backend:     s.Backend,
			RPCURL:      s.RPCURL,
			AuthToken:   s.AuthToken,
			GatewayAddr: gateway,
			Accounts:    accounts,
		}
	}
	return snap, nil
}

// Reloadable watches a TOML config file on disk and keeps an up-to-date
// Snapshot, notifying subscribers on every successful reload.
type Reloadable struct {
	path string

	mu   sync.RWMutex
	snap Snapshot

	subMu sync.Mutex
	subs  []chan struct{}

	watcher *fsnotify.Watcher
}

// Load reads path once and starts watching it for subsequent changes.
func Load(path string) (*Reloadable, error) {
	r := &Reloadable{path: path}
	if err := r.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, xerrors.Errorf("creating config watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, xerrors.Errorf("watching %s: %w", path, err)
	}
	r.watcher = watcher

	go r.watchLoop()
	return r, nil
}

func (r *Reloadable) reload() error {
	var f file
	if _, err := toml.DecodeFile(r.path, &f); err != nil {
		return xerrors.Errorf("decoding %s: %w: %s", r.path, errs.ErrConfiguration, err)
	}
	snap, err := parseSnapshot(f)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()
	return nil
}

func (r *Reloadable) watchLoop() {
	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := r.reload(); err != nil {
				log.Errorw("failed to reload config, keeping previous snapshot", "error", err)
				continue
			}
			log.Infow("config reloaded", "path", r.path)
			r.notifySubscribers()
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			log.Errorw("config watcher error", "error", err)
		}
	}
}

// Snapshot returns the most recently loaded configuration.
func (r *Reloadable) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Subscribe returns a channel that receives a value every time the config
// is successfully reloaded. The channel is buffered; slow subscribers are
// expected to drain it promptly.
func (r *Reloadable) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	r.subMu.Lock()
	r.subs = append(r.subs, ch)
	r.subMu.Unlock()
	return ch
}

func (r *Reloadable) notifySubscribers() {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close stops watching the config file.
func (r *Reloadable) Close() error {
	if r.watcher == nil {
		return nil
	}
	return r.watcher.Close()
}
