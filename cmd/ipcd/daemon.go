package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/filecoin-project/go-address"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/consensus-shipyard/ipc-checkpoint-agent/chainadapter"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/chainadapter/evm"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/chainadapter/native"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/config"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/errs"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/supervisor"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/wallet"
)

// daemonCmd launches the checkpoint subsystem in the foreground: load
// config, load the wallet, start the subsystem, and run until a shutdown
// signal.
var daemonCmd = &cli.Command{
	Name:        "daemon",
	Description: "launch the checkpoint agent daemon process",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "config",
			Aliases:  []string{"c"},
			Usage:    "path to the agent's TOML config file",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "keystore",
			Usage: "path to the validator keystore JSON file",
			Value: "keystore.json",
		},
	},
	Action: runDaemon,
}

func runDaemon(cctx *cli.Context) error {
	ctx, cancel := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return xerrors.Errorf("loading config: %w", err)
	}
	defer cfg.Close()

	w, keys, err := wallet.LoadKeystore(cctx.String("keystore"))
	if err != nil {
		return xerrors.Errorf("loading keystore: %w", err)
	}
	log.Infow("loaded keystore", "validators", len(w.List()))

	dial := adapterFactory(keys)
	sub := supervisor.NewSubsystem(cfg, w, dial)

	log.Infow("starting checkpoint subsystem")
	if err := sub.Run(ctx); err != nil {
		return xerrors.Errorf("checkpoint subsystem: %w", err)
	}
	log.Infow("checkpoint subsystem stopped")
	return nil
}

// adapterFactory dials the chain adapter for a parsed subnet config entry,
// routing to the native or EVM backend by its Backend field. EVM subnets
// sign locally, so the factory
// resolves an ECDSA key from the keystore for the subnet's first configured
// account; native subnets delegate signing to the remote node's own wallet
// (chainadapter/native's MpoolPushMessage, keyed by validator address), so
// no local key material is required.
func adapterFactory(keys map[address.Address][]byte) supervisor.AdapterFactory {
	return func(ctx context.Context, subnet config.ParsedSubnet) (chainadapter.Adapter, error) {
		switch subnet.Backend {
		case config.BackendNative:
			var authToken *string
			if subnet.AuthToken != "" {
				authToken = &subnet.AuthToken
			}
			client, err := native.Dial(ctx, subnet.RPCURL, authToken)
			if err != nil {
				return nil, xerrors.Errorf("dialing native subnet %s: %w", subnet.ID, err)
			}
			return native.New(client, subnet.GatewayAddr), nil

		case config.BackendEVM:
			if len(subnet.Accounts) == 0 {
				return nil, xerrors.Errorf("%w: EVM subnet %s has no configured accounts to sign with", errs.ErrConfiguration, subnet.ID)
			}
			priv, ok := keys[subnet.Accounts[0]]
			if !ok {
				return nil, xerrors.Errorf("%w: no keystore entry for EVM subnet %s account %s", errs.ErrConfiguration, subnet.ID, subnet.Accounts[0])
			}
			ecdsaKey, err := gethcrypto.ToECDSA(priv)
			if err != nil {
				return nil, xerrors.Errorf("deriving ECDSA key for %s: %w: %s", subnet.Accounts[0], errs.ErrConfiguration, err)
			}
			gatewayEVM, err := evm.ToEVMAddress(subnet.GatewayAddr)
			if err != nil {
				return nil, xerrors.Errorf("gateway address for EVM subnet %s: %w", subnet.ID, err)
			}
			return evm.Dial(ctx, subnet.RPCURL, ecdsaKey, gatewayEVM)

		default:
			return nil, xerrors.Errorf("%w: subnet %s has unknown backend %q", errs.ErrConfiguration, subnet.ID, subnet.Backend)
		}
	}
}
