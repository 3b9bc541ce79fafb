package main

import (
	"context"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/stretchr/testify/require"

	"github.com/consensus-shipyard/ipc-checkpoint-agent/config"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/errs"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/types/subnetid"
)

func TestAdapterFactoryRejectsUnknownBackend(t *testing.T) {
	dial := adapterFactory(nil)
	id, err := subnetid.Parse("/root")
	require.NoError(t, err)

	_, err = dial(context.Background(), config.ParsedSubnet{ID: id, Backend: "quantum"})
	require.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestAdapterFactoryRejectsEVMSubnetWithNoAccounts(t *testing.T) {
	dial := adapterFactory(map[address.Address][]byte{})
	id, err := subnetid.Parse("/root")
	require.NoError(t, err)

	_, err = dial(context.Background(), config.ParsedSubnet{ID: id, Backend: config.BackendEVM})
	require.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestAdapterFactoryRejectsEVMSubnetWithoutKeystoreEntry(t *testing.T) {
	dial := adapterFactory(map[address.Address][]byte{})
	id, err := subnetid.Parse("/root")
	require.NoError(t, err)
	account, err := address.NewIDAddress(1001)
	require.NoError(t, err)

	_, err = dial(context.Background(), config.ParsedSubnet{ID: id, Backend: config.BackendEVM, Accounts: []address.Address{account}})
	require.ErrorIs(t, err, errs.ErrConfiguration)
}
