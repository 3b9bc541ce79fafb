// Package evm implements the chain adapter against an EVM subnet reached
// over an Ethereum JSON-RPC endpoint.
package evm

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/multiformats/go-multihash"
	"golang.org/x/xerrors"

	"github.com/consensus-shipyard/ipc-checkpoint-agent/chainadapter"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/errs"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/types/checkpoint"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/types/subnetid"
)

var log = logging.Logger("chainadapter/evm")

// subnetMajorityPercentage is the validator vote threshold EVM subnets are
// deployed with.
const subnetMajorityPercentage = 60

// receiptRetries mirrors chainadapter.ReceiptRetries: FEVM occasionally
// needs several polls before a submitted transaction's events are indexed.
const receiptRetries = chainadapter.ReceiptRetries

// Adapter implements chainadapter.Adapter against an EVM subnet.
type Adapter struct {
	client  *ethclient.Client
	gateway *boundContract
	signer  *ecdsa.PrivateKey
	chainID *big.Int
}

var _ chainadapter.Adapter = (*Adapter)(nil)

// Dial connects to an EVM JSON-RPC endpoint and binds the gateway contract,
// signing future transactions with privateKey.
func Dial(ctx context.Context, rpcURL string, privateKey *ecdsa.PrivateKey, gatewayAddr gethcommon.Address) (*Adapter, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, xerrors.Errorf("dialing %s: %w: %s", rpcURL, errs.ErrTransient, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, xerrors.Errorf("fetching chain id: %w: %s", errs.ErrTransient, err)
	}
	return &Adapter{
		client:  client,
		gateway: newBoundContract(gatewayAddr, gatewayABI, client),
		signer:  privateKey,
		chainID: chainID,
	}, nil
}

func (a *Adapter) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(a.signer, a.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}

func (a *Adapter) callOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx}
}

func (a *Adapter) ChainHead(ctx context.Context) (chainadapter.ChainHead, error) {
	header, err := a.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return chainadapter.ChainHead{}, xerrors.Errorf("HeaderByNumber: %w: %s", errs.ErrTransient, err)
	}
	tipCid, err := blockHashToCid(header.Hash())
	if err != nil {
		return chainadapter.ChainHead{}, err
	}
	return chainadapter.ChainHead{Height: abi.ChainEpoch(header.Number.Int64()), TipsetCID: tipCid}, nil
}

func (a *Adapter) SubnetActorState(ctx context.Context, child subnetid.ID, _ chainadapter.ChainHead) (chainadapter.SubnetActorState, error) {
	addr, err := LastEVMAddress(child)
	if err != nil {
		return chainadapter.SubnetActorState{}, err
	}
	contract := newBoundContract(addr, subnetActorABI, a.client)

	var periodOut []interface{}
	if err := contract.Call(a.callOpts(ctx), &periodOut, "bottomUpCheckPeriod"); err != nil {
		return chainadapter.SubnetActorState{}, xerrors.Errorf("bottomUpCheckPeriod: %w: %s", errs.ErrTransient, err)
	}
	var validatorsOut []interface{}
	if err := contract.Call(a.callOpts(ctx), &validatorsOut, "allValidators"); err != nil {
		return chainadapter.SubnetActorState{}, xerrors.Errorf("allValidators: %w: %s", errs.ErrTransient, err)
	}

	period, err := asUint64(periodOut)
	if err != nil {
		return chainadapter.SubnetActorState{}, err
	}
	evmValidators, ok := singleResult(validatorsOut).([]gethcommon.Address)
	if !ok {
		return chainadapter.SubnetActorState{}, xerrors.Errorf("unexpected allValidators return type")
	}
	validators := make([]address.Address, len(evmValidators))
	for i, v := range evmValidators {
		validators[i], err = FromEVMAddress(v)
		if err != nil {
			return chainadapter.SubnetActorState{}, err
		}
	}
	return chainadapter.SubnetActorState{CheckPeriod: abi.ChainEpoch(period), Validators: validators}, nil
}

func (a *Adapter) GatewayState(ctx context.Context, _ chainadapter.ChainHead) (chainadapter.GatewayState, error) {
	lastExecuted, err := a.callUint64(ctx, a.gateway, "lastVotingExecutedEpoch")
	if err != nil {
		return chainadapter.GatewayState{}, err
	}
	checkPeriod, err := a.callUint64(ctx, a.gateway, "topDownCheckPeriod")
	if err != nil {
		return chainadapter.GatewayState{}, err
	}
	nonce, err := a.callUint64(ctx, a.gateway, "appliedTopDownNonce")
	if err != nil {
		return chainadapter.GatewayState{}, err
	}
	return chainadapter.GatewayState{
		TopDownCheckPeriod:      abi.ChainEpoch(checkPeriod),
		LastVotingExecutedEpoch: abi.ChainEpoch(lastExecuted),
		AppliedTopDownNonce:     nonce,
	}, nil
}

func (a *Adapter) PrevCheckpointCID(ctx context.Context, child subnetid.ID) (*cid.Cid, error) {
	addr, err := LastEVMAddress(child)
	if err != nil {
		return nil, err
	}
	contract := newBoundContract(addr, subnetActorABI, a.client)
	var out []interface{}
	if err := contract.Call(a.callOpts(ctx), &out, "prevCheckpointCid"); err != nil {
		return nil, xerrors.Errorf("prevCheckpointCid: %w: %s", errs.ErrTransient, err)
	}
	raw, ok := singleResult(out).([]byte)
	if !ok || len(raw) == 0 {
		return nil, nil
	}
	c, err := cid.Cast(raw)
	if err != nil {
		return nil, xerrors.Errorf("decoding prevCheckpointCid: %w", err)
	}
	return &c, nil
}

// CheckpointTemplate is not contract-backed on EVM subnets and always returns
// an empty template. BottomUpManager.Build calls it on the child adapter, so a
// bottom-up checkpoint built for an EVM child carries no children and no
// cross messages.
func (a *Adapter) CheckpointTemplate(_ context.Context, _ abi.ChainEpoch) (checkpoint.Template, error) {
	return checkpoint.Template{}, nil
}

func (a *Adapter) TopDownMessages(ctx context.Context, child subnetid.ID, fromNonce uint64) ([]checkpoint.CrossMsg, error) {
	route, err := RouteToEVMAddresses(child)
	if err != nil {
		return nil, err
	}
	encodedRoute, err := encodeRoute(route)
	if err != nil {
		return nil, err
	}
	var out []interface{}
	if err := a.gateway.Call(a.callOpts(ctx), &out, "getTopDownMsgs", encodedRoute, fromNonce); err != nil {
		return nil, xerrors.Errorf("getTopDownMsgs: %w: %s", errs.ErrTransient, err)
	}
	raw, ok := singleResult(out).([]byte)
	if !ok {
		return nil, xerrors.Errorf("unexpected getTopDownMsgs return type")
	}
	var td checkpoint.TopDown
	if err := td.UnmarshalCBOR(bytes.NewReader(raw)); err != nil {
		return nil, xerrors.Errorf("decoding top-down messages: %w", err)
	}
	return td.TopDownMsgs, nil
}

func (a *Adapter) HasVoted(ctx context.Context, child *subnetid.ID, epoch abi.ChainEpoch, validator address.Address) (bool, error) {
	evmValidator, err := ToEVMAddress(validator)
	if err != nil {
		return false, err
	}
	contract := a.gateway
	if child != nil {
		addr, err := LastEVMAddress(*child)
		if err != nil {
			return false, err
		}
		contract = newBoundContract(addr, subnetActorABI, a.client)
	}
	var out []interface{}
	if err := contract.Call(a.callOpts(ctx), &out, "hasValidatorVotedForSubmission", uint64(epoch), evmValidator); err != nil {
		return false, xerrors.Errorf("hasValidatorVotedForSubmission: %w: %s", errs.ErrTransient, err)
	}
	voted, ok := singleResult(out).(bool)
	if !ok {
		return false, xerrors.Errorf("unexpected hasValidatorVotedForSubmission return type")
	}
	return voted, nil
}

func (a *Adapter) SubmitBottomUp(ctx context.Context, child subnetid.ID, validator address.Address, ch checkpoint.BottomUp) (chainadapter.Receipt, error) {
	addr, err := LastEVMAddress(child)
	if err != nil {
		return chainadapter.Receipt{}, err
	}
	contract := newBoundContract(addr, subnetActorABI, a.client)
	params, err := cborEncode(&ch)
	if err != nil {
		return chainadapter.Receipt{}, err
	}
	return a.submit(ctx, contract, "submitCheckpoint", params)
}

func (a *Adapter) SubmitTopDown(ctx context.Context, _ address.Address, ch checkpoint.TopDown) (chainadapter.Receipt, error) {
	params, err := cborEncode(&ch)
	if err != nil {
		return chainadapter.Receipt{}, err
	}
	return a.submit(ctx, a.gateway, "submitTopDownCheckpoint", params)
}

func (a *Adapter) submit(ctx context.Context, contract *boundContract, method string, params []byte) (chainadapter.Receipt, error) {
	opts, err := a.transactOpts(ctx)
	if err != nil {
		return chainadapter.Receipt{}, err
	}
	tx, err := contract.Transact(opts, method, params)
	if err != nil {
		return chainadapter.Receipt{}, xerrors.Errorf("%s: %w: %s", method, errs.ErrTransient, err)
	}

	log.Infow("checkpoint submission sent", "tx", tx.Hash(), "method", method)

	receipt, err := chainadapter.PollReceipt(ctx, func(ctx context.Context) (*types.Receipt, bool, error) {
		r, err := a.client.TransactionReceipt(ctx, tx.Hash())
		if err != nil {
			return nil, false, nil
		}
		return r, r != nil, nil
	})
	if err != nil {
		return chainadapter.Receipt{}, err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return chainadapter.Receipt{}, xerrors.Errorf("%w: transaction %s reverted", errs.ErrFatal, tx.Hash())
	}
	return chainadapter.Receipt{Epoch: abi.ChainEpoch(receipt.BlockNumber.Int64())}, nil
}

func (a *Adapter) callUint64(ctx context.Context, contract *boundContract, method string) (uint64, error) {
	var out []interface{}
	if err := contract.Call(a.callOpts(ctx), &out, method); err != nil {
		return 0, xerrors.Errorf("%s: %w: %s", method, errs.ErrTransient, err)
	}
	return asUint64(out)
}

func asUint64(out []interface{}) (uint64, error) {
	v, ok := singleResult(out).(uint64)
	if !ok {
		return 0, xerrors.Errorf("unexpected return type, want uint64")
	}
	return v, nil
}

func singleResult(out []interface{}) interface{} {
	if len(out) != 1 {
		return nil
	}
	return out[0]
}

func blockHashToCid(h gethcommon.Hash) (cid.Cid, error) {
	mh, err := multihash.Sum(h.Bytes(), multihash.KECCAK_256, -1)
	if err != nil {
		return cid.Undef, xerrors.Errorf("hashing block hash: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

func encodeRoute(route []gethcommon.Address) ([]byte, error) {
	var buf bytes.Buffer
	for _, r := range route {
		buf.Write(r.Bytes())
	}
	return buf.Bytes(), nil
}

type cborMarshaler interface {
	MarshalCBOR(w io.Writer) error
}

func cborEncode(v cborMarshaler) ([]byte, error) {
	var buf bytes.Buffer
	if err := v.MarshalCBOR(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
