// Package chainadapter defines the uniform request/response surface the
// checkpoint manager drives regardless of whether a subnet's backend is the
// native (Lotus-style) chain or an EVM smart-contract chain. Concrete
// implementations live in the native and evm subpackages.
package chainadapter

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"

	"github.com/consensus-shipyard/ipc-checkpoint-agent/types/checkpoint"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/types/subnetid"
)

// ChainHead identifies a chain's current tip. Tipsets are assumed singleton;
// TipsetCID is the sole block's CID once validated.
type ChainHead struct {
	Height    abi.ChainEpoch
	TipsetCID cid.Cid
}

// SubnetActorState is the subnet actor's view as read from the parent chain.
type SubnetActorState struct {
	CheckPeriod abi.ChainEpoch
	Validators  []address.Address
}

// GatewayState is the gateway actor/contract's view as read from either
// chain, depending on direction.
type GatewayState struct {
	TopDownCheckPeriod      abi.ChainEpoch
	LastVotingExecutedEpoch abi.ChainEpoch
	AppliedTopDownNonce     uint64
}

// Receipt is the result of a confirmed submission: the epoch (block height
// or equivalent) at which the submission was included.
type Receipt struct {
	Epoch abi.ChainEpoch
}

// Adapter is the capability set every chain backend must implement.
// Method signatures never vary by backend; backend-specific construction
// state (e.g. an EVM gateway contract address) lives in the
// implementation's constructor, not in these signatures.
//
// Implementations are safe for concurrent reads. Callers must serialize
// submissions per validator to preserve nonce order.
type Adapter interface {
	ChainHead(ctx context.Context) (ChainHead, error)
	SubnetActorState(ctx context.Context, child subnetid.ID, at ChainHead) (SubnetActorState, error)
	GatewayState(ctx context.Context, at ChainHead) (GatewayState, error)
	PrevCheckpointCID(ctx context.Context, child subnetid.ID) (*cid.Cid, error)
	CheckpointTemplate(ctx context.Context, epoch abi.ChainEpoch) (checkpoint.Template, error)
	TopDownMessages(ctx context.Context, child subnetid.ID, fromNonce uint64) ([]checkpoint.CrossMsg, error)

	// HasVoted reports whether validator has already voted for epoch. When
	// child is nil the query is gateway-scoped (top-down); otherwise it is
	// scoped to the given child subnet's actor (bottom-up).
	HasVoted(ctx context.Context, child *subnetid.ID, epoch abi.ChainEpoch, validator address.Address) (bool, error)

	SubmitBottomUp(ctx context.Context, child subnetid.ID, validator address.Address, ch checkpoint.BottomUp) (Receipt, error)
	SubmitTopDown(ctx context.Context, validator address.Address, ch checkpoint.TopDown) (Receipt, error)
}
