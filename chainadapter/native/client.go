// Package native implements the chain adapter against a Lotus-style
// JSON-RPC node.
package native

import (
	"context"
	"net/http"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-jsonrpc"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"

	"github.com/consensus-shipyard/ipc-checkpoint-agent/types/checkpoint"
)

// rpcTipSet mirrors the subset of lotus's types.TipSet the agent needs: its
// height and the CIDs of the (assumed singleton) blocks at that height.
type rpcTipSet struct {
	Height abi.ChainEpoch
	Cids   []cid.Cid
}

// rpcSubnetActorState mirrors IpcReadSubnetActorState's response.
type rpcSubnetActorState struct {
	CheckPeriod abi.ChainEpoch
	Validators  []address.Address
}

// rpcGatewayState mirrors IpcReadGatewayState's response.
type rpcGatewayState struct {
	TopDownCheckPeriod      abi.ChainEpoch
	LastVotingExecutedEpoch abi.ChainEpoch
	AppliedTopDownNonce     uint64
}

// rpcMessage mirrors the fields of lotus's types.Message the agent needs to
// populate when pushing a checkpoint submission into the mempool.
type rpcMessage struct {
	To     address.Address
	From   address.Address
	Method abi.MethodNum
	Params []byte
}

// rpcMsgLookup mirrors StateWaitMsg's response.
type rpcMsgLookup struct {
	Height abi.ChainEpoch
}

// internalClient is the go-jsonrpc binding surface: one function field per
// RPC method, populated by jsonrpc.NewClient via reflection.
type internalClient struct {
	ChainHead func(context.Context) (*rpcTipSet, error)

	IpcReadSubnetActorState      func(context.Context, string, cid.Cid) (*rpcSubnetActorState, error)
	IpcReadGatewayState          func(context.Context, cid.Cid) (*rpcGatewayState, error)
	IpcGetPrevCheckpointForChild func(context.Context, string) (*cid.Cid, error)
	IpcGetCheckpointTemplate     func(context.Context, abi.ChainEpoch) (*checkpointTemplate, error)
	IpcGetTopDownMsgs            func(context.Context, string, uint64) ([]*checkpoint.CrossMsg, error)

	IpcHasVotedBottomUpCheckpoint func(context.Context, string, abi.ChainEpoch, address.Address) (bool, error)
	IpcHasVotedTopDownCheckpoint  func(context.Context, abi.ChainEpoch, address.Address) (bool, error)

	MpoolPushMessage func(context.Context, *rpcMessage) (cid.Cid, error)
	StateWaitMsg     func(context.Context, cid.Cid, uint64) (*rpcMsgLookup, error)
}

// checkpointTemplate mirrors IpcGetCheckpointTemplate's response.
type checkpointTemplate struct {
	Children  []checkpoint.ChildCheck
	CrossMsgs []checkpoint.CrossMsg
}

// Client wraps internalClient with the jsonrpc.ClientCloser lifecycle.
type Client struct {
	internal internalClient
	closer   jsonrpc.ClientCloser
}

// Dial connects to a native chain's JSON-RPC endpoint, authenticating with
// an optional bearer token.
func Dial(ctx context.Context, endpoint string, authToken *string) (*Client, error) {
	headers := http.Header{}
	if authToken != nil {
		headers.Set("Authorization", "Bearer "+*authToken)
	}

	c := &Client{}
	closer, err := jsonrpc.NewClient(ctx, endpoint, "Filecoin", &c.internal, headers)
	if err != nil {
		return nil, err
	}
	c.closer = closer
	return c, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}
