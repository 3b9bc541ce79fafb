package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// gatewayABIJSON and subnetActorABIJSON list a small subset of the IPC
// gateway and subnet actor Solidity interfaces: the methods the agent calls,
// plus the gateway's initialized and bottomUpCheckpointAtEpoch and the subnet
// actor's lastVotingExecutedEpoch, which no code in this package calls.
const gatewayABIJSON = `[
  {"type":"function","name":"lastVotingExecutedEpoch","stateMutability":"view","inputs":[],"outputs":[{"type":"uint64"}]},
  {"type":"function","name":"topDownCheckPeriod","stateMutability":"view","inputs":[],"outputs":[{"type":"uint64"}]},
  {"type":"function","name":"appliedTopDownNonce","stateMutability":"view","inputs":[],"outputs":[{"type":"uint64"}]},
  {"type":"function","name":"initialized","stateMutability":"view","inputs":[],"outputs":[{"type":"bool"}]},
  {"type":"function","name":"hasValidatorVotedForSubmission","stateMutability":"view","inputs":[{"type":"uint64"},{"type":"address"}],"outputs":[{"type":"bool"}]},
  {"type":"function","name":"bottomUpCheckpointAtEpoch","stateMutability":"view","inputs":[{"type":"uint64"}],"outputs":[{"type":"bool"},{"type":"bytes"}]},
  {"type":"function","name":"getTopDownMsgs","stateMutability":"view","inputs":[{"type":"bytes"},{"type":"uint64"}],"outputs":[{"type":"bytes"}]},
  {"type":"function","name":"submitTopDownCheckpoint","stateMutability":"nonpayable","inputs":[{"type":"bytes"}],"outputs":[]}
]`

const subnetActorABIJSON = `[
  {"type":"function","name":"lastVotingExecutedEpoch","stateMutability":"view","inputs":[],"outputs":[{"type":"uint64"}]},
  {"type":"function","name":"allValidators","stateMutability":"view","inputs":[],"outputs":[{"type":"address[]"}]},
  {"type":"function","name":"hasValidatorVotedForSubmission","stateMutability":"view","inputs":[{"type":"uint64"},{"type":"address"}],"outputs":[{"type":"bool"}]},
  {"type":"function","name":"bottomUpCheckPeriod","stateMutability":"view","inputs":[],"outputs":[{"type":"uint64"}]},
  {"type":"function","name":"prevCheckpointCid","stateMutability":"view","inputs":[],"outputs":[{"type":"bytes"}]},
  {"type":"function","name":"submitCheckpoint","stateMutability":"nonpayable","inputs":[{"type":"bytes"}],"outputs":[]}
]`

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

var gatewayABI = mustParseABI(gatewayABIJSON)
var subnetActorABI = mustParseABI(subnetActorABIJSON)

// boundContract adapts bind.BoundContract's call/transact surface, binding
// the ABI and address of either a gateway or a subnet actor.
type boundContract struct {
	*bind.BoundContract
	address gethcommon.Address
}

func newBoundContract(addr gethcommon.Address, contractABI abi.ABI, client *ethclient.Client) *boundContract {
	return &boundContract{
		BoundContract: bind.NewBoundContract(addr, contractABI, client, client, client),
		address:       addr,
	}
}
