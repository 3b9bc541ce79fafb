package evm

import (
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/filecoin-project/go-address"
	"golang.org/x/xerrors"

	"github.com/consensus-shipyard/ipc-checkpoint-agent/errs"
	"github.com/consensus-shipyard/ipc-checkpoint-agent/types/subnetid"
)

// eamActorID is the well-known actor ID of the Ethereum Address Manager;
// delegated (f410f) addresses under this actor ID round-trip 1:1 with a
// 20-byte EVM address.
const eamActorID = 10

// ToEVMAddress extracts the 20-byte EVM address embedded in a delegated
// (f410f) Filecoin address. Non-delegated addresses cannot be represented
// on an EVM subnet and yield errs.ErrAddressConversion.
func ToEVMAddress(addr address.Address) (gethcommon.Address, error) {
	if addr.Protocol() != address.Delegated {
		return gethcommon.Address{}, xerrors.Errorf("%w: address %s is not delegated", errs.ErrAddressConversion, addr)
	}
	sub, err := delegatedSubaddress(addr)
	if err != nil {
		return gethcommon.Address{}, err
	}
	if len(sub) < 20 {
		return gethcommon.Address{}, xerrors.Errorf("%w: delegated subaddress too short: %d bytes", errs.ErrAddressConversion, len(sub))
	}
	var evm gethcommon.Address
	copy(evm[:], sub[0:20])
	return evm, nil
}

// FromEVMAddress constructs a delegated (f410f) Filecoin address from a
// 20-byte EVM address.
func FromEVMAddress(evm gethcommon.Address) (address.Address, error) {
	a, err := address.NewDelegatedAddress(eamActorID, evm.Bytes())
	if err != nil {
		return address.Undef, xerrors.Errorf("%w: %s", errs.ErrAddressConversion, err)
	}
	return a, nil
}

// LastEVMAddress extracts the EVM address of a subnet ID's final route
// segment, i.e. the subnet's own actor address.
func LastEVMAddress(id subnetid.ID) (gethcommon.Address, error) {
	actor, ok := id.SubnetActor()
	if !ok {
		return gethcommon.Address{}, xerrors.Errorf("%w: subnet %s has no actor", errs.ErrConfiguration, id)
	}
	return ToEVMAddress(actor)
}

// RouteToEVMAddresses converts every hop in a subnet ID's route to its EVM
// address form, preserving order.
func RouteToEVMAddresses(id subnetid.ID) ([]gethcommon.Address, error) {
	route := id.Route()
	out := make([]gethcommon.Address, len(route))
	for i, addr := range route {
		evm, err := ToEVMAddress(addr)
		if err != nil {
			return nil, err
		}
		out[i] = evm
	}
	return out, nil
}

// delegatedSubaddress returns the subaddress bytes of a delegated address,
// i.e. everything after the namespace actor ID.
func delegatedSubaddress(addr address.Address) ([]byte, error) {
	payload := addr.Payload()
	if len(payload) == 0 {
		return nil, xerrors.Errorf("%w: empty delegated payload", errs.ErrAddressConversion)
	}
	// go-address encodes delegated payloads as varint(namespace) || subaddress.
	n := 0
	for n < len(payload) && payload[n]&0x80 != 0 {
		n++
	}
	n++ // consume final varint byte
	if n >= len(payload) {
		return nil, xerrors.Errorf("%w: malformed delegated payload", errs.ErrAddressConversion)
	}
	return payload[n:], nil
}
