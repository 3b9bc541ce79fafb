// Package subnetid implements the hierarchical SubnetID path type shared by
// the native and EVM chain adapters.
package subnetid

import (
	"strings"

	"github.com/filecoin-project/go-address"
	"golang.org/x/xerrors"
)

// Separator between path segments in both the internal and external
// representation of a SubnetID: "/root/seg1/.../segN".
const Separator = "/"

// ID is a hierarchical subnet path: a root network name followed by zero or
// more subnet-actor addresses, one per level of nesting. The root-only ID
// (no addresses) identifies the top-level chain itself.
type ID struct {
	root  string
	route []address.Address
}

// NewRoot builds the root SubnetID for a network name.
func NewRoot(networkName string) ID {
	return ID{root: networkName}
}

// New builds a SubnetID by appending addr to parent's route.
func New(parent ID, addr address.Address) ID {
	route := make([]address.Address, len(parent.route)+1)
	copy(route, parent.route)
	route[len(parent.route)] = addr
	return ID{root: parent.root, route: route}
}

// Parse decodes the external form "/root/addr1/.../addrN".
func Parse(s string) (ID, error) {
	if !strings.HasPrefix(s, Separator) {
		return ID{}, xerrors.Errorf("subnet id must start with %q: %s", Separator, s)
	}
	parts := strings.Split(strings.TrimPrefix(s, Separator), Separator)
	if len(parts) == 0 || parts[0] == "" {
		return ID{}, xerrors.Errorf("subnet id missing root: %s", s)
	}

	id := NewRoot(parts[0])
	for _, seg := range parts[1:] {
		addr, err := address.NewFromString(seg)
		if err != nil {
			return ID{}, xerrors.Errorf("invalid subnet actor address %q: %w", seg, err)
		}
		id = New(id, addr)
	}
	return id, nil
}

// Root returns the root network name.
func (id ID) Root() string {
	return id.root
}

// Route returns the chain of subnet-actor addresses below the root, in
// top-down order. The caller must not mutate the returned slice.
func (id ID) Route() []address.Address {
	return id.route
}

// IsRoot reports whether id has no subnet actors below the root.
func (id ID) IsRoot() bool {
	return len(id.route) == 0
}

// Parent returns the prefix of id without its last segment, and whether a
// parent exists (false for the root SubnetID).
func (id ID) Parent() (ID, bool) {
	if id.IsRoot() {
		return ID{}, false
	}
	route := make([]address.Address, len(id.route)-1)
	copy(route, id.route[:len(id.route)-1])
	return ID{root: id.root, route: route}, true
}

// SubnetActor returns the last segment of the route, interpreted as an
// address on the parent chain, and whether one exists.
func (id ID) SubnetActor() (address.Address, bool) {
	if id.IsRoot() {
		return address.Undef, false
	}
	return id.route[len(id.route)-1], true
}

// Equal reports structural equality of the normalized path string.
func (id ID) Equal(other ID) bool {
	return id.String() == other.String()
}

// String renders the external "/root/addr1/.../addrN" form.
func (id ID) String() string {
	var b strings.Builder
	b.WriteString(Separator)
	b.WriteString(id.root)
	for _, a := range id.route {
		b.WriteString(Separator)
		b.WriteString(a.String())
	}
	return b.String()
}
