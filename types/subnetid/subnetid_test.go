package subnetid

import (
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/stretchr/testify/require"
)

func mustAddr(t *testing.T, s string) address.Address {
	t.Helper()
	a, err := address.NewFromString(s)
	require.NoError(t, err)
	return a
}

func TestParseRoundTrip(t *testing.T) {
	a := mustAddr(t, "f01000")
	b := mustAddr(t, "f01001")

	id := New(New(NewRoot("test"), a), b)
	s := id.String()
	require.Equal(t, "/test/"+a.String()+"/"+b.String(), s)

	parsed, err := Parse(s)
	require.NoError(t, err)
	require.True(t, id.Equal(parsed))
}

func TestParentAndSubnetActor(t *testing.T) {
	root := NewRoot("test")
	_, ok := root.Parent()
	require.False(t, ok)
	_, ok = root.SubnetActor()
	require.False(t, ok)

	a := mustAddr(t, "f01000")
	child := New(root, a)

	parent, ok := child.Parent()
	require.True(t, ok)
	require.True(t, parent.Equal(root))

	actor, ok := child.SubnetActor()
	require.True(t, ok)
	require.Equal(t, a, actor)
}

func TestEqualIgnoresConstructionPath(t *testing.T) {
	a := mustAddr(t, "f01000")
	id1, err := Parse("/test/" + a.String())
	require.NoError(t, err)
	id2 := New(NewRoot("test"), a)
	require.True(t, id1.Equal(id2))
}

func TestParseRejectsMissingPrefix(t *testing.T) {
	_, err := Parse("test/f01000")
	require.Error(t, err)
}
