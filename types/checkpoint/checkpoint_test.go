package checkpoint

import (
	"testing"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/stretchr/testify/require"
)

func TestNextSubmissionEpoch(t *testing.T) {
	cases := []struct {
		period, current, lastExecuted abi.ChainEpoch
		want                          abi.ChainEpoch
		ok                            bool
	}{
		{period: 10, current: 25, lastExecuted: 0, want: 10, ok: true},
		{period: 10, current: 5, lastExecuted: 0, want: 0, ok: false},
		{period: 10, current: 35, lastExecuted: 20, want: 30, ok: true},
		{period: 10, current: 20, lastExecuted: 20, want: 0, ok: false},
	}
	for _, c := range cases {
		got, ok := NextSubmissionEpoch(c.period, c.current, c.lastExecuted)
		require.Equal(t, c.ok, ok)
		if ok {
			require.Equal(t, c.want, got)
			require.Equal(t, abi.ChainEpoch(0), got%c.period)
			require.Greater(t, got, c.lastExecuted)
		}
	}
}

func TestBottomUpValidateDuplicateChild(t *testing.T) {
	b := &BottomUp{
		Children: []ChildCheck{
			{Source: "/test/f01"},
			{Source: "/test/f01"},
		},
	}
	require.Error(t, b.Validate())
}

func TestBottomUpValidateNonceOrder(t *testing.T) {
	b := &BottomUp{
		CrossMsgs: []CrossMsg{{Nonce: 1}, {Nonce: 3}},
	}
	require.Error(t, b.Validate())

	b.CrossMsgs = []CrossMsg{{Nonce: 1}, {Nonce: 2}, {Nonce: 3}}
	require.NoError(t, b.Validate())
}

func TestTopDownValidateNonceGap(t *testing.T) {
	td := &TopDown{TopDownMsgs: []CrossMsg{{Nonce: 8}, {Nonce: 9}, {Nonce: 11}}}
	require.ErrorContains(t, td.ValidateNonceGap(8), "nonce gap")

	td.TopDownMsgs = []CrossMsg{{Nonce: 8}, {Nonce: 9}, {Nonce: 10}}
	require.NoError(t, td.ValidateNonceGap(8))
}
