package native

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsAlreadyVoted(t *testing.T) {
	require.True(t, isAlreadyVoted(errors.New("actor exited: validator already voted for epoch 120")))
	require.False(t, isAlreadyVoted(errors.New("connection reset by peer")))
	require.False(t, isAlreadyVoted(nil))
}
