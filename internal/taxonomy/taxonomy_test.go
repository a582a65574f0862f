package taxonomy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWrapsKindAndOp(t *testing.T) {
	err := New(NotFound, "broadcaster.remove_device", errors.New("no such serial"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broadcaster.remove_device")
	assert.Contains(t, err.Error(), "not-found")
	assert.Contains(t, err.Error(), "no such serial")
}

func TestIsMatchesWrappedKind(t *testing.T) {
	err := New(Timeout, "handshake.client.init", errors.New("watchdog expired"))
	assert.True(t, Is(err, Timeout))
	assert.False(t, Is(err, Conflict))
}

func TestIsFalseForPlainError(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), Internal))
}

func TestNewWithNilErrUsesKindAsMessage(t *testing.T) {
	err := New(Internal, "op", nil)
	assert.Contains(t, err.Error(), "internal")
}
