package app

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshline/meshline/internal/core"
)

func TestSignalRelayDeliversExactlyOnceWithSender(t *testing.T) {
	f := newChatFixture(t)
	a := f.connect()
	b := f.connect()
	// Sharing a room must not turn a point-to-point signal into a broadcast.
	f.orch.JoinSignal(a, "r1")
	f.orch.JoinSignal(b, "r1")

	payload := json.RawMessage(`{"kind":"offer","sdp":"v=0"}`)
	require.NoError(t, f.orch.RelaySignal(a, b, payload))

	got := f.eventsOfType(b, core.EvSignal)
	require.Len(t, got, 1)
	assert.Equal(t, string(a), got[0]["from"])
	assert.Equal(t, map[string]any{"kind": "offer", "sdp": "v=0"}, got[0]["payload"])

	assert.Empty(t, f.eventsOfType(a, core.EvSignal), "sender must not receive its own signal")
}

func TestSignalRelayFiltersSelfAddressed(t *testing.T) {
	f := newChatFixture(t)
	a := f.connect()

	err := f.orch.RelaySignal(a, a, json.RawMessage(`{"x":1}`))
	require.NoError(t, err)
	assert.Empty(t, f.eventsOfType(a, core.EvSignal))
}

func TestSignalRelayUnknownTarget(t *testing.T) {
	f := newChatFixture(t)
	a := f.connect()

	err := f.orch.RelaySignal(a, "no-such-conn", json.RawMessage(`{"x":1}`))
	require.ErrorIs(t, err, core.ErrUnknownTarget)
}

func TestSignalRelayAfterTargetDisconnect(t *testing.T) {
	f := newChatFixture(t)
	a := f.connect()
	b := f.connect()

	f.orch.Disconnect(b)

	err := f.orch.RelaySignal(a, b, json.RawMessage(`{"x":1}`))
	require.ErrorIs(t, err, core.ErrUnknownTarget)
}
