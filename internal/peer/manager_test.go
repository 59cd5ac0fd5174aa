package peer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshline/meshline/internal/domain"
)

// managerHarness records every engine the factory hands out, in creation
// order, so tests can inspect them after the manager is done.
type managerHarness struct {
	rec     *sendRecorder
	engines []*fakeEngine
}

func newManagerHarness() (*Manager, *managerHarness) {
	h := &managerHarness{rec: &sendRecorder{}}
	m := NewManager("self-id", func(hooks EngineHooks) (Engine, error) {
		e := &fakeEngine{hooks: hooks, reply: json.RawMessage(`{"kind":"answer"}`)}
		h.engines = append(h.engines, e)
		return e, nil
	}, h.rec.send)
	return m, h
}

func TestManagerPeerArrivedStartsInitiator(t *testing.T) {
	m, h := newManagerHarness()

	m.HandlePeerArrived(context.Background(), "peer-a")

	link, ok := m.Link("peer-a")
	require.True(t, ok)
	assert.Equal(t, StateAwaitingRemoteSignal, link.State())
	require.Len(t, h.rec.sent, 1)
	assert.Equal(t, domain.ConnID("peer-a"), h.rec.to[0])
}

func TestManagerDiscardsSelfArrival(t *testing.T) {
	m, h := newManagerHarness()

	m.HandlePeerArrived(context.Background(), "self-id")

	assert.Zero(t, m.Len())
	assert.Empty(t, h.rec.sent)
}

func TestManagerDuplicateArrivalIsNoOp(t *testing.T) {
	m, h := newManagerHarness()

	m.HandlePeerArrived(context.Background(), "peer-a")
	m.HandlePeerArrived(context.Background(), "peer-a")

	assert.Equal(t, 1, m.Len())
	assert.Len(t, h.rec.sent, 1, "one offer only")
}

func TestManagerSignalFromUnknownPeerStartsResponder(t *testing.T) {
	m, h := newManagerHarness()

	m.HandleSignal("peer-b", json.RawMessage(`{"kind":"offer"}`))

	link, ok := m.Link("peer-b")
	require.True(t, ok)
	assert.Equal(t, StateNegotiating, link.State())
	require.Len(t, h.rec.sent, 1)
	assert.JSONEq(t, `{"kind":"answer"}`, string(h.rec.sent[0]))
	assert.Equal(t, domain.ConnID("peer-b"), h.rec.to[0])
}

func TestManagerDiscardsSelfSignal(t *testing.T) {
	m, h := newManagerHarness()

	m.HandleSignal("self-id", json.RawMessage(`{"kind":"offer"}`))

	assert.Zero(t, m.Len())
	assert.Empty(t, h.rec.sent)
}

func TestManagerSignalRoutesToExistingLink(t *testing.T) {
	m, h := newManagerHarness()

	m.HandlePeerArrived(context.Background(), "peer-a")
	m.HandleSignal("peer-a", json.RawMessage(`{"kind":"answer"}`))

	assert.Equal(t, 1, m.Len(), "signal must not spawn a second link")
	require.Len(t, h.engines, 1)
	link, _ := m.Link("peer-a")
	assert.Equal(t, StateNegotiating, link.State())
}

func TestManagerPeerLeftRemovesLink(t *testing.T) {
	m, h := newManagerHarness()

	m.HandlePeerArrived(context.Background(), "peer-a")
	m.HandlePeerLeft("peer-a")

	_, ok := m.Link("peer-a")
	assert.False(t, ok)
	assert.Zero(t, m.Len())
	require.Len(t, h.engines, 1)
	assert.True(t, h.engines[0].closed, "departed peer's engine must be released")

	// Unknown peer departures are ignored.
	m.HandlePeerLeft("never-seen")
}

func TestManagerCloseAll(t *testing.T) {
	m, h := newManagerHarness()

	m.HandlePeerArrived(context.Background(), "peer-a")
	m.HandlePeerArrived(context.Background(), "peer-b")
	require.Equal(t, 2, m.Len())

	m.CloseAll()

	assert.Zero(t, m.Len())
	for i, e := range h.engines {
		assert.True(t, e.closed, "engine %d", i)
	}
}
