package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshline/meshline/internal/core"
	"github.com/meshline/meshline/internal/domain"
)

// fakeStore keeps messages in memory and can be told to fail.
type fakeStore struct {
	mu   sync.Mutex
	msgs []domain.ChatMessage
	fail bool
}

func (s *fakeStore) Append(_ context.Context, m *domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store down")
	}
	m.Seq = uint64(len(s.msgs) + 1)
	m.Timestamp = time.Unix(int64(len(s.msgs)), 0)
	s.msgs = append(s.msgs, *m)
	return nil
}

func (s *fakeStore) Recent(_ context.Context, room domain.RoomID, limit int) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("store down")
	}
	var out []domain.ChatMessage
	for _, m := range s.msgs {
		if m.Room == room {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type chatFixture struct {
	orch  *Orchestrator
	store *fakeStore
	eps   map[domain.ConnID]*fakeEndpoint
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	store := &fakeStore{}
	return &chatFixture{
		orch:  NewOrchestrator(store, SimplePolicy{}),
		store: store,
		eps:   make(map[domain.ConnID]*fakeEndpoint),
	}
}

func (f *chatFixture) connect() domain.ConnID {
	ep := &fakeEndpoint{}
	id := f.orch.Connect(ep, func() {})
	f.eps[id] = ep
	return id
}

// events decodes every frame an endpoint received into generic maps.
func (f *chatFixture) events(id domain.ConnID) []map[string]any {
	ep := f.eps[id]
	out := make([]map[string]any, 0, len(ep.frames))
	for _, fr := range ep.frames {
		var m map[string]any
		if err := json.Unmarshal(fr, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

func (f *chatFixture) eventsOfType(id domain.ConnID, typ string) []map[string]any {
	var out []map[string]any
	for _, ev := range f.events(id) {
		if ev["type"] == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestChatSendBroadcastsToAllMembersIncludingSender(t *testing.T) {
	f := newChatFixture(t)
	a := f.connect()
	b := f.connect()
	f.orch.JoinChat(a, "r1")
	f.orch.JoinChat(b, "r1")

	msg, err := f.orch.SendChat(context.Background(), a, "r1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Text)
	assert.False(t, msg.Timestamp.IsZero())

	for _, id := range []domain.ConnID{a, b} {
		got := f.eventsOfType(id, core.EvChatMessage)
		require.Len(t, got, 1, "conn %s", id)
		assert.Equal(t, string(a), got[0]["sender"])
		assert.Equal(t, "hello", got[0]["text"])
		assert.Equal(t, "r1", got[0]["room"])
	}
}

func TestChatSendRejectsNonMember(t *testing.T) {
	f := newChatFixture(t)
	a := f.connect()
	b := f.connect()
	f.orch.JoinChat(b, "r1")

	_, err := f.orch.SendChat(context.Background(), a, "r1", "sneaky")
	require.ErrorIs(t, err, core.ErrNotAMember)

	assert.Empty(t, f.eventsOfType(b, core.EvChatMessage))
	assert.Empty(t, f.store.msgs)
}

func TestChatSendPersistFailureIsNotBroadcast(t *testing.T) {
	f := newChatFixture(t)
	a := f.connect()
	b := f.connect()
	f.orch.JoinChat(a, "r1")
	f.orch.JoinChat(b, "r1")

	f.store.fail = true
	_, err := f.orch.SendChat(context.Background(), a, "r1", "phantom")
	require.ErrorIs(t, err, core.ErrPersistence)

	assert.Empty(t, f.eventsOfType(a, core.EvChatMessage))
	assert.Empty(t, f.eventsOfType(b, core.EvChatMessage))

	// The store recovers; normal flow resumes.
	f.store.fail = false
	_, err = f.orch.SendChat(context.Background(), a, "r1", "real")
	require.NoError(t, err)
	got := f.eventsOfType(b, core.EvChatMessage)
	require.Len(t, got, 1)
	assert.Equal(t, "real", got[0]["text"])
}

func TestChatSendRejectsEmptyText(t *testing.T) {
	f := newChatFixture(t)
	a := f.connect()
	f.orch.JoinChat(a, "r1")

	_, err := f.orch.SendChat(context.Background(), a, "r1", "")
	require.ErrorIs(t, err, core.ErrMalformedPayload)
}

func TestChatBroadcastOrderMatchesPersistenceOrder(t *testing.T) {
	f := newChatFixture(t)
	a := f.connect()
	b := f.connect()
	f.orch.JoinChat(a, "r1")
	f.orch.JoinChat(b, "r1")

	texts := []string{"one", "two", "three", "four"}
	for _, txt := range texts {
		_, err := f.orch.SendChat(context.Background(), a, "r1", txt)
		require.NoError(t, err)
	}

	got := f.eventsOfType(b, core.EvChatMessage)
	require.Len(t, got, len(texts))
	for i, ev := range got {
		assert.Equal(t, texts[i], ev["text"])
	}
}

func TestChatHistory(t *testing.T) {
	f := newChatFixture(t)
	a := f.connect()
	f.orch.JoinChat(a, "r1")
	f.orch.JoinChat(a, "r2")

	for _, txt := range []string{"m1", "m2", "m3"} {
		_, err := f.orch.SendChat(context.Background(), a, "r1", txt)
		require.NoError(t, err)
	}
	_, err := f.orch.SendChat(context.Background(), a, "r2", "other")
	require.NoError(t, err)

	msgs, err := f.orch.Chat.History(context.Background(), "r1", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[0].Text)
	assert.Equal(t, "m3", msgs[1].Text)
}

func TestChatBackpressureKicksSlowMember(t *testing.T) {
	f := newChatFixture(t)
	a := f.connect()
	b := f.connect()
	f.orch.JoinChat(a, "r1")
	f.orch.JoinChat(b, "r1")

	canceled := false
	// Rebind b with a cancel hook and a full buffer.
	f.orch.Registry.Unregister(b)
	slow := &fakeEndpoint{full: true}
	b = f.orch.Registry.Register(slow, func() { canceled = true })
	f.orch.JoinChat(b, "r1")

	_, err := f.orch.SendChat(context.Background(), a, "r1", "flood")
	require.NoError(t, err)
	assert.True(t, canceled, "slow consumer should be canceled")
}
