package peer

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/meshline/meshline/internal/adapters/http"
	"github.com/meshline/meshline/internal/app"
	"github.com/meshline/meshline/internal/config"
	"github.com/meshline/meshline/internal/core"
	"github.com/meshline/meshline/internal/domain"
	"github.com/meshline/meshline/internal/store"
)

func startCoordServer(t *testing.T) string {
	t.Helper()
	messages, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = messages.Close() })

	cfg := &config.Config{
		Mode:         "release",
		StaticPath:   t.TempDir(),
		ReadLimit:    32768,
		PingPeriod:   30 * time.Second,
		SendBuffer:   64,
		HistoryLimit: 50,
	}
	orch := app.NewOrchestrator(messages, app.SimplePolicy{})
	srv := httptest.NewServer(httpadapter.SetupRouter(t.Context(), cfg, orch))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
}

// handshakeEngine completes a scripted offer/answer exchange. Hooks fire
// from their own goroutine the way a real transport's callbacks do.
type handshakeEngine struct {
	hooks EngineHooks
}

func newHandshakeEngine(hooks EngineHooks) (Engine, error) {
	return &handshakeEngine{hooks: hooks}, nil
}

func (e *handshakeEngine) CreateOffer(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{"kind":"offer"}`), nil
}

func (e *handshakeEngine) HandleRemote(payload json.RawMessage) (json.RawMessage, error) {
	var p struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	switch p.Kind {
	case "offer":
		go e.hooks.OnConnected()
		return json.RawMessage(`{"kind":"answer"}`), nil
	case "answer":
		go e.hooks.OnConnected()
		return nil, nil
	default:
		return nil, ErrUnknownSignalKind
	}
}

func (e *handshakeEngine) Close() error { return nil }

// runningClient wires a Client to the harness callbacks and runs it.
func runningClient(t *testing.T, url string) (*Client, chan core.ChatMessageEvent, chan core.ChatHistoryEvent) {
	t.Helper()
	chats := make(chan core.ChatMessageEvent, 16)
	histories := make(chan core.ChatHistoryEvent, 16)
	c, err := Dial(t.Context(), url, ClientOptions{
		NewEngine: newHandshakeEngine,
		OnChat:    func(ev core.ChatMessageEvent) { chats <- ev },
		OnHistory: func(ev core.ChatHistoryEvent) { histories <- ev },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	go func() { _ = c.Run(t.Context()) }()
	return c, chats, histories
}

// sync blocks until the server has processed everything the client sent
// before it, using a history round trip as the barrier.
func syncClient(t *testing.T, c *Client, histories chan core.ChatHistoryEvent) {
	t.Helper()
	require.NoError(t, c.RequestHistory("barrier-room", 1))
	select {
	case <-histories:
	case <-time.After(3 * time.Second):
		t.Fatal("history barrier timed out")
	}
}

func TestClientsNegotiateThroughRelay(t *testing.T) {
	url := startCoordServer(t)

	a, _, aHist := runningClient(t, url)
	b, _, _ := runningClient(t, url)
	assert.NotEqual(t, a.ID(), b.ID())

	require.NoError(t, a.JoinSignalRoom("call-1"))
	syncClient(t, a, aHist)
	require.NoError(t, b.JoinSignalRoom("call-1"))

	// a hears about b, initiates, and the scripted handshake completes on
	// both sides through the relay.
	for _, tc := range []struct {
		mgr    *Manager
		remote domain.ConnID
	}{
		{a.Peers(), b.ID()},
		{b.Peers(), a.ID()},
	} {
		require.Eventually(t, func() bool {
			link, ok := tc.mgr.Link(tc.remote)
			return ok && link.State() == StateConnected
		}, 3*time.Second, 10*time.Millisecond, "link to %s", tc.remote)
	}
}

func TestClientPeerLeftTearsDownLink(t *testing.T) {
	url := startCoordServer(t)

	a, _, aHist := runningClient(t, url)
	b, _, _ := runningClient(t, url)

	require.NoError(t, a.JoinSignalRoom("call-1"))
	syncClient(t, a, aHist)
	require.NoError(t, b.JoinSignalRoom("call-1"))

	require.Eventually(t, func() bool {
		return a.Peers().Len() == 1
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Close())

	require.Eventually(t, func() bool {
		return a.Peers().Len() == 0
	}, 3*time.Second, 10*time.Millisecond, "departed peer's link must be removed")
}

func TestClientChatDelivery(t *testing.T) {
	url := startCoordServer(t)

	a, aChats, aHist := runningClient(t, url)
	b, bChats, bHist := runningClient(t, url)

	require.NoError(t, a.JoinChatRoom("lobby"))
	require.NoError(t, b.JoinChatRoom("lobby"))
	syncClient(t, a, aHist)
	syncClient(t, b, bHist)

	require.NoError(t, a.SendChat("lobby", "hello mesh"))

	for name, ch := range map[string]chan core.ChatMessageEvent{"a": aChats, "b": bChats} {
		select {
		case ev := <-ch:
			assert.Equal(t, a.ID(), ev.Sender, "client %s", name)
			assert.Equal(t, "hello mesh", ev.Text)
			assert.Equal(t, domain.RoomID("lobby"), ev.Room)
		case <-time.After(3 * time.Second):
			t.Fatalf("client %s never received the message", name)
		}
	}
}
