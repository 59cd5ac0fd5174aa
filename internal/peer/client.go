package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/meshline/meshline/internal/core"
	"github.com/meshline/meshline/internal/domain"
)

// ClientOptions configure the behaviour a Client can't decide for itself.
type ClientOptions struct {
	// NewEngine builds the negotiation engine per remote peer. Defaults
	// to NewRTCEngine.
	NewEngine EngineFactory

	// OnChat is invoked for every chat message received.
	OnChat func(core.ChatMessageEvent)

	// OnHistory is invoked for chat-history responses.
	OnHistory func(core.ChatHistoryEvent)

	// OnServerError is invoked for error events the server emits.
	OnServerError func(core.ErrorEvent)
}

// Client is one end of the coordination protocol: it speaks the event
// contract over a single WebSocket and runs the peer mesh on top of it.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	id    domain.ConnID
	peers *Manager
	opts  ClientOptions
}

// Dial connects, waits for the server's welcome (which carries our fresh
// ConnID) and prepares the peer manager. Run must be called to start
// consuming events.
func Dial(ctx context.Context, url string, opts ClientOptions) (*Client, error) {
	if opts.NewEngine == nil {
		opts.NewEngine = NewRTCEngine
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	var welcome core.WelcomeEvent
	if err := conn.ReadJSON(&welcome); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read welcome: %w", err)
	}
	if welcome.Type != core.EvWelcome || welcome.ID == "" {
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected first event %q", welcome.Type)
	}

	c := &Client{
		conn: conn,
		id:   welcome.ID,
		opts: opts,
	}
	c.peers = NewManager(welcome.ID, opts.NewEngine, c.RelaySignal)
	log.Info().Str("module", "peer.client").Str("conn", string(c.id)).Msg("connected")
	return c, nil
}

func (c *Client) ID() domain.ConnID { return c.id }

func (c *Client) Peers() *Manager { return c.peers }

// Run consumes server events until the connection or context dies.
func (c *Client) Run(ctx context.Context) error {
	defer c.peers.CloseAll()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		c.dispatch(ctx, data)
	}
}

func (c *Client) dispatch(ctx context.Context, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "peer.client").Msg("bad server event")
		return
	}

	switch env.Type {
	case core.EvChatMessage:
		var ev core.ChatMessageEvent
		if err := json.Unmarshal(data, &ev); err == nil && c.opts.OnChat != nil {
			c.opts.OnChat(ev)
		}
	case core.EvChatHistory:
		var ev core.ChatHistoryEvent
		if err := json.Unmarshal(data, &ev); err == nil && c.opts.OnHistory != nil {
			c.opts.OnHistory(ev)
		}
	case core.EvPeerArrived:
		var ev core.PeerArrivedEvent
		if err := json.Unmarshal(data, &ev); err == nil {
			c.peers.HandlePeerArrived(ctx, ev.Peer)
		}
	case core.EvSignal:
		var ev core.SignalEvent
		if err := json.Unmarshal(data, &ev); err == nil {
			c.peers.HandleSignal(ev.From, ev.Payload)
		}
	case core.EvPeerLeft:
		var ev core.PeerLeftEvent
		if err := json.Unmarshal(data, &ev); err == nil {
			c.peers.HandlePeerLeft(ev.Peer)
		}
	case core.EvError:
		var ev core.ErrorEvent
		if err := json.Unmarshal(data, &ev); err == nil {
			log.Warn().Str("module", "peer.client").Str("code", ev.Code).Str("reason", ev.Reason).Msg("server error")
			if c.opts.OnServerError != nil {
				c.opts.OnServerError(ev)
			}
		}
	case core.EvPong:
	default:
		log.Debug().Str("module", "peer.client").Str("type", env.Type).Msg("ignored event")
	}
}

func (c *Client) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *Client) JoinChatRoom(room domain.RoomID) error {
	return c.writeJSON(map[string]any{"type": "join-chat-room", "room": room})
}

func (c *Client) JoinSignalRoom(room domain.RoomID) error {
	return c.writeJSON(map[string]any{"type": "join-signal-room", "room": room})
}

func (c *Client) LeaveRoom(room domain.RoomID) error {
	return c.writeJSON(map[string]any{"type": "leave-room", "room": room})
}

func (c *Client) SendChat(room domain.RoomID, text string) error {
	return c.writeJSON(map[string]any{"type": "send-chat-message", "room": room, "text": text})
}

func (c *Client) RequestHistory(room domain.RoomID, limit int) error {
	return c.writeJSON(map[string]any{"type": "chat-history", "room": room, "limit": limit})
}

// RelaySignal is the SendFunc the peer manager uses.
func (c *Client) RelaySignal(target domain.ConnID, payload json.RawMessage) error {
	return c.writeJSON(map[string]any{"type": "relay-signal", "target": target, "payload": payload})
}

// Close tears the connection down; the server treats it as a disconnect.
func (c *Client) Close() error {
	return c.conn.Close()
}
