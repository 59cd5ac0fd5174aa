package core

import (
	"encoding/json"
	"time"

	"github.com/meshline/meshline/internal/domain"
)

// Server → client event types.
const (
	EvWelcome     = "welcome"
	EvChatMessage = "chat-message-received"
	EvChatHistory = "chat-history"
	EvPeerArrived = "peer-arrived"
	EvSignal      = "signal-received"
	EvPeerLeft    = "peer-left"
	EvError       = "error"
	EvPong        = "pong"
)

// Error codes carried by EvError.
const (
	CodeUnknownTarget = "unknown_target"
	CodeNotAMember    = "not_a_member"
	CodePersistence   = "persistence_failed"
	CodeBadPayload    = "bad_payload"
	CodeRateLimited   = "rate_limited"
	CodeJoinDenied    = "join_denied"
)

type WelcomeEvent struct {
	Type string        `json:"type"`
	ID   domain.ConnID `json:"id"`
}

type ChatMessageEvent struct {
	Type      string        `json:"type"`
	Room      domain.RoomID `json:"room"`
	Sender    domain.ConnID `json:"sender"`
	Text      string        `json:"text"`
	Timestamp time.Time     `json:"timestamp"`
}

type ChatHistoryEvent struct {
	Type     string               `json:"type"`
	Room     domain.RoomID        `json:"room"`
	Messages []domain.ChatMessage `json:"messages"`
}

type PeerArrivedEvent struct {
	Type string        `json:"type"`
	Room domain.RoomID `json:"room"`
	Peer domain.ConnID `json:"peer"`
}

type SignalEvent struct {
	Type    string          `json:"type"`
	From    domain.ConnID   `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

type PeerLeftEvent struct {
	Type string        `json:"type"`
	Peer domain.ConnID `json:"peer"`
}

type ErrorEvent struct {
	Type   string `json:"type"`
	Code   string `json:"code"`
	Reason string `json:"reason,omitempty"`
}

// Encode marshals an event into a wire frame.
func Encode(v any) (Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}

func NewChatMessageEvent(m *domain.ChatMessage) ChatMessageEvent {
	return ChatMessageEvent{
		Type:      EvChatMessage,
		Room:      m.Room,
		Sender:    m.Sender,
		Text:      m.Text,
		Timestamp: m.Timestamp,
	}
}
