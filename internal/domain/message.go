package domain

import (
	"errors"
	"time"
)

const MaxChatTextLen = 4096

var (
	ErrTextEmpty   = errors.New("chat text empty")
	ErrTextTooLong = errors.New("chat text too long")
)

// ChatMessage is the persisted chat record. Immutable once stored; the
// timestamp is assigned by the store at append time, never by the client.
type ChatMessage struct {
	Seq       uint64    `json:"-"`
	Room      RoomID    `json:"room"`
	Sender    ConnID    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChatMessage validates the text and builds an unpersisted record.
func NewChatMessage(room RoomID, sender ConnID, text string) (*ChatMessage, error) {
	if len(text) == 0 {
		return nil, ErrTextEmpty
	}
	if len(text) > MaxChatTextLen {
		return nil, ErrTextTooLong
	}
	return &ChatMessage{Room: room, Sender: sender, Text: text}, nil
}
