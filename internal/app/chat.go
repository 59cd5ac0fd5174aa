package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/meshline/meshline/internal/core"
	"github.com/meshline/meshline/internal/domain"
)

// MessageStore is the persistence contract the chat relay consumes.
// Append assigns the server-side timestamp; Recent returns the newest
// messages of a room, oldest first.
type MessageStore interface {
	Append(ctx context.Context, m *domain.ChatMessage) error
	Recent(ctx context.Context, room domain.RoomID, limit int) ([]domain.ChatMessage, error)
}

// ChatRelay persists chat messages and fans them out to room members.
// Persist-before-broadcast is mandatory: a message that failed to persist
// is never seen by anyone.
type ChatRelay struct {
	Rooms *RoomManager
	Store MessageStore
	Bcast *Broadcaster

	mu    sync.Mutex
	order map[domain.RoomID]*sync.Mutex
}

func NewChatRelay(rooms *RoomManager, store MessageStore, bcast *Broadcaster) *ChatRelay {
	return &ChatRelay{
		Rooms: rooms,
		Store: store,
		Bcast: bcast,
		order: make(map[domain.RoomID]*sync.Mutex),
	}
}

// Send persists the message and broadcasts it to every current member of
// the room, the sender included. The sender must be a member.
//
// The per-room order lock is held across persist and broadcast so that
// broadcast order equals persistence order. It is a different lock from
// the membership table: joins and leaves proceed while a persist is in
// flight, and the fan-out runs against the snapshot taken up front.
func (cr *ChatRelay) Send(ctx context.Context, sender domain.ConnID, roomID domain.RoomID, text string) (*domain.ChatMessage, error) {
	msg, err := domain.NewChatMessage(roomID, sender, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedPayload, err)
	}

	if !cr.Rooms.IsMember(sender, roomID) {
		return nil, core.ErrNotAMember
	}

	lk := cr.roomOrder(roomID)
	lk.Lock()
	defer lk.Unlock()

	members := cr.Rooms.MembersOf(roomID)

	if err := cr.Store.Append(ctx, msg); err != nil {
		log.Error().Err(err).Str("module", "app.chat").Str("room", string(roomID)).Msg("append failed")
		return nil, fmt.Errorf("%w: %v", core.ErrPersistence, err)
	}

	frame, err := core.Encode(core.NewChatMessageEvent(msg))
	if err != nil {
		return nil, err
	}
	sent := cr.Bcast.Fanout(members, "", frame)
	log.Debug().Str("module", "app.chat").Str("room", string(roomID)).Str("sender", string(sender)).Int("sent", sent).Msg("chat broadcast")
	return msg, nil
}

// History returns up to limit recent messages for backfill.
func (cr *ChatRelay) History(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.ChatMessage, error) {
	msgs, err := cr.Store.Recent(ctx, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrPersistence, err)
	}
	return msgs, nil
}

func (cr *ChatRelay) roomOrder(roomID domain.RoomID) *sync.Mutex {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	lk, ok := cr.order[roomID]
	if !ok {
		lk = &sync.Mutex{}
		cr.order[roomID] = lk
	}
	return lk
}
