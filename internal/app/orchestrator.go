package app

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/meshline/meshline/internal/core"
	"github.com/meshline/meshline/internal/domain"
)

// Orchestrator wires the registry, room manager and relays, and owns the
// connect/join/send/disconnect flows the transport adapter drives.
type Orchestrator struct {
	Registry *Registry
	Rooms    *RoomManager
	Chat     *ChatRelay
	Signals  *SignalRelay
	Bcast    *Broadcaster

	// Admission is optional; nil admits every join.
	Admission Admission
}

func NewOrchestrator(store MessageStore, policy Policy) *Orchestrator {
	registry := NewRegistry()
	rooms := NewRoomManager()
	bcast := &Broadcaster{Registry: registry, Policy: policy}
	return &Orchestrator{
		Registry: registry,
		Rooms:    rooms,
		Chat:     NewChatRelay(rooms, store, bcast),
		Signals:  NewSignalRelay(registry, bcast),
		Bcast:    bcast,
	}
}

// Connect registers a new endpoint and returns its fresh ConnID.
func (o *Orchestrator) Connect(ep core.Endpoint, cancel context.CancelFunc) domain.ConnID {
	return o.Registry.Register(ep, cancel)
}

// JoinChat adds the connection to a chat room. Chat joins are silent.
func (o *Orchestrator) JoinChat(conn domain.ConnID, roomID domain.RoomID) bool {
	if !o.admit(conn, roomID) {
		return false
	}
	o.Rooms.Join(conn, roomID)
	return true
}

// JoinSignal adds the connection to a signaling room and notifies every
// member that was already there. The joiner itself receives nothing; the
// arrival notification is what triggers negotiation on the other side.
func (o *Orchestrator) JoinSignal(conn domain.ConnID, roomID domain.RoomID) bool {
	if !o.admit(conn, roomID) {
		return false
	}
	existing, joined := o.Rooms.Join(conn, roomID)
	if !joined {
		return true
	}
	frame, err := core.Encode(core.PeerArrivedEvent{
		Type: core.EvPeerArrived,
		Room: roomID,
		Peer: conn,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "app.orchestrator").Msg("encode peer-arrived")
		return true
	}
	o.Bcast.Fanout(existing, conn, frame)
	return true
}

func (o *Orchestrator) admit(conn domain.ConnID, roomID domain.RoomID) bool {
	if o.Admission == nil || o.Admission.Admit(conn, roomID) {
		return true
	}
	log.Info().Str("module", "app.orchestrator").Str("conn", string(conn)).Str("room", string(roomID)).Msg("join denied")
	return false
}

// Leave removes the connection from one room, silently.
func (o *Orchestrator) Leave(conn domain.ConnID, roomID domain.RoomID) {
	o.Rooms.Leave(conn, roomID)
}

// SendChat relays a chat message through the chat relay.
func (o *Orchestrator) SendChat(ctx context.Context, conn domain.ConnID, roomID domain.RoomID, text string) (*domain.ChatMessage, error) {
	return o.Chat.Send(ctx, conn, roomID, text)
}

// RelaySignal forwards a signaling payload to its single target.
func (o *Orchestrator) RelaySignal(conn, target domain.ConnID, payload json.RawMessage) error {
	return o.Signals.Relay(conn, target, payload)
}

// Disconnect is the one cancellation path. It synchronously removes the
// connection from every room and the registry, then notifies departure
// room-scoped: only connections that shared at least one room with the
// departing one hear about it, and each of them exactly once.
func (o *Orchestrator) Disconnect(conn domain.ConnID) {
	left := o.Rooms.LeaveAll(conn)
	o.Registry.Unregister(conn)

	if len(left) == 0 {
		return
	}
	frame, err := core.Encode(core.PeerLeftEvent{Type: core.EvPeerLeft, Peer: conn})
	if err != nil {
		log.Error().Err(err).Str("module", "app.orchestrator").Msg("encode peer-left")
		return
	}
	notified := make(map[domain.ConnID]struct{})
	for _, rl := range left {
		for _, member := range rl.Remaining {
			if member == conn {
				continue
			}
			if _, done := notified[member]; done {
				continue
			}
			notified[member] = struct{}{}
			o.Bcast.Deliver(member, frame)
		}
	}
	log.Info().Str("module", "app.orchestrator").Str("conn", string(conn)).Int("notified", len(notified)).Msg("disconnect fanout")
}
