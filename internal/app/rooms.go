package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/meshline/meshline/internal/core"
	"github.com/meshline/meshline/internal/domain"
)

// RoomLeft reports one room a departing connection was removed from,
// with the members that remain. Used for room-scoped departure fan-out.
type RoomLeft struct {
	Room      domain.RoomID
	Remaining []domain.ConnID
}

// RoomManager owns the room table and the per-connection joined-room sets.
// The two sides are mutated together under rm.mu so the bidirectional
// membership invariant holds after every operation. Fan-out never runs
// under this lock; callers work against member snapshots.
type RoomManager struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomID]*core.Room
	joined map[domain.ConnID]map[domain.RoomID]struct{}
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms:  make(map[domain.RoomID]*core.Room),
		joined: make(map[domain.ConnID]map[domain.RoomID]struct{}),
	}
}

// Join adds the connection to the room, creating the room on first use.
// Returns a snapshot of the members that were already present, and whether
// the join actually happened (re-joining is a no-op).
func (rm *RoomManager) Join(conn domain.ConnID, roomID domain.RoomID) (existing []domain.ConnID, joined bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	room, ok := rm.rooms[roomID]
	if !ok {
		room = core.NewRoom(roomID)
		rm.rooms[roomID] = room
	}

	existing = room.Members()
	if !room.Add(conn) {
		return nil, false
	}

	set, ok := rm.joined[conn]
	if !ok {
		set = make(map[domain.RoomID]struct{})
		rm.joined[conn] = set
	}
	set[roomID] = struct{}{}

	log.Info().Str("module", "app.rooms").Str("conn", string(conn)).Str("room", string(roomID)).Msg("joined room")
	return existing, true
}

// Leave removes the connection from one room. Empty rooms are dropped.
func (rm *RoomManager) Leave(conn domain.ConnID, roomID domain.RoomID) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.leaveLocked(conn, roomID)
}

func (rm *RoomManager) leaveLocked(conn domain.ConnID, roomID domain.RoomID) bool {
	room, ok := rm.rooms[roomID]
	if !ok || !room.Remove(conn) {
		return false
	}
	if set, ok := rm.joined[conn]; ok {
		delete(set, roomID)
		if len(set) == 0 {
			delete(rm.joined, conn)
		}
	}
	if room.Len() == 0 {
		delete(rm.rooms, roomID)
	}
	log.Info().Str("module", "app.rooms").Str("conn", string(conn)).Str("room", string(roomID)).Msg("left room")
	return true
}

// LeaveAll removes the connection from every room it joined and reports,
// per room, who remains. Safe on IDs that never joined anything; calling
// it twice yields an empty result the second time.
func (rm *RoomManager) LeaveAll(conn domain.ConnID) []RoomLeft {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	set, ok := rm.joined[conn]
	if !ok {
		return nil
	}
	out := make([]RoomLeft, 0, len(set))
	for roomID := range set {
		room := rm.rooms[roomID]
		room.Remove(conn)
		out = append(out, RoomLeft{Room: roomID, Remaining: room.Members()})
		if room.Len() == 0 {
			delete(rm.rooms, roomID)
		}
	}
	delete(rm.joined, conn)
	log.Info().Str("module", "app.rooms").Str("conn", string(conn)).Int("rooms", len(out)).Msg("left all rooms")
	return out
}

// MembersOf returns a snapshot of the room's member set. Internal only;
// there is no room-listing API for clients.
func (rm *RoomManager) MembersOf(roomID domain.RoomID) []domain.ConnID {
	rm.mu.RLock()
	room, ok := rm.rooms[roomID]
	rm.mu.RUnlock()
	if !ok {
		return nil
	}
	return room.Members()
}

// IsMember reports whether the connection currently belongs to the room.
func (rm *RoomManager) IsMember(conn domain.ConnID, roomID domain.RoomID) bool {
	rm.mu.RLock()
	room, ok := rm.rooms[roomID]
	rm.mu.RUnlock()
	if !ok {
		return false
	}
	return room.Has(conn)
}

// JoinedRooms returns a snapshot of the rooms the connection is in.
func (rm *RoomManager) JoinedRooms(conn domain.ConnID) []domain.RoomID {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	set, ok := rm.joined[conn]
	if !ok {
		return nil
	}
	out := make([]domain.RoomID, 0, len(set))
	for roomID := range set {
		out = append(out, roomID)
	}
	return out
}

// RoomCount is used by tests and the health endpoint.
func (rm *RoomManager) RoomCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}
