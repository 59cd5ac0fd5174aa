package core

import (
	"sync"

	"github.com/meshline/meshline/internal/domain"
)

// Room is a thread-safe membership set. It knows nothing about transports
// or event semantics; fan-out happens above it against a snapshot.
type Room struct {
	id      domain.RoomID
	mu      sync.RWMutex
	members map[domain.ConnID]struct{}
}

func NewRoom(id domain.RoomID) *Room {
	return &Room{
		id:      id,
		members: make(map[domain.ConnID]struct{}),
	}
}

func (r *Room) ID() domain.RoomID { return r.id }

// Add inserts the connection. Returns false if it was already a member.
func (r *Room) Add(id domain.ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[id]; ok {
		return false
	}
	r.members[id] = struct{}{}
	return true
}

// Remove deletes the connection. Returns false if it was not a member.
func (r *Room) Remove(id domain.ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[id]; !ok {
		return false
	}
	delete(r.members, id)
	return true
}

func (r *Room) Has(id domain.ConnID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[id]
	return ok
}

func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Members returns a snapshot of the current member set.
func (r *Room) Members() []domain.ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ConnID, 0, len(r.members))
	for id := range r.members {
		out = append(out, id)
	}
	return out
}
