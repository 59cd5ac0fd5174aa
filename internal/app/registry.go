package app

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/meshline/meshline/internal/core"
	"github.com/meshline/meshline/internal/domain"
)

type connEntry struct {
	Endpoint core.Endpoint
	Cancel   context.CancelFunc
}

// Registry tracks every live connection and its transport endpoint.
// Process-lifetime only; rebuilt from nothing on restart.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.ConnID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[domain.ConnID]*connEntry)}
}

// Register binds a new endpoint under a fresh ConnID. IDs are unique among
// live connections and never handed out twice.
func (r *Registry) Register(ep core.Endpoint, cancel context.CancelFunc) domain.ConnID {
	id := domain.ConnID(uuid.NewString())
	r.mu.Lock()
	r.conns[id] = &connEntry{Endpoint: ep, Cancel: cancel}
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("registered connection")
	return id
}

// Unregister removes the connection. Idempotent; returns false if the ID
// was already gone.
func (r *Registry) Unregister(id domain.ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; !ok {
		return false
	}
	delete(r.conns, id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("unregistered connection")
	return true
}

func (r *Registry) Exists(id domain.ConnID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[id]
	return ok
}

// Lookup resolves a ConnID to its endpoint.
func (r *Registry) Lookup(id domain.ConnID) (core.Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[id]; ok {
		return e.Endpoint, true
	}
	return nil, false
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Cancel fires the connection's cancel func, tearing down its pumps.
// Used to evict slow consumers.
func (r *Registry) Cancel(id domain.ConnID) bool {
	r.mu.RLock()
	e, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("canceled connection")
	return true
}
