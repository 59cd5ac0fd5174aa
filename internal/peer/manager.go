package peer

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/meshline/meshline/internal/domain"
)

// Manager owns the PeerLink table for one local client and dispatches
// inbound events onto it. Arrival of a new peer starts the initiator
// path; a signal from an unknown peer starts the responder path.
type Manager struct {
	self    domain.ConnID
	factory EngineFactory
	send    SendFunc

	mu    sync.Mutex
	links map[domain.ConnID]*Link
}

func NewManager(self domain.ConnID, factory EngineFactory, send SendFunc) *Manager {
	return &Manager{
		self:    self,
		factory: factory,
		send:    send,
		links:   make(map[domain.ConnID]*Link),
	}
}

// HandlePeerArrived runs the initiator path toward the new peer.
// Arrival notifications for our own ConnID are discarded.
func (m *Manager) HandlePeerArrived(ctx context.Context, peer domain.ConnID) {
	if peer == m.self {
		log.Debug().Str("module", "peer.manager").Msg("discarded self arrival")
		return
	}

	m.mu.Lock()
	if _, ok := m.links[peer]; ok {
		m.mu.Unlock()
		return
	}
	link, err := NewLink(peer, m.factory, m.send)
	if err != nil {
		m.mu.Unlock()
		log.Error().Err(err).Str("module", "peer.manager").Str("peer", string(peer)).Msg("link create failed")
		return
	}
	m.links[peer] = link
	m.mu.Unlock()

	if err := link.Initiate(ctx); err != nil {
		log.Error().Err(err).Str("module", "peer.manager").Str("peer", string(peer)).Msg("initiate failed")
	}
}

// HandleSignal feeds a relayed payload into the sender's link, creating a
// responder link on first contact. Signals claiming to come from our own
// ConnID are discarded.
func (m *Manager) HandleSignal(from domain.ConnID, payload json.RawMessage) {
	if from == m.self {
		log.Debug().Str("module", "peer.manager").Msg("discarded self signal")
		return
	}

	m.mu.Lock()
	link, ok := m.links[from]
	if !ok {
		var err error
		link, err = NewLink(from, m.factory, m.send)
		if err != nil {
			m.mu.Unlock()
			log.Error().Err(err).Str("module", "peer.manager").Str("peer", string(from)).Msg("responder link create failed")
			return
		}
		m.links[from] = link
	}
	m.mu.Unlock()

	if err := link.HandleSignal(payload); err != nil {
		log.Warn().Err(err).Str("module", "peer.manager").Str("peer", string(from)).Msg("signal handling failed")
	}
}

// HandlePeerLeft closes and removes the departed peer's link. ConnIDs are
// not stable across reconnects, so the link is gone for good.
func (m *Manager) HandlePeerLeft(peer domain.ConnID) {
	m.mu.Lock()
	link, ok := m.links[peer]
	if ok {
		delete(m.links, peer)
	}
	m.mu.Unlock()
	if ok {
		link.Close()
	}
}

// Link returns the link for a remote peer, if any.
func (m *Manager) Link(peer domain.ConnID) (*Link, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[peer]
	return link, ok
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.links)
}

// CloseAll tears down every link, e.g. when the client disconnects.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	links := make([]*Link, 0, len(m.links))
	for _, l := range m.links {
		links = append(links, l)
	}
	m.links = make(map[domain.ConnID]*Link)
	m.mu.Unlock()
	for _, l := range links {
		l.Close()
	}
}
