package peer

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/meshline/meshline/internal/domain"
)

type LinkState int

const (
	StateIdle LinkState = iota
	StateInitiating
	StateAwaitingRemoteSignal
	StateNegotiating
	StateConnected
	StateFailed
	StateClosed
)

func (s LinkState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitiating:
		return "initiating"
	case StateAwaitingRemoteSignal:
		return "awaiting-remote-signal"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SendFunc relays a payload to one remote connection.
type SendFunc func(target domain.ConnID, payload json.RawMessage) error

// Link tracks negotiation with one remote peer. All transitions run under
// the link's mutex; the engine's async hooks re-enter through the same
// lock, so state is never read mid-transition.
type Link struct {
	remote domain.ConnID
	send   SendFunc

	mu     sync.Mutex
	state  LinkState
	engine Engine
}

// NewLink builds a Link in Idle with a fresh engine.
func NewLink(remote domain.ConnID, factory EngineFactory, send SendFunc) (*Link, error) {
	l := &Link{
		remote: remote,
		send:   send,
		state:  StateIdle,
	}
	engine, err := factory(EngineHooks{
		OnLocalSignal: l.onLocalSignal,
		OnConnected:   l.onConnected,
		OnFailed:      l.onFailed,
	})
	if err != nil {
		return nil, err
	}
	l.engine = engine
	return l, nil
}

func (l *Link) Remote() domain.ConnID { return l.remote }

func (l *Link) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Initiate runs the initiator path: create and relay an offer, then wait
// for the remote signal. Valid from Idle only.
func (l *Link) Initiate(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateIdle {
		return nil
	}
	l.setState(StateInitiating)

	offer, err := l.engine.CreateOffer(ctx)
	if err != nil {
		l.failLocked(err)
		return err
	}
	if err := l.send(l.remote, offer); err != nil {
		l.failLocked(err)
		return err
	}
	l.setState(StateAwaitingRemoteSignal)
	return nil
}

// HandleSignal feeds a relayed payload into the engine. Accepted in any
// state up to Connected; candidates keep arriving after the answer.
func (l *Link) HandleSignal(payload json.RawMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateClosed || l.state == StateFailed {
		return nil
	}
	if l.state == StateIdle || l.state == StateAwaitingRemoteSignal {
		l.setState(StateNegotiating)
	}

	reply, err := l.engine.HandleRemote(payload)
	if err != nil {
		l.failLocked(err)
		return err
	}
	if reply != nil {
		if err := l.send(l.remote, reply); err != nil {
			l.failLocked(err)
			return err
		}
	}
	return nil
}

// Close releases the engine and ends the link. Reachable from any state.
func (l *Link) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateClosed {
		return
	}
	l.setState(StateClosed)
	if err := l.engine.Close(); err != nil {
		log.Warn().Err(err).Str("module", "peer.link").Str("remote", string(l.remote)).Msg("engine close")
	}
}

func (l *Link) onLocalSignal(payload json.RawMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateClosed || l.state == StateFailed {
		return
	}
	if err := l.send(l.remote, payload); err != nil {
		log.Warn().Err(err).Str("module", "peer.link").Str("remote", string(l.remote)).Msg("trickle send failed")
	}
}

func (l *Link) onConnected() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateClosed || l.state == StateFailed {
		return
	}
	l.setState(StateConnected)
}

func (l *Link) onFailed(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failLocked(err)
}

func (l *Link) failLocked(err error) {
	if l.state == StateClosed || l.state == StateFailed {
		return
	}
	log.Warn().Err(err).Str("module", "peer.link").Str("remote", string(l.remote)).Msg("negotiation failed")
	l.setState(StateFailed)
}

func (l *Link) setState(next LinkState) {
	log.Debug().Str("module", "peer.link").Str("remote", string(l.remote)).Str("from", l.state.String()).Str("to", next.String()).Msg("transition")
	l.state = next
}
