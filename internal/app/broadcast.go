package app

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/meshline/meshline/internal/core"
	"github.com/meshline/meshline/internal/domain"
)

// Broadcaster resolves ConnIDs to endpoints and pushes frames at them,
// applying the backpressure policy to slow consumers. Delivery is best
// effort: a member that left between snapshot and send is skipped.
type Broadcaster struct {
	Registry *Registry
	Policy   Policy
}

// Deliver sends one frame to one connection.
func (b *Broadcaster) Deliver(conn domain.ConnID, frame core.Frame) bool {
	ep, ok := b.Registry.Lookup(conn)
	if !ok {
		return false
	}
	if err := ep.TrySend(frame); err != nil {
		b.onSendError(conn, err)
		return false
	}
	return true
}

// Fanout sends one frame to every connection in the snapshot, except the
// one named by skip (pass "" to deliver to all). Returns the number of
// successful sends.
func (b *Broadcaster) Fanout(conns []domain.ConnID, skip domain.ConnID, frame core.Frame) int {
	sent := 0
	for _, conn := range conns {
		if conn == skip {
			continue
		}
		if b.Deliver(conn, frame) {
			sent++
		}
	}
	return sent
}

func (b *Broadcaster) onSendError(conn domain.ConnID, err error) {
	if !errors.Is(err, core.ErrBackpressure) {
		log.Warn().Err(err).Str("module", "app.broadcast").Str("conn", string(conn)).Msg("send failed")
		return
	}
	log.Warn().Str("module", "app.broadcast").Str("conn", string(conn)).Msg("backpressure")
	if b.Policy == nil {
		return
	}
	switch b.Policy.OnBackpressure(conn) {
	case KickConn:
		b.Registry.Cancel(conn)
	case DropEvent, NoAction:
	}
}
