package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/meshline/meshline/internal/core"
	"github.com/meshline/meshline/internal/domain"
)

// SignalRelay forwards opaque negotiation payloads point-to-point.
// Payloads are never inspected; the from field is always the real sender,
// never taken from the payload.
type SignalRelay struct {
	Registry *Registry
	Bcast    *Broadcaster
}

func NewSignalRelay(registry *Registry, bcast *Broadcaster) *SignalRelay {
	return &SignalRelay{Registry: registry, Bcast: bcast}
}

// Relay delivers {from, payload} to exactly the target connection.
// Self-addressed signals are filtered here, not left to the client:
// a relay must never hand a message back to its own sender. An unknown
// target is an error the sender gets to see.
func (sr *SignalRelay) Relay(sender, target domain.ConnID, payload json.RawMessage) error {
	if sender == target {
		log.Debug().Str("module", "app.signal").Str("conn", string(sender)).Msg("dropped self-addressed signal")
		return nil
	}
	if !sr.Registry.Exists(target) {
		return core.ErrUnknownTarget
	}

	frame, err := core.Encode(core.SignalEvent{
		Type:    core.EvSignal,
		From:    sender,
		Payload: payload,
	})
	if err != nil {
		return err
	}
	sr.Bcast.Deliver(target, frame)
	return nil
}
