package ws

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/meshline/meshline/internal/core"
	"github.com/meshline/meshline/internal/domain"
)

// handleRelaySignal forwards an opaque negotiation payload to one target.
func (ctl *Controller) handleRelaySignal(id domain.ConnID, c *wsConn, data []byte) {
	var p struct {
		Type    string          `json:"type"`
		Target  string          `json:"target"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("bad signal payload")
		ctl.sendError(c, core.CodeBadPayload, "invalid payload")
		return
	}
	if p.Target == "" || len(p.Payload) == 0 {
		ctl.sendError(c, core.CodeBadPayload, "missing target or payload")
		return
	}

	err := ctl.Orch.RelaySignal(id, domain.ConnID(p.Target), p.Payload)
	if errors.Is(err, core.ErrUnknownTarget) {
		ctl.sendError(c, core.CodeUnknownTarget, "target not connected")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Str("conn", string(id)).Msg("relay failed")
	}
}
