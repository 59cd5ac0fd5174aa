package ws

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/meshline/meshline/internal/core"
	"github.com/meshline/meshline/internal/domain"
)

type roomPayload struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

func (ctl *Controller) parseRoom(c *wsConn, data []byte) (domain.RoomID, bool) {
	var p roomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("bad room payload")
		ctl.sendError(c, core.CodeBadPayload, "invalid payload")
		return "", false
	}
	if p.Room == "" {
		ctl.sendError(c, core.CodeBadPayload, "missing room")
		return "", false
	}
	return domain.RoomID(p.Room), true
}

// handleJoinChat is silent: no notification goes to anyone.
func (ctl *Controller) handleJoinChat(id domain.ConnID, c *wsConn, data []byte) {
	room, ok := ctl.parseRoom(c, data)
	if !ok {
		return
	}
	if !ctl.Orch.JoinChat(id, room) {
		ctl.sendError(c, core.CodeJoinDenied, "room join denied")
	}
}

// handleJoinSignal additionally triggers peer-arrived for existing members.
func (ctl *Controller) handleJoinSignal(id domain.ConnID, c *wsConn, data []byte) {
	room, ok := ctl.parseRoom(c, data)
	if !ok {
		return
	}
	if !ctl.Orch.JoinSignal(id, room) {
		ctl.sendError(c, core.CodeJoinDenied, "room join denied")
	}
}

func (ctl *Controller) handleLeave(id domain.ConnID, c *wsConn, data []byte) {
	room, ok := ctl.parseRoom(c, data)
	if !ok {
		return
	}
	ctl.Orch.Leave(id, room)
}
