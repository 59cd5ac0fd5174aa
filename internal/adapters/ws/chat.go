package ws

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/meshline/meshline/internal/core"
	"github.com/meshline/meshline/internal/domain"
)

// handleSendChat relays a chat message. The sender is the connection
// itself; a sender field in the payload would be ignored.
func (ctl *Controller) handleSendChat(ctx context.Context, id domain.ConnID, c *wsConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		Room string `json:"room"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("bad chat payload")
		ctl.sendError(c, core.CodeBadPayload, "invalid payload")
		return
	}
	if p.Room == "" {
		ctl.sendError(c, core.CodeBadPayload, "missing room")
		return
	}
	if !ctl.chatLimiter.Allow(id) {
		ctl.sendError(c, core.CodeRateLimited, "slow down")
		return
	}

	_, err := ctl.Orch.SendChat(ctx, id, domain.RoomID(p.Room), p.Text)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrNotAMember):
		ctl.sendError(c, core.CodeNotAMember, "join the room before sending")
	case errors.Is(err, core.ErrMalformedPayload):
		ctl.sendError(c, core.CodeBadPayload, "invalid text")
	case errors.Is(err, core.ErrPersistence):
		ctl.sendError(c, core.CodePersistence, "message not stored")
	default:
		log.Error().Err(err).Str("module", "ws").Str("conn", string(id)).Msg("chat send failed")
		ctl.sendError(c, core.CodePersistence, "internal error")
	}
}

// handleHistory backfills recent messages for a late joiner.
func (ctl *Controller) handleHistory(ctx context.Context, id domain.ConnID, c *wsConn, data []byte) {
	var p struct {
		Type  string `json:"type"`
		Room  string `json:"room"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" {
		ctl.sendError(c, core.CodeBadPayload, "invalid payload")
		return
	}
	limit := p.Limit
	if limit <= 0 || limit > ctl.Cfg.HistoryLimit {
		limit = ctl.Cfg.HistoryLimit
	}

	msgs, err := ctl.Orch.Chat.History(ctx, domain.RoomID(p.Room), limit)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Str("conn", string(id)).Msg("history failed")
		ctl.sendError(c, core.CodePersistence, "history unavailable")
		return
	}
	ctl.sendJSON(c, core.ChatHistoryEvent{
		Type:     core.EvChatHistory,
		Room:     domain.RoomID(p.Room),
		Messages: msgs,
	})
}
