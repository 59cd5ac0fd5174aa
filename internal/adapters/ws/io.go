package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/meshline/meshline/internal/core"
	"github.com/meshline/meshline/internal/domain"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *wsConn, teardown func()) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		teardown()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, id domain.ConnID, c *wsConn, teardown func()) {
	defer teardown()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "ws").Str("conn", string(id)).Msg("read loop ended")
				return
			}
			ctl.dispatch(ctx, id, c, data)
		}
	}
}

func (ctl *Controller) dispatch(ctx context.Context, id domain.ConnID, c *wsConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("conn", string(id)).Msg("bad json")
		ctl.sendError(c, core.CodeBadPayload, "invalid json")
		return
	}

	switch env.Type {
	case "join-chat-room":
		ctl.handleJoinChat(id, c, data)
	case "join-signal-room":
		ctl.handleJoinSignal(id, c, data)
	case "leave-room":
		ctl.handleLeave(id, c, data)
	case "send-chat-message":
		ctl.handleSendChat(ctx, id, c, data)
	case "chat-history":
		ctl.handleHistory(ctx, id, c, data)
	case "relay-signal":
		ctl.handleRelaySignal(id, c, data)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "ws").Str("type", env.Type).Msg("unknown event")
		ctl.sendError(c, core.CodeBadPayload, "unknown event type")
	}
}
