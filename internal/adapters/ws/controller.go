package ws

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/meshline/meshline/internal/app"
	"github.com/meshline/meshline/internal/config"
	"github.com/meshline/meshline/internal/core"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	Orch *app.Orchestrator
	Cfg  *config.Config

	chatLimiter *sendRateLimiter
}

func NewController(orch *app.Orchestrator, cfg *config.Config) *Controller {
	return &Controller{
		Orch:        orch,
		Cfg:         cfg,
		chatLimiter: newSendRateLimiter(cfg.ChatRateLimit, cfg.ChatRateWindow),
	}
}

// Handle upgrades the request, registers the connection and runs its pumps.
// The ConnID is minted here, per socket: a reconnect is a new identity.
func (ctl *Controller) Handle(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade failed")
		return
	}
	if ctl.Cfg.ReadLimit > 0 {
		ws.SetReadLimit(ctl.Cfg.ReadLimit)
	}

	conn := newWSConn(ws, ctl.Cfg.SendBuffer)
	ctx, cancel := context.WithCancel(ctx)
	id := ctl.Orch.Connect(conn, cancel)
	log.Info().Str("module", "ws").Str("conn", string(id)).Msg("new connection")

	if frame, err := core.Encode(core.WelcomeEvent{Type: core.EvWelcome, ID: id}); err == nil {
		_ = conn.TrySend(frame)
	}

	// Teardown must run exactly once whichever pump dies first, and
	// before the socket is considered gone: no later relay or broadcast
	// may target a stale ConnID.
	var once sync.Once
	teardown := func() {
		once.Do(func() {
			ctl.Orch.Disconnect(id)
			ctl.chatLimiter.Forget(id)
			cancel()
			conn.Close()
			log.Info().Str("module", "ws").Str("conn", string(id)).Msg("connection closed")
		})
	}

	go ctl.writePump(ctx, conn, teardown)
	go ctl.readPump(ctx, id, conn, teardown)
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	frame, err := core.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("encode event")
		return
	}
	_ = c.TrySend(frame)
}

func (ctl *Controller) sendError(c *wsConn, code, reason string) {
	ctl.sendJSON(c, core.ErrorEvent{Type: core.EvError, Code: code, Reason: reason})
}
