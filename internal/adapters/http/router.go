package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/meshline/meshline/internal/adapters/ws"
	"github.com/meshline/meshline/internal/app"
	"github.com/meshline/meshline/internal/config"
	"github.com/meshline/meshline/internal/domain"
)

// SetupRouter wires the WebSocket endpoint, the history backfill API and
// the static web client.
func SetupRouter(ctx context.Context, cfg *config.Config, orch *app.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"connections": orch.Registry.Len(),
			"rooms":       orch.Rooms.RoomCount(),
		})
	})

	ctl := ws.NewController(orch, cfg)

	api := r.Group("/api")

	api.GET("/ws", func(c *gin.Context) {
		ctl.Handle(ctx, c)
	})

	// History backfill for late joiners. Read-only; membership is not
	// required to read a room you already know the identifier of.
	api.GET("/rooms/:room/messages", func(c *gin.Context) {
		limit := cfg.HistoryLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			if n < limit {
				limit = n
			}
		}
		msgs, err := orch.Chat.History(c.Request.Context(), domain.RoomID(c.Param("room")), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs})
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")
	return r
}
