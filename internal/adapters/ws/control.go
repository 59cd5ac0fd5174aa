package ws

import "github.com/meshline/meshline/internal/core"

func (ctl *Controller) handlePing(c *wsConn) {
	ctl.sendJSON(c, struct {
		Type string `json:"type"`
	}{Type: core.EvPong})
}
