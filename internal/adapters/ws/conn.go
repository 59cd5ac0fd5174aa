// Package ws is the WebSocket transport adapter: one persistent,
// message-framed connection per client carries every event.
package ws

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/meshline/meshline/internal/core"
)

// wsConn implements core.Endpoint over a gorilla connection with a
// buffered send channel. TrySend never blocks; a full buffer is reported
// as backpressure and left to the policy upstream.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWSConn(conn *websocket.Conn, buffer int) *wsConn {
	return &wsConn{
		conn: conn,
		send: make(chan core.Frame, buffer),
	}
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}
