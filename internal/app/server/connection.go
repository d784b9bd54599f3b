package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// connection is one client link. Links that arrive through the API Gateway
// integration have no websocket; their events are pushed with the gateway
// notifier instead.
type connection struct {
	id       string
	conn     *websocket.Conn
	playerId string

	mu      sync.Mutex
	writeMu sync.Mutex
}

func newConnection(id string, conn *websocket.Conn, playerId string) *connection {
	return &connection{
		id:       id,
		conn:     conn,
		playerId: playerId,
	}
}

// bind ties the connection to a player. A connection acts for exactly one
// player; a claimed id that differs from the bound one is refused.
func (c *connection) bind(claimed string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case claimed == "" && c.playerId == "":
		return "", ErrInvalidPayload
	case claimed == "":
		return c.playerId, nil
	case c.playerId == "":
		c.playerId = claimed
		return claimed, nil
	case claimed != c.playerId:
		return "", ErrForbidden
	}
	return c.playerId, nil
}

func (c *connection) player() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerId
}

func (c *connection) write(msg []byte, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return ErrUnknownConnection
	}
	if timeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

func (c *connection) writeControl(messageType int, data []byte, deadline time.Time) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.WriteControl(messageType, data, deadline)
}

func (c *connection) close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
