package ws

import (
	"sync"
	"time"

	"puzzle_webapp/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
)

type Client struct {
	ID        string
	SessionID string
	Conn      *websocket.Conn

	hub    *Hub
	send   chan []byte
	onPong func()

	mu     sync.Mutex
	closed bool
}

// NewClient wraps an upgraded connection. onPong runs on every pong, which
// lets an open socket keep its session alive.
func NewClient(sessionID string, conn *websocket.Conn, hub *Hub, onPong func()) *Client {
	return &Client{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Conn:      conn,
		hub:       hub,
		send:      make(chan []byte, 16),
		onPong:    onPong,
	}
}

// Run registers the client and blocks until the connection ends.
func (c *Client) Run() {
	c.hub.Register(c)
	go c.writePump()
	c.enqueue([]byte(`{"type":"ready"}`))
	c.readPump()
}

func (c *Client) enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

//read
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		if c.onPong != nil {
			c.onPong()
		}
		return nil
	})

	// clients only listen; reading drives the pong handler and detects close
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			logger.Debug("ws read ended", "conn", c.ID, "error", err)
			return
		}
	}
}

//write
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("ws write failed", "conn", c.ID, "error", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
