package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zzzchinguun/holdem-server/internal/models"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Client is one authenticated websocket connection. UserID comes from the
// session token; TableID is set once the client joins a table.
type Client struct {
	UserID  string
	TableID string
	conn    *websocket.Conn
	send    chan []byte

	mu     sync.Mutex
	closed bool
}

func newClient(userID string, conn *websocket.Conn) *Client {
	return &Client{
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
}

// readPump decodes inbound intents until the connection drops, then lets
// the server clean up the registration.
func (c *Client) readPump(s *Server) {
	defer func() {
		s.handleDisconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	for {
		var intent models.Intent
		if err := c.conn.ReadJSON(&intent); err != nil {
			return
		}
		s.handleIntent(c, intent)
	}
}

// writePump serializes all writes onto one goroutine.
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// enqueue drops the message if the client's buffer is full; a stalled
// reader must never block the game loop. Sends after close are dropped,
// so a superseded connection's pumps can keep calling it safely.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close shuts the send channel exactly once; writePump drains and sends
// the websocket close frame.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) sendJSON(event string, data interface{}) {
	payload, err := json.Marshal(models.Event{Event: event, TableID: c.TableID, Data: data})
	if err != nil {
		return
	}
	c.enqueue(payload)
}

func (c *Client) sendError(message string) {
	c.sendJSON("error", map[string]string{"message": message})
}
