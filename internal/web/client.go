package web

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Size of the client send buffer.
	sendBufferSize = 256
)

// Client represents a single attached surface connection.
type Client struct {
	hub *Hub

	conn *websocket.Conn

	// id identifies this surface in logs and the CONNECTED handshake.
	id string

	// Buffered channel of outbound messages.
	send chan *Envelope

	mu      sync.Mutex
	visible bool
	closed  bool
}

// newClient creates a client for an upgraded connection.
func newClient(hub *Hub, conn *websocket.Conn, id string) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		id:   id,
		send: make(chan *Envelope, sendBufferSize),
	}
}

// Visible reports whether the surface has declared itself visible.
func (c *Client) Visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.visible
}

// setVisible records the surface's declared visibility.
func (c *Client) setVisible(visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.visible = visible
}

// Send queues a message for the surface. It never blocks; when the buffer is
// full the message is dropped and Send reports false.
func (c *Client) Send(msg *Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		log.Warnf("Send buffer full for surface %s, dropping %s",
			c.id, msg.Type)
		return false
	}
}

// Close closes the client connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.send)
	c.conn.Close()
}

// readPump pumps messages from the connection to the hub. It runs in a
// separate goroutine for each client.
func (c *Client) readPump() {
	defer func() {
		// The hub loop may already be gone when shutdown races a
		// surface detach.
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err, websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {

				log.Debugf("Read error for surface %s: %v",
					c.id, err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		c.hub.handleIncoming(c, data)
	}
}

// writePump pumps messages from the hub to the connection. It runs in a
// separate goroutine for each client.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				c.conn.WriteMessage(
					websocket.CloseMessage, []byte{},
				)
				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				log.Errorf("Marshal error for surface %s: %v",
					c.id, err)
				continue
			}

			err = c.conn.WriteMessage(websocket.TextMessage, data)
			if err != nil {
				log.Debugf("Write error for surface %s: %v",
					c.id, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			if err != nil {
				return
			}
		}
	}
}
