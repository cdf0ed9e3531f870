package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is one websocket subscriber watching a conversation.
type Client struct {
	hub            *Hub
	conversationID string
	conn           *websocket.Conn
	send           chan []byte
	closeOnce      sync.Once
}

func newClient(h *Hub, conversationID string, conn *websocket.Conn) *Client {
	return &Client{
		hub:            h,
		conversationID: conversationID,
		conn:           conn,
		send:           make(chan []byte, 256),
	}
}

// readPump drains incoming frames. The server never acts on client frames;
// reading only serves keepalive and close detection.
func (c *Client) readPump() {
	defer c.Close()
	c.conn.SetReadLimit(8 * 1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close detaches the client from its room and tears the connection down.
// Safe to call from multiple goroutines.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.hub.leave(c.conversationID, c)
		close(c.send)
		_ = c.conn.Close()
	})
}
