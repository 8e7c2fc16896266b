package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeTimeout     = 10 * time.Second
	wsReadLimit      = 4096
	clientSendBuffer = 64
)

// Client wraps a single WebSocket connection managed by the Hub.
type Client struct {
	TenantID string

	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	log       *logrus.Logger
	closeOnce sync.Once
}

// NewClient creates a Client for the given WebSocket connection.
func NewClient(hub *Hub, conn *websocket.Conn, tenantID string) *Client {
	return &Client{
		TenantID: tenantID,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, clientSendBuffer),
		log:      hub.log,
	}
}

// closeSend safely closes the send channel exactly once.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// ReadPump reads (and discards) messages until the connection closes,
// keeping close/ping handling alive. Clients only receive.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.CloseNow() //nolint:errcheck // best-effort close on teardown.
	}()

	c.conn.SetReadLimit(wsReadLimit)

	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

// WritePump sends queued events to the connection until the send channel
// closes.
func (c *Client) WritePump(ctx context.Context) {
	defer c.conn.CloseNow() //nolint:errcheck // best-effort close on teardown.

	for msg := range c.send {
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := c.conn.Write(writeCtx, websocket.MessageText, msg)
		cancel()

		if err != nil {
			c.hub.Unregister(c)

			return
		}
	}

	c.conn.Close(websocket.StatusNormalClosure, "server shutting down") //nolint:errcheck // best-effort close.
}
