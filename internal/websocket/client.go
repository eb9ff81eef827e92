package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	outboxSize   = 16
	pingInterval = 30 * time.Second
)

// Client is one connected browser. Broadcasts land in its outbox; the
// write loop drains them onto the wire.
type Client struct {
	hub    *Hub
	conn   *ws.Conn
	outbox chan []byte
}

func NewClient(hub *Hub, conn *ws.Conn) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		outbox: make(chan []byte, outboxSize),
	}
}

// Run registers the client and services the connection until it drops,
// then unregisters. Blocks for the life of the connection.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writeLoop(ctx)
	c.readLoop(ctx)
}

// disconnect force-closes the connection, which unblocks readLoop.
func (c *Client) disconnect() {
	if c.conn != nil {
		c.conn.Close(ws.StatusGoingAway, "server shutting down")
	}
}

// readLoop consumes incoming frames and throws them away. Clients only
// listen; the first read error means the connection is gone.
func (c *Client) readLoop(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

// writeLoop moves outbox messages onto the wire and pings on an interval
// so half-dead connections get noticed.
func (c *Client) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.outbox:
			if !ok {
				// Hub closed the outbox; the client was unregistered.
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
