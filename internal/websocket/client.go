package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 32
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// TypeResync tells a tab that change events were dropped for it and it
// should reload everything rather than apply further deltas.
const TypeResync = "resync"

var resyncFrame, _ = json.Marshal(Message{Type: TypeResync})

// scope is the only frame a tab sends. It narrows task and warranty change
// events to one property; an empty PropertyID restores the full feed.
type scope struct {
	PropertyID string `json:"property_id"`
}

// Client is a single browser tab connected to the hub.
type Client struct {
	hub  *Hub
	conn *ws.Conn
	send chan []byte

	mu         sync.Mutex
	propertyID string
	resync     bool
}

func NewClient(hub *Hub, conn *ws.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// Run registers the client and pumps messages until the connection closes.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

// wants reports whether msg is in the client's property scope. Toasts and
// events that carry no property always pass.
func (c *Client) wants(msg Message) bool {
	if msg.Type == TypeToast {
		return true
	}
	c.mu.Lock()
	pid := c.propertyID
	c.mu.Unlock()
	if pid == "" {
		return true
	}
	got, ok := msg.Extra["property_id"].(string)
	return !ok || got == pid
}

func (c *Client) setScope(propertyID string) {
	c.mu.Lock()
	c.propertyID = propertyID
	c.mu.Unlock()
}

// dropped records that a change event did not fit in the send buffer.
func (c *Client) dropped() {
	c.mu.Lock()
	c.resync = true
	c.mu.Unlock()
}

func (c *Client) takeResync() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.resync
	c.resync = false
	return r
}

func (c *Client) readPump(ctx context.Context) {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != ws.MessageText {
			continue
		}
		var s scope
		if err := json.Unmarshal(data, &s); err != nil {
			c.hub.logger.Debug("ignoring malformed websocket frame", "error", err)
			continue
		}
		c.setScope(s.PropertyID)
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(wctx, ws.MessageText, msg)
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.Close(ws.StatusNormalClosure, "")
				return
			}
			if err := c.write(ctx, msg); err != nil {
				return
			}
			// Once the backlog is drained, a tab that missed events reloads.
			if len(c.send) == 0 && c.takeResync() {
				if err := c.write(ctx, resyncFrame); err != nil {
					return
				}
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
