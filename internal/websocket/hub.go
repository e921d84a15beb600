package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Entities broadcast on change.
const (
	EntityProperty        = "property"
	EntityTask            = "maintenance_task"
	EntityWarranty        = "warranty"
	EntityServiceProvider = "service_provider"
	EntityLog             = "maintenance_log"
	EntityTrial           = "trial"
)

// Actions
const (
	ActionCreated   = "created"
	ActionUpdated   = "updated"
	ActionDeleted   = "deleted"
	ActionCompleted = "completed"
)

// TypeToast marks an in-app notification rather than a change event.
const TypeToast = "toast"

// Message is either a change event telling other tabs to refresh, or a toast.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity,omitempty"`
	Action string         `json:"action,omitempty"`
	ID     string         `json:"id,omitempty"`
	Title  string         `json:"title,omitempty"`
	Body   string         `json:"body,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a change Message with Type derived from entity and action.
func NewMessage(entity, action, id string, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// NewToast creates an in-app notification message.
func NewToast(title, body string, extra map[string]any) Message {
	return Message{
		Type:  TypeToast,
		Title: title,
		Body:  body,
		Extra: extra,
	}
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client registered", "clients", h.ClientCount())
}

// Unregister removes a client from the hub and closes its send channel.
// Calling it twice is safe.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast queues msg for every connected client in scope and reports how
// many accepted it. A client with a full buffer is skipped and told to
// resync once it catches up.
func (h *Hub) Broadcast(msg Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.clients {
		if !c.wants(msg) {
			continue
		}
		select {
		case c.send <- data:
			delivered++
		default:
			c.dropped()
			h.logger.Warn("websocket client buffer full, dropping message", "type", msg.Type)
		}
	}
	return delivered
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
