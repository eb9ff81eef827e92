package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Message tells connected clients that an entity changed so they can
// refetch. Type is the "entity_action" pair clients switch on.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     int64          `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage builds a Message, deriving Type from entity and action.
func NewMessage(entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:   entity + "_" + action,
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub tracks connected clients and fans broadcasts out to them.
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
}

// Unregister drops a client and closes its outbox. Safe to call for a
// client the hub already dropped.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.outbox)
	}
	h.mu.Unlock()
}

// Broadcast fans the message out to every client. A client with a full
// outbox misses the message rather than blocking the caller.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	var dropped int
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.outbox <- data:
		default:
			dropped++
		}
	}
	h.mu.RUnlock()

	if dropped > 0 {
		h.logger.Warn("broadcast dropped for slow clients", "type", msg.Type, "clients", dropped)
	}
}

// Close disconnects every client. Called on server shutdown; clients removed
// here are already gone when their own Unregister runs.
func (h *Hub) Close() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.outbox)
		c.disconnect()
	}
	h.mu.Unlock()
}

// ClientCount reports how many clients are connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
