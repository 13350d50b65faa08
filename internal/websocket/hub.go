package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Message types sent to clients.
const (
	TypeInvalidate = "invalidate"
	TypeSignedOut  = "signed_out"
)

// Message is a real-time notification. Invalidate messages carry the query
// key the client should refetch.
type Message struct {
	Type string   `json:"type"`
	Key  []string `json:"key,omitempty"`
}

// NewInvalidateMessage tells clients that queries starting with key are
// stale. An empty key means every query.
func NewInvalidateMessage(key []string) Message {
	return Message{Type: TypeInvalidate, Key: key}
}

// Hub tracks connected clients by user and delivers messages to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.userID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
			if len(set) == 0 {
				delete(h.clients, c.userID)
			}
		}
	}
	h.mu.Unlock()
}

// BroadcastTo sends a message to every connection of one user.
func (h *Hub) BroadcastTo(userID int64, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliver(h.clients[userID], data)
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.clients {
		h.deliver(set, data)
	}
}

// deliver must be called with h.mu held.
func (h *Hub) deliver(set map[*Client]struct{}, data []byte) {
	for c := range set {
		select {
		case c.send <- data:
		default:
			// Client buffer full, drop rather than block
			h.logger.Debug("dropping message for slow client", "user_id", c.userID)
		}
	}
}

// Invalidate notifies a user's clients that cached queries under key changed.
func (h *Hub) Invalidate(userID int64, key []string) {
	h.BroadcastTo(userID, NewInvalidateMessage(key))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// UserClientCount returns the number of connections open for one user.
func (h *Hub) UserClientCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
