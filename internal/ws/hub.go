package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/digitallabhq/voiceagent-platform/internal/conversation"
	"github.com/digitallabhq/voiceagent-platform/pkg/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Hub fans call events out to the browser clients watching a conversation.
// Rooms are keyed by conversation id; an event for a room with no watchers
// is dropped.
type Hub struct {
	logger *logging.Logger

	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		logger: logger,
		rooms:  make(map[string]map[*Client]bool),
	}
}

func (h *Hub) join(conversationID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[conversationID] == nil {
		h.rooms[conversationID] = make(map[*Client]bool)
	}
	h.rooms[conversationID][c] = true
}

func (h *Hub) leave(conversationID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room := h.rooms[conversationID]; room != nil {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, conversationID)
		}
	}
}

// Watchers reports how many clients are subscribed to a conversation.
func (h *Hub) Watchers(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

// Publish implements conversation.EventPublisher. A slow client that cannot
// keep up with its send buffer is disconnected rather than blocking the
// call path.
func (h *Hub) Publish(conversationID string, event conversation.CallEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("ws: failed to encode call event", "conversation_id", conversationID, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[conversationID]))
	for c := range h.rooms[conversationID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- payload:
		default:
			go c.Close()
		}
	}
}
