package ws

import (
	"encoding/json"
	"sync"

	"puzzle_webapp/internal/domain"
	"puzzle_webapp/internal/logger"
)

// Hub fans notices out to the websocket connections of a session. A session
// may hold several connections (tabs); each gets its own copy.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.SessionID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.SessionID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.SessionID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.SessionID)
		}
	}
	h.mu.Unlock()
	c.close()
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

func (h *Hub) Notify(sessionID string, n Notice) {
	msg, err := json.Marshal(n)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[sessionID] {
		if !c.enqueue(msg) {
			logger.Warn("ws send buffer full, dropping notice", "conn", c.ID, "type", n.Type)
		}
	}
}

// PuzzleRotated tells the session its puzzle was replaced; the client must
// resynchronize through start.
func (h *Hub) PuzzleRotated(sessionID string, game domain.GameType, epoch int64) {
	h.Notify(sessionID, Notice{Type: MsgRotated, Game: game, Epoch: epoch})
}

// SessionExpired sends a final notice and closes the session's connections.
func (h *Hub) SessionExpired(sessionID string) {
	h.Notify(sessionID, Notice{Type: MsgExpired})

	h.mu.Lock()
	set := h.clients[sessionID]
	delete(h.clients, sessionID)
	h.mu.Unlock()

	for c := range set {
		c.close()
	}
}
