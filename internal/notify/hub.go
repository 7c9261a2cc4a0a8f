// Package notify pushes state-change events to connected frontends. It is
// the server-side replacement for the browser storage event: a write to
// session state is followed by a broadcast so other views resynchronize
// without polling.
package notify

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Key       string `json:"key,omitempty"`
	Value     string `json:"value,omitempty"`
}

const (
	EventOrderReplaced = "order_replaced"
	EventOrderStatus   = "order_status"
	EventBankAccount   = "bank_account_changed"
	EventWallet        = "wallet_changed"
	EventError         = "order_error"
)

type Hub struct {
	log *zap.SugaredLogger

	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]struct{}
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		log:   log,
		conns: make(map[string]map[*websocket.Conn]struct{}),
	}
}

func (h *Hub) Subscribe(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[sessionID]
	if !ok {
		set = make(map[*websocket.Conn]struct{})
		h.conns[sessionID] = set
	}
	set[conn] = struct{}{}
}

func (h *Hub) Unsubscribe(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(sessionID, conn)
}

// Publish delivers an event to every subscriber of the session. Slow or
// dead connections are dropped; the publisher never blocks on them.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns[ev.SessionID] {
		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := conn.WriteJSON(ev); err != nil {
			h.log.Debugw("dropping subscriber", "session", ev.SessionID, "error", err)
			h.drop(ev.SessionID, conn)
		}
	}
}

func (h *Hub) drop(sessionID string, conn *websocket.Conn) {
	if set, ok := h.conns[sessionID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.conns, sessionID)
		}
	}
	_ = conn.Close()
}
