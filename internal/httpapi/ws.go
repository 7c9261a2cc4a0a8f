package httpapi

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"NairaOfframp/internal/notify"
)

// WSHandler upgrades frontends onto the notification hub.
type WSHandler struct {
	Hub *notify.Hub
	Log *zap.SugaredLogger

	upgrader websocket.Upgrader
}

func NewWSHandler(hub *notify.Hub, log *zap.SugaredLogger) *WSHandler {
	return &WSHandler{
		Hub: hub,
		Log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	session := r.Header.Get(sessionHeader)
	if session == "" {
		session = r.URL.Query().Get("session")
	}
	if session == "" {
		writeError(w, http.StatusUnauthorized, "missing session id")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warnw("ws upgrade failed", "error", err)
		return
	}
	h.Hub.Subscribe(session, conn)

	// Reader loop only detects close; clients do not send payloads.
	go func() {
		defer h.Hub.Unsubscribe(session, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
