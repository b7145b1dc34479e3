package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/manhwee/internal/model"
	"github.com/sakif/manhwee/internal/realtime"
)

// HandleStream upgrades to a WebSocket and keeps the client's collection
// in sync: one snapshot straight away, then one after every change.
//
// HTTP: GET /api/items/stream
//
// The server never reads anything meaningful from the client; the read
// loop only exists to notice the connection closing. The stream ends when
// its session is logged out or expires.
func (h *ItemHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	store, session := h.store(r)
	owner := session.OwnerID()

	ws, err := realtime.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("stream upgrade failed", slog.String("error", err.Error()))
		return
	}

	snapshot := func() ([]model.Item, error) { return store.List(r.Context()) }
	if err := h.hub.Join(session, ws, snapshot); err != nil {
		h.logger.Warn("stream join failed",
			slog.String("owner", owner),
			slog.String("error", err.Error()),
		)
		_ = ws.Close()
		return
	}
	defer h.hub.Leave(owner, ws)

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
