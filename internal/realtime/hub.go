// Package realtime pushes collection snapshots to connected WebSocket
// clients. Every message carries an owner's complete list; clients replace
// what they show, they never patch.
package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sakif/manhwee/internal/model"
)

const writeWait = 5 * time.Second

// Message is the only frame the server sends.
type Message struct {
	Type  string       `json:"type"`
	Items []model.Item `json:"items"`
}

// MessageSnapshot is Message.Type for a full collection snapshot.
const MessageSnapshot = "snapshot"

// Upgrader turns a guarded GET /api/items/stream into a WebSocket.
//
// Origin checks are disabled: the stream sits behind the session guard and
// the cookie or bearer token is what authorizes it.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client is one open stream and the session that opened it.
type client struct {
	sessionID string
	expiresAt time.Time
}

// Hub tracks connections per owner. All writes happen under mu, which also
// satisfies gorilla's one-writer-per-connection rule.
//
// SESSION BINDING:
// Every connection remembers the session it was opened with. A stream
// never outlives that session: CloseSession ends it at logout, and Publish
// drops it once the session's expiry has passed.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[*websocket.Conn]client
	logger  *slog.Logger
	now     func() time.Time
}

// NewHub returns an empty hub. Wire Publish to service.Collections.Subscribe
// and CloseSession to service.AuthService.OnRevoke.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*websocket.Conn]client),
		logger:  logger,
		now:     time.Now,
	}
}

// Join registers ws for the session's owner and sends it the current
// snapshot first. snapshot runs under the hub lock, so no publish can slip
// in between the initial list and registration.
func (h *Hub) Join(session *model.Session, ws *websocket.Conn, snapshot func() ([]model.Item, error)) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !session.Active(h.now()) {
		return errors.New("realtime: session is not active")
	}
	owner := session.UserID

	items, err := snapshot()
	if err != nil {
		return err
	}
	if err := writeSnapshot(ws, items); err != nil {
		return err
	}

	if h.clients[owner] == nil {
		h.clients[owner] = make(map[*websocket.Conn]client)
	}
	h.clients[owner][ws] = client{sessionID: session.ID, expiresAt: session.ExpiresAt}

	h.logger.Debug("stream client joined", slog.String("owner", owner))
	return nil
}

// Leave unregisters and closes ws. Calling it for a connection the hub
// already dropped is harmless.
func (h *Hub) Leave(owner string, ws *websocket.Conn) {
	h.mu.Lock()
	h.removeLocked(owner, ws)
	h.mu.Unlock()

	_ = ws.Close()
	h.logger.Debug("stream client left", slog.String("owner", owner))
}

// Publish sends items to every live connection of owner. Its signature
// matches service.Observer. Connections whose session has expired, and
// connections that fail to write, are closed and dropped.
func (h *Hub) Publish(owner string, items []model.Item) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	for ws, c := range h.clients[owner] {
		if !now.Before(c.expiresAt) {
			h.logger.Info("closing stream of expired session", slog.String("owner", owner))
			closeWithReason(ws, "session expired")
			h.removeLocked(owner, ws)
			continue
		}
		if err := writeSnapshot(ws, items); err != nil {
			h.logger.Warn("dropping stream client",
				slog.String("owner", owner),
				slog.String("error", err.Error()),
			)
			_ = ws.Close()
			h.removeLocked(owner, ws)
		}
	}
}

// CloseSession ends every stream opened with sessionID. The client's read
// loop then fails and its handler returns. It reports how many streams
// were closed.
func (h *Hub) CloseSession(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	closed := 0
	for owner, conns := range h.clients {
		for ws, c := range conns {
			if c.sessionID != sessionID {
				continue
			}
			closeWithReason(ws, "session ended")
			h.removeLocked(owner, ws)
			closed++
		}
	}
	if closed > 0 {
		h.logger.Info("closed streams of ended session", slog.Int("streams", closed))
	}
	return closed
}

// Count reports how many connections owner has.
func (h *Hub) Count(owner string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[owner])
}

func (h *Hub) removeLocked(owner string, ws *websocket.Conn) {
	delete(h.clients[owner], ws)
	if len(h.clients[owner]) == 0 {
		delete(h.clients, owner)
	}
}

func writeSnapshot(ws *websocket.Conn, items []model.Item) error {
	if items == nil {
		items = []model.Item{}
	}
	b, err := json.Marshal(Message{Type: MessageSnapshot, Items: items})
	if err != nil {
		return err
	}
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteMessage(websocket.TextMessage, b)
}

// closeWithReason sends a policy-violation close frame, then closes.
func closeWithReason(ws *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = ws.Close()
}
