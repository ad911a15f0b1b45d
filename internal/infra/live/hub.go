package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Spok95/stone-stock/internal/importer"
)

const (
	EventReload   = "reload"
	EventProgress = "progress"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

type Event struct {
	Type     string             `json:"type"`
	Progress *importer.Progress `json:"progress,omitempty"`
}

type client struct {
	conn   *websocket.Conn
	userID uuid.UUID
	send   chan []byte
}

// Hub рассылает события клиентам websocket. Пока у пользователя идёт импорт (Suspend),
// уведомления из БД для него не пересылаются; Reload после импорта шлётся всегда.
// Все события адресные: клиент получает только события своего пользователя.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	log      *slog.Logger

	smu       sync.Mutex
	suspended map[uuid.UUID]int
}

func NewHub(log *slog.Logger, allowedOrigins []string) *Hub {
	h := &Hub{
		clients:   make(map[*client]struct{}),
		suspended: make(map[uuid.UUID]int),
		log:       log,
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func (h *Hub) Suspend(userID uuid.UUID) {
	h.smu.Lock()
	h.suspended[userID]++
	h.smu.Unlock()
}

func (h *Hub) Resume(userID uuid.UUID) {
	h.smu.Lock()
	defer h.smu.Unlock()
	if h.suspended[userID] <= 1 {
		delete(h.suspended, userID)
		return
	}
	h.suspended[userID]--
}

func (h *Hub) Suspended(userID uuid.UUID) bool {
	h.smu.Lock()
	defer h.smu.Unlock()
	return h.suspended[userID] > 0
}

// Reload просит клиентов пользователя перечитать склад.
func (h *Hub) Reload(_ context.Context, userID uuid.UUID) {
	h.sendTo(userID, Event{Type: EventReload})
}

// Changed: изменение таблицы slabs, пришедшее из LISTEN.
func (h *Hub) Changed(userID uuid.UUID) {
	if h.Suspended(userID) {
		return
	}
	h.sendTo(userID, Event{Type: EventReload})
}

// Progress уходит только клиентам владельца прогона.
func (h *Hub) Progress(p importer.Progress) {
	if p.UserID == uuid.Nil {
		return
	}
	h.sendTo(p.UserID, Event{Type: EventProgress, Progress: &p})
}

func (h *Hub) sendTo(userID uuid.UUID, ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("ws marshal", "err", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.userID != userID {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.dropLocked(c)
		}
	}
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ForwardProgress пересылает снимки трекера, пока жив ctx.
func (h *Hub) ForwardProgress(ctx context.Context, t *importer.Tracker) {
	ch, cancel := t.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-ch:
			if !ok {
				return
			}
			h.Progress(p)
		}
	}
}

// Serve поднимает websocket для пользователя и держит его до разрыва.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "err", err)
		return
	}
	c := &client{conn: conn, userID: userID, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("ws connected", "user_id", userID)

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer func() {
		h.mu.Lock()
		h.dropLocked(c)
		h.mu.Unlock()
		_ = c.conn.Close()
	}()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
