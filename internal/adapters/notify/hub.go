package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// Message is the frame written to feed subscribers.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
	RoomID  string `json:"roomId,omitempty"`
}

type envelope struct {
	room   string
	userID string
	data   []byte
}

type client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	room     string
	personID string
}

// Hub is the live activity feed. Each group is a room; activity events go
// to the whole room, notifications only to the addressed player's sockets.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan envelope
	done       chan struct{}
	stopOnce   sync.Once

	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}

	upgrader websocket.Upgrader
	log      logger.Logger
}

// NewHub builds a hub. Call Run before serving connections.
func NewHub(l logger.Logger) *Hub {
	if l == nil {
		l = logger.Nop()
	}
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan envelope, 256),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: l.Named("hub"),
	}
}

// Run owns room membership until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.mu.Lock()
			room, ok := h.rooms[c.room]
			if !ok {
				room = make(map[*client]struct{})
				h.rooms[c.room] = room
			}
			room[c] = struct{}{}
			n := len(room)
			h.mu.Unlock()
			h.log.Debug(ctx, "feed client joined", logger.String("room", c.room), logger.Int("clients", n))
		case c := <-h.unregister:
			h.drop(c)
		case env := <-h.broadcast:
			h.deliver(env)
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.room]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.room)
	}
}

func (h *Hub) deliver(env envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[env.room] {
		if env.userID != "" && c.personID != env.userID {
			continue
		}
		select {
		case c.send <- env.data:
		default:
			metrics.RecordNotification("websocket", outcomeDropped)
		}
	}
}

func (h *Hub) closeAll() {
	h.stopOnce.Do(func() { close(h.done) })
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, room := range h.rooms {
		for c := range room {
			close(c.send)
		}
		delete(h.rooms, id)
	}
}

// Clients returns the number of sockets subscribed to a group's room.
func (h *Hub) Clients(groupID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[groupID])
}

// Serve upgrades the request and subscribes it to groupID's room.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, groupID, personID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "feed upgrade failed", logger.Error(err))
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), room: groupID, personID: personID}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (h *Hub) publish(ctx context.Context, env envelope) {
	select {
	case h.broadcast <- env:
		record("websocket", nil)
	case <-h.done:
	case <-ctx.Done():
		metrics.RecordNotification("websocket", outcomeDropped)
	default:
		metrics.RecordNotification("websocket", outcomeDropped)
	}
}

func (h *Hub) Notify(ctx context.Context, n model.Notification) {
	if n.GroupID == "" {
		return
	}
	data, err := json.Marshal(Message{Type: "notification", Payload: n, RoomID: n.GroupID})
	if err != nil {
		record("websocket", err)
		return
	}
	h.publish(ctx, envelope{room: n.GroupID, userID: n.UserID, data: data})
}

func (h *Hub) LogActivity(ctx context.Context, a model.Activity) {
	data, err := json.Marshal(Message{Type: "activity", Payload: a, RoomID: a.GroupID})
	if err != nil {
		record("websocket", err)
		return
	}
	h.publish(ctx, envelope{room: a.GroupID, data: data})
}

// readPump only services control frames; the feed is write-only.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
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

func (c *client) writePump() {
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
