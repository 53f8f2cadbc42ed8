package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"finpilot-server/src/cache"
	"finpilot-server/src/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// Message is what subscribers receive.
type Message struct {
	Type string   `json:"type"`
	Tag  string   `json:"tag,omitempty"`
	Keys []string `json:"keys,omitempty"`
}

type client struct {
	id     uuid.UUID
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

type envelope struct {
	userID string
	data   []byte
}

// Hub fans invalidation messages out to each user's websocket clients.
// The clients map is owned by the Run goroutine.
type Hub struct {
	clients    map[string]map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan envelope
	done       chan struct{}
	upgrader   websocket.Upgrader
}

func NewHub(allowedOrigins []string) *Hub {
	return &Hub{
		clients:    make(map[string]map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan envelope, 64),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// Run processes registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = map[string]map[*client]bool{}
			metrics.RealtimeClients.Set(0)
			return
		case c := <-h.register:
			if h.clients[c.userID] == nil {
				h.clients[c.userID] = make(map[*client]bool)
			}
			h.clients[c.userID][c] = true
			metrics.RealtimeClients.Inc()
			hello, _ := json.Marshal(Message{Type: "hello"})
			c.send <- hello
			slog.Debug("Realtime client connected", "client_id", c.id, "user_id", c.userID)
		case c := <-h.unregister:
			if set, ok := h.clients[c.userID]; ok && set[c] {
				delete(set, c)
				if len(set) == 0 {
					delete(h.clients, c.userID)
				}
				close(c.send)
				metrics.RealtimeClients.Dec()
				slog.Debug("Realtime client disconnected", "client_id", c.id, "user_id", c.userID)
			}
		case env := <-h.broadcast:
			if env.userID == "" {
				for userID := range h.clients {
					h.deliver(userID, env.data)
				}
			} else {
				h.deliver(env.userID, env.data)
			}
		}
	}
}

func (h *Hub) deliver(userID string, data []byte) {
	set, ok := h.clients[userID]
	if !ok {
		return
	}
	for c := range set {
		select {
		case c.send <- data:
		default:
			// Too slow to keep up; drop it and let it reconnect.
			delete(set, c)
			close(c.send)
			metrics.RealtimeClients.Dec()
			slog.Warn("Dropped slow realtime client", "client_id", c.id, "user_id", c.userID)
		}
	}
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}

// Notify implements cache.Notifier. An empty userID reaches every client.
func (h *Hub) Notify(userID string, tag cache.MutationTag, keys []string) {
	data, err := json.Marshal(Message{Type: "invalidate", Tag: string(tag), Keys: keys})
	if err != nil {
		slog.Error("Failed to marshal realtime message", "error", err)
		return
	}
	select {
	case h.broadcast <- envelope{userID: userID, data: data}:
	case <-h.done:
	}
}

// ServeWS upgrades the request and subscribes the connection to userID's
// invalidations.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Failed to upgrade to websocket", "error", err)
		return
	}

	c := &client{id: uuid.New(), userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(c)
	go h.readPump(c)
}

// readPump only watches for the peer going away; subscribers send nothing.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}
