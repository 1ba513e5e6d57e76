package devserver

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Notice is pushed to subscribers of a deployment whenever it changes.
type Notice struct {
	Type         string `json:"type"` // deployment.updated
	DeploymentID string `json:"deploymentId"`
	Status       string `json:"status"`
}

type client struct {
	conn         *websocket.Conn
	deploymentID string
	send         chan []byte
}

// Hub fans deployment notices out to websocket subscribers.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]bool
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]bool),
		log:     log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true // CLI clients
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				host := u.Hostname()
				return host == "localhost" || host == "127.0.0.1" || host == "::1"
			},
		},
	}
}

// Broadcast queues n for every subscriber of its deployment. Slow clients are
// dropped.
func (h *Hub) Broadcast(n Notice) {
	data, err := json.Marshal(n)
	if err != nil {
		h.log.Error("marshal notice", zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.deploymentID != n.DeploymentID {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.removeLocked(c)
		}
	}
}

// Subscribers counts open connections.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Connect(w http.ResponseWriter, r *http.Request, deploymentID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade", zap.Error(err))
		return
	}

	c := &client{conn: conn, deploymentID: deploymentID, send: make(chan []byte, 16)}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go c.writePump()
	go c.readPump(h)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) readPump(h *Hub) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
