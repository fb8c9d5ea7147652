package ws

import (
	"context"
	"encoding/json"
	"sync"

	"go-inventory-ledger/internal/service"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const broadcastBuffer = 256

// conn is the part of *websocket.Conn the hub writes to.
type conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Hub pushes committed ledger events to every connected websocket client.
// It is a service.Observer.
type Hub struct {
	clients    map[conn]bool
	register   chan conn
	unregister chan conn
	broadcast  chan []byte
	done       chan struct{}
	mutex      sync.Mutex
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[conn]bool),
		register:   make(chan conn),
		unregister: make(chan conn),
		broadcast:  make(chan []byte, broadcastBuffer),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves register, unregister and broadcast until ctx is done, then
// closes every client. It must be called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for c := range h.clients {
				c.Close()
				delete(h.clients, c)
			}
			h.mutex.Unlock()
			return

		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("ws client connected", zap.Int("clients", n))

		case c := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.Close()
			}
			h.mutex.Unlock()

		case message := <-h.broadcast:
			h.mutex.Lock()
			for c := range h.clients {
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					c.Close()
					delete(h.clients, c)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// join hands c to Run. It reports false, and closes c, once Run has
// returned.
func (h *Hub) join(c conn) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		c.Close()
		return false
	}
}

// leave hands c back to Run. After Run has returned it is a no-op.
func (h *Hub) leave(c conn) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

type message struct {
	Type    string        `json:"type"`
	Message string        `json:"message"`
	Event   service.Event `json:"event"`
}

// Observe queues committed events for broadcast. It never blocks: when the
// queue is full the event is dropped and logged.
func (h *Hub) Observe(_ context.Context, e service.Event) {
	if e.Outcome != service.OutcomeCommitted {
		return
	}

	payload, err := json.Marshal(message{Type: "stock_update", Message: e.Message(), Event: e})
	if err != nil {
		h.log.Error("ws marshal event", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		h.log.Warn("ws broadcast queue full, event dropped", zap.String("stage", e.Stage))
	}
}

// Upgrade rejects plain HTTP requests on the websocket route.
func (h *Hub) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return c.SendStatus(fiber.StatusUpgradeRequired)
}

// Handler registers the connection and keeps it until the client leaves.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		if !h.join(c) {
			return
		}
		defer h.leave(c)

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	})
}
