package websocket

import (
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/entity"
)

// Hub maps connection ids to live clients and delivers room events to them.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*client
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger.With("component", "ws_hub"),
		clients: make(map[string]*client),
	}
}

// Send - queues event for connID. A client that cannot keep up is disconnected.
func (that *Hub) Send(connID string, event entity.Event) {
	log := that.logger.With("method", "Send", "conn", connID)

	that.mu.RLock()
	c, ok := that.clients[connID]
	that.mu.RUnlock()

	if !ok {
		log.Debug("connection not found")
		return
	}

	data, err := encodeEvent(event)
	if err != nil {
		log.Error("failed to encode event", "error", err)
		return
	}

	if !c.trySend(data) {
		log.Warn("client closed or send buffer full, dropping connection")
		c.close()
	}
}

func (that *Hub) register(c *client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.clients[c.id] = c
}

func (that *Hub) unregister(c *client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.clients[c.id] == c {
		delete(that.clients, c.id)
	}
}
