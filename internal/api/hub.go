package api

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-sqlbridge/internal/command"
	"github.com/nerrad567/gray-logic-sqlbridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sqlbridge/internal/infrastructure/logging"
)

// AllDatabases is the channel that receives change events for every database.
const AllDatabases = ChannelPrefix + "*"

// Hub tracks connected WebSocket clients and fans change events out to the
// ones subscribed to the affected database.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for client := range clients {
		client.close()
	}
	if len(clients) > 0 {
		h.logger.Info("websocket clients disconnected on shutdown", "clients", len(clients))
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("websocket client connected", "clients", n, "scope", client.scope)
}

// Unregister removes a client and closes its outbound queue.
// Unregistering twice is harmless.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	client.close()
	if ok {
		h.logger.Debug("websocket client disconnected", "clients", n)
	}
}

// Broadcast queues an event for every client subscribed to channel or to
// AllDatabases. Clients with a full queue miss the event.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding websocket event", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	var recipients []*WSClient
	for client := range h.clients {
		if client.isSubscribed(channel) {
			recipients = append(recipients, client)
		}
	}
	h.mu.RUnlock()

	dropped := 0
	for _, client := range recipients {
		if !client.trySend(data) {
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn("websocket event dropped for slow clients", "channel", channel, "dropped", dropped)
	}
}

// NotifyChange implements command.Notifier. It never blocks on slow clients.
func (h *Hub) NotifyChange(ev command.ChangeEvent) {
	h.Broadcast(ChannelPrefix+ev.Database, ev)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// matchesChannel reports whether a subscription to sub covers channel.
func matchesChannel(sub, channel string) bool {
	if sub == channel {
		return true
	}
	return sub == AllDatabases && strings.HasPrefix(channel, ChannelPrefix)
}
