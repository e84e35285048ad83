package websocket

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/lorrc/rx-dashboard-backend/internal/core/pipeline"
	"github.com/lorrc/rx-dashboard-backend/internal/core/presenter"
)

// Subscription identifies a chart room. Clients asking for the same chart
// at the same granularity share one computation per refresh.
type Subscription struct {
	Chart       presenter.Name
	Granularity pipeline.Granularity
}

func (s Subscription) String() string {
	if s.Granularity == "" {
		return string(s.Chart)
	}
	return string(s.Chart) + "@" + string(s.Granularity)
}

type roomMessage struct {
	sub Subscription
	msg ServerMessage
}

// Hub maintains the set of active Clients and broadcasts chart updates to
// the rooms they subscribe to.
type Hub struct {
	// clients holds every active connection
	clients map[*Client]bool

	// rooms maps chart subscriptions to subscribed clients
	rooms map[Subscription]map[*Client]bool

	// Broadcast channel for room messages
	broadcast chan roomMessage

	// subscribed announces new rooms so they can be filled right away
	subscribed chan Subscription

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// done is closed when Run returns
	done chan struct{}

	// mu protects the clients and rooms maps
	mu sync.RWMutex

	// logger for the hub
	logger *slog.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[Subscription]map[*Client]bool),
		broadcast:  make(chan roomMessage, 256),
		subscribed: make(chan Subscription, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With("component", "websocket_hub"),
	}
}

// Broadcast queues a message for every client in the subscription's room.
func (h *Hub) Broadcast(sub Subscription, msg ServerMessage) {
	select {
	case h.broadcast <- roomMessage{sub: sub, msg: msg}:
	default:
		h.logger.Warn("broadcast channel full, dropping message",
			"type", msg.Type,
			"subscription", sub.String(),
		)
	}
}

// Subscribed reports rooms as clients join them.
func (h *Hub) Subscribed() <-chan Subscription {
	return h.subscribed
}

// Run starts the hub's event loop until ctx is cancelled. This MUST be run
// as a goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case m := <-h.broadcast:
			h.broadcastToRoom(m)

		case <-ctx.Done():
			h.shutdown()
			return
		}
	}
}

// register hands a client to the event loop unless the hub has stopped.
func (h *Hub) register(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// unregister hands a client back to the event loop unless the hub has stopped.
func (h *Hub) unregister(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// registerClient adds a client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	h.logger.Info("client registered",
		"client_id", client.ID,
		"total_connections", len(h.clients),
	)
}

// unregisterClient removes a client from the hub and all rooms
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeClient(client)
}

// removeClient must be called with mu held.
func (h *Hub) removeClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)

	for _, sub := range client.subscriptions() {
		h.leaveRoom(client, sub)
	}

	client.closeSend()

	h.logger.Info("client unregistered",
		"client_id", client.ID,
	)
}

// shutdown disconnects every client when the hub stops.
func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.closeSend()
	}
	h.clients = make(map[*Client]bool)
	h.rooms = make(map[Subscription]map[*Client]bool)

	h.logger.Info("websocket hub stopped")
}

// broadcastToRoom sends a message to all clients subscribed to a room
func (h *Hub) broadcastToRoom(m roomMessage) {
	h.mu.RLock()
	room, ok := h.rooms[m.sub]
	if !ok {
		h.mu.RUnlock()
		return
	}

	// Copy the client list to avoid holding the lock while sending
	clients := make([]*Client, 0, len(room))
	for client := range room {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	h.logger.Debug("broadcasting message",
		"type", m.msg.Type,
		"subscription", m.sub.String(),
		"client_count", len(clients),
	)

	for _, client := range clients {
		if !client.trySend(m.msg) {
			// Client's send buffer is full, drop the connection
			h.logger.Warn("client send buffer full, unregistering",
				"client_id", client.ID,
			)
			h.dropFromRoom(client, m.sub)
		}
	}
}

// dropFromRoom removes a client that can no longer receive. The room entry
// goes even when the client was already unregistered.
func (h *Hub) dropFromRoom(client *Client, sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveRoom(client, sub)
	h.removeClient(client)
}

// subscribeClient adds a client to a chart room
func (h *Hub) subscribeClient(client *Client, sub Subscription) {
	h.mu.Lock()
	if !h.clients[client] {
		h.mu.Unlock()
		return
	}
	if h.rooms[sub] == nil {
		h.rooms[sub] = make(map[*Client]bool)
	}
	h.rooms[sub][client] = true
	client.setSubscribed(sub, true)
	h.mu.Unlock()

	h.logger.Debug("client subscribed to chart",
		"client_id", client.ID,
		"subscription", sub.String(),
	)

	select {
	case h.subscribed <- sub:
	default:
		// The next refresh tick will cover it
	}
}

// unsubscribeClient removes a client from a chart room
func (h *Hub) unsubscribeClient(client *Client, sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveRoom(client, sub)

	h.logger.Debug("client unsubscribed from chart",
		"client_id", client.ID,
		"subscription", sub.String(),
	)
}

// CloseRoom sends a final message to every client in a room and removes
// them from it, e.g. after the chart it names turned out not to exist.
func (h *Hub) CloseRoom(sub Subscription, final ServerMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.rooms[sub] {
		client.trySend(final)
		client.setSubscribed(sub, false)
	}
	delete(h.rooms, sub)
}

// leaveRoom must be called with mu held.
func (h *Hub) leaveRoom(client *Client, sub Subscription) {
	if room, ok := h.rooms[sub]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, sub)
		}
	}
	client.setSubscribed(sub, false)
}

// Subscriptions returns the rooms that currently have subscribers, sorted
// for a stable refresh order.
func (h *Hub) Subscriptions() []Subscription {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := make([]Subscription, 0, len(h.rooms))
	for sub := range h.rooms {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].String() < subs[j].String()
	})
	return subs
}

// GetClientCount returns the total number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetRoomCount returns the number of active rooms
func (h *Hub) GetRoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// GetClientsInRoom returns the number of clients subscribed to a chart
func (h *Hub) GetClientsInRoom(sub Subscription) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if room, ok := h.rooms[sub]; ok {
		return len(room)
	}
	return 0
}
