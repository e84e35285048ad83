package websocket

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lorrc/rx-dashboard-backend/internal/core/pipeline"
	"github.com/lorrc/rx-dashboard-backend/internal/core/presenter"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	// pingPeriod must stay below pongWait so the peer's deadline is refreshed in time.
	pingPeriod = pongWait * 9 / 10

	// maxMessageSize bounds inbound frames; subscription messages are tiny.
	maxMessageSize = 1024
	sendBufferSize = 64
)

// Message types exchanged with the dashboard.
const (
	TypeSubscribe    = "SUBSCRIBE_TO_CHART"
	TypeUnsubscribe  = "UNSUBSCRIBE_FROM_CHART"
	TypePing         = "PING"
	TypePong         = "PONG"
	TypeChartUpdated = "CHART_UPDATED"
	TypeError        = "ERROR"
)

// ServerMessage is sent from the server to a dashboard.
type ServerMessage struct {
	Type        string               `json:"type"`
	Chart       presenter.Name       `json:"chart,omitempty"`
	Granularity pipeline.Granularity `json:"granularity,omitempty"`
	Data        *presenter.Chart     `json:"data,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// ClientMessage is sent from a dashboard to the server.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SubscribePayload names the chart room to join or leave.
type SubscribePayload struct {
	Chart       string `json:"chart"`
	Granularity string `json:"granularity,omitempty"`
}

// Client is one dashboard connection. Its subscriptions are the rooms it has joined.
type Client struct {
	ID string

	hub    *Hub
	conn   *websocket.Conn
	send   chan ServerMessage
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[Subscription]struct{}
	closed bool
}

// NewClient wraps conn for hub. Call Start to begin serving it.
func NewClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		ID:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan ServerMessage, sendBufferSize),
		logger: logger.With("client_id", id),
		subs:   make(map[Subscription]struct{}),
	}
}

// Start registers the client and launches its reader and writer. It returns
// false when the hub has already stopped.
func (c *Client) Start() bool {
	if !c.hub.register(c) {
		return false
	}
	go c.writeLoop()
	go c.readLoop()
	return true
}

// closeSend closes the outbound queue once; later sends are dropped.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// trySend queues msg without blocking and reports whether it was queued.
func (c *Client) trySend(msg ServerMessage) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) setSubscribed(sub Subscription, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.subs[sub] = struct{}{}
	} else {
		delete(c.subs, sub)
	}
}

func (c *Client) subscribed(sub Subscription) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subs[sub]
	return ok
}

func (c *Client) subscriptions() []Subscription {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Subscription, 0, len(c.subs))
	for sub := range c.subs {
		out = append(out, sub)
	}
	return out
}

// readLoop handles inbound frames until the peer goes away, then
// unregisters the client.
func (c *Client) readLoop() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	extend := func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) }
	if err := extend(""); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}
	c.conn.SetPongHandler(extend)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		c.handleIncomingMessage(data)
	}
}

// writeLoop drains the send queue and keeps the connection alive with pings.
// A closed queue ends the connection with a close frame.
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		var err error
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, nil)
				return
			}
			err = c.writeJSON(msg)
		case <-ticker.C:
			err = c.write(websocket.PingMessage, nil)
		}
		if err != nil {
			c.logger.Debug("websocket write failed", "error", err)
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

func (c *Client) writeJSON(msg ServerMessage) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

func (c *Client) handleIncomingMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("failed to unmarshal client message", "error", err)
		c.sendError("", "malformed message")
		return
	}

	switch msg.Type {
	case TypeSubscribe, TypeUnsubscribe:
		sub, err := parseSubscription(msg.Payload)
		if err != nil {
			c.sendError(sub.Chart, err.Error())
			return
		}
		if msg.Type == TypeSubscribe {
			c.hub.subscribeClient(c, sub)
		} else {
			c.hub.unsubscribeClient(c, sub)
		}
	case TypePing:
		c.trySend(ServerMessage{Type: TypePong})
	default:
		c.logger.Debug("received unknown message type", "type", msg.Type)
	}
}

var errChartRequired = errors.New("chart is required")

// parseSubscription validates a subscribe payload. On a granularity error the
// returned Subscription still carries the chart so the reply can name it.
func parseSubscription(payload json.RawMessage) (Subscription, error) {
	var p SubscribePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Subscription{}, errors.New("malformed subscription payload")
	}

	sub := Subscription{Chart: presenter.Name(strings.TrimSpace(p.Chart))}
	if sub.Chart == "" {
		return Subscription{}, errChartRequired
	}

	if strings.TrimSpace(p.Granularity) != "" {
		g, err := pipeline.ParseGranularity(p.Granularity)
		if err != nil {
			return Subscription{Chart: sub.Chart}, err
		}
		sub.Granularity = g
	}
	return sub, nil
}

func (c *Client) sendError(chart presenter.Name, message string) {
	c.trySend(ServerMessage{Type: TypeError, Chart: chart, Error: message})
}
