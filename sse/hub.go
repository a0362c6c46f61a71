package sse

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/observability"
)

// ErrHubStopped is returned when registering with a hub that has shut down.
var ErrHubStopped = stderrors.New("sse: hub stopped")

// clientBuffer is the number of events a client may lag behind before
// further events are dropped for it.
const clientBuffer = 256

// Client is a connected SSE subscriber.
type Client struct {
	id       string
	metadata map[string]string
	events   chan Event
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMetadata adds a metadata key-value pair to the client.
func WithMetadata(key, value string) ClientOption {
	return func(c *Client) {
		c.metadata[key] = value
	}
}

// WithUserID sets the user ID metadata.
func WithUserID(userID string) ClientOption {
	return WithMetadata("user_id", userID)
}

// NewClient creates a client with optional metadata.
func NewClient(id string, opts ...ClientOption) *Client {
	c := &Client{
		id:       id,
		metadata: make(map[string]string),
		events:   make(chan Event, clientBuffer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the client's unique identifier.
func (c *Client) ID() string { return c.id }

// Metadata returns all client metadata.
func (c *Client) Metadata() map[string]string { return c.metadata }

// UserID returns the user_id metadata value.
func (c *Client) UserID() string { return c.metadata["user_id"] }

// Events returns the channel the hub delivers events on. It is closed when
// the client is unregistered.
func (c *Client) Events() <-chan Event { return c.events }

// send queues ev without blocking and reports whether it was accepted.
func (c *Client) send(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

// Metrics receives hub activity. observability.PromMetrics implements it.
type Metrics interface {
	ClientConnected()
	ClientDisconnected()
	EventPublished(eventType string)
}

type nopMetrics struct{}

func (nopMetrics) ClientConnected()      {}
func (nopMetrics) ClientDisconnected()   {}
func (nopMetrics) EventPublished(string) {}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithMetrics reports client and event counts to m.
func WithMetrics(m Metrics) HubOption {
	return func(h *Hub) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithLogger sets the hub logger.
func WithLogger(l *logger.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

type broadcast struct {
	pattern string
	event   Event
}

// Hub manages SSE clients and routes events to them.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcast
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex

	metrics Metrics
	log     *logger.Logger
}

var _ Broadcaster = (*Hub)(nil)

// NewHub creates a hub. Run must be started before clients can register.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcast, clientBuffer),
		done:       make(chan struct{}),
		metrics:    nopMetrics{},
		log:        logger.WithComponent("sse"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run is the hub's event loop. It returns after Stop, closing every client.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.id]; ok && old != client {
				close(old.events)
				h.metrics.ClientDisconnected()
			}
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			h.metrics.ClientConnected()
			h.log.Debug("client registered", logger.Fields("client_id", client.id, "total_clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[client.id]; ok && cur == client {
				delete(h.clients, client.id)
				close(client.events)
				h.metrics.ClientDisconnected()
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client unregistered", logger.Fields("client_id", client.id, "total_clients", total))

		case msg := <-h.broadcast:
			h.deliver(msg.pattern, msg.event)
		}
	}
}

// Stop shuts the hub down. Safe to call multiple times.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.events)
		delete(h.clients, id)
		h.metrics.ClientDisconnected()
	}
	h.log.Debug("all clients closed during shutdown")
}

// Register adds a client. A client registered under an ID already in use
// replaces the previous one, whose stream then completes.
func (h *Hub) Register(ctx context.Context, client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unregister removes a client and completes its stream. It is a no-op for
// unknown clients and once the hub has stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish delivers ev to every matching client and returns the recipient count.
func (h *Hub) Publish(ctx context.Context, pattern string, ev Event) int {
	_, span := observability.StartSpan(ctx, observability.SpanSSEPublish,
		attribute.String(observability.AttrEventType, eventType(ev)))
	defer span.End()

	n := h.deliver(pattern, ev)
	span.SetAttributes(attribute.Int(observability.AttrRecipients, n))
	return n
}

// BroadcastToPattern queues ev for delivery by the hub loop.
func (h *Hub) BroadcastToPattern(pattern string, ev Event) {
	select {
	case h.broadcast <- broadcast{pattern: pattern, event: ev}:
	case <-h.done:
	}
}

func (h *Hub) deliver(pattern string, ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.metrics.EventPublished(eventType(ev))
	matched := 0
	for id, client := range h.clients {
		ok, err := filepath.Match(pattern, id)
		if err != nil {
			h.log.Error("pattern match error", logger.Fields("pattern", pattern, "error", err.Error()))
			return 0
		}
		if !ok {
			continue
		}
		if client.send(ev) {
			matched++
		} else {
			h.log.Warn("client lagging, dropping event", logger.Fields("client_id", id))
		}
	}

	h.log.Debug("event published", logger.Fields(
		"pattern", pattern,
		"event_type", eventType(ev),
		"recipients", matched,
		"data_size", len(ev.Data),
	))
	return matched
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ClientIDs returns the IDs of all connected clients.
func (h *Hub) ClientIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// Client returns a connected client by ID, or nil.
func (h *Hub) Client(id string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[id]
}

func eventType(ev Event) string {
	if ev.Type == "" {
		return EventTypeMessage
	}
	return ev.Type
}
