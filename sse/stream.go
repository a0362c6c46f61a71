package sse

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/kbukum/streamkit/delivery"
	"github.com/kbukum/streamkit/source"
)

// DefaultKeepAlive is below the idle timeout of common proxies.
const DefaultKeepAlive = 30 * time.Second

// ConnectedEvent is the payload of the first event on every stream.
type ConnectedEvent struct {
	ClientID string            `json:"client_id"`
	UserID   string            `json:"user_id,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Stream returns a push source that registers client on activation and
// emits its events until the client is unregistered, which completes the
// stream. A keepAlive of zero disables keep-alive comments.
func (h *Hub) Stream(client *Client, keepAlive time.Duration) *source.Push {
	p := source.NewPush(func(ctx context.Context, e source.Emitter) error {
		if err := h.Register(ctx, client); err != nil {
			return err
		}
		hello, err := json.Marshal(ConnectedEvent{
			ClientID: client.id,
			UserID:   client.UserID(),
			Metadata: client.metadata,
		})
		if err != nil {
			h.Unregister(client)
			return err
		}
		if err := e.Enqueue(Event{Type: EventTypeConnected, Data: hello}.Bytes()); err != nil {
			h.Unregister(client)
			return err
		}
		go h.pump(client, e, keepAlive)
		return nil
	})
	p.Cancel = func(error) { h.Unregister(client) }
	return p
}

// Response wraps Stream in a 200 text/event-stream response.
func (h *Hub) Response(client *Client, keepAlive time.Duration) *delivery.Response {
	return delivery.NewResponse(http.StatusOK, h.Stream(client, keepAlive)).
		WithHeader("Content-Type", "text/event-stream").
		WithHeader("Cache-Control", "no-cache").
		WithHeader("Connection", "keep-alive").
		WithHeader("X-Accel-Buffering", "no")
}

// pump forwards client events to the emitter until the client channel closes
// or the consumer goes away.
func (h *Hub) pump(c *Client, e source.Emitter, keepAlive time.Duration) {
	defer h.Unregister(c)

	var tick <-chan time.Time
	if keepAlive > 0 {
		t := time.NewTicker(keepAlive)
		defer t.Stop()
		tick = t.C
	}

	ctx := e.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.events:
			if !ok {
				e.Close()
				return
			}
			if err := e.Enqueue(ev.Bytes()); err != nil {
				return
			}
		case now := <-tick:
			if err := e.Enqueue(keepAliveComment(now)); err != nil {
				return
			}
		}
	}
}
