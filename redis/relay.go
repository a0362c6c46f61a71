package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/streamkit/component"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/sse"
)

// message is the wire form of a relayed event.
type message struct {
	Pattern string `json:"pattern"`
	ID      string `json:"id,omitempty"`
	Type    string `json:"type,omitempty"`
	Data    []byte `json:"data"`
	RetryMS int64  `json:"retry_ms,omitempty"`
}

// Relay bridges a Redis channel and a local SSE hub. It is itself an
// sse.Broadcaster, so publishers can use it in place of the hub.
type Relay struct {
	redis   *Component
	hub     sse.Broadcaster
	channel string
	log     *logger.Logger

	mu   sync.Mutex
	ps   *goredis.PubSub
	done chan struct{}
}

var (
	_ sse.Broadcaster       = (*Relay)(nil)
	_ component.Component   = (*Relay)(nil)
	_ component.Describable = (*Relay)(nil)
)

// NewRelay creates a relay on channel. The Redis component must be
// registered before the relay so its client exists when the relay starts.
func NewRelay(redis *Component, hub sse.Broadcaster, channel string, log *logger.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Relay{
		redis:   redis,
		hub:     hub,
		channel: channel,
		log:     log.WithComponent("sse-relay"),
	}
}

// Name returns the component name.
func (r *Relay) Name() string { return "sse-relay" }

// Start subscribes to the channel and begins replaying messages into the hub.
func (r *Relay) Start(ctx context.Context) error {
	client := r.redis.Client()
	if client == nil {
		return errors.New("sse relay: redis client not started")
	}
	ps, err := client.Subscribe(ctx, r.channel)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.ps = ps
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go r.loop(ps.Channel(), done)
	r.log.Info("SSE relay subscribed", map[string]interface{}{"channel": r.channel})
	return nil
}

func (r *Relay) loop(ch <-chan *goredis.Message, done chan struct{}) {
	defer close(done)
	for msg := range ch {
		var m message
		if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
			r.log.Warn("Dropping malformed relay message", map[string]interface{}{
				logger.FieldError: err.Error(),
			})
			continue
		}
		n := r.hub.Publish(context.Background(), m.Pattern, sse.Event{
			ID:    m.ID,
			Type:  m.Type,
			Data:  m.Data,
			Retry: time.Duration(m.RetryMS) * time.Millisecond,
		})
		r.log.Debug("Relayed event", map[string]interface{}{
			"pattern":    m.Pattern,
			"recipients": n,
		})
	}
}

// Stop unsubscribes and waits for the replay loop to finish.
func (r *Relay) Stop(_ context.Context) error {
	r.mu.Lock()
	ps, done := r.ps, r.done
	r.ps = nil
	r.mu.Unlock()
	if ps == nil {
		return nil
	}
	err := ps.Close()
	<-done
	return err
}

// Health reports whether the relay is subscribed.
func (r *Relay) Health(_ context.Context) component.Health {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ps == nil {
		return component.Unhealthy(r.Name(), "not subscribed")
	}
	return component.Healthy(r.Name())
}

// Describe implements component.Describable.
func (r *Relay) Describe() component.Description {
	return component.Description{Name: "SSE Relay", Type: "redis", Details: "channel=" + r.channel}
}

// Publish sends ev to every relay on the channel, including this one. It
// returns the number of relays that received it, not the number of clients.
func (r *Relay) Publish(ctx context.Context, pattern string, ev sse.Event) int {
	n, err := r.publish(ctx, pattern, ev)
	if err != nil {
		r.log.Error("Relay publish failed", map[string]interface{}{
			"pattern":         pattern,
			logger.FieldError: err.Error(),
		})
		return 0
	}
	return n
}

// BroadcastToPattern publishes ev without waiting for Redis.
func (r *Relay) BroadcastToPattern(pattern string, ev sse.Event) {
	go r.Publish(context.Background(), pattern, ev)
}

func (r *Relay) publish(ctx context.Context, pattern string, ev sse.Event) (int, error) {
	client := r.redis.Client()
	if client == nil {
		return 0, errors.New("redis client not started")
	}
	payload, err := json.Marshal(message{
		Pattern: pattern,
		ID:      ev.ID,
		Type:    ev.Type,
		Data:    ev.Data,
		RetryMS: ev.Retry.Milliseconds(),
	})
	if err != nil {
		return 0, fmt.Errorf("encode relay message: %w", err)
	}
	n, err := client.Publish(ctx, r.channel, payload)
	return int(n), err
}
