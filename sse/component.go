package sse

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/streamkit/component"
)

// Component owns the goroutine running a Hub. The hub cannot be restarted
// once stopped, so a stopped Component stays stopped.
type Component struct {
	hub    *Hub
	path   string
	start  sync.Once
	exited chan struct{}
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates a hub with opts whose stream route is mounted at path.
func NewComponent(path string, opts ...HubOption) *Component {
	return &Component{hub: NewHub(opts...), path: path, exited: make(chan struct{})}
}

// Hub returns the hub for route registration and publishing.
func (c *Component) Hub() *Hub { return c.hub }

func (c *Component) Name() string { return "sse" }

// Start runs the hub loop. Repeated calls are no-ops.
func (c *Component) Start(context.Context) error {
	c.start.Do(func() {
		go func() {
			defer close(c.exited)
			c.hub.Run()
		}()
	})
	return nil
}

// Stop completes every open stream and waits for the loop to exit, or for
// ctx to expire.
func (c *Component) Stop(ctx context.Context) error {
	c.hub.Stop()
	started := true
	c.start.Do(func() { started = false })
	if !started {
		return nil
	}
	select {
	case <-c.exited:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sse hub stop: %w", ctx.Err())
	}
}

// Health is always healthy and carries the client count.
func (c *Component) Health(context.Context) component.Health {
	h := component.Healthy(c.Name())
	h.Message = fmt.Sprintf("%d clients connected", c.hub.ClientCount())
	return h
}

func (c *Component) Describe() component.Description {
	return component.Description{Name: "SSE Hub", Type: "sse", Details: "Path: " + c.path}
}
