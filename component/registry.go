package component

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/streamkit/logger"
)

// DefaultStopTimeout bounds each component's Stop call.
const DefaultStopTimeout = 10 * time.Second

type slot struct {
	c       Component
	running bool
}

// Registry owns the start and stop order of a service's components. The
// first registered component starts first and stops last, so register
// dependencies before the things that use them.
type Registry struct {
	mu          sync.RWMutex
	slots       []*slot
	byName      map[string]int
	log         *logger.Logger
	stopTimeout time.Duration
}

// NewRegistry returns an empty registry logging through log, or through the
// global logger when log is nil.
func NewRegistry(log *logger.Logger) *Registry {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Registry{
		byName:      map[string]int{},
		log:         log.WithComponent("registry"),
		stopTimeout: DefaultStopTimeout,
	}
}

// Register appends c. Names must be unique.
func (r *Registry) Register(c Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := c.Name()
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("component %q registered twice", name)
	}
	r.byName[name] = len(r.slots)
	r.slots = append(r.slots, &slot{c: c})
	r.log.Debug("Component registered", map[string]interface{}{"component": name})
	return nil
}

// Get returns the component registered as name, or nil.
func (r *Registry) Get(name string) Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i, ok := r.byName[name]; ok {
		return r.slots[i].c
	}
	return nil
}

// All returns the components in registration order.
func (r *Registry) All() []Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Component, len(r.slots))
	for i, s := range r.slots {
		out[i] = s.c
	}
	return out
}

// StartAll starts every component in order. If one fails, the ones already
// running are stopped before the error is returned.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.Info("Starting components", map[string]interface{}{"count": len(r.slots)})
	for _, s := range r.slots {
		if err := s.c.Start(ctx); err != nil {
			r.log.Error("Component failed to start", map[string]interface{}{
				"component":       s.c.Name(),
				logger.FieldError: err.Error(),
			})
			_ = r.stopRunning(ctx)
			return fmt.Errorf("start %s: %w", s.c.Name(), err)
		}
		s.running = true
		r.log.Info("Component started", describe(s.c))
	}
	return nil
}

// StopAll stops the running components newest first. Every component gets
// its Stop call even when an earlier one fails; the failures are joined.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.Info("Stopping components")
	return r.stopRunning(ctx)
}

func (r *Registry) stopRunning(ctx context.Context) error {
	var errs []error
	for i := len(r.slots) - 1; i >= 0; i-- {
		s := r.slots[i]
		if !s.running {
			continue
		}
		s.running = false
		name := s.c.Name()
		stopCtx, cancel := context.WithTimeout(ctx, r.stopTimeout)
		err := s.c.Stop(stopCtx)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", name, err))
			r.log.Error("Component failed to stop", map[string]interface{}{
				"component":       name,
				logger.FieldError: err.Error(),
			})
			continue
		}
		r.log.Info("Component stopped", map[string]interface{}{"component": name})
	}
	return errors.Join(errs...)
}

// HealthAll collects every component's health in registration order.
func (r *Registry) HealthAll(ctx context.Context) []Health {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Health, len(r.slots))
	for i, s := range r.slots {
		out[i] = s.c.Health(ctx)
	}
	return out
}

// Overall is the worst status in results. An empty report is healthy.
func Overall(results []Health) HealthStatus {
	worst := StatusHealthy
	for _, h := range results {
		if h.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
		if h.Status == StatusDegraded {
			worst = StatusDegraded
		}
	}
	return worst
}

func describe(c Component) map[string]interface{} {
	f := map[string]interface{}{"component": c.Name()}
	if d, ok := c.(Describable); ok {
		desc := d.Describe()
		f["type"] = desc.Type
		f["details"] = desc.Details
		if desc.Name != "" {
			f["display_name"] = desc.Name
		}
		if desc.Port > 0 {
			f["port"] = desc.Port
		}
	}
	if rp, ok := c.(RouteProvider); ok {
		f["routes"] = len(rp.Routes())
	}
	return f
}
