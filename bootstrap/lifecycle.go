package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/streamkit/logger"
)

// DefaultGracefulTimeout bounds the whole shutdown sequence.
const DefaultGracefulTimeout = 15 * time.Second

// Option tunes NewApp.
type Option func(*settings)

type settings struct {
	log      *logger.Logger
	graceful time.Duration
}

// WithLogger makes the App log through l instead of a logger built from
// the config's logging section.
func WithLogger(l *logger.Logger) Option {
	return func(s *settings) { s.log = l }
}

// WithGracefulTimeout overrides DefaultGracefulTimeout. Non-positive values
// are ignored.
func WithGracefulTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.graceful = d
		}
	}
}

// Hook is a callback tied to one lifecycle phase.
type Hook func(ctx context.Context) error

type phase string

const (
	phaseStart phase = "onStart"
	phaseReady phase = "onReady"
	phaseStop  phase = "onStop"
)

// OnStart adds hooks run once every component is up.
func (a *App[C]) OnStart(hooks ...Hook) { a.hooks[phaseStart] = append(a.hooks[phaseStart], hooks...) }

// OnReady adds hooks run after the ready check.
func (a *App[C]) OnReady(hooks ...Hook) { a.hooks[phaseReady] = append(a.hooks[phaseReady], hooks...) }

// OnStop adds hooks run before components stop. Long-lived streams should be
// completed here so the server drain does not wait on them.
func (a *App[C]) OnStop(hooks ...Hook) { a.hooks[phaseStop] = append(a.hooks[phaseStop], hooks...) }

// runHooks stops at the first failing hook.
func runHooks(ctx context.Context, p phase, hooks []Hook) error {
	for i, h := range hooks {
		if err := h(ctx); err != nil {
			return fmt.Errorf("%s hook %d failed: %w", p, i, err)
		}
	}
	return nil
}
