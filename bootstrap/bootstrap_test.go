package bootstrap

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/streamkit/component"
	"github.com/kbukum/streamkit/config"
	"github.com/kbukum/streamkit/logger"
)

type testConfig struct {
	config.ServiceConfig
}

type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	health   component.Health
	log      *[]string
	mu       sync.Mutex
	started  bool
	stopped  bool
}

func (m *mockComponent) Name() string { return m.name }

func (m *mockComponent) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	if m.log != nil {
		*m.log = append(*m.log, "start:"+m.name)
	}
	return m.startErr
}

func (m *mockComponent) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	if m.log != nil {
		*m.log = append(*m.log, "stop:"+m.name)
	}
	return m.stopErr
}

func (m *mockComponent) Health(ctx context.Context) component.Health {
	if m.health.Name == "" {
		return component.Health{Name: m.name, Status: component.StatusHealthy}
	}
	return m.health
}

func newTestConfig(name, version string) *testConfig {
	return &testConfig{
		ServiceConfig: config.ServiceConfig{
			Name:        name,
			Version:     version,
			Environment: "development",
		},
	}
}

func newTestApp(t *testing.T) *App[*testConfig] {
	t.Helper()
	app, err := NewApp(newTestConfig("test-svc", "1.0.0"), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	return app
}

func canceledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestNewApp(t *testing.T) {
	app := newTestApp(t)
	if app.Name != "test-svc" || app.Version != "1.0.0" {
		t.Errorf("unexpected identity %q %q", app.Name, app.Version)
	}
	if app.Components == nil || app.Logger == nil {
		t.Fatal("expected registry and logger")
	}
	if app.Cfg.Logging.Level != "debug" {
		t.Errorf("expected defaults applied, got level %q", app.Cfg.Logging.Level)
	}
	if app.gracefulTimeout != DefaultGracefulTimeout {
		t.Errorf("expected default timeout, got %v", app.gracefulTimeout)
	}
}

func TestNewAppValidation(t *testing.T) {
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Environment: "development"}}
	if _, err := NewApp(cfg, WithLogger(logger.Nop())); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestWithGracefulTimeout(t *testing.T) {
	app, err := NewApp(newTestConfig("svc", "1"), WithLogger(logger.Nop()), WithGracefulTimeout(30*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if app.gracefulTimeout != 30*time.Second {
		t.Errorf("expected 30s, got %v", app.gracefulTimeout)
	}

	app, _ = NewApp(newTestConfig("svc", "1"), WithLogger(logger.Nop()), WithGracefulTimeout(0))
	if app.gracefulTimeout != DefaultGracefulTimeout {
		t.Errorf("zero timeout should keep the default, got %v", app.gracefulTimeout)
	}
}

func TestRegisterComponentDuplicate(t *testing.T) {
	app := newTestApp(t)
	if err := app.RegisterComponent(&mockComponent{name: "hub"}); err != nil {
		t.Fatal(err)
	}
	if err := app.RegisterComponent(&mockComponent{name: "hub"}); err == nil {
		t.Error("expected error for duplicate registration")
	}
}

func TestRunLifecycleOrder(t *testing.T) {
	app := newTestApp(t)
	var events []string
	app.RegisterComponent(&mockComponent{name: "telemetry", log: &events})
	app.RegisterComponent(&mockComponent{name: "server", log: &events})
	app.OnStart(func(ctx context.Context) error { events = append(events, "onStart"); return nil })
	app.OnReady(func(ctx context.Context) error { events = append(events, "onReady"); return nil })
	app.OnStop(func(ctx context.Context) error { events = append(events, "onStop"); return nil })

	if err := app.Run(canceledContext()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{
		"start:telemetry", "start:server", "onStart", "onReady",
		"onStop", "stop:server", "stop:telemetry",
	}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestRunComponentStartError(t *testing.T) {
	app := newTestApp(t)
	first := &mockComponent{name: "first"}
	app.RegisterComponent(first)
	app.RegisterComponent(&mockComponent{name: "second", startErr: errors.New("bind failed")})

	err := app.Run(canceledContext())
	if err == nil || !strings.Contains(err.Error(), "bind failed") {
		t.Fatalf("expected start error, got %v", err)
	}
	if !first.stopped {
		t.Error("expected already started component to be stopped")
	}
}

func TestRunHookErrors(t *testing.T) {
	tests := []struct {
		name    string
		install func(app *App[*testConfig], hook Hook)
		want    string
	}{
		{"start hook", func(app *App[*testConfig], h Hook) { app.OnStart(h) }, "onStart hook 0 failed: boom"},
		{"ready hook", func(app *App[*testConfig], h Hook) { app.OnReady(h) }, "onReady hook 0 failed: boom"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t)
			c := &mockComponent{name: "server"}
			app.RegisterComponent(c)
			tc.install(app, func(ctx context.Context) error { return errors.New("boom") })

			err := app.Run(canceledContext())
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q, got %v", tc.want, err)
			}
			if !c.stopped {
				t.Error("expected component stopped after hook failure")
			}
		})
	}
}

func TestHookErrorStopsExecution(t *testing.T) {
	calls := 0
	err := runHooks(context.Background(), phaseStop, []Hook{
		func(ctx context.Context) error { calls++; return errors.New("first") },
		func(ctx context.Context) error { calls++; return nil },
	})
	if err == nil || !strings.Contains(err.Error(), "onStop hook 0 failed: first") {
		t.Errorf("unexpected error %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestShutdownErrors(t *testing.T) {
	app := newTestApp(t)
	c := &mockComponent{name: "server", stopErr: errors.New("drain timeout")}
	app.RegisterComponent(c)
	app.OnStop(func(ctx context.Context) error { return errors.New("hub stop") })

	if err := app.startup(context.Background()); err != nil {
		t.Fatal(err)
	}
	err := app.Shutdown()
	if err == nil || !strings.Contains(err.Error(), "hub stop") {
		t.Fatalf("expected first error from stop hook, got %v", err)
	}
	if !c.stopped {
		t.Error("components must stop even when a stop hook fails")
	}
}

func TestReadyCheck(t *testing.T) {
	tests := []struct {
		name    string
		health  component.Health
		wantErr string
	}{
		{"healthy", component.Health{Name: "hub", Status: component.StatusHealthy}, ""},
		{"unhealthy", component.Health{Name: "hub", Status: component.StatusUnhealthy, Message: "stopped"}, "hub=unhealthy(stopped)"},
		{"degraded", component.Health{Name: "server", Status: component.StatusDegraded}, "server=degraded"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t)
			app.RegisterComponent(&mockComponent{name: tc.health.Name, health: tc.health})
			err := app.ReadyCheck(context.Background())
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected %q, got %v", tc.wantErr, err)
			}
		})
	}

	if err := newTestApp(t).ReadyCheck(context.Background()); err != nil {
		t.Errorf("empty registry should be ready, got %v", err)
	}
}

func TestWaitForSignalContextCancellation(t *testing.T) {
	app := newTestApp(t)
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		app.WaitForSignal(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForSignal did not return after cancel")
	}
}
