package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/streamkit/component"
	"github.com/kbukum/streamkit/delivery"
	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/source"
)

func newTestServer(t *testing.T, cfg Config, opts ...delivery.Option) (*Server, *httptest.Server) {
	t.Helper()
	cfg.ApplyDefaults()
	ctrl := delivery.New(delivery.Config{}, append([]delivery.Option{delivery.WithLogger(logger.Nop())}, opts...)...)
	srv := New(cfg, ctrl, logger.Nop())
	srv.ApplyMiddleware()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func get(t *testing.T, client *http.Client, url string) (*http.Response, string, error) {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return resp, string(body), err
}

func errorCode(t *testing.T, body string) errors.ErrorCode {
	t.Helper()
	var env errors.ErrorResponse
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		t.Fatalf("body is not an error envelope: %q", body)
	}
	return env.Error.Code
}

func TestStream_Variants(t *testing.T) {
	srv, ts := newTestServer(t, Config{})
	srv.StreamGET("/hello", func(*gin.Context) (*delivery.Response, error) {
		return delivery.Text(http.StatusOK, "Hello, World!"), nil
	})
	srv.StreamGET("/push", func(*gin.Context) (*delivery.Response, error) {
		return delivery.Stream(source.Chunks([]byte("Hello, "), []byte("World!"))), nil
	})
	srv.StreamGET("/pull", func(*gin.Context) (*delivery.Response, error) {
		return delivery.Stream(source.Reader(strings.NewReader("Hello, World!"), 3)), nil
	})

	tests := []struct {
		path    string
		chunked bool
	}{
		{"/hello", false},
		{"/push", true},
		{"/pull", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body, err := get(t, ts.Client(), ts.URL+tt.path)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != http.StatusOK || body != "Hello, World!" {
				t.Errorf("got %d %q", resp.StatusCode, body)
			}
			if chunked := resp.ContentLength == -1; chunked != tt.chunked {
				t.Errorf("ContentLength = %d, chunked want %v", resp.ContentLength, tt.chunked)
			}
			if resp.Header.Get("X-Request-Id") == "" {
				t.Error("expected X-Request-Id on streamed response")
			}
		})
	}
}

func TestStream_FailureBeforeStart(t *testing.T) {
	failing := func(*gin.Context) (*delivery.Response, error) {
		return delivery.Stream(source.NewPush(func(context.Context, source.Emitter) error {
			return fmt.Errorf("such fail")
		})).WithHeader("X-Custom", "dropped"), nil
	}

	t.Run("default response", func(t *testing.T) {
		srv, ts := newTestServer(t, Config{})
		srv.StreamGET("/fail/start", failing)

		resp, body, err := get(t, ts.Client(), ts.URL+"/fail/start")
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("status = %d", resp.StatusCode)
		}
		if resp.Header.Get("X-Custom") != "" {
			t.Error("headers of the failed response must not leak")
		}
		if errorCode(t, body) != errors.ErrCodeInternal {
			t.Errorf("body = %s", body)
		}
	})

	t.Run("error handler", func(t *testing.T) {
		var seen error
		srv, ts := newTestServer(t, Config{}, delivery.WithErrorHandler(func(_ context.Context, failure error) (*delivery.Response, error) {
			seen = failure
			return delivery.Text(http.StatusBadGateway, "substituted"), nil
		}))
		srv.StreamGET("/fail/start", failing)

		resp, body, err := get(t, ts.Client(), ts.URL+"/fail/start")
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusBadGateway || body != "substituted" {
			t.Errorf("got %d %q", resp.StatusCode, body)
		}
		if !errors.IsProducerFailure(seen) || !strings.Contains(seen.Error(), "such fail") {
			t.Errorf("handler saw %v", seen)
		}
	})
}

func TestStream_FailureAfterWriteTruncates(t *testing.T) {
	srv, ts := newTestServer(t, Config{})
	srv.StreamGET("/fail/after-write", func(*gin.Context) (*delivery.Response, error) {
		return delivery.Stream(source.NewPush(func(_ context.Context, e source.Emitter) error {
			if err := e.Enqueue([]byte("such fail")); err != nil {
				return err
			}
			e.Defer(func(context.Context) error {
				return fmt.Errorf("boom")
			})
			return nil
		})), nil
	})

	resp, body, err := get(t, ts.Client(), ts.URL+"/fail/after-write")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if body != "such fail" {
		t.Errorf("body = %q", body)
	}
	if !stderrors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected truncated body, got err = %v", err)
	}
}

func TestStream_HandlerFailures(t *testing.T) {
	srv, ts := newTestServer(t, Config{})
	srv.StreamGET("/error", func(*gin.Context) (*delivery.Response, error) {
		return nil, fmt.Errorf("no such feed")
	})
	srv.StreamGET("/panic", func(*gin.Context) (*delivery.Response, error) {
		panic("handler exploded")
	})

	for _, path := range []string{"/error", "/panic"} {
		t.Run(path, func(t *testing.T) {
			resp, body, err := get(t, ts.Client(), ts.URL+path)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != http.StatusInternalServerError || errorCode(t, body) != errors.ErrCodeInternal {
				t.Errorf("got %d %s", resp.StatusCode, body)
			}
		})
	}
}

func TestStream_SequentialRequests(t *testing.T) {
	srv, ts := newTestServer(t, Config{})
	srv.StreamGET("/pull", func(*gin.Context) (*delivery.Response, error) {
		return delivery.Stream(source.Reader(strings.NewReader("Hello, World!"), 4)), nil
	})

	client := ts.Client()
	for i := 0; i < 200; i++ {
		_, body, err := get(t, client, ts.URL+"/pull")
		if err != nil || body != "Hello, World!" {
			t.Fatalf("request %d: %q %v", i, body, err)
		}
	}
}

func TestStream_LimitRejectsWhenFull(t *testing.T) {
	srv, ts := newTestServer(t, Config{MaxStreams: 1})
	release := make(chan struct{})
	srv.StreamGET("/hold", func(*gin.Context) (*delivery.Response, error) {
		return delivery.Stream(source.NewPush(func(_ context.Context, e source.Emitter) error {
			if err := e.Enqueue([]byte("start")); err != nil {
				return err
			}
			go func() {
				<-release
				e.Close()
			}()
			return nil
		})), nil
	})

	held, err := ts.Client().Get(ts.URL + "/hold")
	if err != nil {
		t.Fatal(err)
	}
	defer held.Body.Close()

	resp, body, _ := get(t, ts.Client(), ts.URL+"/hold")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" || errorCode(t, body) != errors.ErrCodeServiceUnavailable {
		t.Errorf("unexpected rejection %v %s", resp.Header, body)
	}

	close(release)
	if b, err := io.ReadAll(held.Body); err != nil || string(b) != "start" {
		t.Errorf("held stream = %q %v", b, err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for srv.Streams().InUse() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if resp, body, err := get(t, ts.Client(), ts.URL+"/hold"); err != nil || resp.StatusCode != http.StatusOK || body != "start" {
		t.Errorf("slot not released: %d %q %v", resp.StatusCode, body, err)
	}
}

func TestRecovery_PlainRoute(t *testing.T) {
	srv, ts := newTestServer(t, Config{})
	srv.GinEngine().GET("/boom", func(*gin.Context) { panic("boom") })

	resp, body, err := get(t, ts.Client(), ts.URL+"/boom")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusInternalServerError || errorCode(t, body) != errors.ErrCodeInternal {
		t.Errorf("got %d %s", resp.StatusCode, body)
	}
}

func TestDefaultEndpoints(t *testing.T) {
	srv, ts := newTestServer(t, Config{})
	checker := func(context.Context) []component.Health {
		return []component.Health{{Name: "hub", Status: component.StatusHealthy}}
	}
	srv.RegisterDefaultEndpoints("streamkit", checker, nil)

	for _, path := range []string{"/health", "/live", "/ready", "/version", "/metrics"} {
		resp, _, err := get(t, ts.Client(), ts.URL+path)
		if err != nil || resp.StatusCode != http.StatusOK {
			t.Errorf("%s: %d %v", path, resp.StatusCode, err)
		}
	}
}

func TestServer_StartStop(t *testing.T) {
	cfg := Config{Host: "127.0.0.1", MaxConnections: 4, ShutdownTimeout: time.Second}
	cfg.ApplyDefaults()
	cfg.Port = 0
	srv := New(cfg, nil, logger.Nop())
	srv.StreamGET("/hello", func(*gin.Context) (*delivery.Response, error) {
		return delivery.Text(http.StatusOK, "hi"), nil
	})
	sc := NewComponent(srv)

	if h := sc.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Errorf("health before start = %+v", h)
	}
	if err := sc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h := sc.Health(context.Background()); h.Status != component.StatusHealthy {
		t.Errorf("health after start = %+v", h)
	}

	resp, body, err := get(t, http.DefaultClient, "http://"+srv.Addr()+"/hello")
	if err != nil || resp.StatusCode != http.StatusOK || body != "hi" {
		t.Errorf("got %d %q %v", resp.StatusCode, body, err)
	}

	var stopped atomic.Bool
	srv.OnShutdown(func() { stopped.Store(true) })
	if err := sc.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	if !stopped.Load() {
		t.Error("shutdown hook not called")
	}
	if !strings.Contains(sc.Describe().Details, "max_streams=256") {
		t.Errorf("Describe() = %+v", sc.Describe())
	}
}

func TestServerComponent_Routes(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	srv.RegisterDefaultEndpoints("svc", nil, nil)
	srv.StreamGET("/events", func(*gin.Context) (*delivery.Response, error) { return nil, nil })
	srv.GinEngine().POST("/events/publish", func(*gin.Context) {})

	routes := NewComponent(srv).Routes()
	if len(routes) != 7 {
		t.Fatalf("routes = %+v", routes)
	}
	if routes[0].Path != "/events" || routes[1].Path != "/events/publish" {
		t.Errorf("application routes should come first: %+v", routes[:2])
	}
	for _, r := range routes[2:] {
		if !systemPaths[r.Path] {
			t.Errorf("unexpected route order: %+v", routes)
		}
	}
}

func TestHandlerName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"github.com/acme/svc/api.(*Feed).Events-fm", "Feed.Events"},
		{"github.com/acme/svc/api.Publish", "Publish"},
		{"github.com/kbukum/streamkit/server.(*Server).serveStream.func1", "Server.serveStream"},
	}
	for _, tt := range tests {
		if got := handlerName(tt.in); got != tt.want {
			t.Errorf("handlerName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.WriteTimeout != 0 {
		t.Error("write timeout should stay unlimited for streams")
	}

	bad := cfg
	bad.Port = 70000
	bad.MaxBodySize = "lots"
	err := bad.Validate()
	if errors.CodeOf(err) != errors.ErrCodeInvalidConfig {
		t.Fatalf("Validate() = %v", err)
	}
}
