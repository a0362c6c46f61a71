package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/streamkit/config"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/observability"
	"github.com/kbukum/streamkit/redis"
	"github.com/kbukum/streamkit/storage"
)

func newTestService(t *testing.T, substitute bool, mutate ...func(*AppConfig)) *httptest.Server {
	t.Helper()
	cfg := &AppConfig{
		ServiceConfig: config.ServiceConfig{Name: "streamserve-test"},
		Observability: observability.Config{Prometheus: true, Namespace: "test"},
		Demo:          DemoConfig{ChunkInterval: time.Millisecond, SubstituteErrors: substitute},
	}
	for _, m := range mutate {
		m(cfg)
	}
	app, srv, err := newApp(cfg, logger.Nop())
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	// Everything but the server component, which would bind the configured port.
	for _, name := range []string{"sse", "redis", "sse-relay", "storage"} {
		c := app.Components.Get(name)
		if c == nil {
			continue
		}
		if err := c.Start(context.Background()); err != nil {
			t.Fatalf("start %s: %v", name, err)
		}
		t.Cleanup(func() { _ = c.Stop(context.Background()) })
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = app.Shutdown()
	})
	return ts
}

func fetch(t *testing.T, url string) (*http.Response, string, error) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return resp, string(body), err
}

func TestRoutes(t *testing.T) {
	ts := newTestService(t, false)
	file, err := os.ReadFile("config.yml")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path          string
		wantStatus    int
		wantBody      string
		wantContains  string
		wantChunked   bool
		wantReadError bool
	}{
		{path: "/hello", wantStatus: http.StatusOK, wantBody: "Hello, world!\n"},
		{path: "/file", wantStatus: http.StatusOK, wantBody: string(file)},
		{path: "/file/stream", wantStatus: http.StatusOK, wantBody: string(file), wantChunked: true},
		{path: "/push?count=3", wantStatus: http.StatusOK, wantBody: "chunk 1\nchunk 2\nchunk 3\n", wantChunked: true},
		{path: "/pull?count=2", wantStatus: http.StatusOK, wantBody: "line 1\nline 2\n", wantChunked: true},
		{path: "/push?count=0", wantStatus: http.StatusBadRequest, wantContains: "BAD_REQUEST"},
		{path: "/pull?count=abc", wantStatus: http.StatusBadRequest, wantContains: "BAD_REQUEST"},
		{path: "/fail/start", wantStatus: http.StatusInternalServerError, wantContains: "INTERNAL_ERROR"},
		{path: "/fail/after-write", wantStatus: http.StatusOK, wantBody: "partial output\n", wantReadError: true},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			resp, body, err := fetch(t, ts.URL+tc.path)
			if tc.wantReadError {
				if err == nil {
					t.Error("expected truncated body")
				}
			} else if err != nil {
				t.Fatalf("read body: %v", err)
			}
			if resp.StatusCode != tc.wantStatus {
				t.Errorf("status = %d, want %d (body %q)", resp.StatusCode, tc.wantStatus, body)
			}
			if tc.wantBody != "" && body != tc.wantBody {
				t.Errorf("body = %q, want %q", body, tc.wantBody)
			}
			if tc.wantContains != "" && !strings.Contains(body, tc.wantContains) {
				t.Errorf("body %q does not contain %q", body, tc.wantContains)
			}
			if tc.wantChunked && resp.ContentLength != -1 {
				t.Errorf("expected chunked framing, got Content-Length %d", resp.ContentLength)
			}
		})
	}
}

func TestObjects(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "docs"), 0o755); err != nil {
		t.Fatal(err)
	}
	content := strings.Repeat("object body ", 100)
	if err := os.WriteFile(filepath.Join(dir, "docs", "a.txt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	ts := newTestService(t, false, func(cfg *AppConfig) {
		cfg.Storage = storage.Config{Enabled: true, Provider: storage.ProviderLocal, BasePath: dir}
	})

	resp, body, err := fetch(t, ts.URL+"/objects/docs/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || body != content {
		t.Errorf("got %d, %d bytes", resp.StatusCode, len(body))
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") || resp.Header.Get("Last-Modified") == "" {
		t.Errorf("headers = %v", resp.Header)
	}

	resp, body, _ = fetch(t, ts.URL+"/objects/docs/missing.txt")
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(body, "NOT_FOUND") {
		t.Errorf("missing object: %d %q", resp.StatusCode, body)
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"b.json", "docs/a.txt"}},
		{"?prefix=docs/", []string{"docs/a.txt"}},
		{"?prefix=nothing", []string{}},
	}
	for _, tt := range tests {
		t.Run("list"+tt.query, func(t *testing.T) {
			resp, body, err := fetch(t, ts.URL+"/objects"+tt.query)
			if err != nil || resp.StatusCode != http.StatusOK {
				t.Fatalf("status %d, err %v", resp.StatusCode, err)
			}
			var out struct {
				Data []storage.Object `json:"data"`
			}
			if err := json.Unmarshal([]byte(body), &out); err != nil {
				t.Fatalf("decode %q: %v", body, err)
			}
			if len(out.Data) != len(tt.want) {
				t.Fatalf("got %+v, want %v", out.Data, tt.want)
			}
			for i, o := range out.Data {
				if o.Path != tt.want[i] {
					t.Errorf("data[%d] = %q, want %q", i, o.Path, tt.want[i])
				}
			}
		})
	}
}

func TestObjectsDisabled(t *testing.T) {
	ts := newTestService(t, false)
	resp, _, _ := fetch(t, ts.URL+"/objects/anything")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestFailStartSubstitute(t *testing.T) {
	ts := newTestService(t, true)
	resp, body, err := fetch(t, ts.URL+"/fail/start")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable || body != "stream unavailable, try again\n" {
		t.Errorf("got %d %q", resp.StatusCode, body)
	}
	if resp.Header.Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q", resp.Header.Get("Retry-After"))
	}
}

func TestMetricsAndHealth(t *testing.T) {
	ts := newTestService(t, false)
	if _, _, err := fetch(t, ts.URL+"/hello"); err != nil {
		t.Fatal(err)
	}

	// The observer runs after the body reaches the client; poll briefly.
	var body string
	for deadline := time.Now().Add(2 * time.Second); time.Now().Before(deadline); time.Sleep(10 * time.Millisecond) {
		var err error
		if _, body, err = fetch(t, ts.URL+"/metrics"); err != nil {
			t.Fatal(err)
		}
		if strings.Contains(body, "test_delivery_bytes_total 14") {
			break
		}
	}
	if !strings.Contains(body, "test_delivery_bytes_total 14") {
		t.Errorf("metrics missing delivered bytes:\n%s", body)
	}

	resp, body, err := fetch(t, ts.URL+"/live")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Errorf("/live: %d %q %v", resp.StatusCode, body, err)
	}
	resp, body, err = fetch(t, ts.URL+"/version")
	if err != nil || resp.StatusCode != http.StatusOK || !strings.Contains(body, `"service":"streamserve-test"`) {
		t.Errorf("/version: %d %q %v", resp.StatusCode, body, err)
	}
}

func readUntil(t *testing.T, r *bufio.Reader, line string) {
	t.Helper()
	for {
		got, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("stream ended before %q: %v", line, err)
		}
		if strings.TrimRight(got, "\n") == line {
			return
		}
	}
}

func TestEventsPublish(t *testing.T) {
	t.Run("local hub", func(t *testing.T) {
		testEventsPublish(t, newTestService(t, false))
	})
	t.Run("redis relay", func(t *testing.T) {
		mini := miniredis.RunT(t)
		testEventsPublish(t, newTestService(t, false, func(cfg *AppConfig) {
			cfg.Redis = redis.Config{Enabled: true, Addr: mini.Addr()}
		}))
	})
}

// testEventsPublish connects one SSE client and publishes to it. Through
// the relay the recipient count is the number of subscribed instances,
// which is also 1 here.
func testEventsPublish(t *testing.T, ts *httptest.Server) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events?client_id=abc&user=u1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	readUntil(t, r, "event: connected")

	pub, err := http.Post(ts.URL+"/events/publish", "application/json",
		strings.NewReader(`{"pattern":"abc","type":"greeting","data":{"x":1}}`))
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		Data struct {
			Recipients int `json:"recipients"`
		} `json:"data"`
	}
	if err := json.NewDecoder(pub.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	pub.Body.Close()
	if pub.StatusCode != http.StatusAccepted || out.Data.Recipients != 1 {
		t.Errorf("publish: %d recipients=%d", pub.StatusCode, out.Data.Recipients)
	}

	readUntil(t, r, "event: greeting")
	readUntil(t, r, `data: {"x":1}`)

	bad, err := http.Post(ts.URL+"/events/publish", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("empty publish status = %d", bad.StatusCode)
	}
}

func TestConfigDefaultsAndValidation(t *testing.T) {
	cfg := &AppConfig{}
	cfg.ApplyDefaults()
	if cfg.Name != serviceName || cfg.Server.Port != 8080 || cfg.Delivery.BufferSize != "64KB" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Demo.File != "config.yml" || cfg.Demo.KeepAlive != 15*time.Second {
		t.Errorf("demo defaults = %+v", cfg.Demo)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	cfg.Storage.Enabled = true
	cfg.Storage.Provider = storage.ProviderS3
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "config.storage") {
		t.Errorf("expected storage validation error, got %v", err)
	}
	cfg.Storage.Enabled = false

	cfg.Delivery.LowWaterMark = "1MB"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "config.delivery") {
		t.Errorf("expected delivery validation error, got %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	var cfg AppConfig
	if err := config.Load(serviceName, &cfg, config.WithConfigFile("config.yml")); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.MaxStreams != 256 || cfg.Observability.Namespace != "streamserve" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Demo.ChunkInterval != 100*time.Millisecond {
		t.Errorf("chunk_interval = %v", cfg.Demo.ChunkInterval)
	}
}
