package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/streamkit/delivery"
	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/server"
	"github.com/kbukum/streamkit/source"
	"github.com/kbukum/streamkit/sse"
)

const (
	eventsPath   = "/events"
	defaultCount = 5
	maxCount     = 1000
	countKey     = "count"
)

// PublishRequest is the body of POST /events/publish.
type PublishRequest struct {
	// Pattern selects client IDs with filepath.Match syntax. Empty means all.
	Pattern string          `json:"pattern"`
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Data    json.RawMessage `json:"data" binding:"required"`
}

func registerRoutes(srv *server.Server, hub *sse.Hub, publisher sse.Broadcaster, cfg *AppConfig) {
	d := demo{hub: hub, publisher: publisher, cfg: cfg.Demo, chunkSize: cfg.Delivery.ChunkBytes()}

	srv.StreamGET("/hello", d.hello)
	srv.StreamGET("/file", d.file)
	srv.StreamGET("/file/stream", d.fileStream)
	srv.StreamGET("/push", d.push, countParam)
	srv.StreamGET("/pull", d.pull, countParam)
	srv.StreamGET("/fail/start", d.failStart)
	srv.StreamGET("/fail/after-write", d.failAfterWrite)
	srv.StreamGET(eventsPath, d.events)
	srv.GinEngine().POST(eventsPath+"/publish", d.publish)
}

type demo struct {
	hub       *sse.Hub
	publisher sse.Broadcaster
	cfg       DemoConfig
	chunkSize int
}

func (d demo) hello(c *gin.Context) (*delivery.Response, error) {
	return delivery.Text(http.StatusOK, "Hello, world!\n"), nil
}

func (d demo) file(c *gin.Context) (*delivery.Response, error) {
	return delivery.NewResponse(http.StatusOK, source.File(d.cfg.File)).
		WithHeader("Content-Type", "application/octet-stream"), nil
}

func (d demo) fileStream(c *gin.Context) (*delivery.Response, error) {
	return delivery.NewResponse(http.StatusOK, source.FileStream(d.cfg.File, d.chunkSize)).
		WithHeader("Content-Type", "application/octet-stream"), nil
}

// push emits count lines from a goroutine the source starts itself.
func (d demo) push(c *gin.Context) (*delivery.Response, error) {
	count := c.GetInt(countKey)
	interval := d.cfg.ChunkInterval
	src := source.NewPush(func(ctx context.Context, e source.Emitter) error {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for i := 1; i <= count; i++ {
				if err := e.Enqueue([]byte(fmt.Sprintf("chunk %d\n", i))); err != nil {
					return
				}
				if i == count {
					break
				}
				select {
				case <-ticker.C:
				case <-ctx.Done():
					return
				}
			}
			e.Close()
		}()
		return nil
	})
	return delivery.Stream(src).WithHeader("Content-Type", "text/plain; charset=utf-8"), nil
}

// counter yields count lines, sleeping between them.
type counter struct {
	n, count int
	interval time.Duration
}

func (it *counter) Next(ctx context.Context) ([]byte, bool, error) {
	if it.n >= it.count {
		return nil, false, nil
	}
	if it.n > 0 && it.interval > 0 {
		t := time.NewTimer(it.interval)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
	it.n++
	return []byte(fmt.Sprintf("line %d\n", it.n)), true, nil
}

func (it *counter) Close() error { return nil }

func (d demo) pull(c *gin.Context) (*delivery.Response, error) {
	count := c.GetInt(countKey)
	src := source.FromIterator(&counter{count: count, interval: d.cfg.ChunkInterval})
	return delivery.Stream(src).WithHeader("Content-Type", "text/plain; charset=utf-8"), nil
}

// failStart fails before any byte is produced, so the client sees the
// substitute response.
func (d demo) failStart(c *gin.Context) (*delivery.Response, error) {
	src := source.NewPush(func(ctx context.Context, e source.Emitter) error {
		e.Error(fmt.Errorf("upstream unavailable"))
		return nil
	})
	return delivery.Stream(src), nil
}

// failAfterWrite fails after the headers and a first chunk have been sent,
// so the client sees a truncated body.
func (d demo) failAfterWrite(c *gin.Context) (*delivery.Response, error) {
	src := source.NewPush(func(ctx context.Context, e source.Emitter) error {
		if err := e.Enqueue([]byte("partial output\n")); err != nil {
			return err
		}
		e.Defer(func(ctx context.Context) error {
			return fmt.Errorf("upstream dropped mid-stream")
		})
		return nil
	})
	return delivery.Stream(src).WithHeader("Content-Type", "text/plain; charset=utf-8"), nil
}

func (d demo) events(c *gin.Context) (*delivery.Response, error) {
	id := c.Query("client_id")
	if id == "" {
		id = uuid.New().String()
	}
	var opts []sse.ClientOption
	if user := c.Query("user"); user != "" {
		opts = append(opts, sse.WithUserID(user))
	}
	return d.hub.Response(sse.NewClient(id, opts...), d.cfg.KeepAlive), nil
}

func (d demo) publish(c *gin.Context) {
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, errors.BadRequest("Invalid publish request: "+err.Error()))
		return
	}
	if req.Pattern == "" {
		req.Pattern = "*"
	}
	if req.Type == "" {
		req.Type = sse.EventTypeMessage
	}
	n := d.publisher.Publish(c.Request.Context(), req.Pattern, sse.Event{
		ID:   req.ID,
		Type: req.Type,
		Data: req.Data,
	})
	server.RespondAccepted(c, gin.H{"recipients": n})
}

// countParam validates the count query parameter before the stream starts,
// so a bad value is a 400 rather than a body failure.
func countParam(c *gin.Context) {
	n := defaultCount
	if raw := c.Query("count"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxCount {
			server.RespondWithError(c, errors.BadRequest(fmt.Sprintf("count must be between 1 and %d", maxCount)))
			return
		}
		n = v
	}
	c.Set(countKey, n)
}
