package sse

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/streamkit/component"
	"github.com/kbukum/streamkit/delivery"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/wire/wiretest"
)

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func runHub(t *testing.T, opts ...HubOption) *Hub {
	t.Helper()
	hub := NewHub(append([]HubOption{WithLogger(logger.Nop())}, opts...)...)
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

// serve delivers client's stream on a recording connection in the background.
func serve(ctx context.Context, hub *Hub, client *Client, keepAlive time.Duration) (*wiretest.Conn, <-chan delivery.Result) {
	conn := wiretest.NewConn()
	ctrl := delivery.New(delivery.Config{}, delivery.WithLogger(logger.Nop()))
	done := make(chan delivery.Result, 1)
	go func() {
		done <- ctrl.Deliver(ctx, hub.Response(client, keepAlive), conn)
	}()
	return conn, done
}

func wait(t *testing.T, done <-chan delivery.Result) delivery.Result {
	t.Helper()
	select {
	case res := <-done:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("delivery did not finish")
		return delivery.Result{}
	}
}

type countingMetrics struct {
	connected, disconnected atomic.Int32
	mu                      sync.Mutex
	events                  map[string]int
}

func (m *countingMetrics) ClientConnected()    { m.connected.Add(1) }
func (m *countingMetrics) ClientDisconnected() { m.disconnected.Add(1) }
func (m *countingMetrics) EventPublished(eventType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.events == nil {
		m.events = make(map[string]int)
	}
	m.events[eventType]++
}

func TestEvent_Bytes(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"data only", Event{Data: []byte("hi")}, "data: hi\n\n"},
		{"typed", Event{Type: "tick", Data: []byte("1")}, "event: tick\ndata: 1\n\n"},
		{"id and retry", Event{ID: "7", Retry: 3 * time.Second, Data: []byte("x")}, "id: 7\nretry: 3000\ndata: x\n\n"},
		{"multi line", Event{Data: []byte("a\nb\r\nc\n")}, "data: a\ndata: b\ndata: c\n\n"},
		{"empty", Event{Type: "ping"}, "event: ping\ndata: \n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(tt.ev.Bytes()); got != tt.want {
				t.Errorf("Bytes() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClient_Send(t *testing.T) {
	client := NewClient("feed:abc", WithUserID("u1"), WithMetadata("plan", "pro"))
	if client.ID() != "feed:abc" || client.UserID() != "u1" || client.Metadata()["plan"] != "pro" {
		t.Fatalf("unexpected client %+v", client.Metadata())
	}

	for i := 0; i < clientBuffer; i++ {
		if !client.send(Event{Data: []byte("msg")}) {
			t.Fatalf("send %d refused", i)
		}
	}
	if client.send(Event{Data: []byte("overflow")}) {
		t.Error("expected send to fail when the client buffer is full")
	}
}

func TestHub_RegisterPublishUnregister(t *testing.T) {
	metrics := &countingMetrics{}
	hub := runHub(t, WithMetrics(metrics))
	ctx := context.Background()

	a := NewClient("feed:a")
	b := NewClient("feed:b")
	other := NewClient("chat:1")
	for _, c := range []*Client{a, b, other} {
		if err := hub.Register(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	eventually(t, "3 clients", func() bool { return hub.ClientCount() == 3 })

	if n := hub.Publish(ctx, "feed:*", Event{Data: []byte("x")}); n != 2 {
		t.Errorf("feed:* reached %d clients, want 2", n)
	}
	if n := hub.Publish(ctx, "chat:1", Event{Type: "chat", Data: []byte("y")}); n != 1 {
		t.Errorf("chat:1 reached %d clients, want 1", n)
	}
	if n := hub.Publish(ctx, "[", Event{Data: []byte("z")}); n != 0 {
		t.Errorf("malformed pattern reached %d clients", n)
	}
	if ev := <-a.Events(); string(ev.Data) != "x" {
		t.Errorf("client a got %q", ev.Data)
	}

	hub.Unregister(a)
	eventually(t, "unregister", func() bool { return hub.Client("feed:a") == nil })
	if _, open := <-a.Events(); open {
		t.Error("expected unregistered client channel to be closed")
	}
	if len(hub.ClientIDs()) != 2 {
		t.Errorf("ClientIDs() = %v", hub.ClientIDs())
	}

	if metrics.connected.Load() != 3 || metrics.disconnected.Load() != 1 {
		t.Errorf("connected=%d disconnected=%d", metrics.connected.Load(), metrics.disconnected.Load())
	}
	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if metrics.events[EventTypeMessage] != 2 || metrics.events["chat"] != 1 {
		t.Errorf("events = %v", metrics.events)
	}
}

func TestHub_BroadcastToPattern(t *testing.T) {
	hub := runHub(t)
	client := NewClient("feed:1")
	if err := hub.Register(context.Background(), client); err != nil {
		t.Fatal(err)
	}

	hub.BroadcastToPattern("feed:*", Event{Data: []byte("queued")})
	select {
	case ev := <-client.Events():
		if string(ev.Data) != "queued" {
			t.Errorf("got %q", ev.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast not delivered")
	}
}

func TestHub_ReRegisterReplacesClient(t *testing.T) {
	hub := runHub(t)
	ctx := context.Background()
	first := NewClient("feed:1")
	second := NewClient("feed:1")
	_ = hub.Register(ctx, first)
	_ = hub.Register(ctx, second)

	if _, open := <-first.Events(); open {
		t.Error("replaced client should be closed")
	}
	eventually(t, "replacement", func() bool { return hub.Client("feed:1") == second })

	hub.Unregister(first)
	hub.Publish(ctx, "feed:1", Event{Data: []byte("still here")})
	if ev := <-second.Events(); string(ev.Data) != "still here" {
		t.Errorf("got %q", ev.Data)
	}
}

func TestHub_StoppedRejectsRegister(t *testing.T) {
	hub := NewHub(WithLogger(logger.Nop()))
	hub.Stop()
	hub.Stop()
	if err := hub.Register(context.Background(), NewClient("x")); err != ErrHubStopped {
		t.Errorf("Register after Stop = %v, want ErrHubStopped", err)
	}
	hub.Unregister(NewClient("x"))
	hub.BroadcastToPattern("*", Event{})
}

func TestStream_DeliversEventsUntilUnregistered(t *testing.T) {
	hub := runHub(t)
	client := NewClient("feed:1", WithUserID("u1"))
	conn, done := serve(context.Background(), hub, client, 0)

	eventually(t, "registration", func() bool { return hub.Client("feed:1") != nil })
	hub.Publish(context.Background(), "feed:*", Event{Type: "update", Data: []byte(`{"n":1}`)})
	hub.Publish(context.Background(), "feed:*", Event{Data: []byte("two\nlines")})
	hub.Unregister(client)

	res := wait(t, done)
	if res.State != delivery.Completed {
		t.Fatalf("state = %s, err = %v", res.State, res.Err)
	}
	if ct := conn.SentHeader().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if conn.SentHeader().Get("Content-Length") != "" {
		t.Error("event stream must not advertise a length")
	}

	want := "event: connected\ndata: {\"client_id\":\"feed:1\",\"user_id\":\"u1\",\"metadata\":{\"user_id\":\"u1\"}}\n\n" +
		"event: update\ndata: {\"n\":1}\n\n" +
		"data: two\ndata: lines\n\n"
	if conn.Body() != want {
		t.Errorf("body = %q\nwant %q", conn.Body(), want)
	}
}

func TestStream_KeepAlive(t *testing.T) {
	hub := runHub(t)
	client := NewClient("feed:1")
	conn, done := serve(context.Background(), hub, client, 5*time.Millisecond)

	eventually(t, "keep-alive comment", func() bool {
		return strings.Contains(conn.Body(), ": keepalive ")
	})
	hub.Unregister(client)
	if res := wait(t, done); res.State != delivery.Completed {
		t.Errorf("state = %s", res.State)
	}
}

func TestStream_ClientGoneUnregisters(t *testing.T) {
	hub := runHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	_, done := serve(ctx, hub, NewClient("feed:1"), 0)

	eventually(t, "registration", func() bool { return hub.ClientCount() == 1 })
	cancel()

	res := wait(t, done)
	if res.State != delivery.Aborted {
		t.Errorf("state = %s, want aborted", res.State)
	}
	eventually(t, "unregister after disconnect", func() bool { return hub.ClientCount() == 0 })
}

func TestStream_HubStopCompletesStreams(t *testing.T) {
	hub := NewHub(WithLogger(logger.Nop()))
	go hub.Run()

	_, done1 := serve(context.Background(), hub, NewClient("feed:1"), 0)
	_, done2 := serve(context.Background(), hub, NewClient("feed:2"), 0)
	eventually(t, "registration", func() bool { return hub.ClientCount() == 2 })

	hub.Stop()
	for _, done := range []<-chan delivery.Result{done1, done2} {
		if res := wait(t, done); res.State != delivery.Completed {
			t.Errorf("state = %s", res.State)
		}
	}
}

func TestStream_StoppedHubFailsBeforeCommit(t *testing.T) {
	hub := NewHub(WithLogger(logger.Nop()))
	hub.Stop()

	conn, done := serve(context.Background(), hub, NewClient("feed:1"), 0)
	res := wait(t, done)
	if !res.Substituted || conn.Status() != 500 {
		t.Errorf("expected default 500 substitution, got state=%s status=%d", res.State, conn.Status())
	}
}

func TestComponent(t *testing.T) {
	c := NewComponent("/events", WithLogger(logger.Nop()))
	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Hub().Register(ctx, NewClient("a")); err != nil {
		t.Fatal(err)
	}
	for i := 0; c.Hub().ClientCount() != 1; i++ {
		if i == 200 {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	h := c.Health(ctx)
	if h.Status != component.StatusHealthy || h.Message != "1 clients connected" {
		t.Errorf("Health() = %+v", h)
	}
	if d := c.Describe(); d.Details != "Path: /events" {
		t.Errorf("Describe() = %+v", d)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if c.Hub().ClientCount() != 0 {
		t.Error("Stop should close all clients")
	}

	idle := NewComponent("/events", WithLogger(logger.Nop()))
	if err := idle.Stop(ctx); err != nil {
		t.Errorf("stopping a component that never started: %v", err)
	}
}
