package sse

import (
	"bytes"
	"strconv"
	"time"
)

// Event types written by the hub itself. Applications define their own.
const (
	// EventTypeConnected is sent once when a client's stream starts.
	EventTypeConnected = "connected"

	// EventTypeKeepAlive names the keep-alive comment line.
	EventTypeKeepAlive = "keepalive"

	// EventTypeMessage is a generic message event.
	EventTypeMessage = "message"

	// EventTypeError is sent when an error occurs.
	EventTypeError = "error"
)

// Event is one Server-Sent Event.
type Event struct {
	// ID sets the last event ID on the client when non-empty.
	ID string
	// Type is the event name. Empty means the default "message" type.
	Type string
	// Data is split on newlines into data lines.
	Data []byte
	// Retry tells the client how long to wait before reconnecting.
	Retry time.Duration
}

// Bytes frames the event in the text/event-stream format.
func (e Event) Bytes() []byte {
	var b bytes.Buffer
	if e.ID != "" {
		b.WriteString("id: ")
		b.WriteString(e.ID)
		b.WriteByte('\n')
	}
	if e.Type != "" {
		b.WriteString("event: ")
		b.WriteString(e.Type)
		b.WriteByte('\n')
	}
	if e.Retry > 0 {
		b.WriteString("retry: ")
		b.WriteString(strconv.FormatInt(e.Retry.Milliseconds(), 10))
		b.WriteByte('\n')
	}
	data := bytes.TrimSuffix(e.Data, []byte("\n"))
	for _, line := range bytes.Split(data, []byte("\n")) {
		b.WriteString("data: ")
		b.Write(bytes.TrimSuffix(line, []byte("\r")))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.Bytes()
}

// keepAliveComment is a comment line that keeps idle proxies from closing the stream.
func keepAliveComment(now time.Time) []byte {
	return []byte(": " + EventTypeKeepAlive + " " + strconv.FormatInt(now.Unix(), 10) + "\n\n")
}
