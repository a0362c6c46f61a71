package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func captured(level zerolog.Level) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return FromZerolog(zerolog.New(buf).Level(level), "test"), buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &m); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	return m
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestNewInvalidLevel(t *testing.T) {
	cfg := &Config{Level: "invalid-level", Format: "json", Output: "discard"}
	l := New(cfg, "test")
	if l.GetLogger().GetLevel() != zerolog.InfoLevel {
		t.Errorf("expected fallback to info, got %s", l.GetLogger().GetLevel())
	}
}

func TestWithComponent(t *testing.T) {
	l, buf := captured(zerolog.DebugLevel)
	l.WithComponent("delivery").Info("hello")

	line := lastLine(t, buf)
	if line[FieldComponent] != "delivery" {
		t.Errorf("expected component=delivery, got %v", line[FieldComponent])
	}
	if line["message"] != "hello" {
		t.Errorf("expected message 'hello', got %v", line["message"])
	}
}

func TestFieldsArePassedThrough(t *testing.T) {
	l, buf := captured(zerolog.DebugLevel)
	l.Warn("substituted", Fields(FieldBytes, 0, FieldSubstituted, true, "dangling"))

	line := lastLine(t, buf)
	if line[FieldSubstituted] != true {
		t.Errorf("expected substituted=true, got %v", line[FieldSubstituted])
	}
	if _, ok := line["dangling"]; ok {
		t.Error("odd trailing key should be ignored")
	}
}

func TestLevelFiltering(t *testing.T) {
	l, buf := captured(zerolog.WarnLevel)
	l.Debug("hidden")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected nothing below warn, got %q", buf.String())
	}
	l.Error("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("expected error to be logged")
	}
}

func TestWithContext_RequestID(t *testing.T) {
	l, buf := captured(zerolog.DebugLevel)
	ctx := ContextWithRequestID(context.Background(), "req-42")
	l.WithContext(ctx).Info("with id")

	line := lastLine(t, buf)
	if line[FieldRequestID] != "req-42" {
		t.Errorf("expected request_id=req-42, got %v", line[FieldRequestID])
	}

	if got := l.WithContext(context.Background()); got != l {
		t.Error("expected the same logger when no request id is present")
	}
}

func TestWithError(t *testing.T) {
	l, buf := captured(zerolog.DebugLevel)
	l.WithError(errors.New("broken pipe")).Error("abort")
	line := lastLine(t, buf)
	if line["error"] != "broken pipe" {
		t.Errorf("expected error field, got %v", line["error"])
	}
}

func TestFieldHelpers(t *testing.T) {
	m := MergeWithDuration(nil, 1500*time.Millisecond)
	if m[FieldDuration] != int64(1500) {
		t.Errorf("expected 1500ms, got %v", m[FieldDuration])
	}

	m = MergeWithError(m, errors.New("x"))
	if m[FieldError] != "x" {
		t.Errorf("expected error merged, got %v", m[FieldError])
	}
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Level != "info" || cfg.Format != "console" || cfg.Output != "stdout" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	for _, bad := range []Config{
		{Level: "loud", Format: FormatJSON, Output: "stdout"},
		{Level: "info", Format: "xml", Output: "stdout"},
		{Level: "info", Format: FormatJSON, Output: "syslog"},
	} {
		if err := bad.Validate(); err == nil {
			t.Errorf("expected %+v to fail validation", bad)
		}
	}
}

func TestGlobalLogger(t *testing.T) {
	prev := GetGlobalLogger()
	defer SetGlobalLogger(prev)

	l, buf := captured(zerolog.DebugLevel)
	SetGlobalLogger(l)
	Info("global")
	if !strings.Contains(buf.String(), "global") {
		t.Error("expected package-level Info to use the global logger")
	}
}

func TestNop(t *testing.T) {
	Nop().Error("nothing happens")
}
