package delivery

import (
	"testing"
	"time"

	"github.com/kbukum/streamkit/errors"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.BufferBytes() != 64*1024 || cfg.LowWaterBytes() != 16*1024 || cfg.ChunkBytes() != 32*1024 {
		t.Errorf("sizes = %d %d %d", cfg.BufferBytes(), cfg.LowWaterBytes(), cfg.ChunkBytes())
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"bad size", Config{BufferSize: "huge", LowWaterMark: "1KB", ReaderChunkSize: "1KB"}},
		{"negative timeout", Config{BufferSize: "1KB", LowWaterMark: "1KB", ReaderChunkSize: "1KB", IdleTimeout: -time.Second}},
		{"low water above buffer", Config{BufferSize: "1KB", LowWaterMark: "2KB", ReaderChunkSize: "1KB"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if errors.CodeOf(err) != errors.ErrCodeInvalidConfig {
				t.Errorf("Validate() = %v, want INVALID_CONFIG", err)
			}
		})
	}
}
