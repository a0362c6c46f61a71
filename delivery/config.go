package delivery

import (
	"time"

	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/util"
	"github.com/kbukum/streamkit/validation"
)

const (
	DefaultBufferSize      = "64KB"
	DefaultLowWaterMark    = "16KB"
	DefaultReaderChunkSize = "32KB"
)

// Config holds delivery tuning.
type Config struct {
	// BufferSize bounds the bytes queued between producer and wire.
	BufferSize string `yaml:"buffer_size" mapstructure:"buffer_size" validate:"required,size"`
	// LowWaterMark is the queued size below which a pull source is asked for more.
	LowWaterMark string `yaml:"low_water_mark" mapstructure:"low_water_mark" validate:"required,size"`
	// IdleTimeout fails a delivery whose producer stays silent this long. Zero disables it.
	IdleTimeout time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" validate:"gte=0"`
	// ReaderChunkSize is the read size for file and reader bodies.
	ReaderChunkSize string `yaml:"reader_chunk_size" mapstructure:"reader_chunk_size" validate:"required,size"`
}

// ApplyDefaults fills empty sizes.
func (c *Config) ApplyDefaults() {
	if c.BufferSize == "" {
		c.BufferSize = DefaultBufferSize
	}
	if c.LowWaterMark == "" {
		c.LowWaterMark = DefaultLowWaterMark
	}
	if c.ReaderChunkSize == "" {
		c.ReaderChunkSize = DefaultReaderChunkSize
	}
}

// Validate checks the sizes and their relation.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if c.LowWaterBytes() > c.BufferBytes() {
		return errors.InvalidConfig("low_water_mark", "low_water_mark must not exceed buffer_size")
	}
	return nil
}

// BufferBytes returns BufferSize in bytes.
func (c *Config) BufferBytes() int {
	return int(util.ParseSize(c.BufferSize, 64*1024))
}

// LowWaterBytes returns LowWaterMark in bytes.
func (c *Config) LowWaterBytes() int {
	return int(util.ParseSize(c.LowWaterMark, 16*1024))
}

// ChunkBytes returns ReaderChunkSize in bytes.
func (c *Config) ChunkBytes() int {
	return int(util.ParseSize(c.ReaderChunkSize, 32*1024))
}
