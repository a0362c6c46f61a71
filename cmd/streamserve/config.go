package main

import (
	"fmt"
	"time"

	"github.com/kbukum/streamkit/config"
	"github.com/kbukum/streamkit/delivery"
	"github.com/kbukum/streamkit/observability"
	"github.com/kbukum/streamkit/redis"
	"github.com/kbukum/streamkit/server"
	"github.com/kbukum/streamkit/storage"
	"github.com/kbukum/streamkit/validation"
)

// AppConfig is the streamserve configuration.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Server               server.Config        `yaml:"server" mapstructure:"server"`
	Delivery             delivery.Config      `yaml:"delivery" mapstructure:"delivery"`
	Observability        observability.Config `yaml:"observability" mapstructure:"observability"`
	Redis                redis.Config         `yaml:"redis" mapstructure:"redis"`
	Storage              storage.Config       `yaml:"storage" mapstructure:"storage"`
	Demo                 DemoConfig           `yaml:"demo" mapstructure:"demo"`
}

// DemoConfig tunes the demo routes.
type DemoConfig struct {
	// File is served by /file and /file/stream.
	File string `yaml:"file" mapstructure:"file"`
	// ChunkInterval spaces the chunks of /push and /pull.
	ChunkInterval time.Duration `yaml:"chunk_interval" mapstructure:"chunk_interval" validate:"gte=0"`
	// SubstituteErrors installs an error handler that answers pre-commit
	// failures with a plain-text 503 instead of the default JSON 500.
	SubstituteErrors bool `yaml:"substitute_errors" mapstructure:"substitute_errors"`
	// KeepAlive is the SSE keep-alive interval.
	KeepAlive time.Duration `yaml:"keep_alive" mapstructure:"keep_alive" validate:"gte=0"`
}

// ApplyDefaults applies defaults to every section.
func (c *AppConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Delivery.ApplyDefaults()
	c.Observability.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Storage.ApplyDefaults()
	if c.Demo.File == "" {
		c.Demo.File = "config.yml"
	}
	if c.Demo.ChunkInterval == 0 {
		c.Demo.ChunkInterval = 100 * time.Millisecond
	}
	if c.Demo.KeepAlive == 0 {
		c.Demo.KeepAlive = 15 * time.Second
	}
}

// Validate validates every section.
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("config.server: %w", err)
	}
	if err := c.Delivery.Validate(); err != nil {
		return fmt.Errorf("config.delivery: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("config.observability: %w", err)
	}
	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("config.redis: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("config.storage: %w", err)
	}
	if err := validation.Validate(&c.Demo); err != nil {
		return fmt.Errorf("config.demo: %w", err)
	}
	return nil
}
