package server

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/vexdb/vexdb/pkg/log"
	"github.com/vexdb/vexdb/pkg/metrics"
	"github.com/vexdb/vexdb/pkg/mq"
)

// Config holds all configuration values
type Config struct {
	Server  ServerConfig   `toml:"server"`
	Log     log.Config     `toml:"log"`
	WAL     WALConfig      `toml:"wal"`
	Kafka   mq.KafkaConfig `toml:"kafka"`
	Metrics metrics.Config `toml:"metrics"`
}

// ServerConfig contains API listener configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// WALConfig controls write-ahead log durability. With Enabled and no Path,
// the log lands in data/wal.log.
type WALConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Validate checks server configuration
func (s *ServerConfig) Validate() error {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("port is required and must be between 1 and 65535")
	}
	return nil
}

// Validate checks WAL configuration
func (w *WALConfig) Validate() error {
	if w.Enabled && w.Path == "" {
		w.Path = "data/wal.log"
	}
	return nil
}

// Validate checks all configuration fields
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	if err := c.WAL.Validate(); err != nil {
		return fmt.Errorf("wal: %w", err)
	}

	if err := c.Kafka.Validate(); err != nil {
		return fmt.Errorf("kafka: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	return nil
}

// LoadConfig reads and parses the configuration file
func LoadConfig(filename string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(filename)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
