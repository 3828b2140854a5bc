package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds process-level settings for the decision server.
type Config struct {
	Host              string        `yaml:"host" env:"DECISION_HOST"`
	Port              int           `yaml:"port" env:"DECISION_PORT"`
	LogLevel          string        `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat         string        `yaml:"log_format" env:"LOG_FORMAT"`
	GinMode           string        `yaml:"gin_mode" env:"DECISION_GIN_MODE"`
	AllowedOrigins    []string      `yaml:"allowed_origins" env:"DECISION_ALLOWED_ORIGINS" envSeparator:","`
	StreamEnabled     bool          `yaml:"stream_enabled" env:"DECISION_STREAM_ENABLED"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"DECISION_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"DECISION_SHUTDOWN_TIMEOUT"`
}

// Default returns the settings used when nothing is overridden: every
// interface on port 5000.
func Default() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              5000,
		LogLevel:          "info",
		LogFormat:         "text",
		GinMode:           "release",
		StreamEnabled:     true,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   10 * time.Second,
	}
}

// Load builds the effective configuration: defaults, then the YAML file at path
// when one is given, then environment variables.
func Load(path string) (Config, error) {
	return load(path, env.Options{})
}

func load(path string, opts env.Options) (Config, error) {
	cfg := Default()

	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	switch c.GinMode {
	case "", "debug", "release", "test":
	default:
		return fmt.Errorf("unknown gin mode %q", c.GinMode)
	}
	if c.ReadHeaderTimeout < 0 || c.ShutdownTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}

// Addr is the listen address in host:port form.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
