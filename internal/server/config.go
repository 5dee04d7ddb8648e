// Package server provides configuration helpers that define runtime defaults,
// validation, and file loading for the chat server.
package server

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"

	"github.com/Tyrowin/framechat/internal/recency"
)

// RateLimitConfig defines the parameters for per-connection chat rate limiting.
// A zero Burst disables limiting.
type RateLimitConfig struct {
	Burst          int           `toml:"burst"`
	RefillInterval time.Duration `toml:"refill_interval"`
}

// Config holds the server configuration settings.
type Config struct {
	// ListenAddr is the TCP address the frame protocol is served on.
	ListenAddr string `toml:"listen_addr"`

	// HTTPAddr serves health, status, metrics and the WebSocket endpoint.
	// Empty disables the HTTP surface.
	HTTPAddr string `toml:"http_addr"`

	// AllowedOrigins restricts browser WebSocket upgrades. "*" allows all.
	AllowedOrigins []string `toml:"allowed_origins"`

	// HistorySize is the number of senders whose latest message is kept for replay.
	HistorySize int `toml:"history_size"`

	// MaxClients caps concurrent connections. Zero means unlimited.
	MaxClients int `toml:"max_clients"`

	// WriteTimeout bounds a single write to a peer.
	WriteTimeout time.Duration `toml:"write_timeout"`

	// IdleTimeout disconnects a peer that sends nothing for this long.
	// Zero waits forever.
	IdleTimeout time.Duration `toml:"idle_timeout"`

	// ShutdownTimeout bounds how long Serve waits for sessions to end.
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`

	RateLimit RateLimitConfig `toml:"rate_limit"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`
}

const (
	defaultListenAddr      = ":8080"
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
	defaultLogLevel        = "info"
)

func defaultConfig() Config {
	return Config{
		ListenAddr: defaultListenAddr,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		HistorySize:     recency.DefaultCapacity,
		WriteTimeout:    defaultWriteTimeout,
		ShutdownTimeout: defaultShutdownTimeout,
		RateLimit: RateLimitConfig{
			RefillInterval: time.Second,
		},
		LogLevel: defaultLogLevel,
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}

	if cfg.HistorySize <= 0 {
		cfg.HistorySize = recency.DefaultCapacity
	}

	if cfg.MaxClients < 0 {
		cfg.MaxClients = 0
	}

	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	if cfg.IdleTimeout < 0 {
		cfg.IdleTimeout = 0
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if cfg.RateLimit.Burst < 0 {
		cfg.RateLimit.Burst = 0
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}

	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil || cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// LoadConfig reads a TOML config file on top of the defaults. An empty path
// returns the defaults; a path that does not exist is an error.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return &cfg, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg = sanitizeConfig(cfg)
	return &cfg, nil
}

// PortAddr turns a bare port argument into a listen address. Anything that
// already looks like host:port is returned unchanged.
func PortAddr(port string) (string, error) {
	if _, _, err := net.SplitHostPort(port); err == nil {
		return port, nil
	}

	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return "", fmt.Errorf("invalid port %q", port)
	}
	return ":" + strconv.Itoa(n), nil
}
