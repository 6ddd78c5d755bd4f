// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the relay.
package server

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAddr             = "localhost:9090"
	defaultHTTPAddr         = "localhost:8080"
	defaultMaxFrameSize     = 64 * 1024
	defaultBacklog          = 10
	defaultSendQueueSize    = 256
	defaultHandshakeTimeout = 10 * time.Second
	defaultShutdownTimeout  = 5 * time.Second
)

// RateLimitConfig defines the parameters for per-connection frame rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the relay configuration.
type Config struct {
	// Addr is the TCP address of the framed JSON listener.
	Addr string
	// HTTPAddr serves the WebSocket transport and the HTTP endpoints. Empty
	// disables the HTTP side entirely.
	HTTPAddr       string
	AllowedOrigins []string
	MaxFrameSize   int64
	RateLimit      RateLimitConfig
	// HandshakeTimeout bounds the presence exchange. Zero disables the deadline.
	HandshakeTimeout time.Duration
	ShutdownTimeout  time.Duration
	// Backlog is the number of connections allowed to sit in the presence
	// handshake at the same time. Extra connections are closed on accept.
	Backlog       int
	SendQueueSize int
	LogLevel      string
}

func defaultConfig() Config {
	return Config{
		Addr:     defaultAddr,
		HTTPAddr: defaultHTTPAddr,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxFrameSize: defaultMaxFrameSize,
		RateLimit: RateLimitConfig{
			Burst:          20,
			RefillInterval: time.Second,
		},
		HandshakeTimeout: defaultHandshakeTimeout,
		ShutdownTimeout:  defaultShutdownTimeout,
		Backlog:          defaultBacklog,
		SendQueueSize:    defaultSendQueueSize,
		LogLevel:         "info",
	}
}

// sanitize fills zero or invalid values with defaults. HTTPAddr is left as is
// so that an empty value keeps the HTTP side disabled.
func (cfg Config) sanitize() Config {
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}

	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = defaultMaxFrameSize
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 20
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}

	if cfg.HandshakeTimeout < 0 {
		cfg.HandshakeTimeout = 0
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if cfg.Backlog <= 0 {
		cfg.Backlog = defaultBacklog
	}

	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = defaultSendQueueSize
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if addr := os.Getenv("RELAY_ADDR"); addr != "" {
		cfg.Addr = addr
	}

	// An explicitly empty RELAY_HTTP_ADDR disables the HTTP side.
	if httpAddr, ok := os.LookupEnv("RELAY_HTTP_ADDR"); ok {
		cfg.HTTPAddr = strings.TrimSpace(httpAddr)
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if maxSize := os.Getenv("MAX_FRAME_SIZE"); maxSize != "" {
		cfg.MaxFrameSize = parseMaxFrameSize(maxSize, cfg.MaxFrameSize)
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseSeconds(interval, cfg.RateLimit.RefillInterval, false)
	}

	if timeout := os.Getenv("HANDSHAKE_TIMEOUT"); timeout != "" {
		cfg.HandshakeTimeout = parseSeconds(timeout, cfg.HandshakeTimeout, true)
	}

	if timeout := os.Getenv("SHUTDOWN_TIMEOUT"); timeout != "" {
		cfg.ShutdownTimeout = parseSeconds(timeout, cfg.ShutdownTimeout, false)
	}

	if backlog := os.Getenv("LISTEN_BACKLOG"); backlog != "" {
		cfg.Backlog = parseIntValue(backlog, cfg.Backlog)
	}

	if size := os.Getenv("SEND_QUEUE_SIZE"); size != "" {
		cfg.SendQueueSize = parseIntValue(size, cfg.SendQueueSize)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(level))
	}

	return &cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxFrameSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseSeconds reads a whole number of seconds. Zero is accepted only when
// allowZero is set.
func parseSeconds(value string, defaultValue time.Duration, allowZero bool) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds < 0 || (seconds == 0 && !allowZero) {
		return defaultValue
	}
	return time.Duration(seconds) * time.Second
}
