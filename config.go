package modkit

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Default values for optional configuration fields.
const (
	DefaultAddr              = ":8080"
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultShutdownTimeout   = 5 * time.Second
	DefaultDispatchTimeout   = 30 * time.Second
	DefaultSessionCookie     = "modkit_session"
	DefaultSessionTTL        = 24 * time.Hour
)

// Config holds manager-wide settings.
type Config struct {
	// Addr is the HTTP listen address used by Run.
	Addr string `env:"MODKIT_ADDR"`

	// ReadHeaderTimeout bounds header parsing on the HTTP server.
	ReadHeaderTimeout time.Duration `env:"MODKIT_READ_HEADER_TIMEOUT"`

	// ShutdownTimeout bounds graceful shutdown when Run's context ends.
	ShutdownTimeout time.Duration `env:"MODKIT_SHUTDOWN_TIMEOUT"`

	// DispatchTimeout is the default deadline for a single request,
	// including deferred model completion. Endpoints may override it.
	DispatchTimeout time.Duration `env:"MODKIT_DISPATCH_TIMEOUT"`

	// SessionCookie is the cookie name carrying the session id.
	SessionCookie string `env:"MODKIT_SESSION_COOKIE"`

	// SessionTTL is how long saved sessions live.
	SessionTTL time.Duration `env:"MODKIT_SESSION_TTL"`

	// SecureCookies marks session cookies Secure.
	SecureCookies bool `env:"MODKIT_SECURE_COOKIES"`
}

// DefaultConfig returns a config with all defaults applied.
func DefaultConfig() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// ConfigFromEnv builds a config from MODKIT_* environment variables,
// back-filling unset fields with defaults.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.DispatchTimeout == 0 {
		c.DispatchTimeout = DefaultDispatchTimeout
	}
	if c.SessionCookie == "" {
		c.SessionCookie = DefaultSessionCookie
	}
	if c.SessionTTL == 0 {
		c.SessionTTL = DefaultSessionTTL
	}
}

// Validate checks the config for values defaults cannot repair.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.DispatchTimeout < 0 {
		return fmt.Errorf("dispatch timeout must not be negative")
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("session ttl must not be negative")
	}
	return nil
}
