// Package config provides environment-driven configuration for opsledger.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/opsledger/opsledger/internal/classify"
)

// Secret wraps a sensitive string to prevent accidental logging or
// marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Config holds all application configuration values.
type Config struct {
	DataDir     string
	Port        string
	ListenHost  string
	CORSOrigins []string
	LogLevel    string

	// Delivery.
	MaxRetryAttempts int
	SyncInterval     time.Duration
	SyncDebounce     time.Duration
	DeliveryTimeout  time.Duration

	// Remote transport. Exactly one of RemoteURL / RemoteDatabaseURL is set;
	// both empty means the node starts offline with no configured transport.
	RemoteURL         string
	RemoteAPIKey      Secret
	RemoteDatabaseURL Secret

	// Consumer-surface cache staleness bound.
	CacheTTL time.Duration

	// Retention overrides in days per classification tier.
	Retention classify.Retention
}

// Defaults for the delivery knobs.
const (
	DefaultMaxRetryAttempts = 3
	DefaultSyncInterval     = 5 * time.Minute
	DefaultSyncDebounce     = 2 * time.Second
	DefaultDeliveryTimeout  = 30 * time.Second
	DefaultCacheTTL         = 5 * time.Minute
)

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:           envOrDefault("OPSLEDGER_DATA_DIR", "./data"),
		Port:              envOrDefault("PORT", "3040"),
		ListenHost:        envOrDefault("LISTEN_HOST", "127.0.0.1"),
		LogLevel:          envOrDefault("LOG_LEVEL", "info"),
		RemoteURL:         envOrDefault("REMOTE_URL", ""),
		RemoteAPIKey:      Secret(envOrDefault("REMOTE_API_KEY", "")),
		RemoteDatabaseURL: Secret(envOrDefault("REMOTE_DATABASE_URL", "")),
	}

	var err error

	if cfg.MaxRetryAttempts, err = envInt("MAX_RETRY_ATTEMPTS", DefaultMaxRetryAttempts); err != nil {
		return nil, err
	}
	if cfg.SyncInterval, err = envDuration("SYNC_INTERVAL", DefaultSyncInterval); err != nil {
		return nil, err
	}
	if cfg.SyncDebounce, err = envDuration("SYNC_DEBOUNCE", DefaultSyncDebounce); err != nil {
		return nil, err
	}
	if cfg.DeliveryTimeout, err = envDuration("DELIVERY_TIMEOUT", DefaultDeliveryTimeout); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = envDuration("CACHE_TTL", DefaultCacheTTL); err != nil {
		return nil, err
	}

	r := classify.DefaultRetention()
	if r.SensitiveDays, err = envInt("RETENTION_SENSITIVE_DAYS", r.SensitiveDays); err != nil {
		return nil, err
	}
	if r.ConfidentialDays, err = envInt("RETENTION_CONFIDENTIAL_DAYS", r.ConfidentialDays); err != nil {
		return nil, err
	}
	if r.InternalDays, err = envInt("RETENTION_INTERNAL_DAYS", r.InternalDays); err != nil {
		return nil, err
	}
	if r.PublicDays, err = envInt("RETENTION_PUBLIC_DAYS", r.PublicDays); err != nil {
		return nil, err
	}
	cfg.Retention = r

	origins := envOrDefault("CORS_ORIGINS", "http://localhost:3002")
	cfg.CORSOrigins = strings.Split(origins, ",")
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

func (c *Config) validate() error {
	if err := c.validateDelivery(); err != nil {
		return err
	}

	if err := c.validateRetention(); err != nil {
		return err
	}

	if err := c.validateRemote(); err != nil {
		return err
	}

	return c.validateNetwork()
}

func (c *Config) validateDelivery() error {
	if c.MaxRetryAttempts < 1 || c.MaxRetryAttempts > 10 {
		return fmt.Errorf("MAX_RETRY_ATTEMPTS must be between 1 and 10")
	}
	if c.SyncInterval < time.Second {
		return fmt.Errorf("SYNC_INTERVAL must be at least 1s")
	}
	if c.SyncDebounce < 0 {
		return fmt.Errorf("SYNC_DEBOUNCE must not be negative")
	}

	return nil
}

func (c *Config) validateRetention() error {
	tiers := map[string]int{
		"RETENTION_SENSITIVE_DAYS":    c.Retention.SensitiveDays,
		"RETENTION_CONFIDENTIAL_DAYS": c.Retention.ConfidentialDays,
		"RETENTION_INTERNAL_DAYS":     c.Retention.InternalDays,
		"RETENTION_PUBLIC_DAYS":       c.Retention.PublicDays,
	}
	for key, days := range tiers {
		if days < 1 {
			return fmt.Errorf("%s must be at least 1", key)
		}
	}

	return nil
}

func (c *Config) validateRemote() error {
	if c.RemoteURL != "" && c.RemoteDatabaseURL.Value() != "" {
		return fmt.Errorf("set only one of REMOTE_URL and REMOTE_DATABASE_URL")
	}

	if c.RemoteURL != "" {
		u, err := url.Parse(c.RemoteURL)
		if err != nil {
			return fmt.Errorf("REMOTE_URL is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("REMOTE_URL must use http or https")
		}
	}

	if dbURL := c.RemoteDatabaseURL.Value(); dbURL != "" {
		u, err := url.Parse(dbURL)
		if err != nil {
			return fmt.Errorf("REMOTE_DATABASE_URL is not a valid URL: %w", err)
		}
		if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			return fmt.Errorf("REMOTE_DATABASE_URL must use the postgres scheme")
		}
	}

	return nil
}

func (c *Config) validateNetwork() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number")
	}

	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}

	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. 5m, 2s)", key)
	}

	return d, nil
}
