// Package config loads credentials and settings for the stats server.
package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
)

// DefaultPath is where the optional settings file is looked up.
const DefaultPath = "config.toml"

const redacted = "[redacted]"

var (
	// ErrMissingCredentials is returned when client_id, client_secret or redirect_uri is not set.
	ErrMissingCredentials = errors.New("missing client_id, client_secret or redirect_uri environment variable")

	// ErrInvalidConfig is returned when a setting has an unusable value.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Session backends.
const (
	BackendCookie   = "cookie"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Credentials identify the application to Spotify.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Config holds every runtime setting.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Session SessionConfig `toml:"session"`
	Logging LoggingConfig `toml:"logging"`
	Profile ProfileConfig `toml:"profile"`

	Credentials Credentials `toml:"-"`

	// GeneratedSecret is set when no session secret was configured.
	GeneratedSecret bool `toml:"-"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr                string `toml:"addr"`
	ReadTimeoutSeconds  int    `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `toml:"write_timeout_seconds"`
}

// SessionConfig contains session storage settings.
type SessionConfig struct {
	Backend      string `toml:"backend"`
	Secret       string `toml:"secret"`
	TTLMinutes   int    `toml:"ttl_minutes"`
	DatabaseURL  string `toml:"database_url"`
	SecureCookie bool   `toml:"secure_cookie"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ProfileConfig contains profile display settings.
type ProfileConfig struct {
	// DefaultPicture replaces the built-in avatar when set.
	DefaultPicture string `toml:"default_picture"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:                "127.0.0.1:8080",
			ReadTimeoutSeconds:  15,
			WriteTimeoutSeconds: 30,
		},
		Session: SessionConfig{
			Backend:    BackendCookie,
			TTLMinutes: 24 * 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the settings file at path (if it exists), applies environment
// overrides and validates the result. Missing credentials are fatal.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	creds, err := LoadCredentials()
	if err != nil {
		return nil, err
	}
	cfg.Credentials = creds

	cfg.applyEnv()

	if cfg.Session.Secret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("generating session secret: %w", err)
		}
		cfg.Session.Secret = secret
		cfg.GeneratedSecret = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadCredentials reads the Spotify app credentials from the environment.
func LoadCredentials() (Credentials, error) {
	creds := Credentials{
		ClientID:     firstEnv("client_id", "SPOTIFY_ID"),
		ClientSecret: firstEnv("client_secret", "SPOTIFY_SECRET"),
		RedirectURI:  firstEnv("redirect_uri", "SPOTIFY_REDIRECT"),
	}
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RedirectURI == "" {
		return Credentials{}, ErrMissingCredentials
	}
	return creds, nil
}

func (c *Config) applyEnv() {
	if v := firstEnv("SESSION_SECRET", "FLASK_SECRET_KEY"); v != "" {
		c.Session.Secret = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Session.DatabaseURL = v
	}
	if v := os.Getenv("ADDR"); v != "" {
		c.Server.Addr = v
	}
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server addr cannot be empty", ErrInvalidConfig)
	}
	if c.Server.ReadTimeoutSeconds <= 0 || c.Server.WriteTimeoutSeconds <= 0 {
		return fmt.Errorf("%w: server timeouts must be positive", ErrInvalidConfig)
	}
	if c.Session.TTLMinutes <= 0 {
		return fmt.Errorf("%w: session ttl_minutes must be positive", ErrInvalidConfig)
	}

	switch c.Session.Backend {
	case BackendCookie, BackendMemory:
	case BackendPostgres:
		if c.Session.DatabaseURL == "" {
			return fmt.Errorf("%w: postgres session backend requires database_url", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown session backend %q", ErrInvalidConfig, c.Session.Backend)
	}

	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}

// SessionTTL returns the session lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

// ReadTimeout returns the HTTP server read timeout.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the HTTP server write timeout.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeoutSeconds) * time.Second
}

// LogFields describes the configuration for startup logs. Secrets are redacted.
func (c *Config) LogFields() logrus.Fields {
	return logrus.Fields{
		"client_id":       c.Credentials.ClientID,
		"client_secret":   redact(c.Credentials.ClientSecret),
		"redirect_uri":    c.Credentials.RedirectURI,
		"addr":            c.Server.Addr,
		"session_backend": c.Session.Backend,
		"session_secret":  redact(c.Session.Secret),
		"database_url":    redactURL(c.Session.DatabaseURL),
	}
}

// NewLogger builds a logrus logger from the logging settings.
func (c *Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	if level, err := logrus.ParseLevel(c.Logging.Level); err == nil {
		log.SetLevel(level)
	}
	if c.Logging.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return redacted
}

// redactURL hides everything but the scheme of a connection string.
func redactURL(s string) string {
	if s == "" {
		return ""
	}
	if i := strings.Index(s, "://"); i > 0 {
		return s[:i+3] + redacted
	}
	return redacted
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", b), nil
}
