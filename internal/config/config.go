package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/DoyleJ11/offensive-cards/internal/identity"
	"github.com/DoyleJ11/offensive-cards/internal/live"
	"github.com/DoyleJ11/offensive-cards/internal/transport"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	EnvAPIBase           = "CARDS_API_BASE"
	EnvIdentityFile      = "CARDS_IDENTITY_FILE"
	EnvIdentityDSN       = "CARDS_IDENTITY_DSN"
	EnvReconnectInterval = "CARDS_RECONNECT_INTERVAL"
	EnvLogLevel          = "CARDS_LOG_LEVEL"
	EnvPort              = "PORT"
	EnvGameIdleTimeout   = "CARDS_GAME_IDLE_TIMEOUT"
)

// DefaultGameIdleTimeout is how long the development server keeps a game
// nobody is connected to.
const DefaultGameIdleTimeout = 30 * time.Minute

type Config struct {
	APIBase           string
	IdentityFile      string // used when IdentityDSN is empty
	IdentityDSN       string // postgres
	ReconnectInterval time.Duration
	LogLevel          string
	Port              string
	GameIdleTimeout   time.Duration // devserver; zero keeps games forever
}

// Load reads the given .env files, or ./.env when none are named, and then
// the environment. Missing files are skipped; variables already set win.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, applying defaults.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return def
	}

	c := Config{
		APIBase:           get(EnvAPIBase, transport.DefaultBaseURL),
		IdentityFile:      get(EnvIdentityFile, defaultIdentityFile()),
		IdentityDSN:       get(EnvIdentityDSN, ""),
		ReconnectInterval: live.DefaultInterval,
		LogLevel:          get(EnvLogLevel, "info"),
		Port:              get(EnvPort, "8080"),
		GameIdleTimeout:   DefaultGameIdleTimeout,
	}
	if raw := get(EnvReconnectInterval, ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvReconnectInterval, err)
		}
		if d <= 0 {
			return Config{}, fmt.Errorf("%s must be positive, got %s", EnvReconnectInterval, raw)
		}
		c.ReconnectInterval = d
	}
	if raw := get(EnvGameIdleTimeout, ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvGameIdleTimeout, err)
		}
		if d < 0 {
			return Config{}, fmt.Errorf("%s must not be negative, got %s", EnvGameIdleTimeout, raw)
		}
		c.GameIdleTimeout = d
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return Config{}, fmt.Errorf("%s: %w", EnvLogLevel, err)
	}
	return c, nil
}

// IdentityBackend opens the configured identity storage. The returned close
// func is never nil.
func (c Config) IdentityBackend() (identity.Backend, func() error, error) {
	if c.IdentityDSN != "" {
		b, err := identity.OpenPostgres(c.IdentityDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open identity database: %w", err)
		}
		return b, b.Close, nil
	}
	if c.IdentityFile == "" {
		return identity.NewMemoryBackend(), func() error { return nil }, nil
	}
	return identity.NewFileBackend(c.IdentityFile), func() error { return nil }, nil
}

// NewLogger builds a production logger at level.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func defaultIdentityFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "offensive-cards", "identity.json")
}
