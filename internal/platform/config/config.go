// Package config loads application configuration from environment variables.
// All variables use the LEARN_ prefix.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Progress backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Cache      CacheConfig
	Progress   ProgressConfig
	Events     EventsConfig
	Player     PlayerConfig
	Log        LogConfig
	CoursePath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL means no
// database.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Dragonfly/Redis connection settings. An empty URL means
// no cache.
type CacheConfig struct {
	URL       string
	KeyPrefix string
}

// ProgressConfig selects where learner progress is stored.
type ProgressConfig struct {
	Backend     string // memory, postgres, sqlite or redis
	SQLitePath  string
	Debounce    time.Duration
	MaxAttempts int // per cue, 0 means unlimited
}

// EventsConfig controls the learning event log.
type EventsConfig struct {
	Enabled bool // requires a database
}

// PlayerConfig holds settings for the WebSocket player.
type PlayerConfig struct {
	MediaBaseURL   string
	OriginPatterns []string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with LEARN_ prefix.
func Load() (*Config, error) {
	debounce, err := envDuration("LEARN_PROGRESS_DEBOUNCE", 800*time.Millisecond)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("LEARN_SERVER_PORT", 8080),
			Host: envStr("LEARN_SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			URL:      envStr("LEARN_DATABASE_URL", ""),
			MaxConns: envInt("LEARN_DATABASE_MAX_CONNS", 25),
			MinConns: envInt("LEARN_DATABASE_MIN_CONNS", 5),
		},
		Cache: CacheConfig{
			URL:       envStr("LEARN_CACHE_URL", ""),
			KeyPrefix: envStr("LEARN_CACHE_KEY_PREFIX", "comply:progress"),
		},
		Progress: ProgressConfig{
			Backend:     strings.ToLower(envStr("LEARN_PROGRESS_BACKEND", BackendMemory)),
			SQLitePath:  envStr("LEARN_PROGRESS_SQLITE_PATH", "progress.db"),
			Debounce:    debounce,
			MaxAttempts: envInt("LEARN_PROGRESS_MAX_ATTEMPTS", 0),
		},
		Events: EventsConfig{
			Enabled: envBool("LEARN_EVENTS_ENABLED", false),
		},
		Player: PlayerConfig{
			MediaBaseURL:   envStr("LEARN_MEDIA_BASE_URL", ""),
			OriginPatterns: envList("LEARN_PLAYER_ORIGINS"),
		},
		Log: LogConfig{
			Level:  envStr("LEARN_LOG_LEVEL", "info"),
			Format: envStr("LEARN_LOG_FORMAT", "json"),
		},
		CoursePath: envStr("LEARN_COURSE_PATH", "./courses"),
	}

	return cfg, nil
}

// Validate checks that the configuration is consistent.
func (c *Config) Validate() error {
	switch c.Progress.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("LEARN_DATABASE_URL is required for the postgres progress backend")
		}
	case BackendRedis:
		if c.Cache.URL == "" {
			return fmt.Errorf("LEARN_CACHE_URL is required for the redis progress backend")
		}
	case BackendSQLite:
		if c.Progress.SQLitePath == "" {
			return fmt.Errorf("LEARN_PROGRESS_SQLITE_PATH is required for the sqlite progress backend")
		}
	default:
		return fmt.Errorf("LEARN_PROGRESS_BACKEND must be one of memory, postgres, sqlite, redis, got %q", c.Progress.Backend)
	}

	if c.Events.Enabled && c.Database.URL == "" {
		return fmt.Errorf("LEARN_DATABASE_URL is required when LEARN_EVENTS_ENABLED is set")
	}
	if c.Progress.Debounce <= 0 {
		return fmt.Errorf("LEARN_PROGRESS_DEBOUNCE must be positive, got %s", c.Progress.Debounce)
	}
	if c.Progress.MaxAttempts < 0 {
		return fmt.Errorf("LEARN_PROGRESS_MAX_ATTEMPTS must not be negative, got %d", c.Progress.MaxAttempts)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("LEARN_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}

	return nil
}

// SlogLevel parses the configured log level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LEARN_LOG_LEVEL: %w", err)
	}
	return level, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
