// File path: internal/index/config.go
package index

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config controls the SQLite index connection.
type Config struct {
	Path         string
	MaxOpenConns int
	MaxIdleConns int
	BusyTimeout  time.Duration
}

// DefaultConfig returns the baseline index configuration.
func DefaultConfig() Config {
	return Config{
		Path:         filepath.Join(dataHome(), "sessions.db"),
		MaxOpenConns: 8,
		MaxIdleConns: 8,
		BusyTimeout:  5 * time.Second,
	}
}

// LoadConfig builds a Config from defaults and environment variables.
func LoadConfig() Config {
	cfg := DefaultConfig()
	if value := strings.TrimSpace(os.Getenv("SESSIONINDEX_DB_PATH")); value != "" {
		cfg.Path = value
	}
	if value := strings.TrimSpace(os.Getenv("SESSIONINDEX_MAX_OPEN_CONNS")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			cfg.MaxOpenConns = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("SESSIONINDEX_BUSY_TIMEOUT")); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			cfg.BusyTimeout = parsed
		}
	}
	return cfg.applyDefaults()
}

func (c Config) applyDefaults() Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(c.Path) == "" {
		c.Path = defaults.Path
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = defaults.MaxOpenConns
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = defaults.BusyTimeout
	}
	return c
}

func dataHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(home, ".sessionindex")
}
