// File path: internal/engine/config.go
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config controls construction of the engine.
type Config struct {
	ProjectsDir  string
	DBPath       string
	IndexEnabled bool
	CacheTTL     time.Duration
	CacheSize    int
}

// DefaultConfig returns the baseline configuration used when no overrides are
// supplied.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		ProjectsDir:  filepath.Join(home, ".claude", "projects"),
		DBPath:       filepath.Join(home, ".sessionindex", "sessions.db"),
		IndexEnabled: true,
		CacheTTL:     5 * time.Minute,
		CacheSize:    100,
	}
}

// LoadConfig builds a Config from defaults and environment variables.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if value := strings.TrimSpace(os.Getenv("SESSIONINDEX_PROJECTS_DIR")); value != "" {
		cfg.ProjectsDir = value
	}
	if value := strings.TrimSpace(os.Getenv("SESSIONINDEX_DB_PATH")); value != "" {
		cfg.DBPath = value
	}
	if value := strings.TrimSpace(os.Getenv("SESSIONINDEX_USE_INDEX")); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse SESSIONINDEX_USE_INDEX: %w", err)
		}
		cfg.IndexEnabled = parsed
	}
	if value := strings.TrimSpace(os.Getenv("SESSIONINDEX_CACHE_TTL")); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse SESSIONINDEX_CACHE_TTL: %w", err)
		}
		cfg.CacheTTL = parsed
	}
	if value := strings.TrimSpace(os.Getenv("SESSIONINDEX_CACHE_SIZE")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse SESSIONINDEX_CACHE_SIZE: %w", err)
		}
		if parsed > 0 {
			cfg.CacheSize = parsed
		}
	}
	return cfg.applyDefaults(), nil
}

func (c Config) applyDefaults() Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(c.ProjectsDir) == "" {
		c.ProjectsDir = defaults.ProjectsDir
	}
	if strings.TrimSpace(c.DBPath) == "" {
		c.DBPath = defaults.DBPath
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaults.CacheTTL
	}
	if c.CacheSize <= 0 {
		c.CacheSize = defaults.CacheSize
	}
	return c
}

func (c Config) validate() error {
	if strings.TrimSpace(c.ProjectsDir) == "" {
		return fmt.Errorf("projects dir required")
	}
	if c.IndexEnabled && strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("db path required when index enabled")
	}
	return nil
}
