// File path: internal/engine/engine.go
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brettcrane/sessionindex/internal/common"
	"github.com/brettcrane/sessionindex/internal/index"
	"github.com/brettcrane/sessionindex/internal/projects"
	"github.com/brettcrane/sessionindex/internal/reader"
	"github.com/brettcrane/sessionindex/internal/session"
	"github.com/brettcrane/sessionindex/internal/syncer"
)

// Engine wires the index store, sync orchestrator, and read path behind one
// constructed object. Callers receive it by injection; there is no implicit
// process-wide instance.
type Engine struct {
	cfg    Config
	store  *index.Store
	syncer *syncer.Syncer
	reader *reader.Reader
	log    *slog.Logger
}

// Option adjusts engine construction.
type Option func(*settings)

type settings struct {
	store *index.Store
	clock reader.Clock
}

// WithStore injects an already-open index store.
func WithStore(store *index.Store) Option {
	return func(s *settings) { s.store = store }
}

// WithClock injects the fallback cache clock. Primarily used in tests.
func WithClock(clock reader.Clock) Option {
	return func(s *settings) { s.clock = clock }
}

// New constructs an engine from the provided configuration. When the index
// cannot be opened the engine still starts in degraded mode: reads are served
// from source files directly and Stats reports the index as disabled.
func New(ctx context.Context, cfg Config, opts ...Option) (*Engine, error) {
	cfg = cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	applied := settings{}
	for _, opt := range opts {
		if opt != nil {
			opt(&applied)
		}
	}
	log := common.Component("engine")

	store := applied.store
	if store == nil && cfg.IndexEnabled {
		opened, err := index.Open(index.Config{Path: cfg.DBPath})
		if err != nil {
			log.Warn("index unavailable, running in degraded mode", "error", err)
		} else {
			store = opened
		}
	}

	eng := &Engine{
		cfg:   cfg,
		store: store,
		reader: reader.New(store, cfg.ProjectsDir,
			reader.WithCacheSize(cfg.CacheSize),
			reader.WithCacheTTL(cfg.CacheTTL),
			reader.WithClock(applied.clock)),
		log: log,
	}
	if store != nil {
		eng.syncer = syncer.New(store)
	}
	return eng, nil
}

// Close releases the engine's resources.
func (e *Engine) Close() error {
	if e == nil || e.store == nil {
		return nil
	}
	return e.store.Close()
}

// Sessions returns one page of filtered session summaries plus the total
// match count.
func (e *Engine) Sessions(ctx context.Context, filter index.Filter) ([]session.Summary, int, error) {
	return e.reader.GetSessions(ctx, filter)
}

// Session returns one session's full detail, or reader.ErrNotFound.
func (e *Engine) Session(ctx context.Context, sessionID string, includeThinking bool) (session.Detail, error) {
	return e.reader.GetSession(ctx, sessionID, includeThinking)
}

// Projects lists the project directories under the configured root.
func (e *Engine) Projects(ctx context.Context) ([]session.Project, error) {
	return projects.List(e.cfg.ProjectsDir)
}

// Sync indexes only the new or stale source files. Returns the number of
// sessions indexed.
func (e *Engine) Sync(ctx context.Context) (int, error) {
	if e.syncer == nil {
		return 0, fmt.Errorf("index disabled")
	}
	count, err := e.syncer.IncrementalSync(ctx, e.cfg.ProjectsDir)
	if err != nil {
		return count, err
	}
	e.reader.ClearCache()
	return count, nil
}

// RebuildResult reports the outcome of a full index rebuild.
type RebuildResult struct {
	Count   int           `json:"sessions_indexed"`
	Elapsed time.Duration `json:"elapsed"`
}

// Rebuild discards the entire index and re-derives it from the source files.
// Safe to invoke at any time; the index holds nothing that is not
// re-derivable.
func (e *Engine) Rebuild(ctx context.Context) (RebuildResult, error) {
	if e.syncer == nil {
		return RebuildResult{}, fmt.Errorf("index disabled")
	}
	start := time.Now()
	count, err := e.syncer.Rebuild(ctx, e.cfg.ProjectsDir)
	result := RebuildResult{Count: count, Elapsed: time.Since(start)}
	if err != nil {
		return result, err
	}
	e.reader.ClearCache()
	return result, nil
}

// ClearIndex removes every index entry without touching source files.
func (e *Engine) ClearIndex(ctx context.Context) error {
	if e.store == nil {
		return fmt.Errorf("index disabled")
	}
	if err := e.store.Clear(ctx); err != nil {
		return err
	}
	e.reader.ClearCache()
	return nil
}

// RepairSearch rebuilds the full-text structure from current event storage.
func (e *Engine) RepairSearch(ctx context.Context) error {
	if e.store == nil {
		return fmt.Errorf("index disabled")
	}
	return e.store.RepairSearch(ctx)
}

// Stats reports the index state.
type Stats struct {
	Enabled      bool   `json:"enabled"`
	SessionCount int    `json:"session_count"`
	DBPath       string `json:"db_path,omitempty"`
	ProjectsDir  string `json:"projects_dir"`
}

// Stats returns index statistics. A disabled or unavailable index reports
// Enabled=false with a zero count rather than an error.
func (e *Engine) Stats(ctx context.Context) Stats {
	stats := Stats{ProjectsDir: e.cfg.ProjectsDir}
	if e.store == nil {
		return stats
	}
	stats.Enabled = true
	stats.DBPath = e.cfg.DBPath
	count, err := e.store.Count(ctx)
	if err != nil {
		e.log.Warn("failed to count indexed sessions", "error", err)
		return stats
	}
	stats.SessionCount = count
	return stats
}
