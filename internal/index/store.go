// File path: internal/index/store.go
package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound marks a lookup for a session that is not in the index.
var ErrNotFound = errors.New("session not found in index")

// Store is the durable, queryable projection of parsed sessions. The source
// files remain the only truth; everything in the store can be re-derived from
// them at any time.
type Store struct {
	db *sqlx.DB
}

// Open constructs a Store backed by the SQLite database described by cfg. The
// schema is migrated on first use.
func Open(cfg Config) (*Store, error) {
	cfg = cfg.applyDefaults()
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve index path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	busy := int(cfg.BusyTimeout / time.Millisecond)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", abs, busy)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.BusyTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping index database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureReady() error {
	if s == nil || s.db == nil {
		return errors.New("index store not initialised")
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute schema statement %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
                session_id TEXT PRIMARY KEY,
                project_path TEXT NOT NULL,
                project_name TEXT NOT NULL,
                file_path TEXT NOT NULL UNIQUE,
                start_time TEXT,
                end_time TEXT,
                duration_seconds INTEGER,
                git_branch TEXT,
                cwd TEXT,
                message_count INTEGER NOT NULL DEFAULT 0,
                tool_count INTEGER NOT NULL DEFAULT 0,
                files_modified_count INTEGER NOT NULL DEFAULT 0,
                file_size_bytes INTEGER NOT NULL DEFAULT 0,
                file_mtime INTEGER NOT NULL DEFAULT 0,
                indexed_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project_name);`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_start_time ON sessions(start_time);`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_file_path ON sessions(file_path);`,
	`CREATE TABLE IF NOT EXISTS events (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                session_id TEXT NOT NULL,
                event_id TEXT NOT NULL,
                type TEXT NOT NULL,
                timestamp TEXT,
                content TEXT,
                tool_name TEXT,
                tool_input_json TEXT,
                tool_id TEXT,
                files_affected_json TEXT,
                FOREIGN KEY(session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
        );`,
	`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);`,
	`CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);`,
	`CREATE VIRTUAL TABLE IF NOT EXISTS events_fts USING fts5(
                session_id UNINDEXED,
                content,
                content=events,
                content_rowid=id
        );`,
	`CREATE TRIGGER IF NOT EXISTS events_ai AFTER INSERT ON events BEGIN
                INSERT INTO events_fts(rowid, session_id, content)
                VALUES (new.id, new.session_id, new.content);
        END;`,
	`CREATE TRIGGER IF NOT EXISTS events_ad AFTER DELETE ON events BEGIN
                INSERT INTO events_fts(events_fts, rowid, session_id, content)
                VALUES ('delete', old.id, old.session_id, old.content);
        END;`,
	`CREATE TRIGGER IF NOT EXISTS events_au AFTER UPDATE ON events BEGIN
                INSERT INTO events_fts(events_fts, rowid, session_id, content)
                VALUES ('delete', old.id, old.session_id, old.content);
                INSERT INTO events_fts(rowid, session_id, content)
                VALUES (new.id, new.session_id, new.content);
        END;`,
	`CREATE TABLE IF NOT EXISTS session_metadata (
                session_id TEXT PRIMARY KEY,
                files_modified_json TEXT,
                files_read_json TEXT,
                tools_used_json TEXT,
                phases_json TEXT,
                decisions_json TEXT,
                FOREIGN KEY(session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
        );`,
}
