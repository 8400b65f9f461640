// File path: internal/index/index.go
package index

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/brettcrane/sessionindex/internal/session"
)

// Put upserts one parsed session into the index, replacing any prior events
// and metadata for the same session identifier in a single transaction.
// fileMtime is the source file's modification time (unix seconds) observed at
// indexing time; fileSize is its size in bytes.
func (s *Store) Put(ctx context.Context, detail session.Detail, fileMtime, fileSize int64) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	summary := detail.Summary(fileSize)

	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO sessions (
                        session_id, project_path, project_name, file_path,
                        start_time, end_time, duration_seconds, git_branch, cwd,
                        message_count, tool_count, files_modified_count,
                        file_size_bytes, file_mtime, indexed_at
                ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
			detail.SessionID, detail.ProjectPath, detail.ProjectName, detail.FilePath,
			formatTime(detail.StartTime), formatTime(detail.EndTime),
			nullableInt(detail.DurationSeconds), nullIfEmpty(detail.GitBranch), nullIfEmpty(detail.CWD),
			summary.MessageCount, summary.ToolCount, summary.FilesModifiedCount,
			fileSize, fileMtime,
		); err != nil {
			return fmt.Errorf("upsert session %s: %w", detail.SessionID, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE session_id = ?`, detail.SessionID); err != nil {
			return fmt.Errorf("clear events for %s: %w", detail.SessionID, err)
		}

		for _, evt := range detail.Events {
			toolInput, err := marshalNullable(evt.ToolInput, len(evt.ToolInput) > 0)
			if err != nil {
				return fmt.Errorf("encode tool input for %s/%s: %w", detail.SessionID, evt.ID, err)
			}
			filesAffected, err := marshalNullable(evt.FilesAffected, len(evt.FilesAffected) > 0)
			if err != nil {
				return fmt.Errorf("encode affected files for %s/%s: %w", detail.SessionID, evt.ID, err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO events (
                                session_id, event_id, type, timestamp, content,
                                tool_name, tool_input_json, tool_id, files_affected_json
                        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				detail.SessionID, evt.ID, string(evt.Kind), formatTime(evt.Timestamp),
				nullIfEmpty(evt.Content), nullIfEmpty(evt.ToolName), toolInput,
				nullIfEmpty(evt.ToolID), filesAffected,
			); err != nil {
				return fmt.Errorf("insert event %s/%s: %w", detail.SessionID, evt.ID, err)
			}
		}

		filesModified, _ := json.Marshal(emptyIfNil(detail.FilesModified))
		filesRead, _ := json.Marshal(emptyIfNil(detail.FilesRead))
		toolsUsed, _ := json.Marshal(emptyIfNil(detail.ToolsUsed))
		phases, _ := json.Marshal(emptyIfNil(detail.Phases))
		decisions, _ := json.Marshal(emptyIfNil(detail.Decisions))
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO session_metadata (
                        session_id, files_modified_json, files_read_json,
                        tools_used_json, phases_json, decisions_json
                ) VALUES (?, ?, ?, ?, ?, ?)`,
			detail.SessionID, string(filesModified), string(filesRead),
			string(toolsUsed), string(phases), string(decisions),
		); err != nil {
			return fmt.Errorf("upsert metadata for %s: %w", detail.SessionID, err)
		}
		return nil
	})
}

// Clear removes every index entry. Source files are untouched.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
			return fmt.Errorf("clear sessions: %w", err)
		}
		return nil
	})
}

// Count reports the number of indexed sessions.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.ensureReady(); err != nil {
		return 0, err
	}
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM sessions`); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return count, nil
}

// IndexedFiles returns the recorded modification time for every indexed
// source file, keyed by file path.
func (s *Store) IndexedFiles(ctx context.Context) (map[string]int64, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	rows := []struct {
		FilePath  string `db:"file_path"`
		FileMtime int64  `db:"file_mtime"`
	}{}
	if err := s.db.SelectContext(ctx, &rows, `SELECT file_path, file_mtime FROM sessions`); err != nil {
		return nil, fmt.Errorf("select indexed files: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.FilePath] = row.FileMtime
	}
	return out, nil
}

// RepairSearch reconstructs the full-text structure from the current event
// rows. It never touches source files and is safe whenever the search index
// is suspected to have diverged from primary storage.
func (s *Store) RepairSearch(ctx context.Context) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO events_fts(events_fts) VALUES('rebuild')`); err != nil {
		return fmt.Errorf("rebuild search index: %w", err)
	}
	return nil
}

// VerifySearch runs the FTS integrity check against the events table and
// reports corruption as an error.
func (s *Store) VerifySearch(ctx context.Context) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO events_fts(events_fts, rank) VALUES('integrity-check', 1)`); err != nil {
		return fmt.Errorf("search index integrity: %w", err)
	}
	return nil
}

func marshalNullable(v interface{}, present bool) (interface{}, error) {
	if !present {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value *int) interface{} {
	if value == nil {
		return nil
	}
	return *value
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
