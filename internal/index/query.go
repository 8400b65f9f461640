// File path: internal/index/query.go
package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brettcrane/sessionindex/internal/session"
)

const (
	// DefaultLimit is applied when a query specifies no page size.
	DefaultLimit = 20
	// MaxLimit bounds the page size regardless of what the caller asks for.
	MaxLimit = 100
)

// Filter describes a conjunctive session query. Date bounds are inclusive and
// apply to the session start time. The search term matches via full-text
// search across event content, or as a case-insensitive substring of the
// project name, working directory, or git branch.
type Filter struct {
	Project  string
	DateFrom *time.Time
	DateTo   *time.Time
	Search   string
	Offset   int
	Limit    int
}

func (f Filter) normalize() Filter {
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return f
}

// Query returns one page of session summaries matching the filter, newest
// first, along with the total match count before pagination.
func (s *Store) Query(ctx context.Context, filter Filter) ([]session.Summary, int, error) {
	if err := s.ensureReady(); err != nil {
		return nil, 0, err
	}
	filter = filter.normalize()

	where := []string{}
	args := []interface{}{}

	if filter.Project != "" {
		where = append(where, "project_name = ?")
		args = append(args, filter.Project)
	}
	if filter.DateFrom != nil {
		where = append(where, "start_time >= ?")
		args = append(args, filter.DateFrom.UTC().Format(timeLayout))
	}
	if filter.DateTo != nil {
		where = append(where, "start_time <= ?")
		args = append(args, filter.DateTo.UTC().Format(timeLayout))
	}
	if filter.Search != "" {
		where = append(where, `(
                        session_id IN (
                                SELECT session_id FROM events_fts WHERE events_fts MATCH ?
                        )
                        OR project_name LIKE ?
                        OR git_branch LIKE ?
                        OR cwd LIKE ?
                )`)
		like := "%" + filter.Search + "%"
		args = append(args, ftsQuote(filter.Search), like, like, like)
	}

	whereSQL := "1=1"
	if len(where) > 0 {
		whereSQL = strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM sessions WHERE "+whereSQL, args...); err != nil {
		return nil, 0, fmt.Errorf("count query: %w", err)
	}

	rows := []sessionRow{}
	query := "SELECT * FROM sessions WHERE " + whereSQL + " ORDER BY start_time DESC, rowid ASC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("session query: %w", err)
	}

	summaries := make([]session.Summary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, row.summary())
	}
	return summaries, total, nil
}

// Get reconstructs one session's detail from the index. Thinking events are
// dropped from the returned sequence when includeThinking is false; the
// remaining events keep their original identifiers. Returns ErrNotFound when
// the session is not indexed.
func (s *Store) Get(ctx context.Context, sessionID string, includeThinking bool) (session.Detail, error) {
	if err := s.ensureReady(); err != nil {
		return session.Detail{}, err
	}

	var row sessionRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Detail{}, ErrNotFound
		}
		return session.Detail{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	eventRows := []eventRow{}
	if err := s.db.SelectContext(ctx, &eventRows, `SELECT * FROM events WHERE session_id = ? ORDER BY id ASC`, sessionID); err != nil {
		return session.Detail{}, fmt.Errorf("load events for %s: %w", sessionID, err)
	}

	var meta metadataRow
	if err := s.db.GetContext(ctx, &meta, `SELECT * FROM session_metadata WHERE session_id = ?`, sessionID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return session.Detail{}, fmt.Errorf("load metadata for %s: %w", sessionID, err)
	}

	events := make([]session.Event, 0, len(eventRows))
	for _, er := range eventRows {
		kind := session.EventKind(er.Type)
		if kind == session.KindThinking && !includeThinking {
			continue
		}
		evt := session.Event{
			ID:        er.EventID,
			Kind:      kind,
			Timestamp: parseStoredTime(er.Timestamp),
			Content:   er.Content.String,
			ToolName:  er.ToolName.String,
			ToolID:    er.ToolID.String,
		}
		if er.ToolInputJSON.Valid {
			_ = json.Unmarshal([]byte(er.ToolInputJSON.String), &evt.ToolInput)
		}
		if er.FilesAffectedJSON.Valid {
			_ = json.Unmarshal([]byte(er.FilesAffectedJSON.String), &evt.FilesAffected)
		}
		events = append(events, evt)
	}

	detail := session.Detail{
		SessionID:     row.SessionID,
		ProjectPath:   row.ProjectPath,
		ProjectName:   row.ProjectName,
		FilePath:      row.FilePath,
		CWD:           row.CWD.String,
		GitBranch:     row.GitBranch.String,
		StartTime:     parseStoredTime(row.StartTime),
		EndTime:       parseStoredTime(row.EndTime),
		FilesModified: decodeList(meta.FilesModifiedJSON),
		FilesRead:     decodeList(meta.FilesReadJSON),
		ToolsUsed:     decodeList(meta.ToolsUsedJSON),
		Phases:        decodeList(meta.PhasesJSON),
		Decisions:     decodeList(meta.DecisionsJSON),
		Events:        events,
	}
	if row.DurationSeconds.Valid {
		dur := int(row.DurationSeconds.Int64)
		detail.DurationSeconds = &dur
	}
	return detail, nil
}

// Lookup returns the indexed file path and project identity for a session
// without loading its events.
func (s *Store) Lookup(ctx context.Context, sessionID string) (session.Summary, error) {
	if err := s.ensureReady(); err != nil {
		return session.Summary{}, err
	}
	var row sessionRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Summary{}, ErrNotFound
		}
		return session.Summary{}, fmt.Errorf("lookup session %s: %w", sessionID, err)
	}
	return row.summary(), nil
}

// RecordedMtime returns the source file modification time (unix seconds) that
// was captured when the session was last indexed.
func (s *Store) RecordedMtime(ctx context.Context, sessionID string) (int64, error) {
	if err := s.ensureReady(); err != nil {
		return 0, err
	}
	var mtime int64
	if err := s.db.GetContext(ctx, &mtime, `SELECT file_mtime FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("recorded mtime for %s: %w", sessionID, err)
	}
	return mtime, nil
}

func (r sessionRow) summary() session.Summary {
	summary := session.Summary{
		SessionID:          r.SessionID,
		ProjectPath:        r.ProjectPath,
		ProjectName:        r.ProjectName,
		FilePath:           r.FilePath,
		StartTime:          parseStoredTime(r.StartTime),
		EndTime:            parseStoredTime(r.EndTime),
		GitBranch:          r.GitBranch.String,
		CWD:                r.CWD.String,
		MessageCount:       r.MessageCount,
		ToolCount:          r.ToolCount,
		FilesModifiedCount: r.FilesModifiedCount,
		FileSizeBytes:      r.FileSizeBytes,
	}
	if r.DurationSeconds.Valid {
		dur := int(r.DurationSeconds.Int64)
		summary.DurationSeconds = &dur
	}
	return summary
}

// ftsQuote wraps a user-supplied search term so FTS5 treats it as a literal
// phrase rather than match syntax.
func ftsQuote(term string) string {
	return `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
}

func decodeList(v sql.NullString) []string {
	out := []string{}
	if v.Valid && v.String != "" {
		_ = json.Unmarshal([]byte(v.String), &out)
	}
	return out
}
