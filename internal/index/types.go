// File path: internal/index/types.go
package index

import (
	"database/sql"
	"time"
)

// sessionRow mirrors one sessions table row.
type sessionRow struct {
	SessionID          string         `db:"session_id"`
	ProjectPath        string         `db:"project_path"`
	ProjectName        string         `db:"project_name"`
	FilePath           string         `db:"file_path"`
	StartTime          sql.NullString `db:"start_time"`
	EndTime            sql.NullString `db:"end_time"`
	DurationSeconds    sql.NullInt64  `db:"duration_seconds"`
	GitBranch          sql.NullString `db:"git_branch"`
	CWD                sql.NullString `db:"cwd"`
	MessageCount       int            `db:"message_count"`
	ToolCount          int            `db:"tool_count"`
	FilesModifiedCount int            `db:"files_modified_count"`
	FileSizeBytes      int64          `db:"file_size_bytes"`
	FileMtime          int64          `db:"file_mtime"`
	IndexedAt          string         `db:"indexed_at"`
}

// eventRow mirrors one events table row.
type eventRow struct {
	ID                int64          `db:"id"`
	SessionID         string         `db:"session_id"`
	EventID           string         `db:"event_id"`
	Type              string         `db:"type"`
	Timestamp         sql.NullString `db:"timestamp"`
	Content           sql.NullString `db:"content"`
	ToolName          sql.NullString `db:"tool_name"`
	ToolInputJSON     sql.NullString `db:"tool_input_json"`
	ToolID            sql.NullString `db:"tool_id"`
	FilesAffectedJSON sql.NullString `db:"files_affected_json"`
}

// metadataRow mirrors one session_metadata table row.
type metadataRow struct {
	SessionID         string         `db:"session_id"`
	FilesModifiedJSON sql.NullString `db:"files_modified_json"`
	FilesReadJSON     sql.NullString `db:"files_read_json"`
	ToolsUsedJSON     sql.NullString `db:"tools_used_json"`
	PhasesJSON        sql.NullString `db:"phases_json"`
	DecisionsJSON     sql.NullString `db:"decisions_json"`
}

// timeLayout is a fixed-width UTC layout so that lexicographic comparison of
// stored timestamps matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000Z"

func formatTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseStoredTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, v.String)
	if err != nil {
		return nil
	}
	return &t
}
