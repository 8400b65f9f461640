// File path: internal/session/types.go
package session

import "time"

// EventKind identifies the normalized type of a timeline event.
type EventKind string

const (
	KindUser       EventKind = "user"
	KindAssistant  EventKind = "assistant"
	KindThinking   EventKind = "thinking"
	KindToolUse    EventKind = "tool_use"
	KindToolResult EventKind = "tool_result"
)

// Event is one normalized unit of a session timeline. Identifiers are assigned
// in strictly increasing order of appearance in the source file. Tool fields
// are populated only for tool_use/tool_result events; Content is empty for
// tool_use events.
type Event struct {
	ID            string                 `json:"id"`
	Kind          EventKind              `json:"type"`
	Timestamp     *time.Time             `json:"timestamp,omitempty"`
	Content       string                 `json:"content,omitempty"`
	ToolName      string                 `json:"tool_name,omitempty"`
	ToolInput     map[string]interface{} `json:"tool_input,omitempty"`
	ToolID        string                 `json:"tool_id,omitempty"`
	FilesAffected []string               `json:"files_affected,omitempty"`
}

// Summary holds lightweight session information for list views.
type Summary struct {
	SessionID          string     `json:"session_id"`
	ProjectPath        string     `json:"project_path"`
	ProjectName        string     `json:"project_name"`
	FilePath           string     `json:"file_path"`
	StartTime          *time.Time `json:"start_time,omitempty"`
	EndTime            *time.Time `json:"end_time,omitempty"`
	DurationSeconds    *int       `json:"duration_seconds,omitempty"`
	GitBranch          string     `json:"git_branch,omitempty"`
	CWD                string     `json:"cwd,omitempty"`
	MessageCount       int        `json:"message_count"`
	ToolCount          int        `json:"tool_count"`
	FilesModifiedCount int        `json:"files_modified_count"`
	FileSizeBytes      int64      `json:"file_size_bytes"`
}

// Detail is the full parsed representation of one source file: the summary
// fields plus the ordered event timeline and the derived metadata sets.
type Detail struct {
	SessionID       string     `json:"session_id"`
	ProjectPath     string     `json:"project_path"`
	ProjectName     string     `json:"project_name"`
	FilePath        string     `json:"file_path"`
	CWD             string     `json:"cwd,omitempty"`
	GitBranch       string     `json:"git_branch,omitempty"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationSeconds *int       `json:"duration_seconds,omitempty"`
	FilesModified   []string   `json:"files_modified"`
	FilesRead       []string   `json:"files_read"`
	ToolsUsed       []string   `json:"tools_used"`
	Phases          []string   `json:"phases"`
	Decisions       []string   `json:"decisions"`
	Events          []Event    `json:"events"`
}

// Summary projects the detail down to its list-view fields. FileSizeBytes is
// not derivable from the events and must be supplied by the caller.
func (d Detail) Summary(fileSize int64) Summary {
	var messages, tools int
	for _, evt := range d.Events {
		switch evt.Kind {
		case KindUser, KindAssistant:
			messages++
		case KindToolUse:
			tools++
		}
	}
	return Summary{
		SessionID:          d.SessionID,
		ProjectPath:        d.ProjectPath,
		ProjectName:        d.ProjectName,
		FilePath:           d.FilePath,
		StartTime:          d.StartTime,
		EndTime:            d.EndTime,
		DurationSeconds:    d.DurationSeconds,
		GitBranch:          d.GitBranch,
		CWD:                d.CWD,
		MessageCount:       messages,
		ToolCount:          tools,
		FilesModifiedCount: len(d.FilesModified),
		FileSizeBytes:      fileSize,
	}
}

// Project describes one project directory under the projects root.
type Project struct {
	EncodedName  string `json:"encoded_name"`
	DecodedPath  string `json:"decoded_path"`
	Name         string `json:"name"`
	Path         string `json:"path"`
	SessionCount int    `json:"session_count"`
}
