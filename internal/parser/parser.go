// File path: internal/parser/parser.go
package parser

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/brettcrane/sessionindex/internal/common"
	"github.com/brettcrane/sessionindex/internal/session"
)

const (
	maxLineBytes = 10 << 20
	maxHeuristic = 15
)

// rawRecord is one loosely typed line of a source file. The content payload
// shape varies by record kind, so it is kept raw until the role is known.
type rawRecord struct {
	Type      string     `json:"type"`
	SessionID string     `json:"sessionId"`
	CWD       string     `json:"cwd"`
	GitBranch string     `json:"gitBranch"`
	Timestamp string     `json:"timestamp"`
	Message   rawMessage `json:"message"`
}

type rawMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type contentBlock struct {
	Type      string                 `json:"type"`
	Text      string                 `json:"text"`
	Thinking  string                 `json:"thinking"`
	Name      string                 `json:"name"`
	Input     map[string]interface{} `json:"input"`
	ID        string                 `json:"id"`
	ToolUseID string                 `json:"tool_use_id"`
	Content   json.RawMessage        `json:"content"`
}

// ParseFile converts one JSONL source file into a session detail. Parsing is
// best effort: unparsable lines are skipped and never abort the file, and a
// file with zero valid records yields a minimal detail whose identifier falls
// back to the file stem. Only I/O failures return an error.
//
// Thinking blocks always advance the event counter so identifiers stay stable
// across calls; the events themselves are emitted only when includeThinking is
// set.
func ParseFile(path, projectPath, projectName string, includeThinking bool) (session.Detail, error) {
	f, err := os.Open(path)
	if err != nil {
		return session.Detail{}, fmt.Errorf("open session file %s: %w", path, err)
	}
	defer f.Close()

	st := newParseState()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec rawRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			common.Component("parser").Debug("skipping malformed line", "file", path)
			continue
		}
		st.consume(rec, includeThinking)
	}
	if err := scanner.Err(); err != nil {
		return session.Detail{}, fmt.Errorf("read session file %s: %w", path, err)
	}

	return st.finish(path, projectPath, projectName), nil
}

// Summarize produces the lightweight list-view projection of one source file.
func Summarize(path, projectPath, projectName string) (session.Summary, error) {
	detail, err := ParseFile(path, projectPath, projectName, false)
	if err != nil {
		return session.Summary{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return session.Summary{}, fmt.Errorf("stat session file %s: %w", path, err)
	}
	return detail.Summary(info.Size()), nil
}

type parseState struct {
	sessionID string
	cwd       string
	gitBranch string
	start     *time.Time
	end       *time.Time

	events        []session.Event
	eventCounter  int
	filesModified map[string]struct{}
	filesRead     map[string]struct{}
	toolsUsed     map[string]struct{}
	phases        []string
	decisions     []string
	seenPhase     map[string]struct{}
	seenDecision  map[string]struct{}
}

func newParseState() *parseState {
	return &parseState{
		filesModified: make(map[string]struct{}),
		filesRead:     make(map[string]struct{}),
		toolsUsed:     make(map[string]struct{}),
		seenPhase:     make(map[string]struct{}),
		seenDecision:  make(map[string]struct{}),
	}
}

func (st *parseState) consume(rec rawRecord, includeThinking bool) {
	ts := parseTimestamp(rec.Timestamp)

	// First non-empty value wins; later records never override.
	if st.sessionID == "" {
		st.sessionID = rec.SessionID
	}
	if st.cwd == "" {
		st.cwd = rec.CWD
	}
	if st.gitBranch == "" {
		st.gitBranch = rec.GitBranch
	}

	if ts != nil {
		if st.start == nil || ts.Before(*st.start) {
			st.start = ts
		}
		if st.end == nil || ts.After(*st.end) {
			st.end = ts
		}
	}

	if rec.Type == "queue-operation" {
		return
	}
	if len(rec.Message.Content) == 0 {
		return
	}

	switch rec.Message.Role {
	case "user":
		st.consumeUser(rec.Message.Content, ts)
	case "assistant":
		st.consumeAssistant(rec.Message.Content, ts, includeThinking)
	}
}

func (st *parseState) consumeUser(content json.RawMessage, ts *time.Time) {
	var text string
	if err := json.Unmarshal(content, &text); err == nil {
		if text == "" {
			return
		}
		st.events = append(st.events, session.Event{
			ID:        st.nextID(),
			Kind:      session.KindUser,
			Timestamp: ts,
			Content:   text,
		})
		st.addPhases(DetectPhases(text))
		return
	}

	var blocks []contentBlock
	if err := json.Unmarshal(content, &blocks); err != nil {
		return
	}
	for _, block := range blocks {
		if block.Type != "tool_result" {
			continue
		}
		st.events = append(st.events, session.Event{
			ID:        st.nextID(),
			Kind:      session.KindToolResult,
			Timestamp: ts,
			Content:   blockText(block.Content),
			ToolID:    block.ToolUseID,
		})
	}
}

func (st *parseState) consumeAssistant(content json.RawMessage, ts *time.Time, includeThinking bool) {
	var blocks []contentBlock
	if err := json.Unmarshal(content, &blocks); err != nil {
		return
	}
	for _, block := range blocks {
		switch block.Type {
		case "thinking":
			id := st.nextID()
			if includeThinking {
				st.events = append(st.events, session.Event{
					ID:        id,
					Kind:      session.KindThinking,
					Timestamp: ts,
					Content:   block.Thinking,
				})
			}
		case "text":
			st.events = append(st.events, session.Event{
				ID:        st.nextID(),
				Kind:      session.KindAssistant,
				Timestamp: ts,
				Content:   block.Text,
			})
			st.addPhases(DetectPhases(block.Text))
			st.addDecisions(DetectDecisions(block.Text))
		case "tool_use":
			st.toolsUsed[block.Name] = struct{}{}
			files := ExtractToolFiles(block.Name, block.Input)
			switch block.Name {
			case "Write", "Edit":
				for _, f := range files {
					st.filesModified[f] = struct{}{}
				}
			case "Read":
				for _, f := range files {
					st.filesRead[f] = struct{}{}
				}
			}
			st.events = append(st.events, session.Event{
				ID:            st.nextID(),
				Kind:          session.KindToolUse,
				Timestamp:     ts,
				ToolName:      block.Name,
				ToolInput:     block.Input,
				ToolID:        block.ID,
				FilesAffected: files,
			})
		}
	}
}

func (st *parseState) finish(path, projectPath, projectName string) session.Detail {
	id := st.sessionID
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	var duration *int
	if st.start != nil && st.end != nil {
		secs := int(st.end.Sub(*st.start) / time.Second)
		duration = &secs
	}

	return session.Detail{
		SessionID:       id,
		ProjectPath:     projectPath,
		ProjectName:     projectName,
		FilePath:        path,
		CWD:             st.cwd,
		GitBranch:       st.gitBranch,
		StartTime:       st.start,
		EndTime:         st.end,
		DurationSeconds: duration,
		FilesModified:   sortedConcrete(st.filesModified),
		FilesRead:       sortedConcrete(st.filesRead),
		ToolsUsed:       sortedSet(st.toolsUsed),
		Phases:          st.phases,
		Decisions:       st.decisions,
		Events:          st.events,
	}
}

func (st *parseState) nextID() string {
	st.eventCounter++
	return fmt.Sprintf("evt-%d", st.eventCounter)
}

func (st *parseState) addPhases(phases []string) {
	for _, p := range phases {
		if _, ok := st.seenPhase[p]; ok {
			continue
		}
		if len(st.phases) == maxHeuristic {
			return
		}
		st.seenPhase[p] = struct{}{}
		st.phases = append(st.phases, p)
	}
}

func (st *parseState) addDecisions(decisions []string) {
	for _, d := range decisions {
		if _, ok := st.seenDecision[d]; ok {
			continue
		}
		if len(st.decisions) == maxHeuristic {
			return
		}
		st.seenDecision[d] = struct{}{}
		st.decisions = append(st.decisions, d)
	}
}

// blockText renders a tool_result payload: plain strings pass through and any
// structured payload keeps its raw JSON text.
func blockText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(raw)
}

func parseTimestamp(value string) *time.Time {
	if value == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &ts
}

func sortedConcrete(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for f := range set {
		if syntheticPath(f) {
			continue
		}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
