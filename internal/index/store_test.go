// File path: internal/index/store_test.go
package index

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/brettcrane/sessionindex/internal/session"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Config{Path: filepath.Join(t.TempDir(), "sessions.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func ts(t *testing.T, value string) *time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time %q: %v", value, err)
	}
	return &parsed
}

func testDetail(t *testing.T, id, project string, start string) session.Detail {
	t.Helper()
	startAt := ts(t, start)
	endAt := startAt.Add(2 * time.Minute)
	duration := 120
	return session.Detail{
		SessionID:   id,
		ProjectPath: "/home/dev/" + project,
		ProjectName: project,
		FilePath:    "/logs/" + project + "/" + id + ".jsonl",
		CWD:         "/home/dev/" + project,
		GitBranch:   "main",
		StartTime:   startAt,
		EndTime:     &endAt,
		DurationSeconds: &duration,
		FilesModified:   []string{"parser.go"},
		FilesRead:       []string{"README.md"},
		ToolsUsed:       []string{"Edit", "Read"},
		Phases:          []string{"1. plan"},
		Decisions:       []string{"rework the indexing pipeline"},
		Events: []session.Event{
			{ID: "evt-1", Kind: session.KindUser, Timestamp: startAt, Content: "please refactor the indexing layer"},
			{ID: "evt-2", Kind: session.KindThinking, Timestamp: startAt, Content: "weighing schema options"},
			{ID: "evt-3", Kind: session.KindToolUse, Timestamp: startAt, ToolName: "Edit", ToolID: "toolu_1",
				ToolInput: map[string]interface{}{"file_path": "parser.go"}, FilesAffected: []string{"parser.go"}},
			{ID: "evt-4", Kind: session.KindToolResult, Timestamp: &endAt, Content: "ok", ToolID: "toolu_1"},
		},
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	detail := testDetail(t, "sess-1", "app", "2025-03-01T10:00:00Z")

	if err := store.Put(ctx, detail, 1000, 2048); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(ctx, "sess-1", true)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(got.Events))
	}
	for i, evt := range got.Events {
		if evt.ID != detail.Events[i].ID || evt.Kind != detail.Events[i].Kind {
			t.Fatalf("event %d mismatch: %+v", i, evt)
		}
	}
	if !reflect.DeepEqual(got.FilesModified, detail.FilesModified) ||
		!reflect.DeepEqual(got.ToolsUsed, detail.ToolsUsed) ||
		!reflect.DeepEqual(got.Decisions, detail.Decisions) {
		t.Fatalf("metadata mismatch: %+v", got)
	}
	if got.Events[2].ToolInput["file_path"] != "parser.go" {
		t.Fatalf("tool input lost: %+v", got.Events[2])
	}
	if got.DurationSeconds == nil || *got.DurationSeconds != 120 {
		t.Fatalf("duration = %v", got.DurationSeconds)
	}
}

func TestGetFiltersThinkingWithoutRenumbering(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.Put(ctx, testDetail(t, "sess-1", "app", "2025-03-01T10:00:00Z"), 1000, 2048); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(ctx, "sess-1", false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got.Events))
	}
	wantIDs := []string{"evt-1", "evt-3", "evt-4"}
	for i, evt := range got.Events {
		if evt.ID != wantIDs[i] {
			t.Fatalf("event %d id = %q, want %q", i, evt.ID, wantIDs[i])
		}
		if evt.Kind == session.KindThinking {
			t.Fatalf("thinking event leaked: %+v", evt)
		}
	}
}

func TestPutIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	detail := testDetail(t, "sess-1", "app", "2025-03-01T10:00:00Z")

	if err := store.Put(ctx, detail, 1000, 2048); err != nil {
		t.Fatalf("first put: %v", err)
	}
	first, err := store.Get(ctx, "sess-1", true)
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	if err := store.Put(ctx, detail, 1000, 2048); err != nil {
		t.Fatalf("second put: %v", err)
	}
	second, err := store.Get(ctx, "sess-1", true)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("re-indexing changed the entry:\nfirst:  %+v\nsecond: %+v", first, second)
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 entry after re-index, got %d", count)
	}
}

func TestGetNotFound(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Get(context.Background(), "missing", true); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQuerySearchMatchesEventContent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.Put(ctx, testDetail(t, "sess-1", "app", "2025-03-01T10:00:00Z"), 1000, 100); err != nil {
		t.Fatalf("put: %v", err)
	}
	other := testDetail(t, "sess-2", "web", "2025-03-02T10:00:00Z")
	other.Events = []session.Event{{ID: "evt-1", Kind: session.KindUser, Content: "something else entirely"}}
	if err := store.Put(ctx, other, 1000, 100); err != nil {
		t.Fatalf("put other: %v", err)
	}

	got, total, err := store.Query(ctx, Filter{Search: "refactor"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 1 || len(got) != 1 || got[0].SessionID != "sess-1" {
		t.Fatalf("unexpected result: total=%d got=%+v", total, got)
	}

	_, total, err = store.Query(ctx, Filter{Search: "no such phrase anywhere"})
	if err != nil {
		t.Fatalf("query miss: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected no matches, got %d", total)
	}
}

func TestQuerySearchMatchesMetadataSubstring(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	detail := testDetail(t, "sess-1", "storycrafter", "2025-03-01T10:00:00Z")
	detail.GitBranch = "feature/indexing"
	if err := store.Put(ctx, detail, 1000, 100); err != nil {
		t.Fatalf("put: %v", err)
	}

	for _, term := range []string{"storycraft", "feature/index", "/home/dev"} {
		_, total, err := store.Query(ctx, Filter{Search: term})
		if err != nil {
			t.Fatalf("query %q: %v", term, err)
		}
		if total != 1 {
			t.Fatalf("search %q: expected 1 match, got %d", term, total)
		}
	}
}

func TestQueryDateBoundsAndProject(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.Put(ctx, testDetail(t, "sess-1", "app", "2025-03-01T10:00:00Z"), 1000, 100); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, testDetail(t, "sess-2", "app", "2025-03-05T10:00:00Z"), 1000, 100); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, testDetail(t, "sess-3", "web", "2025-03-03T10:00:00Z"), 1000, 100); err != nil {
		t.Fatalf("put: %v", err)
	}

	_, total, err := store.Query(ctx, Filter{Project: "app"})
	if err != nil {
		t.Fatalf("project query: %v", err)
	}
	if total != 2 {
		t.Fatalf("project filter: expected 2, got %d", total)
	}

	// A lower bound after a session's start time excludes it from results and
	// count alike.
	got, total, err := store.Query(ctx, Filter{DateFrom: ts(t, "2025-03-02T00:00:00Z")})
	if err != nil {
		t.Fatalf("date query: %v", err)
	}
	if total != 2 {
		t.Fatalf("date filter: expected 2, got %d", total)
	}
	for _, s := range got {
		if s.SessionID == "sess-1" {
			t.Fatalf("sess-1 should be excluded: %+v", got)
		}
	}

	_, total, err = store.Query(ctx, Filter{
		DateFrom: ts(t, "2025-03-02T00:00:00Z"),
		DateTo:   ts(t, "2025-03-04T00:00:00Z"),
		Project:  "web",
	})
	if err != nil {
		t.Fatalf("combined query: %v", err)
	}
	if total != 1 {
		t.Fatalf("combined filter: expected 1, got %d", total)
	}
}

func TestQueryOrderAndPagination(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	starts := []string{"2025-03-01T10:00:00Z", "2025-03-03T10:00:00Z", "2025-03-02T10:00:00Z"}
	for i, start := range starts {
		detail := testDetail(t, "sess-"+string(rune('a'+i)), "app", start)
		if err := store.Put(ctx, detail, 1000, 100); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	got, total, err := store.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 3 || len(got) != 3 {
		t.Fatalf("total=%d len=%d", total, len(got))
	}
	if got[0].SessionID != "sess-b" || got[2].SessionID != "sess-a" {
		t.Fatalf("unexpected order: %v, %v, %v", got[0].SessionID, got[1].SessionID, got[2].SessionID)
	}

	page, total, err := store.Query(ctx, Filter{Offset: 1, Limit: 1})
	if err != nil {
		t.Fatalf("paginated query: %v", err)
	}
	if total != 3 || len(page) != 1 || page[0].SessionID != "sess-c" {
		t.Fatalf("unexpected page: total=%d %+v", total, page)
	}
	if len(page) > 1 || 1+len(page) > total {
		t.Fatalf("pagination invariant violated")
	}

	empty, total, err := store.Query(ctx, Filter{Offset: 10, Limit: 5})
	if err != nil {
		t.Fatalf("offset beyond end: %v", err)
	}
	if total != 3 || len(empty) != 0 {
		t.Fatalf("expected empty page, got %+v", empty)
	}
}

func TestClearAndCount(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.Put(ctx, testDetail(t, "sess-1", "app", "2025-03-01T10:00:00Z"), 1000, 100); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty store, got %d", count)
	}
	// The store stays queryable after a clear.
	if _, total, err := store.Query(ctx, Filter{Search: "refactor"}); err != nil || total != 0 {
		t.Fatalf("query after clear: total=%d err=%v", total, err)
	}
}

func TestRecordedMtimeAndIndexedFiles(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	detail := testDetail(t, "sess-1", "app", "2025-03-01T10:00:00Z")
	if err := store.Put(ctx, detail, 4242, 100); err != nil {
		t.Fatalf("put: %v", err)
	}

	mtime, err := store.RecordedMtime(ctx, "sess-1")
	if err != nil {
		t.Fatalf("recorded mtime: %v", err)
	}
	if mtime != 4242 {
		t.Fatalf("mtime = %d", mtime)
	}

	files, err := store.IndexedFiles(ctx)
	if err != nil {
		t.Fatalf("indexed files: %v", err)
	}
	if files[detail.FilePath] != 4242 {
		t.Fatalf("indexed files = %v", files)
	}
}

func TestRepairSearchRestoresMatches(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.Put(ctx, testDetail(t, "sess-1", "app", "2025-03-01T10:00:00Z"), 1000, 100); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.RepairSearch(ctx); err != nil {
		t.Fatalf("repair: %v", err)
	}
	_, total, err := store.Query(ctx, Filter{Search: "refactor"})
	if err != nil {
		t.Fatalf("query after repair: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected search to work after repair, got %d", total)
	}
	if err := store.VerifySearch(ctx); err != nil {
		t.Fatalf("verify: %v", err)
	}
}
