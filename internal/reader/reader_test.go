// File path: internal/reader/reader_test.go
package reader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brettcrane/sessionindex/internal/index"
	"github.com/brettcrane/sessionindex/internal/session"
)

const sessionTemplate = `{"type":"user","sessionId":"%s","cwd":"/home/dev/app","gitBranch":"main","timestamp":"2025-03-01T10:00:00Z","message":{"role":"user","content":"%s"}}
{"type":"assistant","timestamp":"2025-03-01T10:01:00Z","message":{"role":"assistant","content":[{"type":"text","text":"On it"}]}}
`

func writeSessionFile(t *testing.T, root, project, sessionID, userText string) string {
	t.Helper()
	dir := filepath.Join(root, project)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, sessionID+".jsonl")
	if err := os.WriteFile(path, []byte(fmt.Sprintf(sessionTemplate, sessionID, userText)), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func openStore(t *testing.T) *index.Store {
	t.Helper()
	store, err := index.Open(index.Config{Path: filepath.Join(t.TempDir(), "sessions.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func fileMtime(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	return info.ModTime().Unix()
}

func indexedDetail(sessionID, path string) session.Detail {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return session.Detail{
		SessionID:   sessionID,
		ProjectPath: "/home/dev/app",
		ProjectName: "app",
		FilePath:    path,
		StartTime:   &start,
		Events: []session.Event{
			{ID: "evt-1", Kind: session.KindUser, Timestamp: &start, Content: "indexed projection"},
		},
	}
}

func TestGetSessionServesFreshIndexEntry(t *testing.T) {
	store := openStore(t)
	root := t.TempDir()
	ctx := context.Background()
	path := writeSessionFile(t, root, "-home-dev-app", "sess-1", "live file content")

	if err := store.Put(ctx, indexedDetail("sess-1", path), fileMtime(t, path), 100); err != nil {
		t.Fatalf("put: %v", err)
	}

	r := New(store, root)
	detail, err := r.GetSession(ctx, "sess-1", true)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(detail.Events) != 1 || detail.Events[0].Content != "indexed projection" {
		t.Fatalf("expected the indexed projection, got %+v", detail.Events)
	}
}

func TestGetSessionReparsesStaleEntry(t *testing.T) {
	store := openStore(t)
	root := t.TempDir()
	ctx := context.Background()
	path := writeSessionFile(t, root, "-home-dev-app", "sess-1", "live file content")

	// Record an mtime older than the file so the entry reads as stale.
	if err := store.Put(ctx, indexedDetail("sess-1", path), fileMtime(t, path)-100, 100); err != nil {
		t.Fatalf("put: %v", err)
	}

	r := New(store, root)
	detail, err := r.GetSession(ctx, "sess-1", true)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(detail.Events) == 0 || detail.Events[0].Content != "live file content" {
		t.Fatalf("expected a direct parse of the source file, got %+v", detail.Events)
	}
}

func TestGetSessionMissingSourceFile(t *testing.T) {
	store := openStore(t)
	root := t.TempDir()
	ctx := context.Background()

	gone := filepath.Join(root, "-home-dev-app", "sess-1.jsonl")
	if err := store.Put(ctx, indexedDetail("sess-1", gone), 1000, 100); err != nil {
		t.Fatalf("put: %v", err)
	}

	r := New(store, root)
	if _, err := r.GetSession(ctx, "sess-1", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for orphaned index entry, got %v", err)
	}
}

func TestGetSessionFallsBackToTreeScan(t *testing.T) {
	store := openStore(t)
	root := t.TempDir()
	ctx := context.Background()
	writeSessionFile(t, root, "-home-dev-app", "sess-1", "not indexed yet")

	r := New(store, root)
	detail, err := r.GetSession(ctx, "sess-1", true)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.SessionID != "sess-1" || detail.Events[0].Content != "not indexed yet" {
		t.Fatalf("unexpected detail: %+v", detail)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	r := New(nil, t.TempDir())
	if _, err := r.GetSession(context.Background(), "missing", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetSessionsNilStoreScansTree(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	writeSessionFile(t, root, "-home-dev-app", "sess-1", "first")
	writeSessionFile(t, root, "-home-dev-app", "sess-2", "second")

	r := New(nil, root)
	summaries, total, err := r.GetSessions(ctx, index.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(summaries) != 2 {
		t.Fatalf("total=%d len=%d", total, len(summaries))
	}
	for _, s := range summaries {
		if s.ProjectName != "app" {
			t.Fatalf("project name = %q", s.ProjectName)
		}
		if s.MessageCount != 2 {
			t.Fatalf("message count = %d", s.MessageCount)
		}
	}
}

func TestGetSessionsFallbackSearchAndDates(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	writeSessionFile(t, root, "-home-dev-app", "sess-1", "rework the tokenizer")
	writeSessionFile(t, root, "-home-dev-app", "sess-2", "unrelated chatter")

	r := New(nil, root)
	summaries, total, err := r.GetSessions(ctx, index.Filter{Search: "tokenizer"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 || summaries[0].SessionID != "sess-1" {
		t.Fatalf("search result: total=%d %+v", total, summaries)
	}

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, total, err = r.GetSessions(ctx, index.Filter{DateFrom: &from})
	if err != nil {
		t.Fatalf("date filter: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected no sessions after %v, got %d", from, total)
	}
}

func TestFallbackCacheHonorsTTL(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	writeSessionFile(t, root, "-home-dev-app", "sess-1", "first")

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := New(nil, root, WithCacheTTL(5*time.Minute), WithClock(func() time.Time { return now }))

	if _, total, err := r.GetSessions(ctx, index.Filter{}); err != nil || total != 1 {
		t.Fatalf("first list: total=%d err=%v", total, err)
	}

	// A file added while the cache entry is live is not visible yet.
	writeSessionFile(t, root, "-home-dev-app", "sess-2", "second")
	if _, total, err := r.GetSessions(ctx, index.Filter{}); err != nil || total != 1 {
		t.Fatalf("cached list: total=%d err=%v", total, err)
	}

	now = now.Add(6 * time.Minute)
	if _, total, err := r.GetSessions(ctx, index.Filter{}); err != nil || total != 2 {
		t.Fatalf("list after expiry: total=%d err=%v", total, err)
	}
}

func TestClearCacheDropsFallbackEntries(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	writeSessionFile(t, root, "-home-dev-app", "sess-1", "first")

	r := New(nil, root)
	if _, total, err := r.GetSessions(ctx, index.Filter{}); err != nil || total != 1 {
		t.Fatalf("first list: total=%d err=%v", total, err)
	}
	writeSessionFile(t, root, "-home-dev-app", "sess-2", "second")
	r.ClearCache()
	if _, total, err := r.GetSessions(ctx, index.Filter{}); err != nil || total != 2 {
		t.Fatalf("list after purge: total=%d err=%v", total, err)
	}
}

func TestFallbackPagination(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		writeSessionFile(t, root, "-home-dev-app", fmt.Sprintf("sess-%d", i), "anything")
	}

	r := New(nil, root)
	page, total, err := r.GetSessions(ctx, index.Filter{Offset: 2, Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(page) != 1 {
		t.Fatalf("total=%d len=%d", total, len(page))
	}
	if _, total, err = r.GetSessions(ctx, index.Filter{Offset: 10, Limit: 2}); err != nil || total != 3 {
		t.Fatalf("offset past end: total=%d err=%v", total, err)
	}
}
