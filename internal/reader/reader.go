// File path: internal/reader/reader.go
package reader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/brettcrane/sessionindex/internal/common"
	"github.com/brettcrane/sessionindex/internal/index"
	"github.com/brettcrane/sessionindex/internal/parser"
	"github.com/brettcrane/sessionindex/internal/projects"
	"github.com/brettcrane/sessionindex/internal/session"
)

// ErrNotFound marks a session lookup that yielded no data on either the index
// or the direct-parse path.
var ErrNotFound = errors.New("session not found")

// Reader serves lookups from the index when it is fresh and transparently
// falls back to parsing source files directly when the index is stale,
// missing an entry, or unavailable.
type Reader struct {
	store *index.Store
	root  string
	cache *summaryCache
	log   *slog.Logger
}

// Option adjusts reader construction.
type Option func(*options)

type options struct {
	cacheSize int
	cacheTTL  time.Duration
	clock     Clock
}

// WithCacheSize bounds the fallback summary cache entry count.
func WithCacheSize(size int) Option {
	return func(o *options) { o.cacheSize = size }
}

// WithCacheTTL sets the fallback summary cache expiry.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *options) { o.cacheTTL = ttl }
}

// WithClock injects the cache clock. Primarily used in tests.
func WithClock(clock Clock) Option {
	return func(o *options) { o.clock = clock }
}

// New constructs a Reader over the given index store and projects root. A nil
// store is valid and forces every read onto the fallback path.
func New(store *index.Store, projectsRoot string, opts ...Option) *Reader {
	settings := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}
	return &Reader{
		store: store,
		root:  projectsRoot,
		cache: newSummaryCache(settings.cacheSize, settings.cacheTTL, settings.clock),
		log:   common.Component("reader"),
	}
}

// GetSession returns one session's full detail. The index is consulted first;
// when the entry is present but the source file has been written since it was
// indexed, the file is parsed directly for this call and the index is left
// for the next sync to reconcile. Index faults and missing entries fall back
// to scanning the project tree.
func (r *Reader) GetSession(ctx context.Context, sessionID string, includeThinking bool) (session.Detail, error) {
	if r.store != nil {
		detail, err := r.store.Get(ctx, sessionID, includeThinking)
		switch {
		case err == nil:
			fresh, ferr := r.indexEntryFresh(ctx, sessionID, detail.FilePath)
			if ferr != nil {
				return session.Detail{}, ferr
			}
			if fresh {
				return detail, nil
			}
			r.log.Info("index entry stale, parsing source directly", "session", sessionID)
			return parser.ParseFile(detail.FilePath, detail.ProjectPath, detail.ProjectName, includeThinking)
		case errors.Is(err, index.ErrNotFound):
			// Not indexed yet; fall through to the tree scan.
		default:
			r.log.Warn("index unavailable for session read", "session", sessionID, "error", err)
		}
	}

	detail, ok := r.scanForSession(sessionID, includeThinking)
	if !ok {
		return session.Detail{}, ErrNotFound
	}
	return detail, nil
}

// indexEntryFresh reports whether the indexed projection still reflects the
// source file. A vanished source file surfaces as not found rather than
// serving a projection with no backing truth.
func (r *Reader) indexEntryFresh(ctx context.Context, sessionID, filePath string) (bool, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			r.log.Warn("indexed source file missing", "session", sessionID, "file", filePath)
			return false, ErrNotFound
		}
		return false, fmt.Errorf("stat source file %s: %w", filePath, err)
	}
	recorded, err := r.store.RecordedMtime(ctx, sessionID)
	if err != nil {
		return false, nil
	}
	return info.ModTime().Unix() <= recorded, nil
}

// GetSessions returns one page of filtered session summaries plus the total
// match count. The index query is preferred; when it fails the reader serves
// a cached full scan of the source files with the same filter semantics
// applied in process.
func (r *Reader) GetSessions(ctx context.Context, filter index.Filter) ([]session.Summary, int, error) {
	if r.store != nil {
		summaries, total, err := r.store.Query(ctx, filter)
		if err == nil {
			return summaries, total, nil
		}
		r.log.Warn("index unavailable for session list, using fallback scan", "error", err)
	}
	return r.fallbackSessions(ctx, filter)
}

// ClearCache drops every fallback cache entry.
func (r *Reader) ClearCache() {
	r.cache.Purge()
}

func (r *Reader) fallbackSessions(ctx context.Context, filter index.Filter) ([]session.Summary, int, error) {
	key := cacheKey(filter)
	matched, ok := r.cache.Get(key)
	if !ok {
		all, err := r.scanSummaries(ctx, filter.Project)
		if err != nil {
			return nil, 0, err
		}
		matched = filterSummaries(all, filter)
		r.cache.Set(key, matched)
	}

	sorted := make([]session.Summary, len(matched))
	copy(sorted, matched)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sortTime(sorted[i].StartTime).After(sortTime(sorted[j].StartTime))
	})

	total := len(sorted)
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = index.DefaultLimit
	}
	if limit > index.MaxLimit {
		limit = index.MaxLimit
	}
	if offset >= total {
		return []session.Summary{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return sorted[offset:end], total, nil
}

func (r *Reader) scanSummaries(ctx context.Context, project string) ([]session.Summary, error) {
	list, err := projects.List(r.root)
	if err != nil {
		return nil, err
	}
	var out []session.Summary
	for _, proj := range list {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if project != "" && proj.Name != project {
			continue
		}
		files, err := projects.SessionFiles(proj.Path)
		if err != nil {
			continue
		}
		for _, file := range files {
			summary, err := parser.Summarize(file, proj.DecodedPath, proj.Name)
			if err != nil {
				r.log.Debug("skipping unreadable session file", "file", file, "error", err)
				continue
			}
			out = append(out, summary)
		}
	}
	return out, nil
}

func (r *Reader) scanForSession(sessionID string, includeThinking bool) (session.Detail, bool) {
	list, err := projects.List(r.root)
	if err != nil {
		return session.Detail{}, false
	}
	for _, proj := range list {
		exact := filepath.Join(proj.Path, sessionID+".jsonl")
		if _, err := os.Stat(exact); err == nil {
			detail, perr := parser.ParseFile(exact, proj.DecodedPath, proj.Name, includeThinking)
			if perr == nil {
				return detail, true
			}
		}
		files, err := projects.SessionFiles(proj.Path)
		if err != nil {
			continue
		}
		for _, file := range files {
			if !strings.Contains(projects.Stem(file), sessionID) {
				continue
			}
			detail, perr := parser.ParseFile(file, proj.DecodedPath, proj.Name, includeThinking)
			if perr == nil {
				return detail, true
			}
		}
	}
	return session.Detail{}, false
}

func filterSummaries(all []session.Summary, filter index.Filter) []session.Summary {
	out := make([]session.Summary, 0, len(all))
	search := strings.ToLower(filter.Search)
	for _, s := range all {
		if filter.DateFrom != nil && (s.StartTime == nil || s.StartTime.Before(*filter.DateFrom)) {
			continue
		}
		if filter.DateTo != nil && (s.StartTime == nil || s.StartTime.After(*filter.DateTo)) {
			continue
		}
		if search != "" && !summaryMatches(s, search) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// summaryMatches mirrors the index's search semantics in process: metadata
// substrings first, then the raw file content.
func summaryMatches(s session.Summary, search string) bool {
	if strings.Contains(strings.ToLower(s.ProjectName), search) ||
		strings.Contains(strings.ToLower(s.CWD), search) ||
		strings.Contains(strings.ToLower(s.GitBranch), search) {
		return true
	}
	content, err := os.ReadFile(s.FilePath)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(content)), search)
}

func cacheKey(filter index.Filter) string {
	var from, to string
	if filter.DateFrom != nil {
		from = filter.DateFrom.UTC().Format(time.RFC3339)
	}
	if filter.DateTo != nil {
		to = filter.DateTo.UTC().Format(time.RFC3339)
	}
	return strings.Join([]string{filter.Project, from, to, filter.Search}, "|")
}

func sortTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
