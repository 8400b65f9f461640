// File path: internal/syncer/syncer.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/brettcrane/sessionindex/internal/common"
	"github.com/brettcrane/sessionindex/internal/index"
	"github.com/brettcrane/sessionindex/internal/parser"
	"github.com/brettcrane/sessionindex/internal/projects"
	"github.com/brettcrane/sessionindex/internal/session"
)

const parseWorkers = 4

// Syncer drives incremental updates and full rebuilds of the index from the
// source files under a projects root.
type Syncer struct {
	store *index.Store
	log   *slog.Logger
}

// New constructs a Syncer writing into the provided store.
func New(store *index.Store) *Syncer {
	return &Syncer{store: store, log: common.Component("syncer")}
}

// Candidate is one source file that needs (re-)indexing.
type Candidate struct {
	Path        string
	EncodedName string
}

// Scan reports the source files under projectsRoot that are either newer than
// their index entry or missing from the index entirely. Files recorded in the
// index but absent from disk are not reported; they are handled lazily at
// query time.
func (s *Syncer) Scan(ctx context.Context, projectsRoot string) ([]Candidate, error) {
	indexed, err := s.store.IndexedFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load indexed files: %w", err)
	}

	dirs, err := projects.Dirs(projectsRoot)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var candidates []Candidate
	for _, dir := range dirs {
		files, err := projects.SessionFiles(filepath.Join(projectsRoot, dir))
		if err != nil {
			s.log.Warn("skipping unreadable project dir", "dir", dir, "error", err)
			continue
		}
		for _, file := range files {
			recorded, ok := indexed[file]
			if ok {
				info, err := os.Stat(file)
				if err != nil {
					continue
				}
				if info.ModTime().Unix() <= recorded {
					continue
				}
			}
			candidates = append(candidates, Candidate{Path: file, EncodedName: dir})
		}
	}
	return candidates, nil
}

// IncrementalSync indexes only the stale or new source files found by Scan.
// A failure on one file is logged and skipped; the remaining candidates are
// still processed. Returns the number of sessions indexed.
func (s *Syncer) IncrementalSync(ctx context.Context, projectsRoot string) (int, error) {
	candidates, err := s.Scan(ctx, projectsRoot)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if err := s.indexFile(ctx, cand); err != nil {
			s.log.Warn("failed to index session file", "file", cand.Path, "error", err)
			continue
		}
		count++
	}
	if count > 0 {
		s.log.Info("incremental sync complete", "indexed", count)
	}
	return count, nil
}

// Rebuild clears the index and re-derives it from every source file under
// projectsRoot. Files are parsed concurrently; writes into the store are
// serialized so each session replace stays atomic. Per-file failures are
// skipped; a failure enumerating the root aborts and surfaces. Progress
// committed before an abort is retained.
func (s *Syncer) Rebuild(ctx context.Context, projectsRoot string) (int, error) {
	if err := s.store.Clear(ctx); err != nil {
		return 0, fmt.Errorf("clear index: %w", err)
	}

	dirs, err := projects.Dirs(projectsRoot)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.Warn("projects root not found", "root", projectsRoot)
			return 0, nil
		}
		return 0, fmt.Errorf("enumerate projects root: %w", err)
	}

	var candidates []Candidate
	for _, dir := range dirs {
		files, err := projects.SessionFiles(filepath.Join(projectsRoot, dir))
		if err != nil {
			s.log.Warn("skipping unreadable project dir", "dir", dir, "error", err)
			continue
		}
		for _, file := range files {
			candidates = append(candidates, Candidate{Path: file, EncodedName: dir})
		}
	}

	count := 0
	for parsed := range s.parseAll(ctx, candidates) {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if parsed.err != nil {
			s.log.Warn("failed to parse session file", "file", parsed.path, "error", parsed.err)
			continue
		}
		if err := s.store.Put(ctx, parsed.detail, parsed.mtime, parsed.size); err != nil {
			s.log.Warn("failed to store session", "file", parsed.path, "error", err)
			continue
		}
		count++
	}
	s.log.Info("rebuild complete", "indexed", count)
	return count, nil
}

type parsedFile struct {
	path   string
	detail session.Detail
	mtime  int64
	size   int64
	err    error
}

func (s *Syncer) parseAll(ctx context.Context, candidates []Candidate) <-chan parsedFile {
	jobs := make(chan Candidate)
	results := make(chan parsedFile)

	var wg sync.WaitGroup
	for i := 0; i < parseWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cand := range jobs {
				// The consumer stops reading on cancellation, so the
				// send must not block past it.
				select {
				case results <- parseCandidate(cand):
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, cand := range candidates {
			select {
			case jobs <- cand:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()
	return results
}

func (s *Syncer) indexFile(ctx context.Context, cand Candidate) error {
	parsed := parseCandidate(cand)
	if parsed.err != nil {
		return parsed.err
	}
	return s.store.Put(ctx, parsed.detail, parsed.mtime, parsed.size)
}

func parseCandidate(cand Candidate) parsedFile {
	out := parsedFile{path: cand.Path}
	projectPath := projects.DecodePath(cand.EncodedName)
	projectName := filepath.Base(projectPath)

	detail, err := parser.ParseFile(cand.Path, projectPath, projectName, true)
	if err != nil {
		out.err = err
		return out
	}
	info, err := os.Stat(cand.Path)
	if err != nil {
		out.err = fmt.Errorf("stat %s: %w", cand.Path, err)
		return out
	}
	out.detail = detail
	out.mtime = info.ModTime().Unix()
	out.size = info.Size()
	return out
}
