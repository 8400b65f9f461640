// File path: internal/projects/projects.go
package projects

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/brettcrane/sessionindex/internal/session"
)

const sessionFileExt = ".jsonl"

// DecodePath reconstructs the original working-directory path from an encoded
// project directory name. Encoding folds path separators into dashes, which is
// ambiguous when a path segment itself contains a dash
// ("-home-brett-crane-code-app" may mean "/home/brett-crane/code/app").
// Ambiguity is resolved by probing the filesystem: at each position the
// longest token run that names an existing directory is taken as one segment.
// Once no reconstructed prefix can be verified on disk, every remaining token
// becomes its own segment.
func DecodePath(encoded string) string {
	if !strings.HasPrefix(encoded, "-") {
		return strings.ReplaceAll(encoded, "-", "/")
	}
	tokens := strings.Split(strings.TrimPrefix(encoded, "-"), "-")

	var segments []string
	verified := true
	for len(tokens) > 0 {
		consumed := 0
		if verified {
			for n := len(tokens); n >= 1; n-- {
				candidate := "/" + strings.Join(append(append([]string{}, segments...), strings.Join(tokens[:n], "-")), "/")
				if info, err := os.Stat(candidate); err == nil && (info.IsDir() || n == len(tokens)) {
					consumed = n
					break
				}
			}
		}
		if consumed == 0 {
			verified = false
			consumed = 1
		}
		segments = append(segments, strings.Join(tokens[:consumed], "-"))
		tokens = tokens[consumed:]
	}

	return "/" + strings.Join(segments, "/")
}

// Name returns the final path segment of the decoded project path.
func Name(encoded string) string {
	return filepath.Base(DecodePath(encoded))
}

// List enumerates the project directories under root. Directories whose name
// begins with a dot are reserved and skipped, as are projects with no session
// files.
func List(root string) ([]session.Project, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read projects root %s: %w", root, err)
	}

	var out []session.Project
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		files, err := SessionFiles(dir)
		if err != nil || len(files) == 0 {
			continue
		}
		out = append(out, session.Project{
			EncodedName:  entry.Name(),
			DecodedPath:  DecodePath(entry.Name()),
			Name:         Name(entry.Name()),
			Path:         dir,
			SessionCount: len(files),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EncodedName < out[j].EncodedName })
	return out, nil
}

// Dirs returns the project directory names under root, including projects
// that currently hold no session files.
func Dirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read projects root %s: %w", root, err)
	}
	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dirs = append(dirs, entry.Name())
	}
	return dirs, nil
}

// SessionFiles lists the session log files directly inside one project
// directory. Subdirectories are not descended into.
func SessionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read project dir %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), sessionFileExt) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Stem strips the session file extension from a path's base name.
func Stem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), sessionFileExt)
}
