// File path: internal/projects/projects_test.go
package projects

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func encode(path string) string {
	return strings.ReplaceAll(path, "/", "-")
}

func TestDecodePathResolvesDashedSegments(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "my-cool-app")
	if err := os.MkdirAll(target, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	decoded := DecodePath(encode(target))
	if decoded != target {
		t.Fatalf("decoded %q, want %q", decoded, target)
	}
}

func TestDecodePathNestedDashedSegments(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "brett-crane", "side-projects", "app")
	if err := os.MkdirAll(target, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	decoded := DecodePath(encode(target))
	if decoded != target {
		t.Fatalf("decoded %q, want %q", decoded, target)
	}
}

func TestDecodePathFallsBackWhenUnverifiable(t *testing.T) {
	decoded := DecodePath("-nonexistent-root-zz-code-app")
	if decoded != "/nonexistent/root/zz/code/app" {
		t.Fatalf("decoded %q", decoded)
	}
}

func TestDecodePathWithoutLeadingDash(t *testing.T) {
	if got := DecodePath("plain-name"); got != "plain/name" {
		t.Fatalf("decoded %q", got)
	}
}

func TestListSkipsReservedAndEmptyDirs(t *testing.T) {
	root := t.TempDir()
	mustMkdir(t, filepath.Join(root, ".hidden"))
	mustMkdir(t, filepath.Join(root, "-home-dev-empty"))
	projDir := filepath.Join(root, "-home-dev-app")
	mustMkdir(t, projDir)
	mustWrite(t, filepath.Join(projDir, "a.jsonl"), "{}")
	mustWrite(t, filepath.Join(projDir, "notes.txt"), "ignored")
	mustWrite(t, filepath.Join(root, ".hidden", "x.jsonl"), "{}")

	list, err := List(root)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 project, got %d: %+v", len(list), list)
	}
	proj := list[0]
	if proj.EncodedName != "-home-dev-app" || proj.SessionCount != 1 {
		t.Fatalf("unexpected project: %+v", proj)
	}
	if proj.Name != "app" {
		t.Fatalf("project name = %q", proj.Name)
	}
}

func TestListMissingRoot(t *testing.T) {
	list, err := List(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("expected missing root to be tolerated, got %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no projects, got %+v", list)
	}
}

func TestSessionFilesIgnoresSubdirs(t *testing.T) {
	dir := t.TempDir()
	mustMkdir(t, filepath.Join(dir, "subagents"))
	mustWrite(t, filepath.Join(dir, "b.jsonl"), "{}")
	mustWrite(t, filepath.Join(dir, "a.jsonl"), "{}")

	files, err := SessionFiles(dir)
	if err != nil {
		t.Fatalf("session files: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "a.jsonl" {
		t.Fatalf("unexpected files: %v", files)
	}
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
