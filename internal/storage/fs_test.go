package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestFS(t *testing.T) (*FS, string) {
	t.Helper()
	dir := t.TempDir()
	f, err := NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return f, dir
}

func TestNewFS_RejectsMissingRoot(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	f, _ := newTestFS(t)
	content := []byte("# Note\nbody\n")
	if err := f.Write("sub/note.md", content); err != nil {
		t.Fatal(err)
	}
	got, err := f.Read("sub/note.md")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Errorf("read = %q, want %q", got, content)
	}
}

func TestWrite_LeavesNoTempFiles(t *testing.T) {
	f, dir := newTestFS(t)
	if err := f.Write("note.md", []byte("x")); err != nil {
		t.Fatal(err)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, ".notegraph-tmp-*"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestList_SkipsHiddenAndNonMarkdown(t *testing.T) {
	f, dir := newTestFS(t)
	mustWriteFile(t, dir, "a.md", "alpha")
	mustWriteFile(t, dir, "sub/b.md", "beta")
	mustWriteFile(t, dir, "sub/image.png", "binary")
	mustWriteFile(t, dir, ".obsidian/config.md", "hidden")
	mustWriteFile(t, dir, ".git/c.md", "hidden")

	metas, err := f.List("")
	if err != nil {
		t.Fatal(err)
	}
	var paths []string
	for _, m := range metas {
		paths = append(paths, m.Path)
		if m.Checksum == "" {
			t.Errorf("%s: empty checksum", m.Path)
		}
		if m.UpdatedAt.IsZero() {
			t.Errorf("%s: zero mtime", m.Path)
		}
	}
	want := map[string]bool{"a.md": true, "sub/b.md": true}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for _, p := range paths {
		if !want[p] {
			t.Errorf("unexpected path %q", p)
		}
		if strings.Contains(p, "\\") {
			t.Errorf("path %q not slash-separated", p)
		}
	}
}

func TestSafePath_RejectsTraversal(t *testing.T) {
	f, _ := newTestFS(t)
	for _, p := range []string{"../outside.md", "sub/../../esc.md", "/etc/passwd"} {
		if _, err := f.Read(p); err == nil {
			t.Errorf("Read(%q) should be rejected", p)
		}
		if err := f.Write(p, []byte("x")); err == nil {
			t.Errorf("Write(%q) should be rejected", p)
		}
	}
}

func TestDelete(t *testing.T) {
	f, _ := newTestFS(t)
	if err := f.Write("gone.md", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := f.Delete("gone.md"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Read("gone.md"); err == nil {
		t.Error("file should be gone")
	}
	if err := f.Delete("gone.md"); err == nil {
		t.Error("deleting a missing file should error")
	}
}

func TestMove(t *testing.T) {
	f, _ := newTestFS(t)
	if err := f.Write("old.md", []byte("content")); err != nil {
		t.Fatal(err)
	}
	if err := f.Move("old.md", "deep/new.md"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Read("old.md"); err == nil {
		t.Error("old path should be gone")
	}
	got, err := f.Read("deep/new.md")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "content" {
		t.Errorf("moved content = %q", got)
	}
}

func mustWriteFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
