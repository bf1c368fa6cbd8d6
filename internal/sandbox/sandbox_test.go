package sandbox

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestValidatePathWithinRoot(t *testing.T) {
	root := t.TempDir()

	resolved, err := ValidatePath(root, "mod.jar")
	if err != nil {
		t.Fatalf("ValidatePath: %v", err)
	}

	realRoot, _ := filepath.EvalSymlinks(root)
	expected := filepath.Join(realRoot, "mod.jar")
	if resolved != expected {
		t.Errorf("got %q, want %q", resolved, expected)
	}
}

func TestValidateFileNameRejects(t *testing.T) {
	for _, name := range []string{
		"",
		".",
		"..",
		"../escape.jar",
		"sub/mod.jar",
		`sub\mod.jar`,
		".quickjoin.lock",
		".quickjoin-123.part",
	} {
		if err := ValidateFileName(name); err == nil {
			t.Errorf("ValidateFileName(%q): expected error", name)
		}
	}
}

func TestValidatePathRejectsSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test not reliable on Windows")
	}

	root := t.TempDir()
	outside := filepath.Join(t.TempDir(), "target.jar")
	if err := os.WriteFile(outside, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := os.Symlink(outside, filepath.Join(root, "escape.jar")); err != nil {
		t.Fatalf("creating symlink: %v", err)
	}

	_, err := ValidatePath(root, "escape.jar")
	if err == nil {
		t.Fatal("expected error for symlink escape")
	}
	if !strings.Contains(err.Error(), "outside") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCreateCommit(t *testing.T) {
	root := filepath.Join(t.TempDir(), "mods")

	p, err := Create(root, "mod.jar", 0644)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := p.Write([]byte("content")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Nothing visible under the final name before commit.
	if _, err := os.Stat(filepath.Join(root, "mod.jar")); !os.IsNotExist(err) {
		t.Fatalf("destination exists before commit: %v", err)
	}

	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, "mod.jar"))
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if string(got) != "content" {
		t.Errorf("content = %q", got)
	}
	assertNoTempFiles(t, root)
}

func TestCreateAbort(t *testing.T) {
	root := t.TempDir()

	p, err := Create(root, "mod.jar", 0644)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, _ = p.Write([]byte("partial"))
	p.Abort()
	p.Abort()

	if _, err := os.Stat(filepath.Join(root, "mod.jar")); !os.IsNotExist(err) {
		t.Fatalf("destination exists after abort: %v", err)
	}
	assertNoTempFiles(t, root)

	if err := p.Commit(); err == nil {
		t.Fatal("expected error committing an aborted file")
	}
}

func TestWriteFileOverwrites(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, ".quickjoin.lock")

	if err := WriteFile(path, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(path, []byte("new"), 0644); err != nil {
		t.Fatal(err)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "new" {
		t.Errorf("content = %q", got)
	}
	assertNoTempFiles(t, root)
}

func TestWriteFileMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent", "ledger")
	if err := WriteFile(path, []byte("x"), 0644); err == nil {
		t.Fatal("expected error writing into a missing directory")
	}
}

func TestCleanStale(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{TempPrefix + "a.part", TempPrefix + "b.part", "keep.jar"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	n, err := CleanStale(root)
	if err != nil {
		t.Fatalf("CleanStale: %v", err)
	}
	if n != 2 {
		t.Errorf("removed = %d, want 2", n)
	}
	if _, err := os.Stat(filepath.Join(root, "keep.jar")); err != nil {
		t.Errorf("keep.jar removed: %v", err)
	}
}

func assertNoTempFiles(t *testing.T, root string) {
	t.Helper()
	matches, _ := filepath.Glob(filepath.Join(root, TempPrefix+"*"))
	if len(matches) > 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestCreateReplacesEscapingSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test not reliable on Windows")
	}

	root := t.TempDir()
	outside := filepath.Join(t.TempDir(), "victim.jar")
	if err := os.WriteFile(outside, []byte("keep me"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "mod.jar")); err != nil {
		t.Fatalf("creating symlink: %v", err)
	}

	p, err := Create(root, "mod.jar", 0644)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := p.Write([]byte("new")); err != nil {
		t.Fatal(err)
	}
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, _ := os.ReadFile(outside)
	if string(got) != "keep me" {
		t.Errorf("write escaped through symlink: %q", got)
	}
	fi, err := os.Lstat(filepath.Join(root, "mod.jar"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		t.Error("symlink was not replaced")
	}
}
