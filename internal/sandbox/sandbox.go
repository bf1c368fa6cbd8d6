// Package sandbox keeps writes to the mod directory inside it and makes
// them atomic: content is staged in a temp file next to the destination and
// renamed into place only once it is complete.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TempPrefix starts the name of every staging file. File names with this
// prefix are reserved and never accepted as targets.
const TempPrefix = ".quickjoin-"

// ValidateFileName checks that name is a plain file name that stays directly
// inside a directory: no separators, no dot segments, no reserved prefix.
func ValidateFileName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("file name is empty")
	case name == "." || name == "..":
		return fmt.Errorf("file name %q is not a file", name)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0):
		return fmt.Errorf("file name %q must not contain path separators", name)
	case filepath.VolumeName(name) != "":
		return fmt.Errorf("file name %q must not carry a volume", name)
	case strings.HasPrefix(name, TempPrefix) || strings.HasPrefix(name, ".quickjoin"):
		return fmt.Errorf("file name %q uses a reserved prefix", name)
	}
	return nil
}

// ValidatePath checks that name resolves to a path directly inside root after
// symlinks are followed. Returns the resolved absolute path.
func ValidatePath(root, name string) (string, error) {
	realRoot, err := resolveRoot(root, name)
	if err != nil {
		return "", err
	}

	candidate := filepath.Join(realRoot, name)
	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("resolving %s: %w", name, err)
		}
		resolved = candidate
	}

	if filepath.Dir(resolved) != realRoot {
		return "", fmt.Errorf("'%s' resolves to '%s' which is outside '%s'", name, resolved, realRoot)
	}
	return resolved, nil
}

// DestPath returns the directory entry name occupies inside root without
// following a symlink at that entry. Renaming onto it replaces the entry
// itself, so writes cannot escape root.
func DestPath(root, name string) (string, error) {
	realRoot, err := resolveRoot(root, name)
	if err != nil {
		return "", err
	}
	return filepath.Join(realRoot, name), nil
}

func resolveRoot(root, name string) (string, error) {
	if err := ValidateFileName(name); err != nil {
		return "", err
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("resolving directory symlinks: %w", err)
	}
	return realRoot, nil
}

// PendingFile is a staged write. Data written to it only becomes visible
// under the destination name after Commit; Abort (or a failed Commit)
// removes the staging file.
type PendingFile struct {
	f    *os.File
	dest string
	perm os.FileMode
	done bool
}

// Create stages a new write for name inside root. root is created if missing.
func Create(root, name string, perm os.FileMode) (*PendingFile, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", root, err)
	}
	dest, err := DestPath(root, name)
	if err != nil {
		return nil, err
	}
	return stage(dest, perm)
}

func stage(dest string, perm os.FileMode) (*PendingFile, error) {
	// Same directory as dest so the final rename stays on one filesystem.
	tmp, err := os.CreateTemp(filepath.Dir(dest), TempPrefix+"*.part")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	return &PendingFile{f: tmp, dest: dest, perm: perm}, nil
}

func (p *PendingFile) Write(b []byte) (int, error) {
	return p.f.Write(b)
}

// Dest returns the resolved destination path.
func (p *PendingFile) Dest() string {
	return p.dest
}

// Commit flushes the staged content and renames it onto the destination.
func (p *PendingFile) Commit() error {
	if p.done {
		return fmt.Errorf("pending file already finished")
	}
	p.done = true

	tmpPath := p.f.Name()
	success := false
	defer func() {
		if !success {
			_ = p.f.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := p.f.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := p.f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, p.perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, p.dest); err != nil {
		return fmt.Errorf("renaming temp file to %s: %w", p.dest, err)
	}

	success = true
	return nil
}

// Abort discards the staged content. Safe to call after Commit.
func (p *PendingFile) Abort() {
	if p.done {
		return
	}
	p.done = true
	_ = p.f.Close()
	_ = os.Remove(p.f.Name())
}

// WriteFile atomically replaces path with content. path is not checked
// against a root; it is meant for quickjoin's own files such as the ledger,
// whose names ValidateFileName reserves.
func WriteFile(path string, content []byte, perm os.FileMode) error {
	p, err := stage(path, perm)
	if err != nil {
		return err
	}
	if _, err := p.Write(content); err != nil {
		p.Abort()
		return fmt.Errorf("writing temp file: %w", err)
	}
	return p.Commit()
}

// CleanStale removes staging files left behind by an interrupted process.
func CleanStale(root string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(root, TempPrefix+"*.part"))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, m := range matches {
		if err := os.Remove(m); err == nil {
			removed++
		}
	}
	return removed, nil
}
