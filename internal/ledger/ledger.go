// Package ledger records which mods quickjoin installed into a mod directory
// and the digest each file had when it was written. The ledger lets a later
// sync recognise files whose manifest entry carries no expected digest.
package ledger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sealantern/quickjoin/internal/sandbox"
)

// FileName is the ledger's name inside the mod directory.
const FileName = ".quickjoin.lock"

// Ledger is the on-disk record of installed mods.
type Ledger struct {
	Version int            `yaml:"version"`
	Mods    []InstalledMod `yaml:"mods"`
}

// InstalledMod records one file materialized by a sync.
type InstalledMod struct {
	FileName string `yaml:"file"`
	ModID    string `yaml:"mod_id"`
	URL      string `yaml:"url"`
	SHA256   string `yaml:"sha256"`
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{Version: 1}
}

// PathIn returns the ledger path for a mod directory.
func PathIn(dir string) string {
	return filepath.Join(dir, FileName)
}

// Load reads and validates a ledger file.
func Load(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ledger %s: %w", path, err)
	}

	var l Ledger
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parsing ledger %s: %w", path, err)
	}

	if errs := Validate(&l); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	return &l, nil
}

// LoadDir reads the ledger of a mod directory. A missing ledger yields an
// empty one.
func LoadDir(dir string) (*Ledger, error) {
	l, err := Load(PathIn(dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(), nil
		}
		return nil, err
	}
	return l, nil
}

// Save writes a ledger atomically through a staging file that
// sandbox.CleanStale recognises. Entries are sorted by file name so the
// file diffs cleanly.
func Save(path string, l *Ledger) error {
	sort.Slice(l.Mods, func(i, j int) bool { return l.Mods[i].FileName < l.Mods[j].FileName })

	data, err := yaml.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshaling ledger: %w", err)
	}

	if err := sandbox.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing ledger %s: %w", path, err)
	}
	return nil
}

// Find returns the record for a file name.
func (l *Ledger) Find(fileName string) (InstalledMod, bool) {
	for _, m := range l.Mods {
		if m.FileName == fileName {
			return m, true
		}
	}
	return InstalledMod{}, false
}

// Record inserts or replaces the entry for m.FileName.
func (l *Ledger) Record(m InstalledMod) {
	for i := range l.Mods {
		if l.Mods[i].FileName == m.FileName {
			l.Mods[i] = m
			return
		}
	}
	l.Mods = append(l.Mods, m)
}

// Forget drops the entry for fileName, if any.
func (l *Ledger) Forget(fileName string) {
	out := l.Mods[:0]
	for _, m := range l.Mods {
		if m.FileName != fileName {
			out = append(out, m)
		}
	}
	l.Mods = out
}

// ValidationError holds multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ledger validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Validate checks a Ledger for semantic correctness.
// Returns a list of validation error messages (empty if valid).
func Validate(l *Ledger) []string {
	var errs []string

	if l.Version != 1 {
		errs = append(errs, fmt.Sprintf("unsupported version %d — only version 1 is supported", l.Version))
	}

	files := make(map[string]bool)
	for i, m := range l.Mods {
		prefix := fmt.Sprintf("mod[%d]", i)
		if m.FileName != "" {
			prefix = fmt.Sprintf("mod '%s'", m.FileName)
		}

		if m.FileName == "" {
			errs = append(errs, fmt.Sprintf("%s: 'file' is required", prefix))
		} else if files[m.FileName] {
			errs = append(errs, fmt.Sprintf("%s: duplicate file '%s'", prefix, m.FileName))
		} else {
			files[m.FileName] = true
		}

		if m.SHA256 == "" {
			errs = append(errs, fmt.Sprintf("%s: 'sha256' is required", prefix))
		}
	}

	return errs
}
