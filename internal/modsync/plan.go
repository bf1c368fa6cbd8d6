package modsync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/sealantern/quickjoin/internal/cache"
	"github.com/sealantern/quickjoin/internal/ledger"
	"github.com/sealantern/quickjoin/internal/manifest"
	"github.com/sealantern/quickjoin/internal/sandbox"
)

// Plan computes the presence state of every entry without changing the
// directory. The result is in manifest order.
func (e *Engine) Plan(ctx context.Context, entries []manifest.Entry, dir string) ([]PlanEntry, error) {
	return e.plan(ctx, entries, dir, e.loadLedger(dir))
}

func (e *Engine) plan(ctx context.Context, entries []manifest.Entry, dir string, led *ledger.Ledger) ([]PlanEntry, error) {
	plan := make([]PlanEntry, len(entries))
	claims := make(map[string]int, len(entries))

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pe := PlanEntry{Entry: entry, Digest: entry.ExpectedDigest(), DuplicateOf: -1}

		if err := sandbox.ValidateFileName(entry.FileName); err != nil {
			pe.State, pe.Err = StateInvalid, err
			plan[i] = pe
			continue
		}

		// First claim on a file name wins; later ones dedup or conflict.
		key := claimKey(entry.FileName)
		if first, ok := claims[key]; ok {
			pe.DuplicateOf = first
			if sameContent(plan[first], pe) {
				pe.State = StateDuplicate
			} else {
				pe.State = StateConflict
			}
			plan[i] = pe
			continue
		}
		claims[key] = i

		pe.State, pe.LocalDigest = localState(dir, pe, led)
		if pe.NeedsTransfer() && pe.Digest != "" && e.Cache != nil {
			pe.Cached = e.Cache.Has(pe.Digest)
		}
		plan[i] = pe
	}

	return plan, nil
}

// localState inspects the file an entry targets.
func localState(dir string, pe PlanEntry, led *ledger.Ledger) (State, string) {
	name := pe.Entry.FileName
	path := filepath.Join(dir, name)

	if _, err := os.Stat(dir); err == nil {
		if _, err := sandbox.ValidatePath(dir, name); err != nil {
			// A symlink leading out of the directory is replaced, never read.
			return StateStale, ""
		}
	}

	local, err := cache.HashFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return StateAbsent, ""
	}
	if err != nil {
		return StateStale, ""
	}

	if pe.Digest != "" {
		if local == pe.Digest {
			return StateValid, local
		}
		return StateStale, local
	}

	// Without a declared digest only our own record can vouch for the file.
	if rec, ok := led.Find(name); ok && rec.URL == pe.Entry.DownloadURL && rec.SHA256 == local {
		return StateValid, local
	}
	return StateStale, local
}

// claimKey folds case so that names one filesystem treats as the same file
// never become two concurrent writes.
func claimKey(name string) string {
	return strings.ToLower(name)
}

// sameContent decides whether two entries claiming one file name want the
// same bytes. A declared digest on either side must match the other's;
// download URLs only decide when neither declares one.
func sameContent(a, b PlanEntry) bool {
	if a.Digest != "" || b.Digest != "" {
		return a.Digest == b.Digest
	}
	return a.Entry.DownloadURL == b.Entry.DownloadURL
}
