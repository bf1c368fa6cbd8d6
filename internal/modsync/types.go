package modsync

import (
	"fmt"

	"github.com/sealantern/quickjoin/internal/manifest"
)

// State is the presence state of a manifest entry in the mod directory.
type State string

const (
	StateAbsent State = "absent" // no file under the entry's name
	StateValid  State = "valid"  // present and matching, skipped
	StateStale  State = "stale"  // present but not matching, re-downloaded

	// Planning-only states, decided before any download is dispatched.
	StateDuplicate State = "duplicate" // same file and content as an earlier entry
	StateConflict  State = "conflict"  // same file, different content than an earlier entry
	StateInvalid   State = "invalid"   // unusable file name
)

// FailureKind classifies a per-mod failure.
type FailureKind string

const (
	KindDownloadFailed    FailureKind = "download_failed"
	KindIntegrityMismatch FailureKind = "integrity_mismatch"
	KindFileConflict      FailureKind = "file_conflict"
	KindInvalidEntry      FailureKind = "invalid_entry"
)

// Failure is a per-mod failure. Failures never abort a sync.
type Failure struct {
	ModID    string
	FileName string
	Kind     FailureKind
	Err      error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s (%s): %s: %s", f.ModID, f.FileName, f.Kind, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Action is what a sync did for one entry.
type Action string

const (
	ActionDownloaded Action = "downloaded" // fetched from its download URL
	ActionCached     Action = "cached"     // copied from the content cache
	ActionSkipped    Action = "skipped"    // already valid on disk
	ActionDuplicate  Action = "duplicate"  // satisfied by an earlier entry
	ActionFailed     Action = "failed"
)

// ModAction reports the handling of one manifest entry.
type ModAction struct {
	ModID    string
	FileName string
	State    State
	Action   Action
	Bytes    int64
	SHA256   string
}

// Outcome is the aggregated result of one Sync call. Failures and Mods are
// in manifest order regardless of download completion order.
type Outcome struct {
	Downloaded int
	Skipped    int
	Failures   []Failure
	Mods       []ModAction
}

// OK reports whether every entry ended up valid.
func (o *Outcome) OK() bool {
	return len(o.Failures) == 0
}

// Failed returns the failure recorded for modID, if any.
func (o *Outcome) Failed(modID string) (Failure, bool) {
	for _, f := range o.Failures {
		if f.ModID == modID {
			return f, true
		}
	}
	return Failure{}, false
}

// PlanEntry is the planning decision for one manifest entry.
type PlanEntry struct {
	Entry       manifest.Entry
	State       State
	Digest      string // expected digest, empty when the manifest declares none
	LocalDigest string // digest of the file on disk, empty when absent
	DuplicateOf int    // index of the earlier entry claiming the same file, -1 otherwise
	Cached      bool   // the expected content is in the content cache
	Err         error  // why the entry is invalid
}

// NeedsTransfer reports whether the entry is queued for installation.
func (p PlanEntry) NeedsTransfer() bool {
	return p.State == StateAbsent || p.State == StateStale
}

// DriftEntry is a ledger-tracked file whose content changed on disk.
type DriftEntry struct {
	FileName string
	Expected string
	Actual   string
}

// CheckResult holds the outcome of a Check.
type CheckResult struct {
	Clean   bool
	Valid   []string
	Drifted []DriftEntry
	Missing []string
}
