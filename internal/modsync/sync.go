// Package modsync brings a local mod directory in line with a server's mod
// manifest. Missing and stale files are downloaded through a bounded pool,
// verified against their expected digests and moved into place atomically.
package modsync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/sealantern/quickjoin/internal/cache"
	"github.com/sealantern/quickjoin/internal/fetch"
	"github.com/sealantern/quickjoin/internal/ledger"
	"github.com/sealantern/quickjoin/internal/manifest"
	"github.com/sealantern/quickjoin/internal/sandbox"
)

// DefaultConcurrency is the number of downloads in flight when Engine.Concurrency is unset.
const DefaultConcurrency = 4

// ErrDigestMismatch is wrapped by integrity failures.
var ErrDigestMismatch = errors.New("digest mismatch")

// Downloader streams the content at url into w.
type Downloader interface {
	Download(ctx context.Context, url string, w io.Writer) (*fetch.Result, error)
}

// Engine synchronizes mod directories.
type Engine struct {
	Downloader  Downloader
	Cache       *cache.Cache // optional content cache
	Concurrency int
	Logger      zerolog.Logger
}

var syncMetrics = sync.OnceValue(newMetrics)

// installResult is the outcome of one queued install.
type installResult struct {
	action  Action
	bytes   int64
	digest  string
	failure *Failure
}

// Sync installs every missing or stale entry into dir and reports what
// happened per entry. Per-mod failures are collected, never fatal. The
// returned error is non-nil only when ctx ends; the outcome then covers
// everything that finished, and no partial file is left under a final name.
func (e *Engine) Sync(ctx context.Context, entries []manifest.Entry, dir string) (*Outcome, error) {
	if n, err := sandbox.CleanStale(dir); err != nil {
		e.Logger.Warn().Err(err).Str("dir", dir).Msg("Could not clean staging files")
	} else if n > 0 {
		e.Logger.Debug().Int("removed", n).Msg("Removed staging files from an interrupted sync")
	}

	led := e.loadLedger(dir)
	plan, err := e.plan(ctx, entries, dir, led)
	if err != nil {
		return &Outcome{Failures: []Failure{}, Mods: []ModAction{}}, err
	}

	results := e.run(ctx, dir, plan)
	outcome := collect(plan, results)

	if recordInstalled(led, plan, results) {
		if err := ledger.Save(ledger.PathIn(dir), led); err != nil {
			e.Logger.Warn().Err(err).Str("dir", dir).Msg("Could not save mod ledger")
		}
	}

	syncMetrics().record(ctx, outcome)

	e.Logger.Info().
		Int("downloaded", outcome.Downloaded).
		Int("skipped", outcome.Skipped).
		Int("failed", len(outcome.Failures)).
		Str("dir", dir).
		Msg("Mod sync finished")

	return outcome, ctx.Err()
}

// run dispatches every entry that needs a transfer onto the bounded pool and
// waits for all of them. Results are indexed like plan.
func (e *Engine) run(ctx context.Context, dir string, plan []PlanEntry) []installResult {
	results := make([]installResult, len(plan))
	sem := semaphore.NewWeighted(int64(e.concurrency()))
	var wg sync.WaitGroup

	for i, pe := range plan {
		if !pe.NeedsTransfer() {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = failed(pe, KindDownloadFailed, err)
			continue
		}
		wg.Add(1)
		go func(i int, pe PlanEntry) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = e.install(ctx, dir, pe)
		}(i, pe)
	}

	wg.Wait()
	return results
}

func (e *Engine) concurrency() int {
	if e.Concurrency > 0 {
		return e.Concurrency
	}
	return DefaultConcurrency
}

// install materializes one entry, from the cache when possible.
func (e *Engine) install(ctx context.Context, dir string, pe PlanEntry) installResult {
	log := e.Logger.With().Str("mod", pe.Entry.ModID).Str("file", pe.Entry.FileName).Logger()

	if pe.Cached {
		res, err := e.installFromCache(dir, pe)
		if err == nil {
			log.Debug().Msg("Installed from cache")
			return res
		}
		log.Warn().Err(err).Msg("Cached copy unusable, downloading")
		_ = e.Cache.Evict(pe.Digest)
	}

	if e.Downloader == nil {
		return failed(pe, KindDownloadFailed, fmt.Errorf("no downloader configured"))
	}

	pf, err := sandbox.Create(dir, pe.Entry.FileName, 0644)
	if err != nil {
		return failed(pe, KindDownloadFailed, err)
	}
	defer pf.Abort()

	res, err := e.Downloader.Download(ctx, pe.Entry.DownloadURL, pf)
	if err != nil {
		log.Debug().Err(err).Msg("Download failed")
		return failed(pe, KindDownloadFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return failed(pe, KindDownloadFailed, err)
	}

	if pe.Digest != "" && res.SHA256 != pe.Digest {
		return failed(pe, KindIntegrityMismatch,
			fmt.Errorf("%w: expected sha256 %s, received %s", ErrDigestMismatch, pe.Digest, res.SHA256))
	}
	if res.AdvertisedSHA256 != "" && res.AdvertisedSHA256 != res.SHA256 {
		return failed(pe, KindIntegrityMismatch,
			fmt.Errorf("%w: server advertised sha256 %s, received %s", ErrDigestMismatch, res.AdvertisedSHA256, res.SHA256))
	}

	if err := pf.Commit(); err != nil {
		return failed(pe, KindDownloadFailed, err)
	}

	if e.Cache != nil {
		if err := e.Cache.PutFile(res.SHA256, pf.Dest()); err != nil {
			log.Warn().Err(err).Msg("Could not add mod to cache")
		}
	}

	log.Debug().Int64("bytes", res.Bytes).Msg("Downloaded")
	return installResult{action: ActionDownloaded, bytes: res.Bytes, digest: res.SHA256}
}

// installFromCache copies a cached object into dir, re-verifying it on the way.
func (e *Engine) installFromCache(dir string, pe PlanEntry) (installResult, error) {
	rc, ok, err := e.Cache.Open(pe.Digest)
	if err != nil {
		return installResult{}, err
	}
	if !ok {
		return installResult{}, fmt.Errorf("object %s vanished from cache", pe.Digest)
	}
	defer rc.Close()

	pf, err := sandbox.Create(dir, pe.Entry.FileName, 0644)
	if err != nil {
		return installResult{}, err
	}
	defer pf.Abort()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(pf, h), rc)
	if err != nil {
		return installResult{}, fmt.Errorf("copying from cache: %w", err)
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != pe.Digest {
		return installResult{}, fmt.Errorf("%w: cached object hashes to %s", ErrDigestMismatch, got)
	}
	if err := pf.Commit(); err != nil {
		return installResult{}, err
	}
	return installResult{action: ActionCached, bytes: n, digest: pe.Digest}, nil
}

func (e *Engine) loadLedger(dir string) *ledger.Ledger {
	led, err := ledger.LoadDir(dir)
	if err != nil {
		e.Logger.Warn().Err(err).Str("dir", dir).Msg("Ignoring unreadable mod ledger")
		return ledger.New()
	}
	return led
}

func failed(pe PlanEntry, kind FailureKind, err error) installResult {
	return installResult{
		action: ActionFailed,
		failure: &Failure{
			ModID:    pe.Entry.ModID,
			FileName: pe.Entry.FileName,
			Kind:     kind,
			Err:      err,
		},
	}
}

// collect folds plan and install results into an Outcome in manifest order.
// Duplicates take the result of the entry they duplicate.
func collect(plan []PlanEntry, results []installResult) *Outcome {
	o := &Outcome{Failures: []Failure{}, Mods: make([]ModAction, 0, len(plan))}

	for i, pe := range plan {
		ma := ModAction{ModID: pe.Entry.ModID, FileName: pe.Entry.FileName, State: pe.State}
		var f *Failure

		switch pe.State {
		case StateValid:
			ma.Action, ma.SHA256 = ActionSkipped, pe.LocalDigest
			o.Skipped++
		case StateAbsent, StateStale:
			r := results[i]
			ma.Action, ma.Bytes, ma.SHA256 = r.action, r.bytes, r.digest
			if r.failure != nil {
				f = r.failure
			} else {
				o.Downloaded++
			}
		case StateDuplicate:
			first := plan[pe.DuplicateOf]
			r := results[pe.DuplicateOf]
			switch {
			case first.State == StateValid:
				ma.Action, ma.SHA256 = ActionDuplicate, first.LocalDigest
				o.Skipped++
			case r.failure != nil:
				ma.Action = ActionFailed
				f = &Failure{
					ModID:    pe.Entry.ModID,
					FileName: pe.Entry.FileName,
					Kind:     r.failure.Kind,
					Err:      fmt.Errorf("duplicate of %s: %w", first.Entry.ModID, r.failure.Err),
				}
			default:
				ma.Action, ma.SHA256 = ActionDuplicate, r.digest
				o.Skipped++
			}
		case StateConflict:
			first := plan[pe.DuplicateOf]
			ma.Action = ActionFailed
			f = &Failure{
				ModID:    pe.Entry.ModID,
				FileName: pe.Entry.FileName,
				Kind:     KindFileConflict,
				Err:      fmt.Errorf("%s is already claimed by %s with different content", pe.Entry.FileName, first.Entry.ModID),
			}
		case StateInvalid:
			ma.Action = ActionFailed
			f = &Failure{ModID: pe.Entry.ModID, FileName: pe.Entry.FileName, Kind: KindInvalidEntry, Err: pe.Err}
		}

		if f != nil {
			o.Failures = append(o.Failures, *f)
		}
		o.Mods = append(o.Mods, ma)
	}

	return o
}

// recordInstalled notes every valid or freshly installed file in the ledger
// and drops records for files a failed install left unverified. Reports
// whether the ledger changed.
func recordInstalled(led *ledger.Ledger, plan []PlanEntry, results []installResult) bool {
	changed := false
	for i, pe := range plan {
		var digest string
		switch {
		case pe.State == StateValid:
			digest = pe.LocalDigest
		case pe.NeedsTransfer() && results[i].failure == nil:
			digest = results[i].digest
		case pe.NeedsTransfer():
			if _, ok := led.Find(pe.Entry.FileName); ok {
				led.Forget(pe.Entry.FileName)
				changed = true
			}
			continue
		default:
			continue
		}
		led.Record(ledger.InstalledMod{
			FileName: pe.Entry.FileName,
			ModID:    pe.Entry.ModID,
			URL:      pe.Entry.DownloadURL,
			SHA256:   digest,
		})
		changed = true
	}
	return changed
}
