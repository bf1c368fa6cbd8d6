// Package join drives a join attempt through its stages: resolve the server
// identifier, bring the mod directory in line with the server's manifest,
// then hand off to the game launcher.
package join

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/sealantern/quickjoin/internal/launch"
	"github.com/sealantern/quickjoin/internal/manifest"
	"github.com/sealantern/quickjoin/internal/modsync"
	"github.com/sealantern/quickjoin/internal/resolve"
	"github.com/sealantern/quickjoin/internal/server"
)

// ManifestSource provides the mod manifest of a server.
type ManifestSource interface {
	Fetch(ctx context.Context, id server.Identifier) ([]manifest.Entry, error)
}

// ModSyncer installs manifest entries into a directory.
type ModSyncer interface {
	Sync(ctx context.Context, entries []manifest.Entry, dir string) (*modsync.Outcome, error)
}

// Launcher performs the launch handoff.
type Launcher interface {
	Launch(ctx context.Context, req launch.Request) error
}

// Orchestrator runs join attempts. It holds no state between attempts and
// may be used for several joins, one at a time per mod directory.
type Orchestrator struct {
	Resolver  resolve.Resolver
	Manifests ManifestSource
	Mods      ModSyncer
	Launcher  Launcher
	ModsDir   string
	Policy    Policy
	Observer  Observer
	Logger    zerolog.Logger
}

// attempt carries one join through the state machine.
type attempt struct {
	o      *Orchestrator
	state  State
	result *Result
	log    zerolog.Logger
}

// Join runs a join attempt for the raw identifier. The returned Result is
// never nil; the error is the Result's *StageError when the join failed.
func (o *Orchestrator) Join(ctx context.Context, raw string) (*Result, error) {
	a := &attempt{o: o, state: StateIdle, result: &Result{}, log: o.Logger}

	id, err := server.ParseIdentifier(raw)
	if err != nil {
		return a.fail(ctx, StateIdle, err)
	}
	a.result.Server = id
	a.log = o.Logger.With().Str("server", id.String()).Logger()

	// Resolving
	a.enter(StateResolving)
	if err := ctx.Err(); err != nil {
		return a.fail(ctx, StateResolving, err)
	}
	addr, err := o.Resolver.Resolve(ctx, id)
	if err != nil {
		return a.fail(ctx, StateResolving, err)
	}
	a.result.Address = addr
	a.log.Info().Str("address", addr.String()).Msg("Server resolved")

	// SyncingMods
	a.enter(StateSyncingMods)
	if err := ctx.Err(); err != nil {
		return a.fail(ctx, StateSyncingMods, err)
	}
	entries, err := o.Manifests.Fetch(ctx, id)
	if err != nil {
		return a.fail(ctx, StateSyncingMods, err)
	}
	a.result.Manifest = entries

	outcome, err := o.Mods.Sync(ctx, entries, o.ModsDir)
	a.result.Outcome = outcome
	if err != nil {
		return a.fail(ctx, StateSyncingMods, err)
	}
	if outcome == nil {
		outcome = &modsync.Outcome{}
		a.result.Outcome = outcome
	}
	for _, f := range outcome.Failures {
		a.log.Warn().Str("mod", f.ModID).Str("kind", string(f.Kind)).Err(f.Err).Msg("Mod not installed")
	}
	if err := o.Policy.Check(entries, outcome); err != nil {
		return a.fail(ctx, StateSyncingMods, err)
	}

	// Launching
	a.enter(StateLaunching)
	if err := ctx.Err(); err != nil {
		return a.fail(ctx, StateLaunching, err)
	}
	err = o.Launcher.Launch(ctx, launch.Request{
		Address:   addr,
		ModsDir:   o.ModsDir,
		ModsReady: outcome.OK(),
	})
	if err != nil {
		return a.fail(ctx, StateLaunching, err)
	}

	a.enter(StateSucceeded)
	a.result.State = StateSucceeded
	joinMetrics().record(ctx, a.result)
	a.log.Info().Int("mod_failures", len(outcome.Failures)).Msg("Join succeeded")
	return a.result, nil
}

func (a *attempt) enter(next State) {
	prev := a.state
	a.state = next
	a.log.Debug().Str("from", string(prev)).Str("to", string(next)).Msg("Join state")
	if a.o.Observer != nil {
		a.o.Observer(Transition{Server: a.result.Server, From: prev, To: next})
	}
}

func (a *attempt) fail(ctx context.Context, stage State, err error) (*Result, error) {
	se := &StageError{Stage: stage, Err: err}
	a.enter(StateFailed)
	a.result.State = StateFailed
	a.result.Err = se
	joinMetrics().record(ctx, a.result)
	a.log.Error().Err(err).Str("stage", string(stage)).Msg("Join failed")
	return a.result, se
}
