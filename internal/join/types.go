package join

import (
	"errors"
	"fmt"

	"github.com/sealantern/quickjoin/internal/manifest"
	"github.com/sealantern/quickjoin/internal/modsync"
	"github.com/sealantern/quickjoin/internal/server"
)

// State is a step of the join state machine.
type State string

const (
	StateIdle        State = "idle"
	StateResolving   State = "resolving"
	StateSyncingMods State = "syncing_mods"
	StateLaunching   State = "launching"
	StateSucceeded   State = "succeeded"
	StateFailed      State = "failed"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// ErrRequiredModMissing is the cause of a join stopped by its Policy.
var ErrRequiredModMissing = errors.New("required mod missing")

// StageError is the cause of a failed join together with the stage that
// produced it.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("join failed while %s: %s", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Result is the terminal state of one join attempt.
type Result struct {
	State  State // StateSucceeded or StateFailed
	Server server.Identifier

	// Address is set once resolution succeeded.
	Address server.Address

	// Manifest and Outcome are set once the mod stage ran. A successful join
	// may still carry per-mod failures in Outcome.
	Manifest []manifest.Entry
	Outcome  *modsync.Outcome

	// Err is a *StageError when State is StateFailed.
	Err error
}

// Succeeded reports whether the game was launched.
func (r *Result) Succeeded() bool {
	return r.State == StateSucceeded
}

// Stage returns the stage a failed join stopped at, or "" on success.
func (r *Result) Stage() State {
	var se *StageError
	if errors.As(r.Err, &se) {
		return se.Stage
	}
	return ""
}

// Transition is reported to an Observer on every state change.
type Transition struct {
	Server server.Identifier
	From   State
	To     State
}

// Observer receives state transitions as they happen. It is called on the
// joining goroutine and must not block.
type Observer func(Transition)
