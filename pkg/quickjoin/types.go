package quickjoin

import (
	"github.com/sealantern/quickjoin/internal/join"
	"github.com/sealantern/quickjoin/internal/manifest"
	"github.com/sealantern/quickjoin/internal/modsync"
	"github.com/sealantern/quickjoin/internal/server"
)

// JoinResult is the terminal state of a join attempt.
type JoinResult = join.Result

// JoinState is a step of the join state machine.
type JoinState = join.State

// StageError is the cause of a failed join with the stage it happened in.
type StageError = join.StageError

// Transition is a join state change reported to an Observer.
type Transition = join.Transition

// ServerInfo is what the directory service reports about a server.
type ServerInfo = server.Info

// ModEntry is one manifest entry.
type ModEntry = manifest.Entry

// SyncOutcome is the aggregated result of a mod sync.
type SyncOutcome = modsync.Outcome

// ModFailure is a per-mod sync failure.
type ModFailure = modsync.Failure

// PlanEntry is the planned handling of one manifest entry.
type PlanEntry = modsync.PlanEntry

// CheckResult holds the outcome of Check.
type CheckResult = modsync.CheckResult
