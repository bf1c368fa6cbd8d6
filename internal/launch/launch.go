// Package launch hands a resolved server address to the game launcher.
package launch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sealantern/quickjoin/internal/server"
)

// Reason classifies a launch failure.
type Reason string

const (
	ReasonNotFound    Reason = "not_found"    // launcher executable missing
	ReasonStartFailed Reason = "start_failed" // launcher could not be started
	ReasonRejected    Reason = "rejected"     // launcher refused the request or exited early
	ReasonTimeout     Reason = "timeout"
	ReasonCancelled   Reason = "cancelled"
)

// Error is returned for every failed launch.
type Error struct {
	Reason Reason
	Err    error
	Hint   string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("launch failed (%s)", e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Hint != "" {
		msg += " — " + e.Hint
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Request is what the launcher is told about the join.
type Request struct {
	Address   server.Address
	ModsDir   string
	ModsReady bool // every manifest mod is installed and verified
}

// Launcher starts the game for a request.
type Launcher interface {
	Launch(ctx context.Context, req Request) error
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, req Request) error

func (f LauncherFunc) Launch(ctx context.Context, req Request) error {
	return f(ctx, req)
}

// Handoff performs the one-shot launch step of a join.
type Handoff struct {
	Launcher Launcher
	Timeout  time.Duration // 0 = context only
	Logger   zerolog.Logger
}

// Launch passes req to the launcher once. Any failure is returned as *Error.
func (h *Handoff) Launch(ctx context.Context, req Request) error {
	if err := req.Address.Validate(); err != nil {
		return &Error{Reason: ReasonRejected, Err: err}
	}
	if h.Launcher == nil {
		return &Error{Reason: ReasonNotFound, Err: errors.New("no launcher configured"), Hint: "set launch.command"}
	}

	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	h.Logger.Debug().
		Str("address", req.Address.String()).
		Bool("mods_ready", req.ModsReady).
		Msg("Launching game")

	err := h.Launcher.Launch(ctx, req)
	if err == nil {
		return nil
	}
	return classify(ctx, err)
}

func classify(ctx context.Context, err error) *Error {
	var le *Error
	if errors.As(err, &le) {
		return le
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Reason: ReasonTimeout, Err: err, Hint: "increase timeouts.launch"}
	case errors.Is(err, context.Canceled):
		return &Error{Reason: ReasonCancelled, Err: err}
	case ctx.Err() != nil:
		return classify(context.Background(), ctx.Err())
	}
	return &Error{Reason: ReasonStartFailed, Err: err}
}
