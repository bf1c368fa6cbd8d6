package launch

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sealantern/quickjoin/internal/server"
)

func TestHandoffSuccess(t *testing.T) {
	var got Request
	calls := 0
	h := &Handoff{Launcher: LauncherFunc(func(ctx context.Context, req Request) error {
		calls++
		got = req
		return nil
	}), Logger: zerolog.Nop()}

	if err := h.Launch(context.Background(), testRequest()); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if calls != 1 {
		t.Errorf("launcher called %d times, want 1", calls)
	}
	if got.Address.String() != "play.manus.im:25565" || !got.ModsReady {
		t.Errorf("unexpected request: %+v", got)
	}
}

func TestHandoffNoRetry(t *testing.T) {
	calls := 0
	h := &Handoff{Launcher: LauncherFunc(func(ctx context.Context, req Request) error {
		calls++
		return errors.New("launcher busy")
	})}

	err := h.Launch(context.Background(), testRequest())
	var le *Error
	if !errors.As(err, &le) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if le.Reason != ReasonStartFailed {
		t.Errorf("reason = %s, want %s", le.Reason, ReasonStartFailed)
	}
	if calls != 1 {
		t.Errorf("launcher called %d times, want 1", calls)
	}
}

func TestHandoffKeepsLauncherReason(t *testing.T) {
	h := &Handoff{Launcher: LauncherFunc(func(ctx context.Context, req Request) error {
		return &Error{Reason: ReasonRejected, Err: errors.New("unsupported version")}
	})}

	err := h.Launch(context.Background(), testRequest())
	var le *Error
	if !errors.As(err, &le) || le.Reason != ReasonRejected {
		t.Fatalf("expected rejected, got %v", err)
	}
}

func TestHandoffTimeout(t *testing.T) {
	h := &Handoff{
		Timeout: 20 * time.Millisecond,
		Launcher: LauncherFunc(func(ctx context.Context, req Request) error {
			<-ctx.Done()
			return ctx.Err()
		}),
	}

	err := h.Launch(context.Background(), testRequest())
	var le *Error
	if !errors.As(err, &le) || le.Reason != ReasonTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("timeout should wrap context.DeadlineExceeded: %v", err)
	}
}

func TestHandoffCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := &Handoff{Launcher: LauncherFunc(func(ctx context.Context, req Request) error {
		return ctx.Err()
	})}

	err := h.Launch(ctx, testRequest())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestHandoffRejectsInvalidAddress(t *testing.T) {
	called := false
	h := &Handoff{Launcher: LauncherFunc(func(ctx context.Context, req Request) error {
		called = true
		return nil
	})}

	err := h.Launch(context.Background(), Request{Address: server.Address{Host: "", Port: 0}})
	var le *Error
	if !errors.As(err, &le) || le.Reason != ReasonRejected {
		t.Fatalf("expected rejected, got %v", err)
	}
	if called {
		t.Error("launcher must not be called with an invalid address")
	}
}

func TestHandoffWithoutLauncher(t *testing.T) {
	err := (&Handoff{}).Launch(context.Background(), testRequest())
	var le *Error
	if !errors.As(err, &le) || le.Reason != ReasonNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("process tests use sh")
	}
}

func TestProcessLauncherNotFound(t *testing.T) {
	p := &ProcessLauncher{Command: "quickjoin-no-such-launcher-binary", Grace: time.Second}

	err := p.Launch(context.Background(), testRequest())
	var le *Error
	if !errors.As(err, &le) || le.Reason != ReasonNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestProcessLauncherPassesAddress(t *testing.T) {
	skipOnWindows(t)
	p := &ProcessLauncher{
		Command: "sh",
		Args:    []string{"-c", `test "$1" = play.manus.im:25565 || exit 7`, "sh", "{{.Address}}"},
		Grace:   5 * time.Second,
	}

	if err := p.Launch(context.Background(), testRequest()); err != nil {
		t.Fatalf("Launch: %v", err)
	}
}

func TestProcessLauncherEarlyExitRejected(t *testing.T) {
	skipOnWindows(t)
	p := &ProcessLauncher{
		Command: "sh",
		Args:    []string{"-c", "echo bad profile >&2; exit 3"},
		Grace:   5 * time.Second,
	}

	err := p.Launch(context.Background(), testRequest())
	var le *Error
	if !errors.As(err, &le) || le.Reason != ReasonRejected {
		t.Fatalf("expected rejected, got %v", err)
	}
	var exitErr interface{ ExitCode() int }
	if errors.As(err, &exitErr) && exitErr.ExitCode() != 3 {
		t.Errorf("exit code = %d, want 3", exitErr.ExitCode())
	}
}

func TestProcessLauncherRunningPastGrace(t *testing.T) {
	skipOnWindows(t)
	p := &ProcessLauncher{Command: "sleep", Args: []string{"1"}, Grace: 50 * time.Millisecond}

	start := time.Now()
	if err := p.Launch(context.Background(), testRequest()); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if time.Since(start) > 900*time.Millisecond {
		t.Error("Launch should return once the grace period elapses")
	}
}

func TestProcessLauncherBadTemplate(t *testing.T) {
	p := &ProcessLauncher{Command: "sh", Args: []string{"{{.Nope}}"}}

	err := p.Launch(context.Background(), testRequest())
	var le *Error
	if !errors.As(err, &le) || le.Reason != ReasonRejected {
		t.Fatalf("expected rejected, got %v", err)
	}
}
