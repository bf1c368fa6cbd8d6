package launch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ProcessLauncher starts the game launcher as a child process. The process
// is left running after a successful launch.
type ProcessLauncher struct {
	Command string
	Args    []string // text/template strings over Vars
	Env     []string // extra KEY=VALUE pairs
	Grace   time.Duration
	Logger  zerolog.Logger
}

// Launch starts the launcher and watches it for the grace period. An exit
// with a non-zero status inside that window counts as a rejection.
func (p *ProcessLauncher) Launch(ctx context.Context, req Request) error {
	if p.Command == "" {
		return &Error{Reason: ReasonNotFound, Err: errors.New("no launch command"), Hint: "set launch.command"}
	}

	args, err := RenderArgs(p.Args, VarsFor(req))
	if err != nil {
		return &Error{Reason: ReasonRejected, Err: err, Hint: "check launch.args"}
	}

	cmd := exec.Command(p.Command, args...)
	if len(p.Env) > 0 {
		cmd.Env = append(cmd.Environ(), p.Env...)
	}
	stderr := &headBuffer{limit: 4096}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return &Error{Reason: ReasonNotFound, Err: err, Hint: "check launch.command"}
		}
		return &Error{Reason: ReasonStartFailed, Err: err}
	}
	p.Logger.Info().Str("command", p.Command).Int("pid", cmd.Process.Pid).Msg("Launcher started")

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	if p.Grace <= 0 {
		return nil
	}

	timer := time.NewTimer(p.Grace)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return &Error{Reason: ReasonRejected, Err: exitError(err, stderr.String())}
		}
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		return ctx.Err()
	}
}

func exitError(err error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, stderr)
}

// headBuffer keeps the first limit bytes written to it and drops the rest.
type headBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *headBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - len(b.buf); room > 0 {
		if len(p) < room {
			room = len(p)
		}
		b.buf = append(b.buf, p[:room]...)
	}
	return len(p), nil
}

func (b *headBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
