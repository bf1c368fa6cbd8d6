// Package logging configures the zerolog logger shared by the CLI and the
// join pipeline.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options configures Setup.
type Options struct {
	Level     string // configured level name, e.g. "info"
	Verbosity int    // -v count; raises the level above Level
	Quiet     bool   // only errors
	Console   io.Writer
	// LogFile receives a JSON copy of every record. Empty disables it.
	LogFile string
}

// DefaultLogFile returns $XDG_STATE_HOME/quickjoin/quickjoin.log.
func DefaultLogFile() string {
	return filepath.Join(xdg.StateHome, "quickjoin", "quickjoin.log")
}

// ResolveLevel picks the effective level from the configured name and the
// command line switches.
func ResolveLevel(configured string, verbosity int, quiet bool) zerolog.Level {
	switch {
	case quiet:
		return zerolog.ErrorLevel
	case verbosity == 1:
		return zerolog.DebugLevel
	case verbosity >= 2:
		return zerolog.TraceLevel
	}
	lvl, err := zerolog.ParseLevel(configured)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Setup builds the logger, installs it as the global zerolog logger and
// returns it. A log file that cannot be opened is reported and skipped.
func Setup(opts Options) zerolog.Logger {
	level := ResolveLevel(opts.Level, opts.Verbosity, opts.Quiet)

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	writers := []io.Writer{zerolog.ConsoleWriter{Out: console, TimeFormat: time.Kitchen}}

	var fileErr error
	if opts.LogFile != "" {
		f, err := openLogFile(opts.LogFile)
		if err == nil {
			writers = append(writers, f)
		}
		fileErr = err
	}

	logger := zerolog.New(io.MultiWriter(writers...)).Level(level).With().Timestamp().Logger()
	if level <= zerolog.DebugLevel {
		logger = logger.With().Caller().Logger()
	}
	log.Logger = logger

	if fileErr != nil {
		logger.Warn().Err(fileErr).Str("path", opts.LogFile).Msg("Failed to open log file, logging to console only")
	}
	logger.Debug().Str("level", level.String()).Msg("Logger initialized")
	return logger
}

// Component returns a child logger tagged with a component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

// OperationStart logs the start of an operation and returns a function that
// logs its completion with the elapsed time.
func OperationStart(logger zerolog.Logger, operation string) func() {
	start := time.Now()
	logger.Debug().Str("operation", operation).Msg("Operation started")

	return func() {
		logger.Debug().
			Str("operation", operation).
			Dur("duration", time.Since(start)).
			Msg("Operation completed")
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}
