// Package logging builds the process-wide slog.Logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

// New returns a text logger for "dev" and a JSON logger for "prod",
// writing to stderr; stdout is left to command output. level is one of
// debug, info, warn, error; blank means info. The logger also becomes the
// slog default.
func New(env, level string) (*slog.Logger, error) {
	return newLogger(os.Stderr, env, level)
}

func newLogger(w io.Writer, env, level string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch env {
	case "dev", "":
		handler = slog.NewTextHandler(w, opts)
	case "prod":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("logging: environment can only be dev or prod, got %q", env)
	}

	logger := slog.New(handler).With(
		slog.String("app", "manhwee"),
		slog.String("runtime", runtime.Version()),
	)
	slog.SetDefault(logger)
	return logger, nil
}

// ParseLevel maps a level name to its slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("logging: unknown level %q", s)
	}
}
