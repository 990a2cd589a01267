// Package applog builds the process-wide structured logger: a single
// *slog.Logger configured once at startup, in the teacher's
// AppConfig-driven style (server/lib/app_context.go) but reading its
// defaults from environment variables instead of a hand-assembled
// struct literal, per this project's RUST_LOG-flavored env convention.
package applog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config controls the logger New builds.
type Config struct {
	// Level is one of "debug", "info", "warn", "error". Empty means
	// "info".
	Level string
	// JSON selects a JSON handler over the plain elapsed-time one.
	JSON bool
}

// FromEnv reads APU_LOG_LEVEL and APU_LOG_JSON. When APU_LOG_LEVEL is
// unset, Level is left empty, which ParseLevel treats as info -- the
// env-var analogue of the teacher's AppConfig defaults in
// server/lib/app_context.go.
func FromEnv() Config {
	cfg := Config{Level: os.Getenv("APU_LOG_LEVEL")}
	switch strings.ToLower(os.Getenv("APU_LOG_JSON")) {
	case "1", "true", "yes":
		cfg.JSON = true
	}
	return cfg
}

// ParseLevel maps a level name to a slog.Level, defaulting to Info for
// an empty or unrecognized name.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds the process-wide logger described by cfg, with a fixed
// level that cannot change after construction. Always returns a
// non-nil logger, so callers never need a nil check before use.
func New(cfg Config) *slog.Logger {
	return NewWithLevelVar(cfg, LevelVar(cfg))
}

// LevelVar builds a *slog.LevelVar seeded from cfg.Level, for callers
// that need to hold onto it past logger construction -- cmd/apu-engine
// passes the same LevelVar to both NewWithLevelVar and
// config.WatchLogLevel so a config file edit can change the live level.
func LevelVar(cfg Config) *slog.LevelVar {
	lv := new(slog.LevelVar)
	lv.Set(ParseLevel(cfg.Level))
	return lv
}

// NewWithLevelVar is like New but wires the handler to a caller-owned
// *slog.LevelVar, so a later lv.Set can change the active level
// in-place -- internal/config's fsnotify watcher uses this to hot
// reload log level from the config file without rebuilding the logger.
func NewWithLevelVar(cfg Config, lv *slog.LevelVar) *slog.Logger {
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lv}))
	}
	return slog.New(newElapsedHandler(os.Stderr, lv))
}

// elapsedHandler formats records as "[ 0.003s INFO] message key=val",
// the plain-terminal rendering the teacher's own SimpleHandler
// produces (server/lib/app_context.go) -- a human skimming a scrolling
// terminal cares about elapsed time and level far more than a
// timestamp, and the teacher's binaries are invoked the same way
// (long-running foreground processes, not log-aggregated services).
type elapsedHandler struct {
	w         io.Writer
	level     slog.Leveler
	start     time.Time
	attrs     []slog.Attr
	component string
}

func newElapsedHandler(w io.Writer, level slog.Leveler) *elapsedHandler {
	return &elapsedHandler{w: w, level: level, start: time.Now()}
}

func (h *elapsedHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *elapsedHandler) Handle(_ context.Context, rec slog.Record) error {
	elapsed := time.Since(h.start).Seconds()
	prefix := fmt.Sprintf("%6.3fs", elapsed)
	if h.component != "" {
		prefix += " " + h.component
	}
	line := fmt.Sprintf("[%s %s] %s", prefix, rec.Level.String(), rec.Message)

	for _, a := range h.attrs {
		line += " " + formatAttr(a)
	}
	rec.Attrs(func(a slog.Attr) bool {
		line += " " + formatAttr(a)
		return true
	})

	_, err := fmt.Fprintln(h.w, line)
	return err
}

func formatAttr(a slog.Attr) string {
	return fmt.Sprintf("%s=%s", a.Key, a.Value.String())
}

func (h *elapsedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if (a.Key == "component" || a.Key == "session") && next.component == "" {
			next.component = a.Value.String()
			continue
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (h *elapsedHandler) WithGroup(_ string) slog.Handler {
	return h
}
