package applog

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for name, want := range cases {
		if got := ParseLevel(name); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestNewReturnsNonNil(t *testing.T) {
	logger := New(Config{})
	if logger == nil {
		t.Fatal("New returned nil logger")
	}
}

func TestElapsedHandlerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	lv := new(slog.LevelVar)
	lv.Set(slog.LevelWarn)
	logger := slog.New(newElapsedHandler(&buf, lv))

	logger.Info("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %q", buf.String())
	}

	logger.Warn("should appear", "key", "value")
	out := buf.String()
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "key=value") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestElapsedHandlerWithAttrsPromotesComponent(t *testing.T) {
	var buf bytes.Buffer
	lv := new(slog.LevelVar)
	logger := slog.New(newElapsedHandler(&buf, lv)).With("component", "session")

	logger.Info("hello")
	out := buf.String()
	if !strings.Contains(out, "session") {
		t.Fatalf("expected component to be promoted into prefix, got %q", out)
	}
	if strings.Contains(out, "component=session") {
		t.Fatalf("component should not also appear as a trailing key=val, got %q", out)
	}
}

func TestFromEnvDefaultsToInfo(t *testing.T) {
	t.Setenv("APU_LOG_LEVEL", "")
	t.Setenv("APU_LOG_JSON", "")
	cfg := FromEnv()
	if cfg.Level != "" || cfg.JSON {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if ParseLevel(cfg.Level) != slog.LevelInfo {
		t.Fatalf("expected default level info")
	}
}
