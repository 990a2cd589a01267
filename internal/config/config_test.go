package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults for a missing file, got %+v", cfg)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apu.yaml")
	body := "app_port: 9000\nlog_level: debug\nlog_json: true\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AppPort != 9000 || cfg.LogLevel != "debug" || !cfg.LogJSON {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	// Fields absent from the file keep their defaults.
	if cfg.ClientPort != Default().ClientPort {
		t.Fatalf("expected client_port default to survive, got %d", cfg.ClientPort)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apu.yaml")
	os.WriteFile(path, []byte("app_port: 9000\n"), 0o644)
	t.Setenv("APU_APP_PORT", "9100")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AppPort != 9100 {
		t.Fatalf("expected env to override file, got app_port=%d", cfg.AppPort)
	}
}

func TestFlagOverridesEnvAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apu.yaml")
	os.WriteFile(path, []byte("app_port: 9000\n"), 0o644)
	t.Setenv("APU_APP_PORT", "9100")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"--app-port=9200"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(path, fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AppPort != 9200 {
		t.Fatalf("expected flag to win over env and file, got app_port=%d", cfg.AppPort)
	}
}

func TestUnsetFlagDoesNotClobberFileValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apu.yaml")
	os.WriteFile(path, []byte("log_level: warn\n"), 0o644)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(path, fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected file's log_level to survive an unset flag, got %q", cfg.LogLevel)
	}
}
