// Package config layers the engine's runtime configuration from a
// YAML file, environment variables, and command-line flags -- file <
// env < flag precedence, the same increasing-precedence shape as the
// teacher's ApplicationConfig (server/main.go, server/lib/
// config_loader.go), just with pflag/yaml.v3 in place of the teacher's
// stdlib flag/encoding/json.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config is everything cmd/apu-engine needs to start serving.
type Config struct {
	AppBind    string `yaml:"app_bind"`
	AppPort    uint16 `yaml:"app_port"`
	ClientPort uint16 `yaml:"client_port"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	// EventLogPath is where the session/window audit log is written,
	// empty disables it.
	EventLogPath string `yaml:"event_log_path"`

	// AdminAddr is the bind address for the read-only diagnostics
	// websocket feed, empty disables it.
	AdminAddr string `yaml:"admin_addr"`
}

// Default returns the configuration used when no file, env var, or
// flag overrides a field.
func Default() Config {
	return Config{
		AppBind:    "127.0.0.1",
		AppPort:    6121,
		ClientPort: 6123,
		LogLevel:   "info",
	}
}

// Load builds a Config from, in increasing precedence: the YAML file
// at path (skipped if path is empty or the file does not exist; any
// other read error is returned), environment
// variables, then flagSet's already-parsed values for any flag the
// caller explicitly set. Mirrors the teacher's config_loader.go +
// parseCommandLineArgs split, collapsed into one layered pass.
func Load(path string, flagSet *pflag.FlagSet) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// No file is not an error -- env vars and flags alone are
			// a valid configuration.
		default:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if flagSet != nil {
		applyFlags(&cfg, flagSet)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("APU_APP_BIND"); v != "" {
		cfg.AppBind = v
	}
	if v := os.Getenv("APU_APP_PORT"); v != "" {
		if p, err := strconv.ParseUint(v, 10, 16); err == nil {
			cfg.AppPort = uint16(p)
		}
	}
	if v := os.Getenv("APU_CLIENT_PORT"); v != "" {
		if p, err := strconv.ParseUint(v, 10, 16); err == nil {
			cfg.ClientPort = uint16(p)
		}
	}
	if v := os.Getenv("APU_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	switch os.Getenv("APU_LOG_JSON") {
	case "1", "true", "yes":
		cfg.LogJSON = true
	}
	if v := os.Getenv("APU_EVENT_LOG_PATH"); v != "" {
		cfg.EventLogPath = v
	}
	if v := os.Getenv("APU_ADMIN_ADDR"); v != "" {
		cfg.AdminAddr = v
	}
}

// applyFlags overrides cfg with any pflag the caller actually set on
// the command line, using flagSet.Changed so an unset flag's zero
// value never clobbers a file/env value.
func applyFlags(cfg *Config, flagSet *pflag.FlagSet) {
	get := func(name string) (*pflag.Flag, bool) {
		f := flagSet.Lookup(name)
		return f, f != nil && f.Changed
	}

	if f, ok := get("app-bind"); ok {
		cfg.AppBind = f.Value.String()
	}
	if f, ok := get("app-port"); ok {
		if p, err := strconv.ParseUint(f.Value.String(), 10, 16); err == nil {
			cfg.AppPort = uint16(p)
		}
	}
	if f, ok := get("client-port"); ok {
		if p, err := strconv.ParseUint(f.Value.String(), 10, 16); err == nil {
			cfg.ClientPort = uint16(p)
		}
	}
	if f, ok := get("log-level"); ok {
		cfg.LogLevel = f.Value.String()
	}
	if f, ok := get("log-json"); ok {
		cfg.LogJSON = f.Value.String() == "true"
	}
	if f, ok := get("event-log"); ok {
		cfg.EventLogPath = f.Value.String()
	}
	if f, ok := get("admin-addr"); ok {
		cfg.AdminAddr = f.Value.String()
	}
}

// RegisterFlags adds every Config flag to flagSet with Default()'s
// values as their defaults, so a caller can pflag.Parse() then pass
// flagSet straight to Load.
func RegisterFlags(flagSet *pflag.FlagSet) {
	d := Default()
	flagSet.String("app-bind", d.AppBind, "address the application port binds")
	flagSet.Uint16("app-port", d.AppPort, "application (game) port, 0 for an ephemeral port")
	flagSet.Uint16("client-port", d.ClientPort, "client (telnet) port, 0 for an ephemeral port")
	flagSet.String("log-level", d.LogLevel, "debug, info, warn, or error")
	flagSet.Bool("log-json", d.LogJSON, "emit JSON-formatted logs")
	flagSet.String("event-log", d.EventLogPath, "path to the session/window audit log, empty disables it")
	flagSet.String("admin-addr", d.AdminAddr, "bind address for the admin diagnostics feed, empty disables it")
}
