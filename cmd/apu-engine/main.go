// Command apu-engine is the character-cell display engine: it accepts
// application connections on one TCP port and player/client telnet
// connections on another, rendering each client session's composited
// window manager output as a delta ANSI stream. Structurally this is
// the teacher's server/main.go split into parseCommandLineArgs/
// NewApplication/Start/Stop, adapted to this project's
// config/applog/server packages in place of the teacher's lib
// package.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/benj-edwards/ascii-processing-unit/internal/adminws"
	"github.com/benj-edwards/ascii-processing-unit/internal/applog"
	"github.com/benj-edwards/ascii-processing-unit/internal/config"
	"github.com/benj-edwards/ascii-processing-unit/internal/eventlog"
	"github.com/benj-edwards/ascii-processing-unit/internal/protocol"
	"github.com/benj-edwards/ascii-processing-unit/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "apu-engine: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("apu-engine", pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "path to a YAML config file")
	config.RegisterFlags(flagSet)
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*configPath, flagSet)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	lv := applog.LevelVar(applog.Config{Level: cfg.LogLevel})
	logger := applog.NewWithLevelVar(applog.Config{JSON: cfg.LogJSON}, lv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if *configPath != "" {
		w, err := config.WatchLogLevel(ctx, *configPath, lv, logger)
		if err != nil {
			logger.Warn("config: log level hot reload disabled", "error", err)
		} else {
			defer w.Close()
		}
	}

	var events *eventlog.Log
	if cfg.EventLogPath != "" {
		events, err = eventlog.Open(eventlog.Config{
			Path:             cfg.EventLogPath,
			MaxSegmentEvents: 100_000,
			MaxSegmentAge:    24 * time.Hour,
			Logger:           logger,
		})
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		defer events.Close()
	}

	var hub *adminws.Hub
	if cfg.AdminAddr != "" {
		hub = adminws.NewHub(logger)
		go serveAdmin(ctx, cfg.AdminAddr, hub, logger)
	}

	srv := server.New(server.Config{
		AppBind:    cfg.AppBind,
		AppPort:    cfg.AppPort,
		ClientPort: cfg.ClientPort,
	}, logger)
	srv.SetEventObserver(func(ev protocol.Response) {
		if events != nil {
			events.Record(ev.Session, ev.Type, ev)
		}
		if hub != nil {
			hub.Broadcast(ev)
		}
	})

	logger.Info("apu-engine starting",
		"app_bind", cfg.AppBind, "app_port", cfg.AppPort, "client_port", cfg.ClientPort)
	if cfg.AppBind == "0.0.0.0" {
		logger.Warn("application port bound to all interfaces -- connections are unauthenticated")
	}

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server: %w", err)
	}

	logger.Info("apu-engine exited cleanly")
	return nil
}

// serveAdmin runs the admin diagnostics websocket listener until ctx
// is done. A failure here is logged but never fatal to the engine --
// the admin feed is an operations convenience, not part of the display
// protocol.
func serveAdmin(ctx context.Context, addr string, hub *adminws.Hub, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/admin/events", hub)
	httpSrv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("admin diagnostics feed listening", "addr", addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("admin diagnostics feed failed", "error", err)
	}
}
