// Package server accepts the two TCP listeners the engine exposes --
// an application port games send JSON commands to and receive events
// from, and a client port human players connect to over telnet -- and
// wires each accepted client connection to its own internal/session
// instance.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/benj-edwards/ascii-processing-unit/internal/protocol"
)

// Config is everything Server needs to bind its listeners.
type Config struct {
	// AppBind is the address the application port binds, e.g.
	// "127.0.0.1" to keep it off the network or "0.0.0.0" to expose
	// it -- mirrors original_source's own bind-address split between
	// the two ports.
	AppBind  string
	AppPort  uint16
	ClientPort uint16
}

// Server owns the session registry and both accept loops.
type Server struct {
	cfg    Config
	logger *slog.Logger
	reg    *registry

	readyCh              chan struct{}
	appAddr, clientAddr string
}

// New creates a Server ready to Run.
func New(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, logger: logger, reg: newRegistry(), readyCh: make(chan struct{})}
}

// SetEventObserver registers a callback invoked with every event this
// server broadcasts to applications -- the audit log and the admin
// diagnostics feed both subscribe this way rather than each maintaining
// their own connection into the registry. Must be called before Run.
func (s *Server) SetEventObserver(fn func(protocol.Response)) {
	s.reg.observer = fn
}

// Addrs blocks until both listeners are bound (or ctx is done) and
// returns their actual addresses -- useful for tests that bind an
// ephemeral port (AppPort/ClientPort == 0) and need to learn what was
// actually chosen.
func (s *Server) Addrs(ctx context.Context) (appAddr, clientAddr string, err error) {
	select {
	case <-s.readyCh:
		return s.appAddr, s.clientAddr, nil
	case <-ctx.Done():
		return "", "", ctx.Err()
	}
}

// Run binds both listeners and blocks, serving connections until ctx
// is canceled or one of the listeners fails irrecoverably. Matches the
// teacher's errgroup-based "wait on every concurrent loop, return the
// first error" shutdown shape.
func (s *Server) Run(ctx context.Context) error {
	appAddr := fmt.Sprintf("%s:%d", s.cfg.AppBind, s.cfg.AppPort)
	clientAddr := fmt.Sprintf("0.0.0.0:%d", s.cfg.ClientPort)

	appLn, err := net.Listen("tcp", appAddr)
	if err != nil {
		return fmt.Errorf("server: listen app port: %w", err)
	}
	clientLn, err := net.Listen("tcp", clientAddr)
	if err != nil {
		appLn.Close()
		return fmt.Errorf("server: listen client port: %w", err)
	}

	s.appAddr = appLn.Addr().String()
	s.clientAddr = clientLn.Addr().String()
	close(s.readyCh)

	s.logger.Info("apu server listening", "app_addr", s.appAddr, "client_addr", s.clientAddr)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.acceptLoop(ctx, appLn, "app", s.handleAppConn) })
	g.Go(func() error { return s.acceptLoop(ctx, clientLn, "client", s.handleClientConn) })
	g.Go(func() error {
		<-ctx.Done()
		appLn.Close()
		clientLn.Close()
		return ctx.Err()
	})

	return g.Wait()
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, kind string, handle func(context.Context, net.Conn)) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			s.logger.Error("accept error", "kind", kind, "error", err)
			return err
		}
		s.logger.Info("connection accepted", "kind", kind, "addr", conn.RemoteAddr())
		go handle(ctx, conn)
	}
}
