package vt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/creack/pty"

	"github.com/benj-edwards/ascii-processing-unit/internal/telnet"
)

// ConnectTimeout bounds how long dialing a remote host is allowed to
// take. original_source leaves this unbounded (a misbehaving host can
// hang the whole connect call); bounding it is a deliberate addition.
const ConnectTimeout = 10 * time.Second

// Conn is a live backing connection for a Terminal: either a dialed
// TCP/telnet host or a locally spawned PTY-backed command.
type Conn struct {
	rw     io.ReadWriteCloser
	telnet *telnet.Filter
	cmd    *exec.Cmd
	logger *slog.Logger
}

// ConnOption configures a Dial or DialLocal call.
type ConnOption func(*dialConfig)

type dialConfig struct {
	logger  *slog.Logger
	telnet  bool
	command []string
	cols    int
	rows    int
}

// WithLogger attaches a logger to the connection; nil is safe and
// simply disables logging, matching the nil-checked *slog.Logger
// convention used throughout this module.
func WithLogger(logger *slog.Logger) ConnOption {
	return func(c *dialConfig) { c.logger = logger }
}

// WithTelnetNegotiation enables the reactive IAC filter on a dialed
// connection. Most embedded terminal hosts speak raw ANSI with no
// telnet layer at all, so this defaults to off.
func WithTelnetNegotiation() ConnOption {
	return func(c *dialConfig) { c.telnet = true }
}

// WithLocalCommand overrides the default shell a local PTY connection
// spawns.
func WithLocalCommand(argv []string) ConnOption {
	return func(c *dialConfig) { c.command = argv }
}

// WithLocalSize sets the PTY's initial window size.
func WithLocalSize(cols, rows int) ConnOption {
	return func(c *dialConfig) { c.cols, c.rows = cols, rows }
}

// Dial connects to a remote host:port within ConnectTimeout, bailing
// out with a deadline error rather than hanging the caller if the
// host never accepts.
func Dial(ctx context.Context, addr string, opts ...ConnOption) (*Conn, error) {
	cfg := &dialConfig{}
	for _, o := range opts {
		o(cfg)
	}

	dialCtx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	dialer := &net.Dialer{}
	nc, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if cfg.logger != nil {
		cfg.logger.Info("terminal connected", "addr", addr)
	}

	c := &Conn{rw: nc, logger: cfg.logger}
	if cfg.telnet {
		c.telnet = &telnet.Filter{}
	}
	return c, nil
}

// DialLocal spawns a local command behind a PTY instead of dialing a
// remote host, grounded on the same os/exec+creack/pty pattern used
// for container-exec sessions elsewhere in this stack.
func DialLocal(ctx context.Context, opts ...ConnOption) (*Conn, error) {
	cfg := &dialConfig{command: []string{"sh", "-l"}, cols: 80, rows: 24}
	for _, o := range opts {
		o(cfg)
	}

	cmd := exec.CommandContext(ctx, cfg.command[0], cfg.command[1:]...)
	cmd.Env = append(os.Environ(), "TERM=xterm")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: uint16(cfg.cols), Rows: uint16(cfg.rows)})
	if err != nil {
		return nil, fmt.Errorf("start local pty: %w", err)
	}
	if cfg.logger != nil {
		cfg.logger.Info("local terminal started", "command", cfg.command)
	}

	return &Conn{rw: ptmx, cmd: cmd, logger: cfg.logger}, nil
}

// Resize propagates a window-size change to a local PTY. It is a
// no-op for a dialed remote connection, which has no equivalent
// concept outside of telnet NAWS (handled separately by the caller
// feeding size changes into the telnet filter).
func (c *Conn) Resize(cols, rows int) error {
	if c.cmd == nil {
		return nil
	}
	f, ok := c.rw.(*os.File)
	if !ok {
		return nil
	}
	return pty.Setsize(f, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}

// Read implements io.Reader, passing bytes through the telnet filter
// when one is configured.
func (c *Conn) Read(p []byte) (int, error) {
	if c.telnet == nil {
		return c.rw.Read(p)
	}
	buf := make([]byte, len(p))
	n, err := c.rw.Read(buf)
	if n > 0 {
		out := c.telnet.Feed(buf[:n])
		for _, reply := range c.telnet.DrainReplies() {
			c.rw.Write(reply)
		}
		copy(p, out)
		return len(out), err
	}
	return 0, err
}

// Write implements io.Writer.
func (c *Conn) Write(p []byte) (int, error) { return c.rw.Write(p) }

// HasTelnet reports whether this connection negotiates telnet options
// at all (most embedded terminal hosts speak raw ANSI and don't).
func (c *Conn) HasTelnet() bool { return c.telnet != nil }

// SendNAWS writes a NAWS window-size subnegotiation to a
// telnet-negotiating remote. It is a no-op on a connection that
// doesn't negotiate telnet at all.
func (c *Conn) SendNAWS(cols, rows int) error {
	if c.telnet == nil {
		return nil
	}
	_, err := c.rw.Write(telnet.EncodeNAWS(cols, rows))
	return err
}

// Close releases the underlying connection or PTY and waits for a
// locally spawned command to exit.
func (c *Conn) Close() error {
	err := c.rw.Close()
	if c.cmd != nil {
		c.cmd.Wait()
	}
	if c.logger != nil {
		c.logger.Info("terminal connection closed")
	}
	return err
}
