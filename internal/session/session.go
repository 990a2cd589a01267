// Package session implements per-client Session state: a window
// manager, a delta renderer, input-parser and chrome-interaction
// state, and the embedded terminals hosted inside this session's
// windows. Spec's concurrency model -- "per-session state owned by
// exactly one task" -- is realized here as a single goroutine (Run)
// draining a bounded queue of closures submitted by the application,
// client, and terminal-reader goroutines; every mutation to a
// session's state happens inside that one goroutine, so nothing here
// needs its own lock.
package session

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/benj-edwards/ascii-processing-unit/internal/cellgrid"
	"github.com/benj-edwards/ascii-processing-unit/internal/inputparse"
	"github.com/benj-edwards/ascii-processing-unit/internal/protocol"
	"github.com/benj-edwards/ascii-processing-unit/internal/render"
	"github.com/benj-edwards/ascii-processing-unit/internal/window"
)

// ErrWindowNotFound names the failure of a command that targets a
// window id the session doesn't have. ApplyCommand returns no error,
// and no command handler returns this value.
var ErrWindowNotFound = errors.New("session: window not found")

// ErrTerminalNotFound names the failure of a terminal-lifecycle
// command that targets a terminal id the session doesn't have. No
// command handler returns this value.
var ErrTerminalNotFound = errors.New("session: terminal not found")

// autoFlushInterval is the fixed tick driving asynchronous terminal
// output to the client without application involvement.
const autoFlushInterval = 30 * time.Millisecond

// queueDepth bounds the session's command queue, matching spec's
// "bounded message queues" requirement for inter-task communication.
const queueDepth = 256

// InteractionState names the phase of the chrome interaction state
// machine described in spec section 4.7.
type InteractionState int

const (
	StateIdle InteractionState = iota
	StateDragging
	StateResizing
)

type dragState struct {
	windowID       string
	grabDX, grabDY int
}

// resizeState anchors a live resize to the window's top-left corner,
// which stays fixed for the drag's duration: size = max(min, cursor -
// anchor + 1) recomputes the full size from scratch on every motion
// event rather than accumulating a delta.
type resizeState struct {
	windowID         string
	anchorX, anchorY int
}

// Session owns all per-client state: windows, renderer shadow, input
// parser state, mouse mode, embedded terminals, and the output byte
// queue to the client socket. It is created when a client connects on
// the client port and destroyed when that client disconnects; it
// survives application-server restarts.
type Session struct {
	ID          string
	Addr        string
	ConnectedAt time.Time

	logger *slog.Logger

	WM       *window.WindowManager
	Renderer *render.ANSIRenderer

	parser    inputparse.Parser
	MouseMode render.MouseMode

	interaction  InteractionState
	drag         dragState
	resize       resizeState
	close        closePending
	lastTitleClickAt map[string]time.Time
	focusedWindow    string

	terminals map[string]*terminalHost

	console *consoleState

	// sharedFrom records, in the order commands arrived, the session
	// ids whose Background this session's flush copies into its own
	// Background before compositing. share_window/unshare_window are
	// only logged, neither recorded nor wired to compositing, matching original_source's
	// own not-yet-implemented scope for that half of the feature.
	sharedFrom []string

	out   io.Writer
	emit  func(protocol.Response)
	resolveBackground func(sessionID string) *cellgrid.Grid
	notifyShare        func(sessionID string, shared bool)

	cmdCh   chan func()
	closeCh chan struct{}
	closeOnce sync.Once
	doneCh  chan struct{}

	// bgSnapshot is the only piece of Session state touched from
	// outside the owning goroutine: share_display needs some other
	// session's Background readable concurrently with that session's
	// own mutations, so every flush publishes an immutable copy here
	// under bgMu rather than exposing WM.Background itself.
	bgMu       sync.RWMutex
	bgSnapshot *cellgrid.Grid
}

// New creates a session for a freshly accepted client connection.
//
//   - out is the client socket's writer; every flush's rendered bytes
//     and every mouse-mode escape go there.
//   - emit broadcasts a protocol.Response to every connected
//     application.
//   - resolveBackground, given another session's id, returns a
//     snapshot of that session's current Background grid (or nil),
//     used for share_display.
func New(id, addr string, out io.Writer, emit func(protocol.Response), resolveBackground func(string) *cellgrid.Grid, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		ID:          id,
		Addr:        addr,
		ConnectedAt: time.Now(),
		logger:      logger.With("session", id),
		WM:          window.NewWindowManager(80, 24),
		Renderer:    render.NewANSIRenderer(80, 24),
		MouseMode:   render.MouseNone,
		terminals:   make(map[string]*terminalHost),
		console:     &consoleState{},
		lastTitleClickAt: make(map[string]time.Time),
		out:         out,
		emit:        emit,
		resolveBackground: resolveBackground,
		cmdCh:       make(chan func(), queueDepth),
		closeCh:     make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	return s
}

// Submit enqueues fn to run on the session's owning goroutine,
// blocking (a suspension point, per spec section 5) if the queue is
// full. It is a no-op once the session has started closing.
func (s *Session) Submit(fn func()) {
	select {
	case s.cmdCh <- fn:
	case <-s.closeCh:
	}
}

// Run drains the session's command queue on the calling goroutine
// until Close is called, also driving the 30ms auto-flush tick for
// asynchronous embedded-terminal output. It returns once teardown
// (closing terminal connections, emitting client_disconnect) is done.
func (s *Session) Run() {
	defer close(s.doneCh)
	ticker := time.NewTicker(autoFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case fn := <-s.cmdCh:
			fn()
		case <-ticker.C:
			s.autoFlushTick()
		case <-s.closeCh:
			s.teardown()
			return
		}
	}
}

// Close signals the session's goroutine to tear down and returns once
// it has. Safe to call more than once or concurrently.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.closeCh) })
	<-s.doneCh
}

func (s *Session) teardown() {
	for id, h := range s.terminals {
		h.close()
		delete(s.terminals, id)
	}
	s.emit(protocol.Response{Type: "client_disconnect", Session: s.ID})

	// Closing the client socket here (rather than from a second,
	// eagerly-launched goroutine racing Run's own select) is what
	// unblocks handleClientConn's conn.Read loop when Close was
	// triggered by something other than that loop itself, e.g. an
	// app-issued shutdown command.
	if c, ok := s.out.(io.Closer); ok {
		c.Close()
	}
}

// SetNotifyShare wires the callback invoked whenever this session's
// share_display/unshare_display commands change which sessions share
// from it, letting a server-level registry track the reverse mapping
// (displaySharesTo) without this package needing to know about the
// registry. Must be called before the session starts receiving
// commands; there is no concurrent-safe way to change it later.
func (s *Session) SetNotifyShare(fn func(sessionID string, shared bool)) {
	s.notifyShare = fn
}

// autoFlushTick drives the 30ms ambient flush: it copies any embedded
// terminal's screen into its hosting window's content grid, then
// flushes exactly like an explicit "flush" command would, but only
// when there's actually something to send -- an idle session with no
// terminals and no dirty windows produces no output on every tick.
func (s *Session) autoFlushTick() {
	if len(s.terminals) == 0 && !s.WM.IsDirty() {
		return
	}
	s.doFlush(false)
}

// syncTerminalsToWindows blits each embedded terminal's private
// screen into the content grid of the window hosting it, the step
// original_source calls sync_terminals_to_windows.
func (s *Session) syncTerminalsToWindows() {
	for _, host := range s.terminals {
		w, ok := s.WM.Get(host.windowID)
		if !ok {
			continue
		}
		w.Content.Blit(host.term.Screen, 0, 0, 0, 0, host.term.Screen.Cols, host.term.Screen.Rows)
	}
}

// publishBackgroundSnapshot makes a frozen copy of this session's
// current Background grid available to BackgroundSnapshot. Called at
// the end of every flush, after any incoming shares have already been
// merged in, so a chain of share_display commands (A shares to B, B
// shares to C) propagates A's content through to C.
func (s *Session) publishBackgroundSnapshot() {
	snap := s.WM.Background.Clone()
	s.bgMu.Lock()
	s.bgSnapshot = snap
	s.bgMu.Unlock()
}

// BackgroundSnapshot returns the most recently published copy of this
// session's Background grid, or nil if none has been published yet.
// Safe to call from any goroutine -- this is what a server's
// resolveBackground closure calls on behalf of a sibling session's
// share_display command.
func (s *Session) BackgroundSnapshot() *cellgrid.Grid {
	s.bgMu.RLock()
	defer s.bgMu.RUnlock()
	return s.bgSnapshot
}

// writeOut appends raw bytes to the client socket, logging (not
// panicking) on failure -- a write error here just means the client
// is already gone, which teardown will discover via its own read
// loop closing.
func (s *Session) writeOut(data string) {
	if data == "" || s.out == nil {
		return
	}
	if _, err := io.WriteString(s.out, data); err != nil {
		s.logger.Debug("client write failed", "error", err)
	}
}
