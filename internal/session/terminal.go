package session

import (
	"context"
	"fmt"

	"github.com/benj-edwards/ascii-processing-unit/internal/protocol"
	"github.com/benj-edwards/ascii-processing-unit/internal/vt"
	"github.com/benj-edwards/ascii-processing-unit/internal/window"
)

// terminalHost bundles an embedded TerminalEmulator with its backing
// connection and the window it's displayed in. Its lifecycle is
// created by create_terminal, destroyed by close_terminal or a remote
// close, and it is hosted inside exactly one window for its whole
// life.
type terminalHost struct {
	id       string
	windowID string
	term     *vt.Terminal
	conn     *vt.Conn

	localEcho  bool
	lineEnding string // "CR" or "CRLF"

	cancel func()
}

func (h *terminalHost) close() {
	if h.cancel != nil {
		h.cancel()
	}
	if h.conn != nil {
		h.conn.Close()
	}
}

func (s *Session) cmdCreateTerminal(ctx context.Context, cmd *protocol.Command) {
	if cmd.ID == "" {
		return
	}
	x, y := valOr(cmd.X, 1), valOr(cmd.Y, 1)
	width, height := valOr(cmd.Width, 40), valOr(cmd.Height, 20)
	border := window.BorderSingle
	if cmd.Border != "" {
		border = window.ParseBorderStyle(cmd.Border)
	}

	w := s.WM.CreateWindow(cmd.ID, x, clampWindowY(y, false), width, height, border)
	w.Closable = boolOr(cmd.Closable, true)
	w.Resizable = boolOr(cmd.Resizable, true)
	w.Draggable = boolOr(cmd.Draggable, true)
	if cmd.Title != nil {
		w.SetTitle(*cmd.Title)
	} else if w.Title == "" {
		w.SetTitle(cmd.ID)
	}

	ttype := vt.ParseTerminalType(cmd.TerminalType)
	term := vt.NewTerminal(cmd.ID, w.InnerWidth(), w.InnerHeight(), ttype)

	host := &terminalHost{
		id: cmd.ID, windowID: cmd.ID, term: term,
		localEcho:  boolOr(cmd.LocalEcho, false),
		lineEnding: "CRLF",
	}
	if cmd.LineEnding != "" {
		host.lineEnding = cmd.LineEnding
	}

	connCtx, cancel := context.WithCancel(ctx)
	host.cancel = cancel

	var (
		conn *vt.Conn
		err  error
		port uint16
	)
	if cmd.Host == "local" {
		conn, err = vt.DialLocal(connCtx, vt.WithLogger(s.logger), vt.WithLocalSize(w.InnerWidth(), w.InnerHeight()))
	} else {
		if cmd.Port != nil {
			port = *cmd.Port
		}
		conn, err = vt.Dial(connCtx, fmt.Sprintf("%s:%d", cmd.Host, port), vt.WithLogger(s.logger), vt.WithTelnetNegotiation())
	}
	if err != nil {
		cancel()
		s.emit(protocol.Response{Type: "terminal_error", Session: s.ID, ID: cmd.ID, Host: cmd.Host, Port: port, Error: err.Error()})
		return
	}

	host.conn = conn
	s.terminals[cmd.ID] = host
	s.emit(protocol.Response{Type: "terminal_connected", Session: s.ID, ID: cmd.ID, Host: cmd.Host, Port: port})

	go s.runTerminalReader(host)
}

// runTerminalReader pumps bytes from the remote/local connection into
// the terminal emulator, one Submit-ed closure per read -- matching
// spec section 5's "terminal tasks push decoded byte-batches to their
// session's command queue" model. It exits when the connection closes
// or errors, at which point it reports disconnection and leaves the
// hosting window in place for the application to deal with.
func (s *Session) runTerminalReader(host *terminalHost) {
	buf := make([]byte, 4096)
	for {
		n, err := host.conn.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			s.Submit(func() { s.feedTerminalBytes(host.id, data) })
		}
		if err != nil {
			s.Submit(func() { s.handleTerminalClosed(host.id, err) })
			return
		}
	}
}

func (s *Session) feedTerminalBytes(id string, data []byte) {
	host, ok := s.terminals[id]
	if !ok {
		return
	}
	host.term.ProcessData(data)
	for _, resp := range host.term.ResponseQueue {
		host.conn.Write(resp)
	}
	host.term.ResponseQueue = nil
}

func (s *Session) handleTerminalClosed(id string, cause error) {
	if _, ok := s.terminals[id]; !ok {
		return
	}
	delete(s.terminals, id)
	reason := "closed"
	if cause != nil {
		reason = cause.Error()
	}
	s.emit(protocol.Response{Type: "terminal_disconnected", Session: s.ID, ID: id, Reason: reason})
}

func (s *Session) cmdCloseTerminal(cmd *protocol.Command) {
	host, ok := s.terminals[cmd.ID]
	if !ok {
		return
	}
	host.close()
	delete(s.terminals, cmd.ID)
}

// cmdTerminalInput injects raw bytes into the remote side of an
// embedded terminal. When local_echo is on, the same bytes are also
// fed through the local emulator so a host that doesn't echo its own
// input still shows it.
func (s *Session) cmdTerminalInput(cmd *protocol.Command) {
	host, ok := s.terminals[cmd.ID]
	if !ok {
		return
	}
	data := []byte(cmd.Data)
	host.conn.Write(data)
	if host.localEcho {
		host.term.ProcessData(data)
	}
}

func (s *Session) cmdTerminalConfig(cmd *protocol.Command) {
	host, ok := s.terminals[cmd.ID]
	if !ok {
		return
	}
	if cmd.LocalEcho != nil {
		host.localEcho = *cmd.LocalEcho
	}
	if cmd.LineEnding != "" {
		host.lineEnding = cmd.LineEnding
	}
}

func (s *Session) cmdResizeTerminal(cmd *protocol.Command) {
	host, ok := s.terminals[cmd.ID]
	if !ok {
		return
	}
	w, ok := s.WM.Get(host.windowID)
	if !ok {
		return
	}
	width, height := w.Width, w.Height
	if cmd.Width != nil {
		width = *cmd.Width
	}
	if cmd.Height != nil {
		height = *cmd.Height
	}
	if width < w.MinWidth {
		width = w.MinWidth
	}
	if height < w.MinHeight {
		height = w.MinHeight
	}
	w.Resize(width, height)
	host.term.Resize(w.InnerWidth(), w.InnerHeight())
	host.conn.Resize(w.InnerWidth(), w.InnerHeight())
	host.conn.SendNAWS(w.InnerWidth(), w.InnerHeight())
}

// enterPressBytes returns the bytes an Enter keystroke should transmit
// to an embedded terminal's remote, per its configured line ending.
func (h *terminalHost) enterPressBytes() []byte {
	if h.lineEnding == "CR" {
		return []byte{'\r'}
	}
	return []byte{'\r', '\n'}
}
