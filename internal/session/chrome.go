package session

import (
	"time"

	"github.com/benj-edwards/ascii-processing-unit/internal/inputparse"
	"github.com/benj-edwards/ascii-processing-unit/internal/protocol"
	"github.com/benj-edwards/ascii-processing-unit/internal/window"
)

// doubleClickWindow bounds how long after a title-bar click a second
// click on the same title bar counts as a double-click (maximize)
// rather than the start of a fresh drag.
const doubleClickWindow = 500 * time.Millisecond

// closePending remembers which window's close glyph was pressed, so a
// release over that same glyph (and no other mouse activity in
// between) is what actually triggers window_close_requested -- a
// press alone never closes anything.
type closePending struct {
	windowID string
	active   bool
}

// FeedInput is the entry point for raw bytes read from the client
// socket: it decodes them into input events and routes each one
// through the console, the chrome interaction state machine, an
// embedded terminal, or the application, in that priority order. Must
// only be called from the session's owning goroutine.
func (s *Session) FeedInput(data []byte) {
	for _, ev := range s.parser.Parse(data) {
		s.handleInputEvent(ev)
	}
}

func (s *Session) handleInputEvent(ev inputparse.Event) {
	if isConsoleToggle(ev) {
		s.toggleConsole()
		return
	}
	if s.console != nil && s.console.open {
		s.feedConsole(ev)
		return
	}
	if ev.Kind == inputparse.EventMouse {
		s.handleMouseEvent(ev)
		return
	}
	s.routeKeyboardEvent(ev)
}

// isConsoleToggle matches the supplemented debug console's hotkeys:
// Ctrl+\ (0x1C, a byte every terminal since the Apple II can send and
// that no escape sequence collides with) or F10.
func isConsoleToggle(ev inputparse.Event) bool {
	switch ev.Kind {
	case inputparse.EventChar:
		return ev.Char == 0x1C
	case inputparse.EventKey:
		return ev.Key == inputparse.KeyF10
	}
	return false
}

// routeKeyboardEvent sends a char/key event to the focused window's
// embedded terminal if it has one, or forwards it to the application
// otherwise. Mouse events never reach a terminal: the chrome
// interaction machine forwards content hits to the application, on
// terminal windows too, exactly like original_source does.
func (s *Session) routeKeyboardEvent(ev inputparse.Event) {
	if s.focusedWindow != "" {
		if host, ok := s.terminals[s.focusedWindow]; ok {
			s.sendKeyboardToTerminal(host, ev)
			return
		}
	}
	s.forwardInput(ev)
}

func (s *Session) sendKeyboardToTerminal(host *terminalHost, ev inputparse.Event) {
	data := terminalInputBytes(ev, host)
	if len(data) == 0 {
		return
	}
	host.conn.Write(data)
	if host.localEcho {
		if echo := terminalEchoBytes(ev); len(echo) > 0 {
			host.term.ProcessData(echo)
		}
	}
}

func (s *Session) forwardInput(ev inputparse.Event) {
	wireEv := protocol.EncodeInputEvent(ev)
	s.emit(protocol.Response{Type: "input", Session: s.ID, Event: &wireEv})
}

// handleMouseEvent is the chrome interaction state machine: it
// resolves a mouse event against window chrome (close, title bar,
// resize handle) before ever letting it reach the application, per
// spec section 4's interaction table. A hit that starts or continues
// a drag/resize/close-press is swallowed. Only presses reach the
// application: a left press on window content is forwarded with
// window-relative coordinates, any other forwarded press with screen
// coordinates. Releases and motion are never forwarded.
func (s *Session) handleMouseEvent(ev inputparse.Event) {
	x, y := ev.MouseX, ev.MouseY

	switch ev.MouseEventType {
	case inputparse.MousePress:
		s.handleMousePress(ev, x, y)
	case inputparse.MouseRelease:
		s.handleMouseRelease(x, y)
	case inputparse.MouseDrag, inputparse.MouseMove:
		s.handleMouseMotion(x, y)
	}
}

func (s *Session) handleMousePress(ev inputparse.Event, x, y int) {
	if ev.MouseButton != inputparse.MouseLeft {
		s.forwardMouse(ev, x, y)
		return
	}

	w := s.WM.WindowAt(x, y)
	if w == nil {
		s.forwardMouse(ev, x, y)
		return
	}

	switch {
	case w.HitCloseButton(x, y):
		s.close = closePending{windowID: w.ID, active: true}
		return

	case w.HitResizeHandle(x, y):
		s.WM.BringToFront(w.ID)
		s.focusedWindow = w.ID
		s.emit(protocol.Response{Type: "window_focused", Session: s.ID, ID: w.ID})
		s.interaction = StateResizing
		s.resize = resizeState{windowID: w.ID, anchorX: w.X, anchorY: w.Y}
		return

	case w.HitTitleBar(x, y):
		s.handleTitleBarPress(w, x, y)
		return

	default:
		s.WM.BringToFront(w.ID)
		s.focusedWindow = w.ID
		s.emit(protocol.Response{Type: "window_focused", Session: s.ID, ID: w.ID})
		if contentHit(w, x, y) {
			cx, cy := windowRelative(w, x, y)
			s.forwardMouse(ev, cx, cy)
		} else {
			s.forwardMouse(ev, x, y)
		}
	}
}

func (s *Session) handleTitleBarPress(w *window.Window, x, y int) {
	now := time.Now()
	if last, ok := s.lastTitleClickAt[w.ID]; ok && now.Sub(last) < doubleClickWindow {
		delete(s.lastTitleClickAt, w.ID)
		s.WM.BringToFront(w.ID)
		s.emit(protocol.Response{Type: "window_maximize_requested", Session: s.ID, ID: w.ID})
		return
	}
	s.lastTitleClickAt[w.ID] = now

	s.WM.BringToFront(w.ID)
	s.focusedWindow = w.ID
	s.emit(protocol.Response{Type: "window_focused", Session: s.ID, ID: w.ID})

	s.interaction = StateDragging
	s.drag = dragState{windowID: w.ID, grabDX: x - w.X, grabDY: y - w.Y}
}

func (s *Session) handleMouseRelease(x, y int) {
	switch s.interaction {
	case StateDragging:
		if w, ok := s.WM.Get(s.drag.windowID); ok {
			s.emit(protocol.Response{Type: "window_moved", Session: s.ID, ID: w.ID, X: w.X, Y: w.Y})
		}
		s.interaction = StateIdle
		return
	case StateResizing:
		if w, ok := s.WM.Get(s.resize.windowID); ok {
			s.emit(protocol.Response{Type: "window_resized", Session: s.ID, ID: w.ID, Width: w.Width, Height: w.Height})
		}
		s.interaction = StateIdle
		return
	}

	if s.close.active {
		if w, ok := s.WM.Get(s.close.windowID); ok && w.HitCloseButton(x, y) {
			s.emit(protocol.Response{Type: "window_close_requested", Session: s.ID, ID: w.ID})
		}
		s.close = closePending{}
	}
}

func (s *Session) handleMouseMotion(x, y int) {
	switch s.interaction {
	case StateDragging:
		w, ok := s.WM.Get(s.drag.windowID)
		if !ok {
			s.interaction = StateIdle
			return
		}
		newX := maxInt(x-s.drag.grabDX, 0)
		newY := maxInt(y-s.drag.grabDY, 1)
		newX = minInt(newX, maxInt(s.WM.Cols-w.Width, 0))
		newY = minInt(newY, maxInt(s.WM.Rows-w.Height, 0))
		w.MoveTo(newX, newY)

	case StateResizing:
		w, ok := s.WM.Get(s.resize.windowID)
		if !ok {
			s.interaction = StateIdle
			return
		}
		newW := maxInt(w.MinWidth, x-s.resize.anchorX+1)
		newH := maxInt(w.MinHeight, y-s.resize.anchorY+1)
		newW = minInt(newW, maxInt(s.WM.Cols-w.X, w.MinWidth))
		newH = minInt(newH, maxInt(s.WM.Rows-w.Y, w.MinHeight))
		if newW != w.Width || newH != w.Height {
			w.Resize(newW, newH)
		}
	}
}

// forwardMouse builds and emits an "input" event carrying a mouse
// report at the given (possibly window-translated) coordinates.
func (s *Session) forwardMouse(ev inputparse.Event, x, y int) {
	wireEv := protocol.EncodeInputEvent(ev)
	wireEv.X, wireEv.Y = uint16(x), uint16(y)
	s.emit(protocol.Response{Type: "input", Session: s.ID, Event: &wireEv})
}

// contentHit reports whether (x,y) lands within w's content area
// (inside the border, if any), as opposed to the border itself.
func contentHit(w *window.Window, x, y int) bool {
	ox, oy := w.ContentOffset()
	cx, cy := w.X+ox, w.Y+oy
	return x >= cx && x < cx+w.InnerWidth() && y >= cy && y < cy+w.InnerHeight()
}

// windowRelative translates screen coordinates into the window's
// content-local coordinate space.
func windowRelative(w *window.Window, x, y int) (int, int) {
	ox, oy := w.ContentOffset()
	return x - w.X - ox, y - w.Y - oy
}

// terminalInputBytes converts a char/key event into the bytes an
// embedded terminal's remote should receive, grounded on
// original_source's input_event_to_bytes: printable characters pass
// through as UTF-8, named keys become their standard VT escape
// sequences, and Enter honors the host's configured line ending.
func terminalInputBytes(ev inputparse.Event, host *terminalHost) []byte {
	switch ev.Kind {
	case inputparse.EventChar:
		return []byte(string(ev.Char))
	case inputparse.EventKey:
		switch ev.Key {
		case inputparse.KeyUp:
			return []byte("\x1b[A")
		case inputparse.KeyDown:
			return []byte("\x1b[B")
		case inputparse.KeyRight:
			return []byte("\x1b[C")
		case inputparse.KeyLeft:
			return []byte("\x1b[D")
		case inputparse.KeyHome:
			return []byte("\x1b[H")
		case inputparse.KeyEnd:
			return []byte("\x1b[F")
		case inputparse.KeyPageUp:
			return []byte("\x1b[5~")
		case inputparse.KeyPageDown:
			return []byte("\x1b[6~")
		case inputparse.KeyInsert:
			return []byte("\x1b[2~")
		case inputparse.KeyDelete:
			return []byte("\x1b[3~")
		case inputparse.KeyBackspace:
			return []byte{0x08}
		case inputparse.KeyEnter:
			return host.enterPressBytes()
		case inputparse.KeyTab:
			return []byte{0x09}
		case inputparse.KeyEscape:
			return []byte{0x1b}
		case inputparse.KeyF1:
			return []byte("\x1bOP")
		case inputparse.KeyF2:
			return []byte("\x1bOQ")
		case inputparse.KeyF3:
			return []byte("\x1bOR")
		case inputparse.KeyF4:
			return []byte("\x1bOS")
		case inputparse.KeyF5:
			return []byte("\x1b[15~")
		case inputparse.KeyF6:
			return []byte("\x1b[17~")
		case inputparse.KeyF7:
			return []byte("\x1b[18~")
		case inputparse.KeyF8:
			return []byte("\x1b[19~")
		case inputparse.KeyF9:
			return []byte("\x1b[20~")
		case inputparse.KeyF10:
			return []byte("\x1b[21~")
		case inputparse.KeyF11:
			return []byte("\x1b[23~")
		case inputparse.KeyF12:
			return []byte("\x1b[24~")
		}
	}
	return nil
}

// terminalEchoBytes is what local echo feeds back into the terminal
// emulator directly -- a visible backspace clears the character
// in-place ("\b \b") rather than merely sending the control byte.
func terminalEchoBytes(ev inputparse.Event) []byte {
	switch ev.Kind {
	case inputparse.EventChar:
		return []byte(string(ev.Char))
	case inputparse.EventKey:
		switch ev.Key {
		case inputparse.KeyEnter:
			return []byte("\r\n")
		case inputparse.KeyBackspace:
			return []byte("\x08 \x08")
		}
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
