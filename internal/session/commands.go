package session

import (
	"context"

	"github.com/benj-edwards/ascii-processing-unit/internal/cellgrid"
	"github.com/benj-edwards/ascii-processing-unit/internal/protocol"
	"github.com/benj-edwards/ascii-processing-unit/internal/render"
	"github.com/benj-edwards/ascii-processing-unit/internal/window"
)

// ApplyCommand mutates session state for one decoded application
// command. It never returns an error for draw commands (spec section
// 7: semantic errors on draws are ignored silently); terminal
// lifecycle commands instead emit a terminal_error/* event through
// emit. ApplyCommand must only be called from the session's owning
// goroutine (i.e. from inside a func submitted via Submit).
func (s *Session) ApplyCommand(ctx context.Context, cmd *protocol.Command) {
	switch cmd.Cmd {
	case "init":
		s.cmdInit(cmd)
	case "shutdown":
		s.cmdShutdown()
	case "clear", "clear_background":
		s.WM.ClearBackground()
	case "reset":
		s.WM.Reset()
	case "set_direct":
		s.cmdSetDirect(cmd)
	case "print_direct":
		s.cmdPrintDirect(cmd)
	case "batch":
		s.cmdBatch(cmd)
	case "create_window":
		s.cmdCreateWindow(cmd)
	case "remove_window":
		s.WM.Remove(cmd.ID)
	case "update_window":
		s.cmdUpdateWindow(cmd)
	case "clear_window":
		if w, ok := s.WM.Get(cmd.ID); ok {
			w.Content.Clear()
		}
	case "set_cell":
		s.cmdSetCell(cmd)
	case "print":
		s.cmdPrint(cmd)
	case "fill":
		s.cmdFill(cmd)
	case "bring_to_front":
		s.WM.BringToFront(cmd.ID)
	case "send_to_back":
		s.WM.SendToBack(cmd.ID)
	case "move_window":
		s.cmdMoveWindow(cmd)
	case "resize_window":
		s.cmdResizeWindow(cmd)
	case "enable_mouse":
		s.MouseMode = render.ParseMouseMode(cmd.Mode)
		s.writeOut(s.Renderer.EnableMouse(s.MouseMode))
	case "disable_mouse":
		s.MouseMode = render.MouseNone
		s.writeOut(s.Renderer.DisableMouse())
	case "flush":
		s.doFlush(cmd.ForceFull)
	case "create_terminal":
		s.cmdCreateTerminal(ctx, cmd)
	case "close_terminal":
		s.cmdCloseTerminal(cmd)
	case "terminal_input":
		s.cmdTerminalInput(cmd)
	case "terminal_config":
		s.cmdTerminalConfig(cmd)
	case "resize_terminal":
		s.cmdResizeTerminal(cmd)
	case "share_display":
		s.cmdShareDisplay(cmd)
	case "unshare_display":
		s.cmdUnshareDisplay(cmd)
	case "share_window", "unshare_window":
		// TODO: window-level sharing is accepted and logged but not
		// wired into compositing, matching original_source/src/server.rs,
		// which records the same commands without implementing them.
		s.logger.Debug("window sharing accepted but not implemented", "cmd", cmd.Cmd, "window", cmd.WindowID)
	default:
		s.logger.Warn("unknown command", "cmd", cmd.Cmd)
	}
}

func (s *Session) cmdInit(cmd *protocol.Command) {
	cols, rows := 80, 24
	if cmd.Cols != nil {
		cols = *cmd.Cols
	}
	if cmd.Rows != nil {
		rows = *cmd.Rows
	}
	s.WM.Resize(cols, rows)
	s.Renderer.Resize(cols, rows)
	s.writeOut(s.Renderer.Init())
}

// cmdShutdown emits the engine's farewell sequence and then closes the
// session. The socket itself is closed by the session's teardown,
// which closes its output writer when that writer is an io.Closer.
func (s *Session) cmdShutdown() {
	s.writeOut(s.Renderer.Shutdown())
	go s.Close()
}

func (s *Session) cmdSetDirect(cmd *protocol.Command) {
	if cmd.X == nil || cmd.Y == nil {
		return
	}
	ch := firstRune(cmd.Char)
	s.WM.Background.Set(*cmd.X, *cmd.Y, cellgrid.Cell{
		Glyph: ch, FG: cellgrid.ClampColor(cmd.FGOr()), BG: cellgrid.ClampColor(cmd.BGOr()),
	})
}

func (s *Session) cmdPrintDirect(cmd *protocol.Command) {
	if cmd.X == nil || cmd.Y == nil {
		return
	}
	s.WM.Background.Print(*cmd.X, *cmd.Y, cmd.Text, cellgrid.ClampColor(cmd.FGOr()), cellgrid.ClampColor(cmd.BGOr()), cellgrid.Attrs{})
}

func (s *Session) cmdBatch(cmd *protocol.Command) {
	for _, c := range cmd.Cells {
		ch := firstRune(c.Char)
		fg := cellgrid.ClampColor(protocol.DefaultFG)
		if c.FG != nil {
			fg = cellgrid.ClampColor(*c.FG)
		}
		bg := cellgrid.ClampColor(c.BG)
		cell := cellgrid.Cell{Glyph: ch, FG: fg, BG: bg}
		if c.Window != "" {
			if w, ok := s.WM.Get(c.Window); ok {
				w.Content.Set(c.X, c.Y, cell)
			}
			continue
		}
		s.WM.Background.Set(c.X, c.Y, cell)
	}
}

func (s *Session) cmdCreateWindow(cmd *protocol.Command) {
	if cmd.ID == "" {
		return
	}
	x, y := valOr(cmd.X, 0), valOr(cmd.Y, 0)
	width, height := valOr(cmd.Width, 20), valOr(cmd.Height, 10)
	border := window.ParseBorderStyle(cmd.Border)

	invert := boolOr(cmd.Invert, false)
	y = clampWindowY(y, invert)

	w := s.WM.CreateWindow(cmd.ID, x, y, width, height, border)
	w.Closable = boolOr(cmd.Closable, true)
	w.Resizable = boolOr(cmd.Resizable, true)
	w.Draggable = boolOr(cmd.Draggable, true)
	w.MinWidth = valOr(cmd.MinWidth, 10)
	w.MinHeight = valOr(cmd.MinHeight, 5)
	w.SetInvert(invert)
	if cmd.Title != nil {
		w.SetTitle(*cmd.Title)
	}
}

// clampWindowY enforces the original implementation's rule (see
// DESIGN.md "Window-creation row-0 clamp"): a window's top edge may
// not land on row 0, to protect a single-row menu-bar area, unless the
// window is an invert overlay (which legitimately wants to cover the
// whole screen, menu bar included).
func clampWindowY(y int, invert bool) int {
	if !invert && y < 1 {
		return 1
	}
	return y
}

func (s *Session) cmdUpdateWindow(cmd *protocol.Command) {
	w, ok := s.WM.Get(cmd.ID)
	if !ok {
		return
	}
	invert := w.Invert
	if cmd.Invert != nil {
		invert = *cmd.Invert
	}
	x, y := w.X, w.Y
	if cmd.X != nil {
		x = *cmd.X
	}
	if cmd.Y != nil {
		y = clampWindowY(*cmd.Y, invert)
	}
	w.MoveTo(x, y)
	if cmd.Width != nil || cmd.Height != nil {
		width, height := w.Width, w.Height
		if cmd.Width != nil {
			width = *cmd.Width
		}
		if cmd.Height != nil {
			height = *cmd.Height
		}
		if width != w.Width || height != w.Height {
			w.Resize(width, height)
		}
	}
	if cmd.Border != "" {
		w.SetBorder(window.ParseBorderStyle(cmd.Border))
	}
	if cmd.Title != nil {
		w.SetTitle(*cmd.Title)
	}
	if cmd.Closable != nil {
		w.Closable = *cmd.Closable
	}
	if cmd.Resizable != nil {
		w.Resizable = *cmd.Resizable
	}
	if cmd.Draggable != nil {
		w.Draggable = *cmd.Draggable
	}
	if cmd.MinWidth != nil {
		w.MinWidth = *cmd.MinWidth
	}
	if cmd.MinHeight != nil {
		w.MinHeight = *cmd.MinHeight
	}
	if cmd.Visible != nil {
		if *cmd.Visible {
			w.Show()
		} else {
			w.Hide()
		}
	}
	w.SetInvert(invert)
}

func (s *Session) cmdSetCell(cmd *protocol.Command) {
	w, ok := s.WM.Get(cmd.Window)
	if !ok || cmd.X == nil || cmd.Y == nil {
		return
	}
	ch := firstRune(cmd.Char)
	w.Content.Set(*cmd.X, *cmd.Y, cellgrid.Cell{Glyph: ch, FG: cellgrid.ClampColor(cmd.FGOr()), BG: cellgrid.ClampColor(cmd.BGOr())})
}

func (s *Session) cmdPrint(cmd *protocol.Command) {
	w, ok := s.WM.Get(cmd.Window)
	if !ok || cmd.X == nil || cmd.Y == nil {
		return
	}
	w.Content.Print(*cmd.X, *cmd.Y, cmd.Text, cellgrid.ClampColor(cmd.FGOr()), cellgrid.ClampColor(cmd.BGOr()), cellgrid.Attrs{})
}

func (s *Session) cmdFill(cmd *protocol.Command) {
	w, ok := s.WM.Get(cmd.Window)
	if !ok || cmd.X == nil || cmd.Y == nil || cmd.Width == nil || cmd.Height == nil {
		return
	}
	ch := firstRune(cmd.Char)
	if ch == 0 {
		ch = ' '
	}
	w.Content.Fill(*cmd.X, *cmd.Y, *cmd.Width, *cmd.Height, ch, cellgrid.ClampColor(cmd.FGOr()), cellgrid.ClampColor(cmd.BGOr()), cellgrid.Attrs{})
}

func (s *Session) cmdMoveWindow(cmd *protocol.Command) {
	w, ok := s.WM.Get(cmd.ID)
	if !ok || cmd.X == nil || cmd.Y == nil {
		return
	}
	w.MoveTo(*cmd.X, clampWindowY(*cmd.Y, w.Invert))
}

func (s *Session) cmdResizeWindow(cmd *protocol.Command) {
	w, ok := s.WM.Get(cmd.ID)
	if !ok || cmd.Width == nil || cmd.Height == nil {
		return
	}
	width, height := *cmd.Width, *cmd.Height
	if width < w.MinWidth {
		width = w.MinWidth
	}
	if height < w.MinHeight {
		height = w.MinHeight
	}
	w.Resize(width, height)
}

func (s *Session) cmdShareDisplay(cmd *protocol.Command) {
	if cmd.Source == "" {
		return
	}
	for _, id := range s.sharedFrom {
		if id == cmd.Source {
			return
		}
	}
	s.sharedFrom = append(s.sharedFrom, cmd.Source)
	if s.notifyShare != nil {
		s.notifyShare(cmd.Source, true)
	}
}

func (s *Session) cmdUnshareDisplay(cmd *protocol.Command) {
	for i, id := range s.sharedFrom {
		if id == cmd.Source {
			s.sharedFrom = append(s.sharedFrom[:i], s.sharedFrom[i+1:]...)
			break
		}
	}
	if s.notifyShare != nil {
		s.notifyShare(cmd.Source, false)
	}
}

// doFlush composites, renders the delta (or a full frame), drains the
// rendered bytes to the client, and clears dirty state -- the
// sequence spec section 4.7 calls "flush".
func (s *Session) doFlush(forceFull bool) {
	s.syncTerminalsToWindows()
	s.applySharedBackgrounds()
	s.publishBackgroundSnapshot()
	s.WM.Composite()
	out := s.Renderer.Render(s.WM.Display, forceFull)
	s.writeOut(out)
	s.WM.Display.ClearDirty()
	s.WM.Background.ClearDirty()
	s.WM.MarkAllClean()
}

// applySharedBackgrounds copies each shared source session's current
// Background into this session's own Background, in the order
// share_display commands arrived (last source wins on overlapping
// cells) -- the straightforward mirroring original_source implements,
// documented in DESIGN.md.
func (s *Session) applySharedBackgrounds() {
	if len(s.sharedFrom) == 0 || s.resolveBackground == nil {
		return
	}
	for _, id := range s.sharedFrom {
		src := s.resolveBackground(id)
		if src == nil {
			continue
		}
		s.WM.Background.CopyFrom(src)
	}
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return ' '
}

func valOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
