package session

import (
	"strconv"
	"strings"

	"github.com/benj-edwards/ascii-processing-unit/internal/inputparse"
	"github.com/benj-edwards/ascii-processing-unit/internal/protocol"
)

// consoleWidth is the fixed width of the debug console overlay box,
// matching original_source's draw_console.
const consoleWidth = 60

// consoleState holds the supplemented debug console's open/closed
// flag and pending input line. Toggled by Ctrl+\ or F10 (see
// isConsoleToggle in chrome.go), it intercepts all keyboard input
// while open -- nothing reaches the chrome machine or the application
// until it closes.
type consoleState struct {
	open  bool
	input []rune
}

func (s *Session) toggleConsole() {
	s.console.open = !s.console.open
	s.console.input = s.console.input[:0]
	if s.console.open {
		s.drawConsole()
	} else {
		s.emit(protocol.Response{Type: "refresh_requested", Session: s.ID})
	}
}

func (s *Session) feedConsole(ev inputparse.Event) {
	switch ev.Kind {
	case inputparse.EventChar:
		if ev.Char >= ' ' && ev.Char != 0x7f {
			s.console.input = append(s.console.input, ev.Char)
			s.drawConsole()
		}
	case inputparse.EventKey:
		switch ev.Key {
		case inputparse.KeyEnter:
			if s.processConsoleCommand() {
				s.WM.Reset()
			}
			s.console.open = false
			s.emit(protocol.Response{Type: "refresh_requested", Session: s.ID})
		case inputparse.KeyBackspace:
			if n := len(s.console.input); n > 0 {
				s.console.input = s.console.input[:n-1]
			}
			s.drawConsole()
		case inputparse.KeyEscape:
			s.console.open = false
			s.console.input = s.console.input[:0]
			s.emit(protocol.Response{Type: "refresh_requested", Session: s.ID})
		}
	}
}

// processConsoleCommand interprets the console's input line once
// Enter is pressed, returning whether the display should be reset.
// "close" just closes the console overlay -- which Enter already does
// unconditionally -- and "help" is a recognized no-op placeholder;
// anything else unrecognized is ignored.
func (s *Session) processConsoleCommand() (reset bool) {
	cmd := strings.ToLower(strings.TrimSpace(string(s.console.input)))
	s.console.input = s.console.input[:0]
	return cmd == "reset"
}

// drawConsole paints the console overlay directly with raw ANSI,
// bypassing the delta renderer entirely -- it's a transient debug
// affordance, not part of the display state flush tracks, matching
// original_source's own direct-write approach.
func (s *Session) drawConsole() {
	if !s.console.open {
		return
	}
	cols := s.WM.Cols
	x := maxInt((cols-consoleWidth)/2, 0)

	var b strings.Builder
	b.WriteString("\x1b[1;")
	b.WriteString(strconv.Itoa(x + 1))
	b.WriteString("H\x1b[0;30;47m")
	b.WriteString("╔")
	b.WriteString(strings.Repeat("═", consoleWidth-2))
	b.WriteString("╗")

	b.WriteString("\x1b[2;")
	b.WriteString(strconv.Itoa(x + 1))
	b.WriteString("H║ APU Console (Ctrl+\\ close) > ")
	input := string(s.console.input)
	display := input
	if len(s.console.input) > 25 {
		display = string(s.console.input[len(s.console.input)-25:])
	}
	b.WriteString(display)
	b.WriteString("█")
	padding := consoleWidth - 33 - minInt(len(display), 25)
	if padding > 0 {
		b.WriteString(strings.Repeat(" ", padding))
	}
	b.WriteString("║")

	b.WriteString("\x1b[3;")
	b.WriteString(strconv.Itoa(x + 1))
	b.WriteString("H╚")
	b.WriteString(strings.Repeat("═", consoleWidth-2))
	b.WriteString("╝")

	b.WriteString("\x1b[0m")

	s.writeOut(b.String())
}

