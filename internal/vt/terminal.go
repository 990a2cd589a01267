// Package vt implements the ANSI/VT100 terminal emulator that backs
// each embedded remote-terminal connection: a byte-stream state
// machine driving a private cell grid, independent of the engine's
// own client-facing renderer.
package vt

import (
	"strconv"
	"strings"

	"github.com/benj-edwards/ascii-processing-unit/internal/cellgrid"
)

// TerminalType selects how incoming bytes are interpreted.
type TerminalType int

const (
	TypeANSI TerminalType = iota
	TypeVT100
	TypeXterm
	TypeRaw
)

// ParseTerminalType maps a protocol string to a TerminalType,
// defaulting to TypeANSI for anything unrecognized.
func ParseTerminalType(s string) TerminalType {
	switch s {
	case "vt100":
		return TypeVT100
	case "xterm":
		return TypeXterm
	case "raw":
		return TypeRaw
	default:
		return TypeANSI
	}
}

type parserState int

const (
	stateNormal parserState = iota
	stateEscape
	stateCSI
	stateOSC
)

const defaultMaxScrollback = 1000

// Terminal is a private VT100/ANSI-ish screen fed by bytes arriving
// from a remote connection (or a local PTY). Its grid is copied into
// the hosting window's content grid on every flush.
type Terminal struct {
	ID     string
	Screen *cellgrid.Grid
	Width  int
	Height int

	CursorX, CursorY int
	CursorVisible    bool
	savedCursor      *[2]int

	FG    cellgrid.Color
	BG    cellgrid.Color
	Attrs cellgrid.Attrs

	// ScrollTop and ScrollBottom bound the DECSTBM scroll region,
	// inclusive, 0-based. They default to the full screen and are
	// not present at all in original_source, which always scrolled
	// the whole screen -- added here per the terminal emulator's
	// explicit scroll-region requirement.
	ScrollTop    int
	ScrollBottom int

	Scrollback    [][]cellgrid.Cell
	MaxScrollback int

	TerminalType TerminalType

	// ResponseQueue holds bytes the emulator wants sent back to the
	// remote (e.g. cursor position reports); the caller drains it
	// after each ProcessData call.
	ResponseQueue [][]byte

	state     parserState
	escBuffer strings.Builder
}

// NewTerminal creates a terminal emulator of the given size, with a
// blank screen and the cursor at the origin.
func NewTerminal(id string, width, height int, ttype TerminalType) *Terminal {
	t := &Terminal{
		ID:            id,
		Width:         width,
		Height:        height,
		CursorVisible: true,
		FG:            cellgrid.White,
		BG:            cellgrid.Black,
		MaxScrollback: defaultMaxScrollback,
		TerminalType:  ttype,
	}
	t.Screen = cellgrid.NewGrid(width, height)
	t.ScrollTop, t.ScrollBottom = 0, height-1
	return t
}

// IsDirty reports whether the screen has changed since the last
// ClearDirty.
func (t *Terminal) IsDirty() bool { return t.Screen.IsDirty() }

// ClearDirty clears the screen's dirty bits.
func (t *Terminal) ClearDirty() { t.Screen.ClearDirty() }

// ProcessData feeds a chunk of remote bytes through the emulator.
func (t *Terminal) ProcessData(data []byte) {
	if t.TerminalType == TypeRaw {
		for _, b := range data {
			switch {
			case b >= 0x20 && b <= 0x7e:
				t.putChar(rune(b))
			case b == '\n':
				t.newline()
			case b == '\r':
				t.CursorX = 0
			}
		}
		return
	}
	for _, b := range data {
		t.processByte(b)
	}
}

func (t *Terminal) processByte(b byte) {
	switch t.state {
	case stateNormal:
		t.processNormalByte(b)
	case stateEscape:
		t.processEscapeByte(b)
	case stateCSI:
		t.processCSIByte(b)
	case stateOSC:
		if b == 0x07 || b == 0x1b {
			t.state = stateNormal
		}
	}
}

func (t *Terminal) processNormalByte(b byte) {
	switch {
	case b == 0x1b:
		t.state = stateEscape
		t.escBuffer.Reset()
	case b == 0x07: // BEL
	case b == 0x08: // BS
		if t.CursorX > 0 {
			t.CursorX--
		}
	case b == 0x09: // TAB
		t.CursorX = (t.CursorX + 8) &^ 7
		if t.CursorX >= t.Width {
			t.CursorX = t.Width - 1
		}
	case b == 0x0a: // LF
		t.newline()
	case b == 0x0d: // CR
		t.CursorX = 0
	case b >= 0x20 && b <= 0x7e:
		t.putChar(rune(b))
	case b >= 0x80:
		t.putChar(rune(b))
	}
}

func (t *Terminal) processEscapeByte(b byte) {
	switch b {
	case '[':
		t.state = stateCSI
	case ']':
		t.state = stateOSC
	case '7':
		x, y := t.CursorX, t.CursorY
		t.savedCursor = &[2]int{x, y}
		t.state = stateNormal
	case '8':
		if t.savedCursor != nil {
			t.CursorX, t.CursorY = t.savedCursor[0], t.savedCursor[1]
		}
		t.state = stateNormal
	case 'D':
		t.newline()
		t.state = stateNormal
	case 'E':
		t.CursorX = 0
		t.newline()
		t.state = stateNormal
	case 'M':
		if t.CursorY == t.ScrollTop {
			t.scrollDown()
		} else if t.CursorY > 0 {
			t.CursorY--
		}
		t.state = stateNormal
	case 'c':
		t.Reset()
		t.state = stateNormal
	default:
		t.state = stateNormal
	}
}

func (t *Terminal) processCSIByte(b byte) {
	if b >= 0x40 && b <= 0x7e {
		t.executeCSI(t.escBuffer.String(), b)
		t.state = stateNormal
		return
	}
	t.escBuffer.WriteByte(b)
}

func params(s string) []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, _ := strconv.Atoi(p)
		out[i] = n
	}
	return out
}

func paramOr(p []int, i, def int) int {
	if i >= len(p) || p[i] == 0 {
		return def
	}
	return p[i]
}

func (t *Terminal) executeCSI(raw string, final byte) {
	p := params(raw)
	switch final {
	case 'A':
		t.CursorY = max0(t.CursorY - paramOr(p, 0, 1))
	case 'B':
		t.CursorY = min(t.Height-1, t.CursorY+paramOr(p, 0, 1))
	case 'C':
		t.CursorX = min(t.Width-1, t.CursorX+paramOr(p, 0, 1))
	case 'D':
		t.CursorX = max0(t.CursorX - paramOr(p, 0, 1))
	case 'E':
		t.CursorY = min(t.Height-1, t.CursorY+paramOr(p, 0, 1))
		t.CursorX = 0
	case 'F':
		t.CursorY = max0(t.CursorY - paramOr(p, 0, 1))
		t.CursorX = 0
	case 'G':
		t.CursorX = min(t.Width-1, paramOr(p, 0, 1)-1)
		if t.CursorX < 0 {
			t.CursorX = 0
		}
	case 'H', 'f':
		row := paramOr(p, 0, 1)
		col := paramOr(p, 1, 1)
		t.CursorY = clamp(row-1, 0, t.Height-1)
		t.CursorX = clamp(col-1, 0, t.Width-1)
	case 'J':
		switch paramOr(p, 0, 0) {
		case 0:
			t.eraseBelow()
		case 1:
			t.eraseAbove()
		default:
			t.eraseAll()
		}
	case 'K':
		switch paramOr(p, 0, 0) {
		case 0:
			t.eraseLineRight()
		case 1:
			t.eraseLineLeft()
		default:
			t.eraseLine()
		}
	case 'S':
		for i := 0; i < paramOr(p, 0, 1); i++ {
			t.scrollUp()
		}
	case 'T':
		for i := 0; i < paramOr(p, 0, 1); i++ {
			t.scrollDown()
		}
	case 'r':
		top := paramOr(p, 0, 1) - 1
		bottom := paramOr(p, 1, t.Height) - 1
		t.ScrollTop = clamp(top, 0, t.Height-1)
		t.ScrollBottom = clamp(bottom, t.ScrollTop, t.Height-1)
	case 'm':
		t.processSGR(p)
	case 's':
		x, y := t.CursorX, t.CursorY
		t.savedCursor = &[2]int{x, y}
	case 'u':
		if t.savedCursor != nil {
			t.CursorX, t.CursorY = t.savedCursor[0], t.savedCursor[1]
		}
	case 'n':
		if paramOr(p, 0, 0) == 6 {
			resp := "\x1b[" + strconv.Itoa(t.CursorY+1) + ";" + strconv.Itoa(t.CursorX+1) + "R"
			t.ResponseQueue = append(t.ResponseQueue, []byte(resp))
		}
	}
}

func (t *Terminal) processSGR(p []int) {
	if len(p) == 0 {
		t.resetAttrs()
		return
	}
	for i := 0; i < len(p); i++ {
		code := p[i]
		switch {
		case code == 0:
			t.resetAttrs()
		case code == 1:
			t.Attrs.Bold = true
		case code == 4:
			t.Attrs.Underline = true
		case code == 5 || code == 6:
			t.Attrs.Blink = true
		case code == 7:
			t.Attrs.Reverse = true
		case code == 21:
			t.Attrs.Bold = false
		case code == 22:
			t.Attrs.Bold = false
		case code == 24:
			t.Attrs.Underline = false
		case code == 25:
			t.Attrs.Blink = false
		case code == 27:
			t.Attrs.Reverse = false
		case code >= 30 && code <= 37:
			t.FG = cellgrid.ClampColor(uint8(code - 30))
		case code == 38:
			n, adv := t.decodeExtendedColor(p[i+1:])
			t.FG = n
			i += adv
		case code == 39:
			t.FG = cellgrid.White
		case code >= 40 && code <= 47:
			t.BG = cellgrid.ClampColor(uint8(code - 40))
		case code == 48:
			n, adv := t.decodeExtendedColor(p[i+1:])
			t.BG = n
			i += adv
		case code == 49:
			t.BG = cellgrid.Black
		case code >= 90 && code <= 97:
			t.FG = cellgrid.ClampColor(uint8(code - 90 + 8))
		case code >= 100 && code <= 107:
			t.BG = cellgrid.ClampColor(uint8(code - 100 + 8))
		}
	}
}

// decodeExtendedColor handles the "5;n" (256-color) and "2;r;g;b"
// (truecolor) forms following an SGR 38/48 code, returning the
// downsampled 16-color result and how many extra params it consumed.
func (t *Terminal) decodeExtendedColor(rest []int) (cellgrid.Color, int) {
	if len(rest) == 0 {
		return cellgrid.White, 0
	}
	switch rest[0] {
	case 5:
		if len(rest) >= 2 {
			return downsample256(uint8(rest[1])), 2
		}
	case 2:
		if len(rest) >= 4 {
			return nearestANSI(rest[1], rest[2], rest[3]), 4
		}
	}
	return cellgrid.White, len(rest)
}

func (t *Terminal) resetAttrs() {
	t.FG = cellgrid.White
	t.BG = cellgrid.Black
	t.Attrs = cellgrid.Attrs{}
}

func (t *Terminal) putChar(ch rune) {
	if t.CursorX >= t.Width {
		t.CursorX = 0
		t.newline()
	}
	t.Screen.Set(t.CursorX, t.CursorY, cellgrid.Cell{Glyph: ch, FG: t.FG, BG: t.BG, Attrs: t.Attrs})
	t.CursorX++
}

func (t *Terminal) newline() {
	if t.CursorY == t.ScrollBottom {
		t.scrollUp()
	} else if t.CursorY < t.Height-1 {
		t.CursorY++
	}
}

// scrollUp moves every row within the scroll region up by one,
// archiving the row that leaves the top of the region into the
// scrollback only when that region is the full screen (scrolling a
// bounded region, e.g. for a split-screen pager, discards the
// departing row instead -- it has nowhere meaningful to land).
func (t *Terminal) scrollUp() {
	if t.ScrollTop == 0 && t.ScrollBottom == t.Height-1 {
		top := t.rowSnapshot(0)
		t.Scrollback = append(t.Scrollback, top)
		if len(t.Scrollback) > t.MaxScrollback {
			t.Scrollback = t.Scrollback[1:]
		}
	}
	for y := t.ScrollTop; y < t.ScrollBottom; y++ {
		t.copyRow(y+1, y)
	}
	t.fillRow(t.ScrollBottom)
}

func (t *Terminal) scrollDown() {
	for y := t.ScrollBottom; y > t.ScrollTop; y-- {
		t.copyRow(y-1, y)
	}
	t.fillRow(t.ScrollTop)
}

func (t *Terminal) rowSnapshot(y int) []cellgrid.Cell {
	row := make([]cellgrid.Cell, t.Width)
	for x := 0; x < t.Width; x++ {
		row[x], _ = t.Screen.Get(x, y)
	}
	return row
}

func (t *Terminal) copyRow(from, to int) {
	for x := 0; x < t.Width; x++ {
		c, _ := t.Screen.Get(x, from)
		t.Screen.Set(x, to, c)
	}
}

func (t *Terminal) fillRow(y int) {
	t.Screen.Fill(0, y, t.Width, 1, ' ', t.FG, t.BG, cellgrid.Attrs{})
}

func (t *Terminal) eraseBelow() {
	t.Screen.Fill(0, t.CursorY, t.Width, 1, ' ', t.FG, t.BG, cellgrid.Attrs{})
	t.eraseLineRightAt(t.CursorX, t.CursorY)
	if t.CursorY+1 < t.Height {
		t.Screen.Fill(0, t.CursorY+1, t.Width, t.Height-t.CursorY-1, ' ', t.FG, t.BG, cellgrid.Attrs{})
	}
}

func (t *Terminal) eraseAbove() {
	if t.CursorY > 0 {
		t.Screen.Fill(0, 0, t.Width, t.CursorY, ' ', t.FG, t.BG, cellgrid.Attrs{})
	}
	t.Screen.Fill(0, t.CursorY, t.CursorX+1, 1, ' ', t.FG, t.BG, cellgrid.Attrs{})
}

func (t *Terminal) eraseAll() {
	t.Screen.Fill(0, 0, t.Width, t.Height, ' ', t.FG, t.BG, cellgrid.Attrs{})
}

func (t *Terminal) eraseLineRight() { t.eraseLineRightAt(t.CursorX, t.CursorY) }

func (t *Terminal) eraseLineRightAt(x, y int) {
	t.Screen.Fill(x, y, t.Width-x, 1, ' ', t.FG, t.BG, cellgrid.Attrs{})
}

func (t *Terminal) eraseLineLeft() {
	t.Screen.Fill(0, t.CursorY, t.CursorX+1, 1, ' ', t.FG, t.BG, cellgrid.Attrs{})
}

func (t *Terminal) eraseLine() {
	t.Screen.Fill(0, t.CursorY, t.Width, 1, ' ', t.FG, t.BG, cellgrid.Attrs{})
}

// Reset restores cursor, color and attribute state and clears the
// screen.
func (t *Terminal) Reset() {
	t.CursorX, t.CursorY = 0, 0
	t.resetAttrs()
	t.savedCursor = nil
	t.eraseAll()
}

// Resize reallocates the screen, copying the overlapping region of
// the old content and clamping the cursor into the new bounds.
// Content beyond the new (or beyond the old, if growing) bounds is
// lost. Unlike Grid.Resize and Window.Resize, which discard all
// content, the overlapping region is kept.
func (t *Terminal) Resize(width, height int) {
	old := t.Screen
	oldW, oldH := t.Width, t.Height
	t.Width, t.Height = width, height
	t.Screen = cellgrid.NewGrid(width, height)
	minW, minH := minInt(oldW, width), minInt(oldH, height)
	t.Screen.Blit(old, 0, 0, 0, 0, minW, minH)
	t.Screen.MarkAllDirty()
	t.CursorX = clamp(t.CursorX, 0, width-1)
	t.CursorY = clamp(t.CursorY, 0, height-1)
	if t.ScrollBottom >= height {
		t.ScrollBottom = height - 1
	}
	if t.ScrollTop > t.ScrollBottom {
		t.ScrollTop = 0
	}
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func minInt(a, b int) int { return min(a, b) }

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
