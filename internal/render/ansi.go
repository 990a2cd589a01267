// Package render converts a cell grid into ANSI byte streams, with
// per-client shadow state so repeated flushes only emit the bytes
// needed to reach the new state from the last one sent.
package render

import (
	"strconv"
	"strings"

	"github.com/benj-edwards/ascii-processing-unit/internal/cellgrid"
)

const csi = "\x1b["

// sentinelColor can never equal a real requested color, so comparing
// against it after an SGR reset always forces the next cell's colors
// to be re-emitted explicitly rather than assumed to still be
// white-on-black. Without this, a reset followed by a cell that
// happens to want white-on-black would emit no color codes at all,
// even though the terminal is sitting at its own default state, not
// necessarily the same default — this is the reset-state hazard.
const sentinelColor = cellgrid.Color(255)

// ANSIRenderer renders a Grid to IBM-PC-compatible ANSI/VT100 escape
// sequences, tracking cursor position and SGR state to minimize
// output. It also keeps its own per-cell shadow of the last content it
// actually sent: Composite (internal/window) re-marks every Display
// cell dirty on every pass regardless of whether that cell's content
// changed, so the shadow -- not the grid's own dirty bitset -- is what
// makes delta rendering across repeated flushes actually minimal.
type ANSIRenderer struct {
	Cols, Rows int

	cursorX, cursorY int
	currentFG        cellgrid.Color
	currentBG        cellgrid.Color
	currentAttrs     cellgrid.Attrs

	shadow []cellgrid.Cell
}

// shadowUnset is a cell value that can never be produced by any real
// glyph, so every position starts out guaranteed to differ from it.
var shadowUnset = cellgrid.Cell{Glyph: -1}

// NewANSIRenderer creates a renderer for the given dimensions.
func NewANSIRenderer(cols, rows int) *ANSIRenderer {
	r := &ANSIRenderer{Cols: cols, Rows: rows}
	r.allocShadow()
	r.Reset()
	return r
}

func (r *ANSIRenderer) allocShadow() {
	r.shadow = make([]cellgrid.Cell, r.Cols*r.Rows)
	for i := range r.shadow {
		r.shadow[i] = shadowUnset
	}
}

// Resize reallocates the shadow buffer for a new screen size,
// invalidating it entirely so the next render treats every cell as
// changed, matching the teacher's own resize-loses-content contract.
func (r *ANSIRenderer) Resize(cols, rows int) {
	r.Cols, r.Rows = cols, rows
	r.allocShadow()
}

// Name identifies this renderer in the info event sent after init.
func (r *ANSIRenderer) Name() string { return "ansi-ibm" }

// Reset restores cursor-tracking and color-tracking state to
// defaults, without emitting anything.
func (r *ANSIRenderer) Reset() {
	r.cursorX, r.cursorY = 0, 0
	r.currentFG = cellgrid.White
	r.currentBG = cellgrid.Black
	r.currentAttrs = cellgrid.Attrs{}
}

func (r *ANSIRenderer) moveCursor(b *strings.Builder, x, y int) {
	r.cursorX, r.cursorY = x, y
	b.WriteString(csi)
	b.WriteString(strconv.Itoa(y + 1))
	b.WriteByte(';')
	b.WriteString(strconv.Itoa(x + 1))
	b.WriteByte('H')
}

// sgr emits the SGR codes needed to move from the renderer's tracked
// state to (fg,bg,attrs), updating that tracked state as it goes.
func (r *ANSIRenderer) sgr(b *strings.Builder, fg, bg cellgrid.Color, attrs cellgrid.Attrs) {
	var codes []int

	needsReset := (r.currentAttrs.Bold && !attrs.Bold) ||
		(r.currentAttrs.Underline && !attrs.Underline) ||
		(r.currentAttrs.Blink && !attrs.Blink) ||
		(r.currentAttrs.Reverse && !attrs.Reverse)

	if needsReset {
		codes = append(codes, 0)
		r.currentFG = sentinelColor
		r.currentBG = sentinelColor
		r.currentAttrs = cellgrid.Attrs{}
	}

	if attrs.Bold && !r.currentAttrs.Bold {
		codes = append(codes, 1)
	}
	if attrs.Underline && !r.currentAttrs.Underline {
		codes = append(codes, 4)
	}
	if attrs.Blink && !r.currentAttrs.Blink {
		codes = append(codes, 5)
	}
	if attrs.Reverse && !r.currentAttrs.Reverse {
		codes = append(codes, 7)
	}

	if fg != r.currentFG {
		codes = append(codes, fg.FGCode())
	}
	if bg != r.currentBG {
		codes = append(codes, bg.BGCode())
	}

	r.currentFG, r.currentBG, r.currentAttrs = fg, bg, attrs

	if len(codes) == 0 {
		return
	}
	b.WriteString(csi)
	for i, c := range codes {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.Itoa(c))
	}
	b.WriteByte('m')
}

func (r *ANSIRenderer) renderCell(b *strings.Builder, cell cellgrid.Cell) {
	r.sgr(b, cell.FG, cell.BG, cell.Attrs)
	b.WriteRune(cell.Glyph)
}

// Init emits the sequence a fresh client connection should receive:
// hide cursor, clear screen, home, reset attributes.
func (r *ANSIRenderer) Init() string {
	r.Reset()
	return csi + "?25l" + csi + "2J" + csi + "H" + csi + "0m"
}

// Shutdown emits the sequence a departing client should receive:
// disable mouse reporting, reset attributes, show cursor, clear,
// home.
func (r *ANSIRenderer) Shutdown() string {
	return r.DisableMouse() + csi + "0m" + csi + "?25h" + csi + "2J" + csi + "H"
}

// Clear emits a bare screen clear + cursor home, without touching
// tracked SGR state.
func (r *ANSIRenderer) Clear() string {
	return csi + "2J" + csi + "H"
}

// RenderFull renders every cell of grid, resetting tracked state
// first, preceded by a full clear + home so the client's screen
// starts from a known blank state.
func (r *ANSIRenderer) RenderFull(grid *cellgrid.Grid) string {
	var b strings.Builder
	b.Grow(grid.Cols * grid.Rows * 8)

	r.Reset()
	b.WriteString(csi)
	b.WriteByte('2')
	b.WriteByte('J')
	b.WriteString(csi)
	b.WriteByte('H')
	b.WriteString(csi)
	b.WriteString("0m")

	rows := grid.Rows
	if r.Rows < rows {
		rows = r.Rows
	}
	cols := grid.Cols
	if r.Cols < cols {
		cols = r.Cols
	}
	for y := 0; y < rows; y++ {
		r.moveCursor(&b, 0, y)
		for x := 0; x < cols; x++ {
			cell, _ := grid.Get(x, y)
			// A default cell is an invisible space while the tracked
			// background is black and neither reverse nor underline is
			// on: don't spend SGR codes re-stating white-on-black for
			// it, and don't let it clobber the tracked "last emitted"
			// color either, so a later cell that really does want that
			// same color still gets to skip re-emitting it.
			if cell == cellgrid.DefaultCell && r.currentBG == cellgrid.Black &&
				!r.currentAttrs.Reverse && !r.currentAttrs.Underline {
				b.WriteRune(cell.Glyph)
			} else {
				r.renderCell(&b, cell)
			}
			r.shadow[y*r.Cols+x] = cell
		}
	}
	return b.String()
}

// RenderDirty renders only the cells that are both grid-dirty and
// actually different from this renderer's shadow of what it last
// sent, in row-major order, skipping cursor-move escapes when a cell
// immediately follows the previous one on the same row. If more than
// half the grid has really changed, it delegates to RenderFull
// instead, on the theory that a full redraw is then cheaper than a
// heavily fragmented delta.
func (r *ANSIRenderer) RenderDirty(grid *cellgrid.Grid) string {
	type pos struct {
		x, y int
		cell cellgrid.Cell
	}
	var changed []pos
	grid.DirtyCells(func(x, y int, cell cellgrid.Cell) {
		if x >= r.Cols || y >= r.Rows {
			return
		}
		idx := y*r.Cols + x
		if cell == r.shadow[idx] {
			return
		}
		changed = append(changed, pos{x, y, cell})
	})

	total := r.Cols * r.Rows
	if total > 0 && len(changed) > total/2 {
		return r.RenderFull(grid)
	}

	var b strings.Builder
	b.Grow(len(changed) * 12)
	lastX, lastY := -1, -1
	haveLast := false
	for _, p := range changed {
		needMove := true
		if haveLast && p.y == lastY && p.x == lastX+1 {
			needMove = false
		}
		if needMove {
			r.moveCursor(&b, p.x, p.y)
		}
		r.renderCell(&b, p.cell)
		r.shadow[p.y*r.Cols+p.x] = p.cell
		lastX, lastY, haveLast = p.x, p.y, true
	}
	return b.String()
}

// Render dispatches to RenderFull or RenderDirty depending on
// forceFull.
func (r *ANSIRenderer) Render(grid *cellgrid.Grid, forceFull bool) string {
	if forceFull {
		return r.RenderFull(grid)
	}
	return r.RenderDirty(grid)
}

// EnableMouse emits the escape sequence(s) to turn on the given mouse
// reporting mode.
func (r *ANSIRenderer) EnableMouse(mode MouseMode) string {
	switch mode {
	case MouseNone:
		return r.DisableMouse()
	case MouseNormal:
		return csi + "?1000h"
	case MouseButton:
		return csi + "?1002h"
	case MouseAny:
		return csi + "?1003h"
	case MouseSGR:
		return csi + "?1006h" + csi + "?1002h"
	default:
		return r.DisableMouse()
	}
}

// DisableMouse emits the escape sequences disabling every mouse
// reporting mode, unconditionally.
func (r *ANSIRenderer) DisableMouse() string {
	return csi + "?1000l" + csi + "?1002l" + csi + "?1003l" + csi + "?1006l"
}
