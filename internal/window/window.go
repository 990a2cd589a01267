// Package window implements the compositing window manager: Window
// and WindowManager, z-ordering, chrome hit-testing, and the invert
// overlay mode.
package window

import (
	"strings"

	"github.com/benj-edwards/ascii-processing-unit/internal/cellgrid"
)

// Window is a single on-screen window: a bordered or borderless frame
// around an owned content Grid, composited into a WindowManager's
// display in z-order.
type Window struct {
	ID         string
	X, Y       int
	Width      int
	Height     int
	Border     BorderStyle
	BorderFG   cellgrid.Color
	Title      string
	TitleAlign TitleAlign
	Background cellgrid.Color
	Visible    bool
	ZIndex     int
	Content    *cellgrid.Grid

	Closable  bool
	Resizable bool
	Draggable bool
	MinWidth  int
	MinHeight int
	Invert    bool

	dirty bool
}

// NewWindow creates a window at the given position and size with
// default chrome flags (closable, resizable, draggable all true;
// min size 10x5), matching the teacher reference's Window::new
// defaults.
func NewWindow(id string, x, y, w, h int, border BorderStyle) *Window {
	win := &Window{
		ID:         id,
		X:          x,
		Y:          y,
		Width:      w,
		Height:     h,
		Border:     border,
		BorderFG:   cellgrid.White,
		TitleAlign: TitleCenter,
		Background: cellgrid.Black,
		Visible:    true,
		Closable:   true,
		Resizable:  true,
		Draggable:  true,
		MinWidth:   10,
		MinHeight:  5,
		dirty:      true,
	}
	cw, ch := contentSize(w, h, border)
	win.Content = cellgrid.NewGrid(cw, ch)
	return win
}

// contentSize returns the content-grid dimensions for a window of the
// given outer size and border style: (w-2,h-2) for bordered windows,
// clamped to zero, or (w,h) for borderless ones.
func contentSize(w, h int, border BorderStyle) (int, int) {
	if !border.HasBorder() {
		return w, h
	}
	cw, ch := w-2, h-2
	if cw < 0 {
		cw = 0
	}
	if ch < 0 {
		ch = 0
	}
	return cw, ch
}

// ContentOffset is the position of the content grid's origin within
// the window: (1,1) for bordered windows, (0,0) otherwise.
func (w *Window) ContentOffset() (int, int) {
	if w.Border.HasBorder() {
		return 1, 1
	}
	return 0, 0
}

// InnerWidth and InnerHeight are the dimensions of the content area.
func (w *Window) InnerWidth() int  { return w.Content.Cols }
func (w *Window) InnerHeight() int { return w.Content.Rows }

// SetBorder changes the border style, resizing (and clearing) the
// content grid only if the style actually changes — an idempotent
// re-application of the current style is a no-op, matching the
// teacher reference's set_border.
func (w *Window) SetBorder(style BorderStyle) {
	if style == w.Border {
		return
	}
	w.Border = style
	cw, ch := contentSize(w.Width, w.Height, style)
	w.Content = cellgrid.NewGrid(cw, ch)
	w.dirty = true
}

// SetTitle sets the window's title text.
func (w *Window) SetTitle(title string) {
	w.Title = title
	w.dirty = true
}

// SetInvert toggles the invert overlay mode.
func (w *Window) SetInvert(invert bool) {
	w.Invert = invert
	w.dirty = true
}

// MoveTo repositions the window without touching its size.
func (w *Window) MoveTo(x, y int) {
	w.X, w.Y = x, y
	w.dirty = true
}

// Resize changes the window's outer size, recomputing and
// reallocating (hence clearing) the content grid to match — content
// loss on resize is a contract-critical detail shared with Grid.Resize.
func (w *Window) Resize(width, height int) {
	w.Width, w.Height = width, height
	cw, ch := contentSize(width, height, w.Border)
	w.Content = cellgrid.NewGrid(cw, ch)
	w.dirty = true
}

// Show and Hide toggle visibility.
func (w *Window) Show() { w.Visible = true; w.dirty = true }
func (w *Window) Hide() { w.Visible = false; w.dirty = true }

// IsDirty reports whether the window's chrome or content needs
// repainting.
func (w *Window) IsDirty() bool {
	return w.dirty || w.Content.IsDirty()
}

// MarkClean clears the window's own dirty flag and its content
// grid's dirty bits.
func (w *Window) MarkClean() {
	w.dirty = false
	w.Content.ClearDirty()
}

// Contains reports whether (x,y) is within the window's bounding box
// and the window is visible.
func (w *Window) Contains(x, y int) bool {
	return w.Visible && x >= w.X && x < w.X+w.Width && y >= w.Y && y < w.Y+w.Height
}

// HitCloseButton reports whether (x,y) is on the close-button glyph,
// drawn as "[]" in the two columns just after the top-left corner, at
// the top of a closable, bordered, visible window.
func (w *Window) HitCloseButton(x, y int) bool {
	if !w.Closable || !w.Visible || !w.Border.HasBorder() {
		return false
	}
	return y == w.Y && (x == w.X+1 || x == w.X+2)
}

// HitTitleBar reports whether (x,y) is within the draggable title-bar
// span (excluding the close-button glyph, if present, and the final
// column).
func (w *Window) HitTitleBar(x, y int) bool {
	if !w.Draggable || !w.Visible || !w.Border.HasBorder() {
		return false
	}
	titleStart := w.X + 1
	if w.Closable {
		titleStart = w.X + 3
	}
	return y == w.Y && x >= titleStart && x < w.X+w.Width-1
}

// HitResizeHandle reports whether (x,y) is on the resize-handle glyph
// at the bottom-right corner of a resizable, bordered, visible
// window.
func (w *Window) HitResizeHandle(x, y int) bool {
	if !w.Resizable || !w.Visible || !w.Border.HasBorder() {
		return false
	}
	return x == w.X+w.Width-1 && y == w.Y+w.Height-1
}

// RenderTo composites this window onto target. Invisible windows draw
// nothing. Invert windows draw nothing of their own chrome or
// content — instead, for every cell they cover, the corresponding
// cell already present in target has its foreground and background
// swapped. This must run after every window below it has already
// been composited, since it reads target's current state.
func (w *Window) RenderTo(target *cellgrid.Grid) {
	if !w.Visible {
		return
	}
	if w.Invert {
		for dy := 0; dy < w.Height; dy++ {
			for dx := 0; dx < w.Width; dx++ {
				cell, ok := target.Get(w.X+dx, w.Y+dy)
				if !ok {
					continue
				}
				cell.FG, cell.BG = cell.BG, cell.FG
				target.Set(w.X+dx, w.Y+dy, cell)
			}
		}
		return
	}

	if w.Border.HasBorder() {
		w.drawBorder(target)
	}
	ox, oy := w.ContentOffset()
	target.Blit(w.Content, 0, 0, w.X+ox, w.Y+oy, w.Content.Cols, w.Content.Rows)
}

func (w *Window) drawBorder(target *cellgrid.Grid) {
	bc := w.Border.Chars()
	fg, bg := w.BorderFG, w.Background
	x, y, width, height := w.X, w.Y, w.Width, w.Height

	target.Set(x, y, cellgrid.Cell{Glyph: bc.TL, FG: fg, BG: bg})
	target.Set(x+width-1, y, cellgrid.Cell{Glyph: bc.TR, FG: fg, BG: bg})
	target.Set(x, y+height-1, cellgrid.Cell{Glyph: bc.BL, FG: fg, BG: bg})
	if w.Resizable && width >= 2 && height >= 2 {
		target.Set(x+width-1, y+height-1, cellgrid.Cell{Glyph: ResizeHandleGlyph, FG: fg, BG: bg})
	} else {
		target.Set(x+width-1, y+height-1, cellgrid.Cell{Glyph: bc.BR, FG: fg, BG: bg})
	}

	for dx := 1; dx < width-1; dx++ {
		target.Set(x+dx, y, cellgrid.Cell{Glyph: bc.H, FG: fg, BG: bg})
		target.Set(x+dx, y+height-1, cellgrid.Cell{Glyph: bc.H, FG: fg, BG: bg})
	}
	for dy := 1; dy < height-1; dy++ {
		target.Set(x, y+dy, cellgrid.Cell{Glyph: bc.V, FG: fg, BG: bg})
		target.Set(x+width-1, y+dy, cellgrid.Cell{Glyph: bc.V, FG: fg, BG: bg})
	}

	titleStart := x + 1
	if w.Closable && width >= 4 {
		target.Set(x+1, y, cellgrid.Cell{Glyph: '[', FG: fg, BG: bg})
		target.Set(x+2, y, cellgrid.Cell{Glyph: ']', FG: fg, BG: bg})
		titleStart = x + 4
	}
	if w.Title != "" {
		w.drawTitle(target, titleStart, width)
	}
}

func (w *Window) drawTitle(target *cellgrid.Grid, titleStart, width int) {
	x, y := w.X, w.Y
	maxLen := (x + width - 1) - titleStart - 2
	if maxLen < 1 {
		return
	}
	title := w.Title
	if len([]rune(title)) > maxLen {
		runes := []rune(title)
		title = string(runes[:maxLen-1]) + "…"
	}
	titleLen := len([]rune(title))

	var start int
	switch w.TitleAlign {
	case TitleLeft:
		start = titleStart
	case TitleRight:
		start = x + width - 1 - 1 - titleLen - 1
	default: // TitleCenter
		avail := (x + width - 1) - titleStart
		start = titleStart + (avail-titleLen-2)/2
	}
	if start < titleStart {
		start = titleStart
	}

	target.Set(start, y, cellgrid.Cell{Glyph: '[', FG: w.BorderFG, BG: w.Background})
	target.Print(start+1, y, title, cellgrid.BrightWhite, w.Background, cellgrid.Attrs{Bold: true})
	target.Set(start+1+titleLen, y, cellgrid.Cell{Glyph: ']', FG: w.BorderFG, BG: w.Background})
}

// truncateTitle applies the title-clipping rule as a standalone
// function; drawTitle clips inline and no code or test calls this.
func truncateTitle(title string, maxLen int) string {
	if len([]rune(title)) <= maxLen {
		return title
	}
	runes := []rune(title)
	if maxLen <= 1 {
		return strings.Repeat("…", maxLen)
	}
	return string(runes[:maxLen-1]) + "…"
}
