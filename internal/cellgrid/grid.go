package cellgrid

// Grid is a fixed-size (Cols x Rows) array of cells with a parallel
// dirty bitset. Cols and Rows only change via Resize, which
// reallocates the cell array, resets every cell to DefaultCell, and
// marks the whole grid dirty.
type Grid struct {
	Cols, Rows int
	cells      []Cell
	dirty      []bool
}

// NewGrid creates a grid of the given size, filled with DefaultCell
// and marked entirely dirty (so a first render always emits
// everything).
func NewGrid(cols, rows int) *Grid {
	g := &Grid{Cols: cols, Rows: rows}
	g.alloc()
	return g
}

func (g *Grid) alloc() {
	n := g.Cols * g.Rows
	g.cells = make([]Cell, n)
	g.dirty = make([]bool, n)
	for i := range g.cells {
		g.cells[i] = DefaultCell
		g.dirty[i] = true
	}
}

func (g *Grid) index(x, y int) (int, bool) {
	if x < 0 || y < 0 || x >= g.Cols || y >= g.Rows {
		return 0, false
	}
	return y*g.Cols + x, true
}

// Get returns the cell at (x,y) and whether the position was in
// bounds.
func (g *Grid) Get(x, y int) (Cell, bool) {
	i, ok := g.index(x, y)
	if !ok {
		return Cell{}, false
	}
	return g.cells[i], true
}

// Set writes a cell at (x,y), sanitizing its glyph and marking the
// position dirty. Out-of-bounds writes are silently ignored.
func (g *Grid) Set(x, y int, cell Cell) {
	i, ok := g.index(x, y)
	if !ok {
		return
	}
	cell.Glyph = sanitizeGlyph(cell.Glyph)
	g.cells[i] = cell
	g.dirty[i] = true
}

// SetChar sets just the glyph of the cell at (x,y), leaving its
// colors and attributes untouched.
func (g *Grid) SetChar(x, y int, ch rune) {
	i, ok := g.index(x, y)
	if !ok {
		return
	}
	g.cells[i].Glyph = sanitizeGlyph(ch)
	g.dirty[i] = true
}

// Fill sets every cell in the rectangle (x,y,w,h) to the same glyph,
// colors and attributes. Out-of-bounds portions of the rectangle are
// clipped silently.
func (g *Grid) Fill(x, y, w, h int, ch rune, fg, bg Color, attrs Attrs) {
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			g.Set(x+dx, y+dy, Cell{Glyph: ch, FG: fg, BG: bg, Attrs: attrs})
		}
	}
}

// Print writes text starting at (x,y), advancing one cell per
// Unicode scalar. It clips at the row edge rather than wrapping.
func (g *Grid) Print(x, y int, text string, fg, bg Color, attrs Attrs) {
	col := x
	for _, r := range text {
		if col >= g.Cols {
			break
		}
		g.Set(col, y, Cell{Glyph: r, FG: fg, BG: bg, Attrs: attrs})
		col++
	}
}

// Clear resets every cell to DefaultCell and marks the grid entirely
// dirty.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = DefaultCell
		g.dirty[i] = true
	}
}

// ClearWith resets every cell to the given glyph/colors with default
// attributes, marking the grid entirely dirty.
func (g *Grid) ClearWith(ch rune, fg, bg Color) {
	for i := range g.cells {
		g.cells[i] = Cell{Glyph: sanitizeGlyph(ch), FG: fg, BG: bg}
		g.dirty[i] = true
	}
}

// CopyFrom copies cell contents from another grid of identical
// dimensions and marks every destination cell dirty. Mismatched
// dimensions are a silent no-op, matching the teacher's own
// behavior for a grid-copy that can't apply.
func (g *Grid) CopyFrom(other *Grid) {
	if g.Cols != other.Cols || g.Rows != other.Rows {
		return
	}
	copy(g.cells, other.cells)
	for i := range g.dirty {
		g.dirty[i] = true
	}
}

// Clone returns an independent copy of this grid's current cell
// contents, fully dirty, with no further connection to the original
// -- used to hand another goroutine a stable snapshot it can read
// without racing the original grid's owner.
func (g *Grid) Clone() *Grid {
	out := NewGrid(g.Cols, g.Rows)
	copy(out.cells, g.cells)
	return out
}

// Blit copies a (w,h) region from src starting at (srcX,srcY) into
// this grid starting at (dstX,dstY), marking copied destination
// cells dirty. Out-of-bounds source or destination positions are
// skipped individually.
func (g *Grid) Blit(src *Grid, srcX, srcY, dstX, dstY, w, h int) {
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			cell, ok := src.Get(srcX+dx, srcY+dy)
			if !ok {
				continue
			}
			g.Set(dstX+dx, dstY+dy, cell)
		}
	}
}

// Resize reallocates the grid at the new dimensions, resetting all
// content to DefaultCell and marking everything dirty. This is a
// contract-critical detail shared with Window.Resize: there is no
// content-preserving resize anywhere in this package.
func (g *Grid) Resize(cols, rows int) {
	g.Cols, g.Rows = cols, rows
	g.alloc()
}

// IsDirty reports whether any cell in the grid is dirty.
func (g *Grid) IsDirty() bool {
	for _, d := range g.dirty {
		if d {
			return true
		}
	}
	return false
}

// ClearDirty flips every dirty bit off.
func (g *Grid) ClearDirty() {
	for i := range g.dirty {
		g.dirty[i] = false
	}
}

// MarkAllDirty flips every dirty bit on.
func (g *Grid) MarkAllDirty() {
	for i := range g.dirty {
		g.dirty[i] = true
	}
}

// DirtyCells calls fn for every dirty (x,y,cell) in row-major order.
func (g *Grid) DirtyCells(fn func(x, y int, cell Cell)) {
	for i, d := range g.dirty {
		if !d {
			continue
		}
		fn(i%g.Cols, i/g.Cols, g.cells[i])
	}
}

// Cells calls fn for every (x,y,cell) in row-major order.
func (g *Grid) Cells(fn func(x, y int, cell Cell)) {
	for i, c := range g.cells {
		fn(i%g.Cols, i/g.Cols, c)
	}
}
