package window

import (
	"sort"

	"github.com/benj-edwards/ascii-processing-unit/internal/cellgrid"
)

// WindowManager owns an ordered collection of Windows plus the two
// screen-sized grids they composite onto: Background (written by
// direct-draw commands) and Display (recomputed on every Composite).
type WindowManager struct {
	Cols, Rows int
	Background *cellgrid.Grid
	Display    *cellgrid.Grid

	windows map[string]*Window
	zOrder  []string // back-to-front
}

// NewWindowManager creates a manager sized to the given screen
// dimensions.
func NewWindowManager(cols, rows int) *WindowManager {
	return &WindowManager{
		Cols:       cols,
		Rows:       rows,
		Background: cellgrid.NewGrid(cols, rows),
		Display:    cellgrid.NewGrid(cols, rows),
		windows:    make(map[string]*Window),
	}
}

// CreateWindow is idempotent: if id already exists, its position is
// updated unconditionally but its size is only changed (reallocating
// the content grid) if it actually differs, preserving existing
// content on a no-op re-create. A brand-new window's z-index is set
// to current-max+1, so it starts above every existing window.
func (m *WindowManager) CreateWindow(id string, x, y, w, h int, border BorderStyle) *Window {
	if existing, ok := m.windows[id]; ok {
		existing.X, existing.Y = x, y
		if existing.Width != w || existing.Height != h {
			existing.Resize(w, h)
		}
		existing.dirty = true
		return existing
	}
	win := NewWindow(id, x, y, w, h, border)
	maxZ := 0
	for _, w := range m.windows {
		if w.ZIndex > maxZ {
			maxZ = w.ZIndex
		}
	}
	win.ZIndex = maxZ + 1
	m.windows[id] = win
	m.zOrder = append(m.zOrder, id)
	return win
}

// Get returns the window with the given id, if any.
func (m *WindowManager) Get(id string) (*Window, bool) {
	w, ok := m.windows[id]
	return w, ok
}

// Remove deletes a window and its z-order entry.
func (m *WindowManager) Remove(id string) {
	delete(m.windows, id)
	for i, wid := range m.zOrder {
		if wid == id {
			m.zOrder = append(m.zOrder[:i], m.zOrder[i+1:]...)
			break
		}
	}
}

// ClearAllWindows removes every window.
func (m *WindowManager) ClearAllWindows() {
	m.windows = make(map[string]*Window)
	m.zOrder = nil
}

// ClearBackground clears the background layer only, leaving windows
// untouched.
func (m *WindowManager) ClearBackground() {
	m.Background.Clear()
}

// Reset clears every window and the background layer, matching the
// "reset" command's effect.
func (m *WindowManager) Reset() {
	m.ClearAllWindows()
	m.ClearBackground()
}

// BringToFront raises a window above every other window currently
// present, by setting its z-index to one more than the current
// maximum.
func (m *WindowManager) BringToFront(id string) {
	win, ok := m.windows[id]
	if !ok {
		return
	}
	maxZ := win.ZIndex
	for _, w := range m.windows {
		if w.ZIndex > maxZ {
			maxZ = w.ZIndex
		}
	}
	win.ZIndex = maxZ + 1
	m.updateZOrder()
}

// SendToBack lowers a window below every other window currently
// present.
func (m *WindowManager) SendToBack(id string) {
	win, ok := m.windows[id]
	if !ok {
		return
	}
	minZ := win.ZIndex
	for _, w := range m.windows {
		if w.ZIndex < minZ {
			minZ = w.ZIndex
		}
	}
	win.ZIndex = minZ - 1
	m.updateZOrder()
}

// updateZOrder stable-sorts the z-order list by each window's
// z-index, preserving relative order among windows with equal
// z-index (the insertion-order tiebreak).
func (m *WindowManager) updateZOrder() {
	sort.SliceStable(m.zOrder, func(i, j int) bool {
		return m.windows[m.zOrder[i]].ZIndex < m.windows[m.zOrder[j]].ZIndex
	})
}

// Composite recomputes Display from Background plus every window's
// content, back to front.
func (m *WindowManager) Composite() {
	m.Display.CopyFrom(m.Background)
	for _, id := range m.zOrder {
		m.windows[id].RenderTo(m.Display)
	}
}

// WindowAt returns the topmost window whose bounding box contains
// (x,y), or nil if none does. Topmost is found by scanning the
// z-order back to front (i.e. in reverse).
func (m *WindowManager) WindowAt(x, y int) *Window {
	for i := len(m.zOrder) - 1; i >= 0; i-- {
		w := m.windows[m.zOrder[i]]
		if w.Contains(x, y) {
			return w
		}
	}
	return nil
}

// IsDirty reports whether any window needs repainting.
func (m *WindowManager) IsDirty() bool {
	for _, w := range m.windows {
		if w.IsDirty() {
			return true
		}
	}
	return false
}

// MarkAllClean clears the dirty state of every window.
func (m *WindowManager) MarkAllClean() {
	for _, w := range m.windows {
		w.MarkClean()
	}
}

// Resize resizes both the background and display grids to a new
// screen size. Existing windows are left where they are; a window
// that ends up fully or partially off-screen is simply clipped by
// Grid's own bounds checking when composited.
func (m *WindowManager) Resize(cols, rows int) {
	m.Cols, m.Rows = cols, rows
	m.Background.Resize(cols, rows)
	m.Display.Resize(cols, rows)
}
