package render

import (
	"strings"
	"testing"

	"github.com/benj-edwards/ascii-processing-unit/internal/cellgrid"
)

func TestInitHidesCursorAndClears(t *testing.T) {
	r := NewANSIRenderer(80, 24)
	out := r.Init()
	if !strings.Contains(out, "\x1b[?25l") || !strings.Contains(out, "\x1b[2J") {
		t.Fatalf("missing hide-cursor or clear in %q", out)
	}
}

func TestRenderFullEmitsGlyphAndColor(t *testing.T) {
	r := NewANSIRenderer(10, 5)
	g := cellgrid.NewGrid(10, 5)
	g.Set(0, 0, cellgrid.Cell{Glyph: 'X', FG: cellgrid.Red, BG: cellgrid.Black})
	out := r.RenderFull(g)
	if !strings.Contains(out, "X") || !strings.Contains(out, "31") {
		t.Fatalf("expected glyph and red fg code 31 in %q", out)
	}
}

func TestRenderFullClearsScreen(t *testing.T) {
	r := NewANSIRenderer(10, 5)
	g := cellgrid.NewGrid(10, 5)
	out := r.RenderFull(g)
	if !strings.Contains(out, "\x1b[2J") {
		t.Fatalf("expected clear-screen sequence in %q", out)
	}
}

func TestResetSentinelForcesColorReemission(t *testing.T) {
	r := NewANSIRenderer(10, 5)
	g := cellgrid.NewGrid(10, 5)

	// First cell: bold white-on-black (the renderer's own defaults).
	g.Set(0, 0, cellgrid.Cell{Glyph: 'A', FG: cellgrid.White, BG: cellgrid.Black, Attrs: cellgrid.Attrs{Bold: true}})
	out1 := r.RenderDirty(g)
	if strings.Contains(out1, "37") {
		t.Fatalf("first cell should not need an explicit fg code since it matches renderer defaults: %q", out1)
	}

	g.ClearDirty()
	// Second cell turns bold off -- this must trigger a full SGR
	// reset (code 0), and since that reset also resets the tracked
	// fg/bg to a sentinel, the cell's actual white-on-black colors
	// must be re-emitted explicitly even though they match the
	// terminal's nominal default.
	g.Set(1, 0, cellgrid.Cell{Glyph: 'B', FG: cellgrid.White, BG: cellgrid.Black})
	out2 := r.RenderDirty(g)
	if !strings.Contains(out2, "0") {
		t.Fatalf("expected an SGR reset code: %q", out2)
	}
	if !strings.Contains(out2, "37") {
		t.Fatalf("expected fg to be re-emitted after reset despite matching defaults: %q", out2)
	}
}

func TestRenderDirtyFallsBackToFullPastHalfDirty(t *testing.T) {
	r := NewANSIRenderer(4, 4)
	g := cellgrid.NewGrid(4, 4)
	// NewGrid starts fully dirty (16/16 cells) -- well past the 50% line.
	out := r.RenderDirty(g)
	full := NewANSIRenderer(4, 4).RenderFull(cellgrid.NewGrid(4, 4))
	if out != full {
		t.Fatal("expected RenderDirty to delegate to RenderFull when more than half the grid is dirty")
	}
}

func TestMoveCursorSkippedForAdjacentCells(t *testing.T) {
	r := NewANSIRenderer(10, 5)
	g := cellgrid.NewGrid(10, 5)
	g.ClearDirty()
	g.Set(0, 0, cellgrid.Cell{Glyph: 'A'})
	g.Set(1, 0, cellgrid.Cell{Glyph: 'B'})
	out := r.RenderDirty(g)
	if strings.Count(out, "H") != 1 {
		t.Fatalf("expected exactly one cursor-move escape for adjacent cells, got %q", out)
	}
}

func TestEnableMouseSGRCombinesModes(t *testing.T) {
	r := NewANSIRenderer(80, 24)
	out := r.EnableMouse(MouseSGR)
	if !strings.Contains(out, "?1006h") || !strings.Contains(out, "?1002h") {
		t.Fatalf("SGR mode should enable both extended coords and button tracking: %q", out)
	}
}

func TestParseMouseModeDefaultsToSGR(t *testing.T) {
	if ParseMouseMode("bogus") != MouseSGR {
		t.Fatal("unrecognized mouse mode string should default to SGR")
	}
}

// TestShadowSurvivesBlanketDirtyMarking reproduces the shape of a
// real session flush: something upstream (window.WindowManager.Composite)
// re-marks every cell of the grid dirty on every pass even though only
// one cell's content actually changed. The renderer's own shadow, not
// the grid's dirty bitset, must be what keeps the second render a true
// delta.
func TestShadowSurvivesBlanketDirtyMarking(t *testing.T) {
	r := NewANSIRenderer(10, 3)
	g := cellgrid.NewGrid(10, 3)
	g.Set(0, 0, cellgrid.Cell{Glyph: 'A', FG: cellgrid.Green, BG: cellgrid.Black})
	_ = r.RenderFull(g)
	g.ClearDirty()

	// Simulate a Composite() pass: blanket re-copy marks everything
	// dirty again, but only (2,0) actually changes content.
	g.MarkAllDirty()
	g.Set(2, 0, cellgrid.Cell{Glyph: 'B', FG: cellgrid.Green, BG: cellgrid.Black})
	out := r.RenderDirty(g)

	if strings.Count(out, "H") != 1 {
		t.Fatalf("expected exactly one cursor move for the single truly-changed cell, got %q", out)
	}
	if !strings.Contains(out, "B") {
		t.Fatalf("expected the changed glyph in output: %q", out)
	}
	if strings.Contains(out, "32") {
		t.Fatalf("fg already green from first render, should not be re-emitted: %q", out)
	}
}
