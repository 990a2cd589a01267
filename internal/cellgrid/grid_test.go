package cellgrid

import "testing"

func TestNewGridDimensions(t *testing.T) {
	g := NewGrid(80, 24)
	if g.Cols != 80 || g.Rows != 24 {
		t.Fatalf("got %dx%d, want 80x24", g.Cols, g.Rows)
	}
	if !g.IsDirty() {
		t.Fatal("a fresh grid should be entirely dirty")
	}
}

func TestSetGet(t *testing.T) {
	g := NewGrid(80, 24)
	g.ClearDirty()
	g.Set(10, 5, Cell{Glyph: 'X', FG: Red, BG: Black})

	cell, ok := g.Get(10, 5)
	if !ok || cell.Glyph != 'X' || cell.FG != Red {
		t.Fatalf("got %+v, ok=%v", cell, ok)
	}
	if !g.IsDirty() {
		t.Fatal("expected Set to mark the grid dirty")
	}
}

func TestSetOutOfBoundsIgnored(t *testing.T) {
	g := NewGrid(4, 4)
	g.Set(100, 100, Cell{Glyph: 'X'})
	if _, ok := g.Get(100, 100); ok {
		t.Fatal("out-of-bounds Get should report !ok")
	}
}

func TestPrintClipsAtRowEdge(t *testing.T) {
	g := NewGrid(5, 1)
	g.Print(3, 0, "hello", Green, Black, Attrs{})
	c0, _ := g.Get(3, 0)
	c1, _ := g.Get(4, 0)
	if c0.Glyph != 'h' || c1.Glyph != 'e' {
		t.Fatalf("got %q %q", c0.Glyph, c1.Glyph)
	}
}

func TestCopyFromRequiresMatchingDimensions(t *testing.T) {
	a := NewGrid(4, 4)
	b := NewGrid(5, 5)
	a.Set(0, 0, Cell{Glyph: 'A'})
	b.CopyFrom(a) // mismatched dims: no-op
	c, _ := b.Get(0, 0)
	if c.Glyph == 'A' {
		t.Fatal("CopyFrom should not apply across mismatched dimensions")
	}
}

func TestResizeLosesContentAndMarksDirty(t *testing.T) {
	g := NewGrid(4, 4)
	g.Set(0, 0, Cell{Glyph: 'A'})
	g.ClearDirty()

	g.Resize(8, 8)
	if g.Cols != 8 || g.Rows != 8 {
		t.Fatalf("got %dx%d", g.Cols, g.Rows)
	}
	c, _ := g.Get(0, 0)
	if c.Glyph != ' ' {
		t.Fatal("Resize must reset content to DefaultCell")
	}
	if !g.IsDirty() {
		t.Fatal("Resize must mark everything dirty")
	}
}

func TestSanitizeControlGlyph(t *testing.T) {
	g := NewGrid(2, 1)
	g.Set(0, 0, Cell{Glyph: 0x07})
	c, _ := g.Get(0, 0)
	if c.Glyph != ' ' {
		t.Fatalf("control char should be sanitized to space, got %q", c.Glyph)
	}
}
