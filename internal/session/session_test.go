package session

import (
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benj-edwards/ascii-processing-unit/internal/cellgrid"
	"github.com/benj-edwards/ascii-processing-unit/internal/protocol"
)

func newTestSession(t *testing.T) (*Session, *bytes.Buffer, *eventCollector) {
	t.Helper()
	var out bytes.Buffer
	ev := newEventCollector()
	s := New("sess_test", "127.0.0.1:0", &out, ev.emit, nil, nil)
	return s, &out, ev
}

// eventCollector records every emitted Response in order, safe for a
// test goroutine to drain concurrently with the session's own
// goroutine.
type eventCollector struct {
	mu   sync.Mutex
	recv chan struct{}
	list []protocol.Response
}

func newEventCollector() *eventCollector {
	return &eventCollector{recv: make(chan struct{}, 256)}
}

func (c *eventCollector) emit(r protocol.Response) {
	c.mu.Lock()
	c.list = append(c.list, r)
	c.mu.Unlock()
	select {
	case c.recv <- struct{}{}:
	default:
	}
}

func (c *eventCollector) snapshot() []protocol.Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Response, len(c.list))
	copy(out, c.list)
	return out
}

// waitForType blocks (with a timeout) until an event of the given
// type has been recorded, returning it.
func (c *eventCollector) waitForType(t *testing.T, typ string, timeout time.Duration) protocol.Response {
	t.Helper()
	deadline := time.After(timeout)
	for {
		for _, r := range c.snapshot() {
			if r.Type == typ {
				return r
			}
		}
		select {
		case <-c.recv:
		case <-deadline:
			t.Fatalf("timed out waiting for event type %q", typ)
		}
	}
}

func intPtr(n int) *int       { return &n }
func u16Ptr(n uint16) *uint16 { return &n }
func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }

// TestDeltaRenderSmoke is spec scenario 1: a 10x3 session, one cell
// written and force-flushed, then a second cell written and
// delta-flushed, which must emit only a cursor move plus the new
// glyph -- the color codes from the first flush still apply.
func TestDeltaRenderSmoke(t *testing.T) {
	s, out, _ := newTestSession(t)
	ctx := context.Background()

	s.ApplyCommand(ctx, &protocol.Command{Cmd: "init", Cols: intPtr(10), Rows: intPtr(3)})
	out.Reset()

	green := uint8(2)
	black := uint8(0)
	s.ApplyCommand(ctx, &protocol.Command{Cmd: "set_direct", X: intPtr(0), Y: intPtr(0), Char: "A", FG: &green, BG: &black})
	s.ApplyCommand(ctx, &protocol.Command{Cmd: "flush", ForceFull: true})

	full := out.String()
	if !strings.Contains(full, "A") {
		t.Fatalf("expected glyph A in full render: %q", full)
	}
	if !strings.Contains(full, "32") {
		t.Fatalf("expected green fg code 32 in full render: %q", full)
	}

	out.Reset()
	s.ApplyCommand(ctx, &protocol.Command{Cmd: "set_direct", X: intPtr(2), Y: intPtr(0), Char: "B", FG: &green, BG: &black})
	s.ApplyCommand(ctx, &protocol.Command{Cmd: "flush"})

	delta := out.String()
	if !strings.Contains(delta, "\x1b[1;3H") {
		t.Fatalf("expected cursor move to row 1 col 3, got %q", delta)
	}
	if !strings.Contains(delta, "B") {
		t.Fatalf("expected glyph B in delta render: %q", delta)
	}
	if strings.Contains(delta, "32") {
		t.Fatalf("fg already green, should not be re-emitted: %q", delta)
	}
}

// TestResetSentinelAtSessionLevel is spec scenario 2: a bold cell is
// followed by a default cell, which is written without SGR codes, so
// the client is still in bold when the bold cell is redrawn non-bold.
// That forces an SGR reset (code 0), since the renderer never emits a
// single-attribute "unbold" -- and that reset must force the cell's
// colors to be re-emitted explicitly even when they're unchanged from
// what was already on screen, or the client would be left showing
// stale colors after the reset snapped it back to the terminal
// default. Drives the window manager's own grids directly, since the
// wire protocol doesn't yet expose attribute bits on set_direct.
func TestResetSentinelAtSessionLevel(t *testing.T) {
	s, out, _ := newTestSession(t)
	ctx := context.Background()
	s.ApplyCommand(ctx, &protocol.Command{Cmd: "init", Cols: intPtr(10), Rows: intPtr(3)})
	out.Reset()

	s.WM.Background.Set(0, 0, cellgrid.Cell{Glyph: 'A', FG: cellgrid.Green, BG: cellgrid.Black, Attrs: cellgrid.Attrs{Bold: true}})
	s.WM.Background.Set(1, 0, cellgrid.DefaultCell)
	s.ApplyCommand(ctx, &protocol.Command{Cmd: "flush", ForceFull: true})
	out.Reset()

	s.WM.Background.Set(0, 0, cellgrid.Cell{Glyph: 'A', FG: cellgrid.Green, BG: cellgrid.Black})
	s.ApplyCommand(ctx, &protocol.Command{Cmd: "flush"})

	got := out.String()
	if !strings.Contains(got, "0m") {
		t.Fatalf("expected an SGR reset in %q", got)
	}
	if !strings.Contains(got, "32") {
		t.Fatalf("expected fg re-emitted explicitly after reset in %q", got)
	}
}

// TestChromeInteractionScenario is spec scenario 4.
func TestChromeInteractionScenario(t *testing.T) {
	s, _, ev := newTestSession(t)
	ctx := context.Background()
	s.ApplyCommand(ctx, &protocol.Command{Cmd: "init", Cols: intPtr(40), Rows: intPtr(24)})
	s.ApplyCommand(ctx, &protocol.Command{Cmd: "create_window",
		ID: "w", X: intPtr(10), Y: intPtr(5), Width: intPtr(20), Height: intPtr(10),
		Closable: boolPtr(true), Resizable: boolPtr(true),
	})

	press := func(x, y int) {
		s.FeedInput([]byte("\x1b[<0;" + itoaTest(x+1) + ";" + itoaTest(y+1) + "M"))
	}
	release := func(x, y int) {
		s.FeedInput([]byte("\x1b[<0;" + itoaTest(x+1) + ";" + itoaTest(y+1) + "m"))
	}
	drag := func(x, y int) {
		s.FeedInput([]byte("\x1b[<32;" + itoaTest(x+1) + ";" + itoaTest(y+1) + "M"))
	}

	// Close glyph: press + release at (11,5).
	press(11, 5)
	release(11, 5)
	closeEv := ev.waitForType(t, "window_close_requested", time.Second)
	if closeEv.ID != "w" {
		t.Fatalf("expected close event for window w, got %+v", closeEv)
	}

	// Title bar drag: press (15,5), drag to (17,6), release.
	press(15, 5)
	ev.waitForType(t, "window_focused", time.Second)
	drag(17, 6)
	release(17, 6)
	movedEv := ev.waitForType(t, "window_moved", time.Second)
	if movedEv.X != 12 || movedEv.Y != 6 {
		t.Fatalf("expected window_moved to (12,6), got (%d,%d)", movedEv.X, movedEv.Y)
	}

	// Resize corner: press at the window's current bottom-right corner
	// (the drag above moved it to (12,6)), drag to (35,18), release.
	w, ok := s.WM.Get("w")
	if !ok {
		t.Fatal("window w missing before resize sub-step")
	}
	press(w.X+w.Width-1, w.Y+w.Height-1)
	drag(35, 18)
	release(35, 18)
	resizedEv := ev.waitForType(t, "window_resized", time.Second)
	if resizedEv.Width != 24 || resizedEv.Height != 13 {
		t.Fatalf("expected window_resized to 24x13, got %dx%d", resizedEv.Width, resizedEv.Height)
	}
}

// TestIdempotentRecreatePreservesContent is spec scenario 5.
func TestIdempotentRecreatePreservesContent(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := context.Background()
	s.ApplyCommand(ctx, &protocol.Command{Cmd: "init", Cols: intPtr(40), Rows: intPtr(24)})
	s.ApplyCommand(ctx, &protocol.Command{Cmd: "create_window",
		ID: "x", X: intPtr(1), Y: intPtr(1), Width: intPtr(10), Height: intPtr(5), Border: "single",
	})
	s.ApplyCommand(ctx, &protocol.Command{Cmd: "print", Window: "x", X: intPtr(0), Y: intPtr(0), Text: "hi"})

	s.ApplyCommand(ctx, &protocol.Command{Cmd: "create_window",
		ID: "x", X: intPtr(5), Y: intPtr(5), Width: intPtr(10), Height: intPtr(5),
		Border: "single", Title: strPtr("new"),
	})

	w, ok := s.WM.Get("x")
	if !ok {
		t.Fatal("window x missing after idempotent re-create")
	}
	if w.X != 5 || w.Y != 5 {
		t.Fatalf("expected position updated to (5,5), got (%d,%d)", w.X, w.Y)
	}
	if w.Title != "new" {
		t.Fatalf("expected title updated to 'new', got %q", w.Title)
	}
	c0, _ := w.Content.Get(0, 0)
	c1, _ := w.Content.Get(1, 0)
	if c0.Glyph != 'h' || c1.Glyph != 'i' {
		t.Fatalf("expected content 'hi' preserved, got %q%q", c0.Glyph, c1.Glyph)
	}
}

// TestAutoFlushTerminal is spec scenario 6: bytes arriving from a
// remote connection reach the client socket within the ambient
// auto-flush tick even though the application never issues a flush.
func TestAutoFlushTerminal(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("hi"))
		buf := make([]byte, 64)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()

	s, out, ev := newTestSession(t)
	var mu sync.Mutex
	wrapped := &lockedWriter{mu: &mu, w: out}
	s.out = wrapped

	ctx := context.Background()
	go s.Run()
	defer s.Close()

	s.Submit(func() { s.ApplyCommand(ctx, &protocol.Command{Cmd: "init", Cols: intPtr(40), Rows: intPtr(24)}) })

	addr := ln.Addr().(*net.TCPAddr)
	port := uint16(addr.Port)
	s.Submit(func() {
		s.ApplyCommand(ctx, &protocol.Command{
			Cmd: "create_terminal", ID: "t", Host: "127.0.0.1", Port: &port,
			Width: intPtr(20), Height: intPtr(10),
		})
	})
	ev.waitForType(t, "terminal_connected", 2*time.Second)

	deadline := time.After(500 * time.Millisecond)
	for {
		wrapped.mu.Lock()
		contains := strings.Contains(out.String(), "h")
		wrapped.mu.Unlock()
		if contains {
			return
		}
		select {
		case <-time.After(5 * time.Millisecond):
		case <-deadline:
			t.Fatal("expected auto-flush to deliver remote bytes without an explicit flush command")
		}
	}
}

type lockedWriter struct {
	mu *sync.Mutex
	w  *bytes.Buffer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func itoaTest(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
