package main

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/benj-edwards/ascii-processing-unit/internal/adminws"
	"github.com/benj-edwards/ascii-processing-unit/internal/protocol"
)

func TestFormatEventIncludesSessionID(t *testing.T) {
	line := formatEvent(protocol.Response{Type: "client_connect", Session: "session_a"})
	if !strings.Contains(line, "client_connect") || !strings.Contains(line, "session_a") {
		t.Fatalf("unexpected line: %q", line)
	}
}

func TestFormatEventWindowIncludesGeometry(t *testing.T) {
	line := formatEvent(protocol.Response{
		Type: "window_moved", Session: "session_a", ID: "w1", X: 3, Y: 4, Width: 20, Height: 10,
	})
	for _, want := range []string{"window_moved", "session_a", "w1", "x=3", "y=4", "w=20", "h=10"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected line to contain %q, got %q", want, line)
		}
	}
}

func TestDashboardUpdateAppendsEventsAndCaps(t *testing.T) {
	d := &dashboard{}
	for i := 0; i < maxEventLines+10; i++ {
		model, _ := d.Update(eventMsg(protocol.Response{Type: "client_connect"}))
		d = model.(*dashboard)
	}
	if len(d.events) != maxEventLines {
		t.Fatalf("expected event buffer to be capped at %d, got %d", maxEventLines, len(d.events))
	}
}

func TestDashboardUpdateQuitsOnKey(t *testing.T) {
	hub := adminws.NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	client, err := adminws.Dial(context.Background(), strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	d := &dashboard{cancel: func() {}, client: client}
	model, cmd := d.Update(tea.KeyMsg{Type: tea.KeyEsc})
	got := model.(*dashboard)
	if !got.quit {
		t.Fatal("expected esc to set quit")
	}
	if cmd == nil {
		t.Fatal("expected a tea.Quit command")
	}
}

func TestDashboardUpdateStopsOnConnError(t *testing.T) {
	d := &dashboard{}
	model, _ := d.Update(connErrMsg{err: errTest})
	got := model.(*dashboard)
	if got.err == nil {
		t.Fatal("expected connErrMsg to set d.err")
	}
}

var errTest = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
