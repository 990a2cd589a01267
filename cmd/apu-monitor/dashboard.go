package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/benj-edwards/ascii-processing-unit/internal/adminws"
	"github.com/benj-edwards/ascii-processing-unit/internal/protocol"
)

const maxEventLines = 200

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Bold(true).
			Underline(true)

	sessionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)
)

// eventMsg wraps one decoded admin feed event for bubbletea's Update.
type eventMsg protocol.Response

// connErrMsg reports the feed connection dying.
type connErrMsg struct{ err error }

type dashboard struct {
	ctx    context.Context
	cancel context.CancelFunc
	client *adminws.Client
	addr   string

	events []protocol.Response
	err    error
	quit   bool
}

func newDashboard(ctx context.Context, addr string) (*dashboard, error) {
	client, err := adminws.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	dctx, cancel := context.WithCancel(ctx)
	return &dashboard{ctx: dctx, cancel: cancel, client: client, addr: addr}, nil
}

func (d *dashboard) Init() tea.Cmd {
	return d.waitForEvent
}

// waitForEvent blocks for the next admin feed message -- bubbletea
// re-invokes it via the Cmd returned from Update each time, the same
// one-shot-read-then-requeue shape the teacher's own streaming UIs use
// for long-lived feeds.
func (d *dashboard) waitForEvent() tea.Msg {
	ev, err := d.client.Next()
	if err != nil {
		return connErrMsg{err}
	}
	return eventMsg(ev)
}

func (d *dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			d.quit = true
			d.cancel()
			d.client.Close()
			return d, tea.Quit
		}

	case eventMsg:
		d.events = append(d.events, protocol.Response(msg))
		if len(d.events) > maxEventLines {
			d.events = d.events[len(d.events)-maxEventLines:]
		}
		return d, d.waitForEvent

	case connErrMsg:
		d.err = msg.err
		return d, tea.Quit
	}

	return d, nil
}

func (d *dashboard) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("apu-monitor -- %s", d.addr)) + "\n\n")

	if d.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("feed error: %v", d.err)) + "\n")
	}

	for _, ev := range d.events {
		b.WriteString(formatEvent(ev) + "\n")
	}

	if !d.quit {
		b.WriteString(helpStyle.Render("q/esc/ctrl+c to quit"))
	}

	return b.String()
}

func formatEvent(ev protocol.Response) string {
	ts := time.Now().Format("15:04:05")
	switch ev.Type {
	case "client_connect", "client_disconnect":
		return fmt.Sprintf("%s %s %s", ts, ev.Type, sessionStyle.Render(ev.Session))
	case "window_moved", "window_resized", "window_focused", "window_close_requested", "window_maximize_requested":
		return fmt.Sprintf("%s %s session=%s id=%s x=%d y=%d w=%d h=%d",
			ts, ev.Type, sessionStyle.Render(ev.Session), ev.ID, ev.X, ev.Y, ev.Width, ev.Height)
	case "terminal_connected", "terminal_disconnected", "terminal_error":
		return fmt.Sprintf("%s %s session=%s host=%s port=%d", ts, ev.Type, sessionStyle.Render(ev.Session), ev.Host, ev.Port)
	default:
		return fmt.Sprintf("%s %s session=%s", ts, ev.Type, sessionStyle.Render(ev.Session))
	}
}
