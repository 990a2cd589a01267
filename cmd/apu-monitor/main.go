// Command apu-monitor is an operator dashboard: it dials an
// apu-engine's admin diagnostics feed (internal/adminws) and renders
// the live session/window lifecycle event stream with bubbletea,
// styled with lipgloss -- mirroring how the teacher builds its own
// operator-facing CLI surfaces on the same three packages
// (client/commands/exec_sessions_ui.go, client/prompts/*.go).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "apu-monitor: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("apu-monitor", pflag.ContinueOnError)
	connect := flagSet.String("connect", "", "apu-engine admin address (host:port)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	addr := *connect
	if addr == "" {
		var err error
		addr, err = promptForAddress()
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model, err := newDashboard(ctx, addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}

	p := tea.NewProgram(model)
	_, err = p.Run()
	return err
}

// promptForAddress asks for the engine's admin address with a huh
// form when --connect wasn't given, accessible-mode-aware the same
// way the teacher's prompts/common.go configureForm is.
func promptForAddress() (string, error) {
	var addr string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("apu-engine admin address").
				Placeholder("127.0.0.1:7375").
				Value(&addr),
		),
	)
	accessible := os.Getenv("ACCESSIBLE") != "" || !isInteractiveTerminal()
	form = form.WithAccessible(accessible)
	if err := form.Run(); err != nil {
		return "", err
	}
	if addr == "" {
		return "", fmt.Errorf("no admin address given")
	}
	return addr, nil
}

func isInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
