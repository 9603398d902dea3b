// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Thermoquad/rotastat/pkg/dataflow"
	"github.com/Thermoquad/rotastat/pkg/encbus"
	"github.com/Thermoquad/rotastat/pkg/keys"
	"github.com/Thermoquad/rotastat/pkg/telemetry"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var displayPlain bool

var displayCmd = &cobra.Command{
	Use:   "display",
	Short: "Show a running node's display and send it keys",
	Long: `Connect to a running node over WebSocket and render the selected encoder
the way the panel display does, together with the input buffer.

Keystrokes are sent back to the node as key events: arrows move between
encoders, digits and Enter select an ID, Backspace erases. Esc quits.

With --plain, frames are printed as text and no keys are sent.

Exit codes:
  0 - Display closed normally
  1 - Connection lost
  2 - Connection error`,
	Annotations: map[string]string{annotationTUI: "true"},
	RunE:        runDisplay,
}

func init() {
	rootCmd.AddCommand(displayCmd)
	displayCmd.Flags().BoolVar(&displayPlain, "plain", false, "Print frames as text instead of a terminal UI")
}

// Messages
type remoteEventMsg telemetry.Event
type remoteClosedMsg struct{ err error }

// displayState tracks what the node last published
type displayState struct {
	telemetryTopic string
	bufferTopic    string

	record   encbus.Record
	buffer   string
	stale    bool
	frames   int
	lastSeen time.Time
}

// apply folds one published message into the state. Reports whether the
// display content changed.
func (d *displayState) apply(ev telemetry.Event) bool {
	switch ev.Topic {
	case d.telemetryTopic:
		rec, err := encbus.UnmarshalRecord(ev.Payload)
		if err != nil {
			return false
		}
		stale := ev.Metadata["stale"] == "true"
		changed := d.frames == 0 || rec != d.record || stale != d.stale
		d.record = rec
		d.stale = stale
		d.frames++
		d.lastSeen = time.Now()
		return changed
	case d.bufferTopic:
		buffer := string(ev.Payload)
		changed := buffer != d.buffer
		d.buffer = buffer
		return changed
	}
	return false
}

func (d *displayState) lines() []string {
	return encbus.FormatDisplay(d.record, d.buffer)
}

type displayModel struct {
	url    string
	client *dataflow.Client
	state  displayState

	closedErr error
	quitting  bool
}

func (m displayModel) Init() tea.Cmd {
	return tea.EnterAltScreen
}

func (m displayModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEsc, tea.KeyCtrlC:
			m.quitting = true
			return m, tea.Quit
		}
		if sym, ok := keys.FromTeaKey(msg); ok {
			if err := m.client.Publish(keys.Topic, nil, []byte(sym)); err != nil {
				m.closedErr = err
				return m, tea.Quit
			}
		}

	case remoteEventMsg:
		m.state.apply(telemetry.Event(msg))

	case remoteClosedMsg:
		m.closedErr = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m displayModel) View() string {
	if m.quitting {
		return "Closing...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	screenStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("0")).
		Width(24).
		Padding(0, 1)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	var s strings.Builder
	s.WriteString(titleStyle.Render("ROTASTAT - DISPLAY"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("WebSocket: %s | Esc to quit", m.url)))
	s.WriteString("\n\n")

	if m.state.frames == 0 {
		s.WriteString(warningStyle.Render("Waiting for telemetry..."))
		s.WriteString("\n")
		return s.String()
	}

	s.WriteString(screenStyle.Render(strings.Join(m.state.lines(), "\n")))
	s.WriteString("\n")
	if m.state.stale {
		s.WriteString(warningStyle.Render(fmt.Sprintf("ID %d is stale, showing its last record", m.state.record.Address)))
		s.WriteString("\n")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%d frames, last %s ago", m.state.frames,
		time.Since(m.state.lastSeen).Round(time.Millisecond))))
	s.WriteString("\n")
	return s.String()
}

func runDisplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := DialHub(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer client.Close()

	state := displayState{
		telemetryTopic: cfg.Publish.TelemetryTopic,
		bufferTopic:    cfg.Publish.BufferTopic,
	}

	if displayPlain {
		return runDisplayPlain(ctx, client, &state)
	}

	m := displayModel{url: wsURL, client: client, state: state}
	p := tea.NewProgram(m)

	go func() {
		for {
			ev, err := client.Receive(ctx)
			if err != nil {
				p.Send(remoteClosedMsg{err: err})
				return
			}
			p.Send(remoteEventMsg(ev))
		}
	}()

	final, err := p.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(displayModel); ok && fm.closedErr != nil && !fm.quitting {
		if errors.Is(fm.closedErr, context.Canceled) {
			return nil
		}
		fmt.Fprintf(os.Stderr, "Connection lost: %v\n", fm.closedErr)
		os.Exit(1)
	}
	return nil
}

// runDisplayPlain prints every changed frame until the connection ends
func runDisplayPlain(ctx context.Context, client *dataflow.Client, state *displayState) error {
	fmt.Printf("Rotastat - Display\n")
	fmt.Printf("WebSocket: %s\n\n", wsURL)

	for {
		ev, err := client.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Printf("Connection lost: %v\n", err)
			os.Exit(1)
		}
		if !state.apply(ev) || state.frames == 0 {
			continue
		}
		fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), strings.Join(state.lines(), " | "))
	}
}
