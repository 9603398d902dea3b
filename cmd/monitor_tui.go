// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/rotastat/pkg/encbus"
	"github.com/Thermoquad/rotastat/pkg/keys"
	"github.com/Thermoquad/rotastat/pkg/telemetry"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	monitorRefresh = 250 * time.Millisecond
	maxLogEntries  = 100
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

type monitorKeyMap struct {
	Next     key.Binding
	Previous key.Binding
	Confirm  key.Binding
	Erase    key.Binding
	Quit     key.Binding
}

func defaultMonitorKeys() monitorKeyMap {
	return monitorKeyMap{
		Next:     key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "next")),
		Previous: key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "previous")),
		Confirm:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select ID")),
		Erase:    key.NewBinding(key.WithKeys("backspace"), key.WithHelp("⌫", "erase")),
		Quit:     key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
	}
}

func (k monitorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Previous, k.Confirm, k.Erase, k.Quit}
}

func (k monitorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// Messages
type tickMsg time.Time
type displayMsg []string

// teaRenderer forwards publisher frames to the running program
type teaRenderer struct {
	p *tea.Program
}

func (r *teaRenderer) Render(lines []string) error {
	if r.p != nil {
		r.p.Send(displayMsg(append([]string(nil), lines...)))
	}
	return nil
}

// monitorModel shows the state table, the published display and bus health
type monitorModel struct {
	info   string
	node   *telemetry.Node
	stats  *encbus.Statistics
	inject func(sym string)

	table    table.Model
	help     help.Model
	keys     monitorKeyMap
	rows     []telemetry.Row
	display  []string
	counters encbus.Counters

	eventLog []eventLogEntry
	width    int
	height   int
	quitting bool
}

func newMonitorModel(info string, node *telemetry.Node, stats *encbus.Statistics, inject func(sym string)) monitorModel {
	columns := []table.Column{
		{Title: "ID", Width: 4},
		{Title: "Speed (RPM)", Width: 12},
		{Title: "Turns", Width: 6},
		{Title: "Angle", Width: 8},
		{Title: "Polls", Width: 8},
		{Title: "Age", Width: 8},
		{Title: "Status", Width: 10},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(node.Registry.Len()+1),
		table.WithFocused(false),
	)
	t.SetStyles(monitorTableStyles())

	return monitorModel{
		info:   info,
		node:   node,
		stats:  stats,
		inject: inject,
		table:  t,
		help:   help.New(),
		keys:   defaultMonitorKeys(),
		width:  80,
		height: 24,
	}
}

func monitorTableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true).
		Padding(0, 1)
	s.Selected = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")).Bold(true)
	return s
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		monitorTickCmd(),
		tea.EnterAltScreen,
	)
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(monitorRefresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		if sym, ok := keys.FromTeaKey(msg); ok {
			m.inject(sym)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case displayMsg:
		m.display = msg

	case tickMsg:
		m.refresh(time.Time(msg))
		return m, monitorTickCmd()
	}

	return m, nil
}

// refresh copies the table and statistics and logs staleness transitions
func (m *monitorModel) refresh(now time.Time) {
	rows := m.node.Table.Snapshot()
	for i, row := range rows {
		if i >= len(m.rows) {
			continue
		}
		prev := m.rows[i]
		switch {
		case row.Stale && !prev.Stale:
			m.addLogEntry(fmt.Sprintf("ID %d stale after %d failed polls: %v", row.Record.Address, row.Failures, row.LastErr), true)
		case !row.Stale && prev.Stale:
			m.addLogEntry(fmt.Sprintf("ID %d recovered", row.Record.Address), false)
		}
	}
	m.rows = rows

	tableRows := make([]table.Row, 0, len(rows))
	for _, row := range rows {
		tableRows = append(tableRows, formatTableRow(row, now))
	}
	m.table.SetRows(tableRows)
	m.table.SetCursor(m.node.Selector.Index())

	if m.stats != nil {
		m.counters = m.stats.Snapshot()
	}
}

// formatTableRow renders one state table row
func formatTableRow(row telemetry.Row, now time.Time) table.Row {
	if row.Generation == 0 {
		return table.Row{fmt.Sprintf("%d", row.Record.Address), "-", "-", "-", "0", "-", statusLabel(row)}
	}
	return table.Row{
		fmt.Sprintf("%d", row.Record.Address),
		fmt.Sprintf("%.2f", row.Record.RPM()),
		fmt.Sprintf("%d", row.Record.Turns),
		fmt.Sprintf("%.2f'", row.Record.Degrees()),
		fmt.Sprintf("%d", row.Generation),
		formatAge(now.Sub(row.UpdatedAt)),
		statusLabel(row),
	}
}

func statusLabel(row telemetry.Row) string {
	switch {
	case row.Stale:
		return "STALE"
	case row.Generation == 0:
		return "waiting"
	case row.Failures > 0:
		return fmt.Sprintf("retry %d", row.Failures)
	default:
		return "ok"
	}
}

// formatAge renders a duration compactly for the table
func formatAge(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return d.Round(time.Second).String()
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	if len(m.eventLog) > maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-maxLogEntries:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("ROTASTAT - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(m.info))
	s.WriteString("\n\n")

	// Device table beside the display panel
	display := m.display
	if len(display) == 0 {
		display = []string{"(waiting for first frame)"}
	}
	panel := boxStyle.Render(valueStyle.Render(strings.Join(display, "\n")))
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxStyle.Render(m.table.View()), " ", panel))
	s.WriteString("\n")

	// Bus statistics
	c := m.counters
	failures := c.Errors + c.Invalid
	statsContent := fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n%s %s   %s %s",
		labelStyle.Render("Transactions:"), valueStyle.Render(fmt.Sprintf("%d", c.Transactions)),
		labelStyle.Render("Responded:"), valueStyle.Render(fmt.Sprintf("%d", c.Responses)),
		labelStyle.Render("Silent:"), warningStyle.Render(fmt.Sprintf("%d", c.Silent)),
		labelStyle.Render("Errors:"), func() string {
			if failures > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", failures))
			}
			return valueStyle.Render("0")
		}(),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f tx/s", c.TransactionRate())),
		labelStyle.Render("Latency avg:"), valueStyle.Render(fmt.Sprintf("%.3f ms", float64(c.AverageLatency())/float64(time.Millisecond))),
	)
	s.WriteString(boxStyle.Render(statsContent))
	s.WriteString("\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - m.node.Registry.Len() - 18
	if logHeight < 3 {
		logHeight = 3
	}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	var logContent strings.Builder
	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for _, entry := range m.eventLog[startIdx:] {
			timestamp := headerStyle.Render(entry.timestamp.Format("15:04:05.000"))
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, errorStyle.Render("✗ "+entry.message)))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, warningStyle.Render("ℹ "+entry.message)))
			}
		}
	}

	width := m.width - 4
	if width < 20 {
		width = 20
	}
	s.WriteString(boxStyle.Width(width).Render(strings.TrimRight(logContent.String(), "\n")))
	s.WriteString("\n")
	s.WriteString(m.help.View(m.keys))

	return s.String()
}
