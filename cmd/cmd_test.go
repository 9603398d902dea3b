// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/rotastat/pkg/encbus"
	"github.com/Thermoquad/rotastat/pkg/keys"
	"github.com/Thermoquad/rotastat/pkg/telemetry"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// flagCommand binds the bus flags to a fresh command and restores the
// package-level values afterwards.
func flagCommand(t *testing.T) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "test"}
	c.Flags().StringVarP(&portName, "port", "p", "", "")
	c.Flags().IntVar(&timeoutMS, "timeout", 10, "")
	c.Flags().StringVar(&driverName, "driver", "native", "")
	c.Flags().BoolVar(&noValidate, "no-validate", false, "")
	t.Cleanup(func() {
		portName = ""
		timeoutMS = 10
		driverName = "native"
		noValidate = false
		configPath = ""
	})
	return c
}

// ============================================================
// Configuration resolution
// ============================================================

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotastat.yaml")
	content := "bus:\n  port: /dev/ttyA\n  timeout_ms: 25\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	c := flagCommand(t)
	configPath = path
	if err := c.Flags().Set("port", "/dev/ttyB"); err != nil {
		t.Fatalf("Set(port) failed: %v", err)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Bus.Port != "/dev/ttyB" {
		t.Errorf("Port = %q, want /dev/ttyB", cfg.Bus.Port)
	}
	// Unset flags keep the file value
	if cfg.Bus.TimeoutMS != 25 {
		t.Errorf("TimeoutMS = %d, want 25", cfg.Bus.TimeoutMS)
	}
	if !cfg.Bus.Validate {
		t.Error("Validate = false, want true")
	}
}

func TestLoadConfig_NoValidate(t *testing.T) {
	c := flagCommand(t)
	if err := c.Flags().Set("no-validate", "true"); err != nil {
		t.Fatalf("Set(no-validate) failed: %v", err)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Bus.Validate {
		t.Error("Validate = true, want false")
	}
}

func TestLoadConfig_InvalidDriver(t *testing.T) {
	c := flagCommand(t)
	if err := c.Flags().Set("driver", "serialport"); err != nil {
		t.Fatalf("Set(driver) failed: %v", err)
	}

	if _, err := loadConfig(c); err == nil {
		t.Error("loadConfig succeeded, want driver error")
	}
}

// ============================================================
// Probe helpers
// ============================================================

func TestParseRegister(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantReg   uint16
		wantCount uint16
		wantErr   bool
	}{
		{"angle", "angle", encbus.RegAngle, 1, false},
		{"speed upper case", "SPEED", encbus.RegSpeed, 2, false},
		{"turns", "turns", encbus.RegTurns, 1, false},
		{"hex number", "0x0041", 0x0041, 1, false},
		{"decimal number", "100", 100, 1, false},
		{"unknown", "velocity", 0, 0, true},
		{"too large", "0x10000", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, count, err := parseRegister(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseRegister(%q) succeeded, want error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRegister(%q) failed: %v", tt.input, err)
			}
			if reg != tt.wantReg || count != tt.wantCount {
				t.Errorf("parseRegister(%q) = 0x%04X/%d, want 0x%04X/%d", tt.input, reg, count, tt.wantReg, tt.wantCount)
			}
		})
	}
}

func TestDescribeData(t *testing.T) {
	got := describeData(encbus.RegSpeed, []byte{0x00, 0x00, 0x27, 0x10})
	if !strings.Contains(got, "100.00 RPM") {
		t.Errorf("describeData(speed) = %q, want 100.00 RPM", got)
	}

	got = describeData(0x0050, []byte{0xAB, 0xCD})
	if !strings.Contains(got, "AB CD") {
		t.Errorf("describeData(unknown) = %q, want hex dump", got)
	}
}

// ============================================================
// Display state
// ============================================================

func TestDisplayState_Apply(t *testing.T) {
	d := displayState{
		telemetryTopic: telemetry.TopicTelemetry,
		bufferTopic:    telemetry.TopicBuffer,
	}
	rec := encbus.Record{Address: 2, AngleRaw: 2048, Turns: 1, SpeedRaw: 500}

	ev := telemetry.Event{
		Topic:    telemetry.TopicTelemetry,
		Metadata: map[string]string{"address": "2", "stale": "false"},
		Payload:  rec.Bytes(),
	}
	if !d.apply(ev) {
		t.Error("apply(first record) = false, want true")
	}
	if d.apply(ev) {
		t.Error("apply(same record) = true, want false")
	}
	if d.frames != 2 {
		t.Errorf("frames = %d, want 2", d.frames)
	}

	if !d.apply(telemetry.Event{Topic: telemetry.TopicBuffer, Payload: []byte("4")}) {
		t.Error("apply(buffer) = false, want true")
	}
	if d.apply(telemetry.Event{Topic: "other", Payload: []byte("x")}) {
		t.Error("apply(unknown topic) = true, want false")
	}
	if d.apply(telemetry.Event{Topic: telemetry.TopicTelemetry, Payload: []byte{0x01}}) {
		t.Error("apply(short payload) = true, want false")
	}

	lines := d.lines()
	if lines[3] != "ID: 2" || lines[4] != "$ 4" {
		t.Errorf("lines() = %q", lines)
	}

	ev.Metadata["stale"] = "true"
	if !d.apply(ev) || !d.stale {
		t.Error("stale flag change not reported")
	}
}

// ============================================================
// Monitor model
// ============================================================

func newTestNode(t *testing.T, addrs ...uint8) *telemetry.Node {
	t.Helper()
	reg, err := telemetry.NewRegistry(addrs...)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return telemetry.NewNode(nil, reg, nil, nil, nil)
}

func TestMonitorModel_RefreshLogsStaleness(t *testing.T) {
	node := newTestNode(t, 1, 2)
	m := newMonitorModel("test", node, encbus.NewStatistics(), func(string) {})
	now := time.Now()

	node.Table.Commit(0, encbus.Record{SpeedRaw: 1000})
	m.refresh(now)
	if len(m.rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(m.rows))
	}
	if len(m.eventLog) != 0 {
		t.Errorf("eventLog = %d entries, want 0", len(m.eventLog))
	}

	node.Table.MarkFailure(1, errors.New("device silent"), 1)
	m.refresh(now)
	if len(m.eventLog) != 1 || !m.eventLog[0].isError {
		t.Fatalf("eventLog = %+v, want one error entry", m.eventLog)
	}
	if !strings.Contains(m.eventLog[0].message, "ID 2 stale") {
		t.Errorf("message = %q, want ID 2 stale", m.eventLog[0].message)
	}

	node.Table.Commit(1, encbus.Record{})
	m.refresh(now)
	if len(m.eventLog) != 2 || m.eventLog[1].isError {
		t.Fatalf("eventLog = %+v, want a recovery entry", m.eventLog)
	}
}

func TestMonitorModel_CursorFollowsSelector(t *testing.T) {
	node := newTestNode(t, 1, 2, 3)
	m := newMonitorModel("test", node, nil, func(string) {})

	node.Selector.Next()
	m.refresh(time.Now())
	if got := m.table.Cursor(); got != 1 {
		t.Errorf("Cursor() = %d, want 1", got)
	}
}

func TestMonitorModel_KeysInjected(t *testing.T) {
	node := newTestNode(t, 1)
	var got []string
	m := newMonitorModel("test", node, nil, func(sym string) { got = append(got, sym) })

	msgs := []tea.KeyMsg{
		{Type: tea.KeyUp},
		{Type: tea.KeyRunes, Runes: []rune{'7'}},
		{Type: tea.KeyEnter},
	}
	var model tea.Model = m
	for _, msg := range msgs {
		model, _ = model.Update(msg)
	}

	want := []string{keys.Next, "7", keys.Confirm}
	if len(got) != len(want) {
		t.Fatalf("injected %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("injected[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Error("Esc should quit")
	}
}

func TestFormatTableRow(t *testing.T) {
	now := time.Now()

	row := telemetry.Row{Record: encbus.Record{Address: 5}}
	if got := formatTableRow(row, now); got[1] != "-" || got[6] != "waiting" {
		t.Errorf("formatTableRow(unpolled) = %q", got)
	}

	row = telemetry.Row{
		Record:     encbus.Record{Address: 5, SpeedRaw: -250, Turns: 3, AngleRaw: 1024},
		Generation: 12,
		UpdatedAt:  now.Add(-1500 * time.Millisecond),
		Failures:   2,
	}
	got := formatTableRow(row, now)
	want := []string{"5", "-2.50", "3", "90.00'", "12", "1.5s", "retry 2"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d = %q, want %q", i, got[i], want[i])
		}
	}

	row.Stale = true
	if got := statusLabel(row); got != "STALE" {
		t.Errorf("statusLabel(stale) = %q, want STALE", got)
	}
}
