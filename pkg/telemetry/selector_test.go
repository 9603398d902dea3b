// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"testing"

	"github.com/Thermoquad/rotastat/pkg/keys"
)

func newTestSelector(t *testing.T, addresses ...uint8) *Selector {
	t.Helper()
	reg, err := NewRegistry(addresses...)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return NewSelector(reg)
}

func typeKeys(s *Selector, symbols ...string) {
	for _, sym := range symbols {
		s.HandleKey([]byte(sym))
	}
}

// ============================================================
// Navigation
// ============================================================

func TestSelector_Wraparound(t *testing.T) {
	s := newTestSelector(t, 2, 5, 7)

	typeKeys(s, keys.Next, keys.Next)
	if s.Index() != 2 {
		t.Fatalf("Index() = %d, want 2", s.Index())
	}
	typeKeys(s, keys.Next)
	if s.Index() != 0 {
		t.Errorf("Index() after next from last = %d, want 0", s.Index())
	}
	typeKeys(s, keys.Previous)
	if s.Index() != 2 {
		t.Errorf("Index() after previous from 0 = %d, want 2", s.Index())
	}
}

func TestSelector_SingleDevice(t *testing.T) {
	s := newTestSelector(t, 4)
	typeKeys(s, keys.Next, keys.Previous, keys.Previous)
	if s.Index() != 0 {
		t.Errorf("Index() = %d, want 0", s.Index())
	}
}

// ============================================================
// Confirm and jump
// ============================================================

func TestSelector_Confirm(t *testing.T) {
	tests := []struct {
		name      string
		input     []string
		wantIndex int
	}{
		{"known address", []string{"5"}, 1},
		{"known address leading zero", []string{"0", "7"}, 2},
		{"unknown address", []string{"9", "9"}, 0},
		{"non numeric", []string{"a", "b"}, 0},
		{"out of byte range", []string{"2", "5", "6"}, 0},
		{"mixed", []string{"5", "x"}, 0},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSelector(t, 2, 5, 7)
			typeKeys(s, tt.input...)
			typeKeys(s, keys.Confirm)

			if s.Index() != tt.wantIndex {
				t.Errorf("Index() = %d, want %d", s.Index(), tt.wantIndex)
			}
			if s.Buffer() != "" {
				t.Errorf("Buffer() = %q, want empty", s.Buffer())
			}
		})
	}
}

func TestSelector_ConfirmKeepsIndexOnMiss(t *testing.T) {
	s := newTestSelector(t, 2, 5, 7)
	typeKeys(s, keys.Next, keys.Next, "9", "9", keys.Confirm)
	if s.Index() != 2 {
		t.Errorf("Index() = %d, want 2", s.Index())
	}
}

// ============================================================
// Buffer editing
// ============================================================

func TestSelector_HandleKeyReportsChange(t *testing.T) {
	s := newTestSelector(t, 2, 5, 7)

	steps := []struct {
		symbol      string
		wantChanged bool
		wantBuffer  string
	}{
		{keys.Erase, false, ""},
		{"1", true, "1"},
		{"2", true, "12"},
		{keys.Next, false, "12"},
		{keys.Erase, true, "1"},
		{keys.Confirm, true, ""},
		{keys.Confirm, false, ""},
		{"", false, ""},
		{"\t", false, ""},
		{"ab", true, "a"},
	}

	for i, st := range steps {
		changed := s.HandleKey([]byte(st.symbol))
		if changed != st.wantChanged {
			t.Errorf("step %d (%q): changed = %v, want %v", i, st.symbol, changed, st.wantChanged)
		}
		if s.Buffer() != st.wantBuffer {
			t.Errorf("step %d (%q): Buffer() = %q, want %q", i, st.symbol, s.Buffer(), st.wantBuffer)
		}
	}
}

func TestSelector_EraseMultibyte(t *testing.T) {
	s := newTestSelector(t, 1)
	typeKeys(s, "é", "ü", keys.Erase)
	if s.Buffer() != "é" {
		t.Errorf("Buffer() = %q, want %q", s.Buffer(), "é")
	}
}
