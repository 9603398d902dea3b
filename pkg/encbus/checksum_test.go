// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package encbus

import (
	"bytes"
	"testing"
)

// ============================================================
// Checksum
// ============================================================

func TestChecksum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{"check string", []byte("123456789"), 0x4B37},
		{"angle request", []byte{0x01, 0x03, 0x00, 0x41, 0x00, 0x01}, 0x1ED4},
		{"speed request", []byte{0x01, 0x03, 0x00, 0x42, 0x00, 0x02}, 0x1F64},
		{"turns request", []byte{0x01, 0x03, 0x00, 0x44, 0x00, 0x01}, 0x1FC4},
		{"angle reply", []byte{0x01, 0x03, 0x02, 0x01, 0x2C}, 0x09B8},
		{"empty input", []byte{}, 0xFFFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Checksum(tt.data); got != tt.want {
				t.Errorf("Checksum() = 0x%04X, want 0x%04X", got, tt.want)
			}
		})
	}
}

func TestChecksum_SelfCheck(t *testing.T) {
	// A frame with its checksum appended checks to zero
	frame := AppendChecksum([]byte{0x01, 0x03, 0x04, 0x00, 0x00, 0x27, 0x10})
	if got := Checksum(frame); got != 0x0000 {
		t.Errorf("Checksum(frame+crc) = 0x%04X, want 0x0000", got)
	}
}

func TestAppendChecksum(t *testing.T) {
	got := AppendChecksum([]byte{0x01, 0x03, 0x00, 0x41, 0x00, 0x01})
	want := []byte{0x01, 0x03, 0x00, 0x41, 0x00, 0x01, 0xD4, 0x1E}
	if !bytes.Equal(got, want) {
		t.Errorf("AppendChecksum() = % X, want % X", got, want)
	}
}
