// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package keys

import (
	"encoding/binary"
	"errors"
	"io"
)

// Linux input event constants
const (
	evKey       = 0x01
	keyPressed  = 1
	inputEvSize = 24 // struct input_event on 64-bit little-endian hosts
)

// scanCodes maps Linux key codes to symbols
var scanCodes = map[uint16]string{
	2: "1", 3: "2", 4: "3", 5: "4", 6: "5", 7: "6", 8: "7", 9: "8", 10: "9", 11: "0",
	12: "-", 13: "=",
	14: Erase,
	16: "q", 17: "w", 18: "e", 19: "r", 20: "t", 21: "y", 22: "u", 23: "i", 24: "o", 25: "p",
	26: "[", 27: "]",
	28: Confirm,
	30: "a", 31: "s", 32: "d", 33: "f", 34: "g", 35: "h", 36: "j", 37: "k", 38: "l",
	39: ";", 40: "'", 41: "`", 43: "\\",
	44: "z", 45: "x", 46: "c", 47: "v", 48: "b", 49: "n", 50: "m",
	51: ",", 52: ".", 53: "/",
	57: " ",
	96: Confirm, // keypad enter
	103: Next,
	108: Previous,
}

// FromScanCode maps a Linux key code onto a key symbol
func FromScanCode(code uint16) (string, bool) {
	sym, ok := scanCodes[code]
	return sym, ok
}

// EvdevReader reads key presses from a Linux input event device
type EvdevReader struct {
	r io.Reader
}

// NewEvdevReader wraps an opened /dev/input/event* device
func NewEvdevReader(r io.Reader) *EvdevReader {
	return &EvdevReader{r: r}
}

// Next blocks until the next mapped key press and returns its symbol.
// Releases, repeats and unmapped keys are skipped.
func (e *EvdevReader) Next() (string, error) {
	buf := make([]byte, inputEvSize)
	for {
		if _, err := io.ReadFull(e.r, buf); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return "", io.EOF
			}
			return "", err
		}
		// Skip the timestamp, then type, code, value
		typ := binary.LittleEndian.Uint16(buf[16:18])
		code := binary.LittleEndian.Uint16(buf[18:20])
		value := int32(binary.LittleEndian.Uint32(buf[20:24]))

		if typ != evKey || value != keyPressed {
			continue
		}
		if sym, ok := FromScanCode(code); ok {
			return sym, nil
		}
	}
}

