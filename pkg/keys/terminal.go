// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package keys

import (
	"errors"
	"unicode/utf8"
)

// ErrInterrupt is returned when the terminal sends Ctrl-C or Ctrl-D
var ErrInterrupt = errors.New("interrupt")

const (
	stateText = iota
	stateEscape
	stateCSI
)

// TerminalDecoder turns a raw-mode terminal byte stream into key symbols
type TerminalDecoder struct {
	state int
	utf   []byte
}

// NewTerminalDecoder creates a new terminal decoder
func NewTerminalDecoder() *TerminalDecoder {
	return &TerminalDecoder{utf: make([]byte, 0, utf8.UTFMax)}
}

// Reset drops any partial escape sequence or character
func (d *TerminalDecoder) Reset() {
	d.state = stateText
	d.utf = d.utf[:0]
}

// DecodeByte processes a single byte.
// Returns a symbol once one is complete, or "" if more bytes are needed or
// the byte maps to nothing.
func (d *TerminalDecoder) DecodeByte(b byte) (string, error) {
	switch d.state {
	case stateEscape:
		if b == '[' || b == 'O' {
			d.state = stateCSI
			return "", nil
		}
		d.Reset()
		return "", nil

	case stateCSI:
		// Parameter bytes precede the final byte of the sequence
		if b >= 0x30 && b <= 0x3F {
			return "", nil
		}
		d.Reset()
		switch b {
		case 'A':
			return Next, nil
		case 'B':
			return Previous, nil
		}
		return "", nil
	}

	if len(d.utf) > 0 {
		return d.continueRune(b), nil
	}

	switch b {
	case 0x03, 0x04:
		return "", ErrInterrupt
	case 0x1B:
		d.state = stateEscape
		return "", nil
	case '\r', '\n':
		return Confirm, nil
	case 0x7F, 0x08:
		return Erase, nil
	}

	if b < utf8.RuneSelf {
		if IsPrintable(rune(b)) {
			return string(rune(b)), nil
		}
		return "", nil
	}

	return d.continueRune(b), nil
}

// Decode runs every byte of p through the decoder
func (d *TerminalDecoder) Decode(p []byte) ([]string, error) {
	var out []string
	for _, b := range p {
		sym, err := d.DecodeByte(b)
		if err != nil {
			return out, err
		}
		if sym != "" {
			out = append(out, sym)
		}
	}
	return out, nil
}

func (d *TerminalDecoder) continueRune(b byte) string {
	d.utf = append(d.utf, b)
	if !utf8.FullRune(d.utf) {
		if len(d.utf) >= utf8.UTFMax {
			d.utf = d.utf[:0]
		}
		return ""
	}
	r, _ := utf8.DecodeRune(d.utf)
	d.utf = d.utf[:0]
	if r == utf8.RuneError || !IsPrintable(r) {
		return ""
	}
	return string(r)
}
