// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package keys defines the symbolic key set carried on the key topic and
// the decoders that produce it from local input devices.
package keys

import (
	"unicode"
	"unicode/utf8"
)

// Topic is the event topic carrying one key symbol per message
const Topic = "key"

// Named control symbols. Everything else on the key topic is a single
// printable character.
const (
	Next     = "↑"
	Previous = "↓"
	Confirm  = "\n"
	Erase    = "⌫"
)

// IsControl reports whether symbol is one of the named control symbols
func IsControl(symbol string) bool {
	switch symbol {
	case Next, Previous, Confirm, Erase:
		return true
	}
	return false
}

// First returns the first character of a key payload. ok is false for an
// empty or invalid UTF-8 payload.
func First(payload []byte) (r rune, ok bool) {
	r, size := utf8.DecodeRune(payload)
	if r == utf8.RuneError && size <= 1 {
		return 0, false
	}
	return r, true
}

// IsPrintable reports whether r may be appended to an input buffer
func IsPrintable(r rune) bool {
	return unicode.IsPrint(r)
}
