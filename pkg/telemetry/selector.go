// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"strconv"
	"sync"

	"github.com/Thermoquad/rotastat/pkg/keys"
)

// Selector owns the display index and the operator's input buffer
type Selector struct {
	mu     sync.Mutex
	reg    *Registry
	index  int
	buffer []rune
}

// NewSelector starts at position 0 with an empty buffer
func NewSelector(reg *Registry) *Selector {
	return &Selector{reg: reg}
}

// Index returns the current display index
func (s *Selector) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Buffer returns the current input buffer
func (s *Selector) Buffer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.buffer)
}

// HandleKey applies one key event payload. Only the first character of the
// payload is considered. Reports whether the input buffer changed.
func (s *Selector) HandleKey(payload []byte) bool {
	r, ok := keys.First(payload)
	if !ok {
		return false
	}

	switch string(r) {
	case keys.Next:
		s.Next()
		return false
	case keys.Previous:
		s.Previous()
		return false
	case keys.Confirm:
		s.mu.Lock()
		changed := len(s.buffer) > 0
		s.mu.Unlock()
		s.Confirm()
		return changed
	case keys.Erase:
		return s.Erase()
	}

	if !keys.IsPrintable(r) {
		return false
	}
	s.mu.Lock()
	s.buffer = append(s.buffer, r)
	s.mu.Unlock()
	return true
}

// Next advances the display index, wrapping to 0
func (s *Selector) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = (s.index + 1) % s.reg.Len()
}

// Previous moves the display index back, wrapping to the last position
func (s *Selector) Previous() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = (s.index - 1 + s.reg.Len()) % s.reg.Len()
}

// Confirm jumps to the device whose address is typed in the buffer, if any.
// The buffer is cleared either way. Reports whether the index moved.
func (s *Selector) Confirm() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := string(s.buffer)
	s.buffer = s.buffer[:0]

	addr, ok := parseAddress(text)
	if !ok {
		return false
	}
	pos, ok := s.reg.Position(addr)
	if !ok {
		return false
	}
	s.index = pos
	return true
}

// Erase removes the last buffered character. Reports whether one was removed.
func (s *Selector) Erase() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buffer) == 0 {
		return false
	}
	s.buffer = s.buffer[:len(s.buffer)-1]
	return true
}

// parseAddress accepts only ASCII digits forming a value in 0..255
func parseAddress(text string) (uint8, bool) {
	if text == "" {
		return 0, false
	}
	for i := 0; i < len(text); i++ {
		if text[i] < '0' || text[i] > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseUint(text, 10, 8)
	if err != nil {
		return 0, false
	}
	return uint8(v), true
}
