// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package keys

import tea "github.com/charmbracelet/bubbletea"

// FromTeaKey maps a Bubble Tea key message onto a key symbol
func FromTeaKey(msg tea.KeyMsg) (string, bool) {
	switch msg.Type {
	case tea.KeyUp:
		return Next, true
	case tea.KeyDown:
		return Previous, true
	case tea.KeyEnter:
		return Confirm, true
	case tea.KeyBackspace:
		return Erase, true
	case tea.KeySpace:
		return " ", true
	case tea.KeyRunes:
		if len(msg.Runes) == 1 && IsPrintable(msg.Runes[0]) && !msg.Alt {
			return string(msg.Runes[0]), true
		}
	}
	return "", false
}
