// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package encbus

import (
	"fmt"
	"strings"
)

// FormatHex renders bytes as space-separated uppercase hex
func FormatHex(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", v)
	}
	return sb.String()
}

// FormatRegister returns the human-readable name for a register address
func FormatRegister(reg uint16) string {
	switch reg {
	case RegAngle:
		return "ANGLE"
	case RegSpeed:
		return "SPEED"
	case RegTurns:
		return "TURNS"
	default:
		return fmt.Sprintf("0x%04X", reg)
	}
}

// FormatRequest formats a request into a human-readable string
func FormatRequest(r Request) string {
	return fmt.Sprintf("-> addr=%d fn=0x%02X %s count=%d [%s]",
		r.Address(), r.Function(), FormatRegister(r.Start()), r.Count(), FormatHex(r[:]))
}

// FormatResponse formats a response into a human-readable string
func FormatResponse(r *Response) string {
	timestamp := r.Timestamp().Format("15:04:05.000")
	if r.Empty() {
		return fmt.Sprintf("[%s] <- (silent)", timestamp)
	}

	result := fmt.Sprintf("[%s] <- addr=%d fn=0x%02X len=%d [%s]",
		timestamp, r.Address(), r.Function(), r.Len(), FormatHex(r.Raw()))
	if crc, ok := r.CRC(); ok {
		result += fmt.Sprintf(" crc=0x%04X", crc)
	}
	return result
}

// FormatRecord formats a telemetry record on one line
func FormatRecord(r Record) string {
	return fmt.Sprintf("ID %2d  speed=%9.2f RPM  turns=%4d  angle=%6.2f'",
		r.Address, r.RPM(), r.Turns, r.Degrees())
}

// FormatDisplay renders the five display lines for the selected encoder and
// the current input buffer.
func FormatDisplay(r Record, buffer string) []string {
	return []string{
		fmt.Sprintf("SPEED: %.2f RPM", r.RPM()),
		fmt.Sprintf("TURNS: %d", r.Turns),
		fmt.Sprintf("ANGLE: %.2f'", r.Degrees()),
		fmt.Sprintf("ID: %d", r.Address),
		"$ " + buffer,
	}
}
