// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package encbus

import "time"

// Frame layout
const (
	FuncReadHolding = 0x03 // Read holding registers
	exceptionFlag   = 0x80 // Set on the echoed function code of an exception reply

	RequestSize  = 8   // address, function, start(2), count(2), checksum(2)
	MaxFrameSize = 256 // Receive window for a single response frame

	headerSize   = 3 // address, function, byte count
	checksumSize = 2
	dataOffset   = headerSize

	minResponseSize = headerSize + checksumSize
)

// Encoder register map
const (
	RegAngle uint16 = 0x0041 // Raw angle, 0..4095
	RegSpeed uint16 = 0x0042 // Signed speed x100 RPM, two registers
	RegTurns uint16 = 0x0044 // Signed revolution counter in the low byte

	AngleRegisters uint16 = 1
	SpeedRegisters uint16 = 2
	TurnsRegisters uint16 = 1
)

// Scaling
const (
	AngleResolution = 4096
	SpeedScale      = 100
)

// Deployment defaults
const (
	DefaultBaudRate = 1_000_000
	DefaultTimeout  = 10 * time.Millisecond

	FirstAddress uint8 = 1
	LastAddress  uint8 = 10
)
