// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package encbus

import (
	"encoding/binary"
	"fmt"
)

// RecordSize is the size of a serialized telemetry record
const RecordSize = 8

// Record is the last-known telemetry of one encoder
type Record struct {
	Address  uint8
	AngleRaw uint16 // 0..4095 over a full turn
	Turns    int8   // Signed revolution counter, wraps
	SpeedRaw int32  // RPM x100
}

// Degrees maps the raw angle onto 0..360
func (r Record) Degrees() float64 {
	return float64(r.AngleRaw) * 360.0 / AngleResolution
}

// RPM returns the scaled speed
func (r Record) RPM() float64 {
	return float64(r.SpeedRaw) / SpeedScale
}

// MarshalBinary serializes the record as
// [address, angle_hi, angle_lo, turns, speed_b0..b3] (big-endian speed).
func (r Record) MarshalBinary() ([]byte, error) {
	return r.Bytes(), nil
}

// Bytes is MarshalBinary without the error
func (r Record) Bytes() []byte {
	b := make([]byte, RecordSize)
	b[0] = r.Address
	binary.BigEndian.PutUint16(b[1:3], r.AngleRaw)
	b[3] = byte(r.Turns)
	binary.BigEndian.PutUint32(b[4:8], uint32(r.SpeedRaw))
	return b
}

// UnmarshalRecord parses a serialized telemetry record
func UnmarshalRecord(b []byte) (Record, error) {
	if len(b) < RecordSize {
		return Record{}, fmt.Errorf("%w: record is %d bytes, need %d", ErrShortFrame, len(b), RecordSize)
	}
	return Record{
		Address:  b[0],
		AngleRaw: binary.BigEndian.Uint16(b[1:3]),
		Turns:    int8(b[3]),
		SpeedRaw: int32(binary.BigEndian.Uint32(b[4:8])),
	}, nil
}

// DecodeAngle extracts the raw angle from the register bytes of an angle read
func DecodeAngle(data []byte) (uint16, error) {
	if len(data) < 2 {
		return 0, fmt.Errorf("%w: angle needs 2 bytes, got %d", ErrShortFrame, len(data))
	}
	return binary.BigEndian.Uint16(data[0:2]), nil
}

// DecodeTurns extracts the revolution counter, carried in the low byte of
// the turn-count register.
func DecodeTurns(data []byte) (int8, error) {
	if len(data) < 2 {
		return 0, fmt.Errorf("%w: turn count needs 2 bytes, got %d", ErrShortFrame, len(data))
	}
	return int8(data[1]), nil
}

// DecodeSpeed extracts the signed speed from the two speed registers
func DecodeSpeed(data []byte) (int32, error) {
	if len(data) < 4 {
		return 0, fmt.Errorf("%w: speed needs 4 bytes, got %d", ErrShortFrame, len(data))
	}
	return int32(binary.BigEndian.Uint32(data[0:4])), nil
}
