// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package encbus

import (
	"encoding/binary"
	"time"
)

// Request is a fixed-size read request frame
type Request [RequestSize]byte

// BuildRequest builds a read-holding-registers request with its checksum
// appended: [address, 0x03, start_hi, start_lo, count_hi, count_lo, crc_lo, crc_hi].
func BuildRequest(address uint8, start, count uint16) Request {
	var r Request
	r[0] = address
	r[1] = FuncReadHolding
	binary.BigEndian.PutUint16(r[2:4], start)
	binary.BigEndian.PutUint16(r[4:6], count)
	crc := Checksum(r[:6])
	r[6] = byte(crc & 0xFF)
	r[7] = byte(crc >> 8)
	return r
}

// Address returns the target device address
func (r Request) Address() uint8 {
	return r[0]
}

// Function returns the function code
func (r Request) Function() uint8 {
	return r[1]
}

// Start returns the first register address
func (r Request) Start() uint16 {
	return binary.BigEndian.Uint16(r[2:4])
}

// Count returns the number of registers requested
func (r Request) Count() uint16 {
	return binary.BigEndian.Uint16(r[4:6])
}

// CRC returns the request checksum as sent on the wire
func (r Request) CRC() uint16 {
	return uint16(r[6]) | uint16(r[7])<<8
}

// ExpectedResponseSize returns the size of a well-formed reply to this request
func (r Request) ExpectedResponseSize() int {
	return minResponseSize + 2*int(r.Count())
}

// Response is the raw reply to a request.
// A zero-length response means the device stayed silent within the read timeout.
type Response struct {
	raw       []byte
	timestamp time.Time
}

// NewResponse wraps raw frame bytes in a Response
func NewResponse(raw []byte) *Response {
	return &Response{
		raw:       raw,
		timestamp: time.Now(),
	}
}

// Raw returns the received bytes
func (r *Response) Raw() []byte {
	return r.raw
}

// Len returns the number of received bytes
func (r *Response) Len() int {
	return len(r.raw)
}

// Empty reports whether the device stayed silent
func (r *Response) Empty() bool {
	return len(r.raw) == 0
}

// Timestamp returns when the response was assembled
func (r *Response) Timestamp() time.Time {
	return r.timestamp
}

// Address returns the echoed device address (0 for short frames)
func (r *Response) Address() uint8 {
	if len(r.raw) < 1 {
		return 0
	}
	return r.raw[0]
}

// Function returns the echoed function code (0 for short frames)
func (r *Response) Function() uint8 {
	if len(r.raw) < 2 {
		return 0
	}
	return r.raw[1]
}

// ByteCount returns the declared payload length (0 for short frames)
func (r *Response) ByteCount() int {
	if len(r.raw) < headerSize {
		return 0
	}
	return int(r.raw[2])
}

// Data returns the register bytes, starting at offset 3 of the frame.
// The slice is clamped to what was actually received.
func (r *Response) Data() []byte {
	if len(r.raw) <= dataOffset {
		return nil
	}
	end := dataOffset + r.ByteCount()
	if end > len(r.raw) {
		end = len(r.raw)
	}
	return r.raw[dataOffset:end]
}

// CRC returns the checksum carried by the frame. ok is false when the frame
// is too short to contain one.
func (r *Response) CRC() (crc uint16, ok bool) {
	end := r.checksumOffset()
	if end < 0 || end+checksumSize > len(r.raw) {
		return 0, false
	}
	return uint16(r.raw[end]) | uint16(r.raw[end+1])<<8, true
}

// ComputedCRC returns the checksum calculated over the received header and
// data, for comparison against CRC.
func (r *Response) ComputedCRC() uint16 {
	end := r.checksumOffset()
	if end < 0 || end > len(r.raw) {
		return Checksum(r.raw)
	}
	return Checksum(r.raw[:end])
}

// checksumOffset locates the checksum for normal and exception replies
func (r *Response) checksumOffset() int {
	if len(r.raw) < headerSize {
		return -1
	}
	if r.Function()&exceptionFlag != 0 {
		return headerSize
	}
	return headerSize + r.ByteCount()
}
