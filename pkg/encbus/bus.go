// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package encbus

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrSilent is returned by register reads when the device did not answer
var ErrSilent = errors.New("device silent")

// Outcome classifies one transaction
type Outcome int

const (
	OutcomeData    Outcome = iota // Responded with data
	OutcomeSilent                 // Responded with nothing within the timeout
	OutcomeError                  // Transport failure
	OutcomeInvalid                // Responded with a malformed frame
)

// String returns the outcome label
func (o Outcome) String() string {
	switch o {
	case OutcomeData:
		return "data"
	case OutcomeSilent:
		return "silent"
	case OutcomeError:
		return "error"
	case OutcomeInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// RegisterReader is the register-level view of the bus used by discovery
// and polling. Implementations serialize access to the shared line.
type RegisterReader interface {
	ReadRegisters(address uint8, start, count uint16) (*Response, error)
}

// Observer receives one callback per completed transaction
type Observer interface {
	ObserveTransaction(address uint8, register uint16, outcome Outcome, elapsed time.Duration)
}

// Bus runs transactions over a Transport
type Bus struct {
	mu       sync.Mutex
	t        Transport
	validate bool
	stats    *Statistics
	observer Observer
}

// BusOption configures a Bus
type BusOption func(*Bus)

// WithValidation enables or disables reply validation (enabled by default)
func WithValidation(enabled bool) BusOption {
	return func(b *Bus) {
		b.validate = enabled
	}
}

// WithStatistics records every transaction into stats
func WithStatistics(stats *Statistics) BusOption {
	return func(b *Bus) {
		b.stats = stats
	}
}

// WithObserver reports every transaction to o
func WithObserver(o Observer) BusOption {
	return func(b *Bus) {
		b.observer = o
	}
}

// NewBus creates a bus driver on top of a transport
func NewBus(t Transport, opts ...BusOption) *Bus {
	b := &Bus{
		t:        t,
		validate: true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Statistics returns the attached statistics tracker (may be nil)
func (b *Bus) Statistics() *Statistics {
	return b.stats
}

// ReadRegisters performs one transaction. A silent device yields an empty
// Response and a nil error; a malformed reply is returned together with
// its *ValidationError when validation is enabled.
func (b *Bus) ReadRegisters(address uint8, start, count uint16) (*Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	req := BuildRequest(address, start, count)
	began := time.Now()
	resp, err := Exchange(b.t, req)
	elapsed := time.Since(began)

	outcome := OutcomeData
	switch {
	case err != nil:
		outcome = OutcomeError
	case resp.Empty():
		outcome = OutcomeSilent
	case b.validate:
		if verr := resp.Validate(req); verr != nil {
			outcome = OutcomeInvalid
			err = verr
		}
	}

	b.record(address, start, outcome, elapsed)
	return resp, err
}

func (b *Bus) record(address uint8, register uint16, outcome Outcome, elapsed time.Duration) {
	if b.stats != nil {
		b.stats.Record(outcome, elapsed)
	}
	if b.observer != nil {
		b.observer.ObserveTransaction(address, register, outcome, elapsed)
	}
}

// readData runs a read and insists on a non-empty reply
func readData(r RegisterReader, address uint8, start, count uint16) ([]byte, error) {
	resp, err := r.ReadRegisters(address, start, count)
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Empty() {
		return nil, fmt.Errorf("%w: address %d register 0x%04X", ErrSilent, address, start)
	}
	return resp.Data(), nil
}

// ReadAngle reads the raw angle register of one encoder
func ReadAngle(r RegisterReader, address uint8) (uint16, error) {
	data, err := readData(r, address, RegAngle, AngleRegisters)
	if err != nil {
		return 0, err
	}
	return DecodeAngle(data)
}

// ReadTurns reads the revolution counter of one encoder
func ReadTurns(r RegisterReader, address uint8) (int8, error) {
	data, err := readData(r, address, RegTurns, TurnsRegisters)
	if err != nil {
		return 0, err
	}
	return DecodeTurns(data)
}

// ReadSpeed reads the two speed registers of one encoder
func ReadSpeed(r RegisterReader, address uint8) (int32, error) {
	data, err := readData(r, address, RegSpeed, SpeedRegisters)
	if err != nil {
		return 0, err
	}
	return DecodeSpeed(data)
}

// ReadRecord reads speed, turn count and angle, in that order, and returns
// a complete record. Any failing sub-read fails the whole record.
func ReadRecord(r RegisterReader, address uint8) (Record, error) {
	rec := Record{Address: address}

	speed, err := ReadSpeed(r, address)
	if err != nil {
		return Record{}, fmt.Errorf("read speed: %w", err)
	}
	rec.SpeedRaw = speed

	turns, err := ReadTurns(r, address)
	if err != nil {
		return Record{}, fmt.Errorf("read turns: %w", err)
	}
	rec.Turns = turns

	angle, err := ReadAngle(r, address)
	if err != nil {
		return Record{}, fmt.Errorf("read angle: %w", err)
	}
	rec.AngleRaw = angle

	return rec, nil
}
