// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package encbus

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// RTUConfig configures the goburrow-backed reader
type RTUConfig struct {
	Port     string
	BaudRate int
	Timeout  time.Duration
}

// RTUReader reads registers through a goburrow RTU client instead of the
// native transaction loop. It serializes requests because it mutates
// SlaveId per read.
type RTUReader struct {
	mu       sync.Mutex
	handler  *modbus.RTUClientHandler
	client   modbus.Client
	stats    *Statistics
	observer Observer
}

// NewRTUReader opens the serial line and connects the RTU client
func NewRTUReader(cfg RTUConfig, opts ...BusOption) (*RTUReader, error) {
	if cfg.Port == "" {
		return nil, errors.New("rtu: port required")
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	h := modbus.NewRTUClientHandler(cfg.Port)
	h.BaudRate = cfg.BaudRate
	h.DataBits = 8
	h.Parity = "N"
	h.StopBits = 1
	h.Timeout = cfg.Timeout

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("rtu: connect %s: %w", cfg.Port, err)
	}

	// Options are shared with Bus; only statistics and observer apply here
	b := NewBus(nil, opts...)

	return &RTUReader{
		handler:  h,
		client:   modbus.NewClient(h),
		stats:    b.stats,
		observer: b.observer,
	}, nil
}

// Close releases the serial line
func (r *RTUReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handler.Close()
}

// ReadRegisters performs one read. The client validates the reply itself,
// so the returned Response is re-framed from the register bytes with a
// freshly computed checksum. A timeout is reported as a silent device.
func (r *RTUReader) ReadRegisters(address uint8, start, count uint16) (*Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handler.SlaveId = address

	began := time.Now()
	data, err := r.client.ReadHoldingRegisters(start, count)
	elapsed := time.Since(began)

	if err != nil {
		var mbErr *modbus.ModbusError
		switch {
		case isTimeout(err):
			r.record(address, start, OutcomeSilent, elapsed)
			return NewResponse(nil), nil
		case errors.As(err, &mbErr):
			r.record(address, start, OutcomeInvalid, elapsed)
			return nil, &ValidationError{
				Type:    AnomalyException,
				Message: fmt.Sprintf("address %d raised exception 0x%02X", address, mbErr.ExceptionCode),
				Details: map[string]interface{}{"code": mbErr.ExceptionCode},
			}
		default:
			r.record(address, start, OutcomeError, elapsed)
			return nil, fmt.Errorf("rtu: read address %d register 0x%04X: %w", address, start, err)
		}
	}

	frame := make([]byte, 0, headerSize+len(data)+checksumSize)
	frame = append(frame, address, FuncReadHolding, byte(len(data)))
	frame = append(frame, data...)
	frame = AppendChecksum(frame)

	r.record(address, start, OutcomeData, elapsed)
	return NewResponse(frame), nil
}

func (r *RTUReader) record(address uint8, register uint16, outcome Outcome, elapsed time.Duration) {
	if r.stats != nil {
		r.stats.Record(outcome, elapsed)
	}
	if r.observer != nil {
		r.observer.ObserveTransaction(address, register, outcome, elapsed)
	}
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return true
	}
	// goburrow reports an unanswered request as "serial: timeout"
	return strings.Contains(err.Error(), "timeout")
}
