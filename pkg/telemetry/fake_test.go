// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"

	"github.com/Thermoquad/rotastat/pkg/encbus"
)

var errBus = errors.New("bus error")

type fakeDevice struct {
	speed int32
	turns int8
	angle uint16

	failOn uint16 // Register that returns a transport error, 0 for none
	silent bool
}

// fakeBus answers register reads for a set of scripted devices
type fakeBus struct {
	mu      sync.Mutex
	devices map[uint8]*fakeDevice
	probes  []uint8
}

func newFakeBus(addresses ...uint8) *fakeBus {
	b := &fakeBus{devices: make(map[uint8]*fakeDevice)}
	for _, a := range addresses {
		b.devices[a] = &fakeDevice{}
	}
	return b
}

func (b *fakeBus) set(address uint8, fn func(d *fakeDevice)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b.devices[address])
}

func (b *fakeBus) ReadRegisters(address uint8, start, count uint16) (*encbus.Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probes = append(b.probes, address)

	d, ok := b.devices[address]
	if !ok || d.silent {
		return encbus.NewResponse(nil), nil
	}
	if d.failOn != 0 && d.failOn == start {
		return nil, errBus
	}

	var data []byte
	switch start {
	case encbus.RegSpeed:
		data = binary.BigEndian.AppendUint32(nil, uint32(d.speed))
	case encbus.RegTurns:
		data = []byte{0x00, byte(d.turns)}
	default:
		data = binary.BigEndian.AppendUint16(nil, d.angle)
	}
	frame := append([]byte{address, encbus.FuncReadHolding, byte(len(data))}, data...)
	return encbus.NewResponse(encbus.AppendChecksum(frame)), nil
}

// generationBus returns the same counter in every field of a device and
// bumps it after the last read of each record.
type generationBus struct {
	gen map[uint8]uint16
}

func (b *generationBus) ReadRegisters(address uint8, start, count uint16) (*encbus.Response, error) {
	v := b.gen[address] % 100
	var data []byte
	switch start {
	case encbus.RegSpeed:
		data = binary.BigEndian.AppendUint32(nil, uint32(v))
	case encbus.RegTurns:
		data = []byte{0x00, byte(v)}
	case encbus.RegAngle:
		data = binary.BigEndian.AppendUint16(nil, v)
		b.gen[address]++
	}
	frame := append([]byte{address, encbus.FuncReadHolding, byte(len(data))}, data...)
	return encbus.NewResponse(encbus.AppendChecksum(frame)), nil
}

type published struct {
	topic    string
	metadata map[string]string
	payload  []byte
}

// recordingSink keeps every published message
type recordingSink struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (s *recordingSink) Publish(topic string, metadata map[string]string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, published{topic, metadata, append([]byte(nil), payload...)})
	return nil
}

func (s *recordingSink) byTopic(topic string) []published {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []published
	for _, m := range s.msgs {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// sliceSource replays a fixed list of events, then reports the end of stream
type sliceSource struct {
	events []Event
}

func (s *sliceSource) Receive(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	if len(s.events) == 0 {
		return Event{}, io.EOF
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

type recordingRenderer struct {
	mu    sync.Mutex
	lines [][]string
}

func (r *recordingRenderer) Render(lines []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, lines)
	return nil
}
