// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package encbus

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

// scriptedPort answers known requests with canned replies, delivering them
// in chunks of at most chunk bytes per Read.
type scriptedPort struct {
	replies map[Request][]byte
	chunk   int

	writeErr   error
	readErr    error
	shortWrite bool

	pending []byte
	written [][]byte
	resets  int
}

func newScriptedPort() *scriptedPort {
	return &scriptedPort{replies: make(map[Request][]byte)}
}

func (p *scriptedPort) answer(req Request, reply []byte) {
	p.replies[req] = reply
}

func (p *scriptedPort) Write(b []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	frame := append([]byte(nil), b...)
	p.written = append(p.written, frame)
	if p.shortWrite {
		return len(b) - 1, nil
	}
	var req Request
	copy(req[:], b)
	p.pending = append(p.pending, p.replies[req]...)
	return len(b), nil
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.pending) == 0 {
		return 0, nil
	}
	n := len(p.pending)
	if p.chunk > 0 && n > p.chunk {
		n = p.chunk
	}
	n = copy(b, p.pending[:n])
	p.pending = p.pending[n:]
	return n, nil
}

func (p *scriptedPort) ResetInputBuffer() error {
	p.resets++
	p.pending = nil
	return nil
}

// ============================================================
// Transact
// ============================================================

func TestTransact_Data(t *testing.T) {
	port := newScriptedPort()
	reply := AppendChecksum([]byte{0x01, 0x03, 0x02, 0x01, 0x2C})
	port.answer(BuildRequest(1, RegAngle, 1), reply)

	resp, err := Transact(port, 1, RegAngle, 1)
	if err != nil {
		t.Fatalf("Transact failed: %v", err)
	}
	if !bytes.Equal(resp.Raw(), reply) {
		t.Errorf("Raw() = % X, want % X", resp.Raw(), reply)
	}
	if len(port.written) != 1 {
		t.Fatalf("writes = %d, want 1", len(port.written))
	}
	want := []byte{0x01, 0x03, 0x00, 0x41, 0x00, 0x01, 0xD4, 0x1E}
	if !bytes.Equal(port.written[0], want) {
		t.Errorf("written = % X, want % X", port.written[0], want)
	}
	if port.resets != 1 {
		t.Errorf("resets = %d, want 1", port.resets)
	}
}

func TestTransact_PartialReads(t *testing.T) {
	port := newScriptedPort()
	port.chunk = 2
	reply := AppendChecksum([]byte{0x01, 0x03, 0x04, 0x00, 0x00, 0x27, 0x10})
	port.answer(BuildRequest(1, RegSpeed, 2), reply)

	resp, err := Transact(port, 1, RegSpeed, 2)
	if err != nil {
		t.Fatalf("Transact failed: %v", err)
	}
	if resp.Len() != len(reply) {
		t.Errorf("Len() = %d, want %d", resp.Len(), len(reply))
	}
}

func TestTransact_Silent(t *testing.T) {
	port := newScriptedPort()

	resp, err := Transact(port, 3, RegAngle, 1)
	if err != nil {
		t.Fatalf("Transact failed: %v", err)
	}
	if !resp.Empty() {
		t.Errorf("Empty() = false, want true (got % X)", resp.Raw())
	}
}

func TestTransact_WriteError(t *testing.T) {
	port := newScriptedPort()
	port.writeErr = errors.New("port closed")

	resp, err := Transact(port, 1, RegAngle, 1)
	if err == nil {
		t.Fatal("Transact succeeded, want error")
	}
	if resp != nil {
		t.Errorf("resp = %v, want nil", resp)
	}
	if !errors.Is(err, port.writeErr) {
		t.Errorf("error = %v, want wrapping %v", err, port.writeErr)
	}
}

func TestTransact_ShortWrite(t *testing.T) {
	port := newScriptedPort()
	port.shortWrite = true

	_, err := Transact(port, 1, RegAngle, 1)
	if !errors.Is(err, ErrShortWrite) {
		t.Errorf("error = %v, want ErrShortWrite", err)
	}
}

func TestTransact_ReadError(t *testing.T) {
	port := newScriptedPort()
	port.readErr = errors.New("device unplugged")

	_, err := Transact(port, 1, RegAngle, 1)
	if !errors.Is(err, port.readErr) {
		t.Errorf("error = %v, want wrapping %v", err, port.readErr)
	}
}

// ============================================================
// Bus
// ============================================================

type recordingObserver struct {
	outcomes []Outcome
}

func (o *recordingObserver) ObserveTransaction(address uint8, register uint16, outcome Outcome, elapsed time.Duration) {
	o.outcomes = append(o.outcomes, outcome)
}

func TestBus_ReadRegisters(t *testing.T) {
	port := newScriptedPort()
	port.answer(BuildRequest(1, RegAngle, 1), AppendChecksum([]byte{0x01, 0x03, 0x02, 0x01, 0x2C}))
	port.answer(BuildRequest(2, RegAngle, 1), []byte{0x02, 0x03, 0x02, 0x01, 0x2C, 0x00, 0x00})

	stats := NewStatistics()
	obs := &recordingObserver{}
	bus := NewBus(port, WithStatistics(stats), WithObserver(obs))

	if _, err := bus.ReadRegisters(1, RegAngle, 1); err != nil {
		t.Errorf("read address 1: %v", err)
	}

	resp, err := bus.ReadRegisters(2, RegAngle, 1)
	if !errors.Is(err, ErrChecksum) {
		t.Errorf("read address 2 error = %v, want ErrChecksum", err)
	}
	if resp == nil || resp.Empty() {
		t.Error("read address 2 should still return the raw reply")
	}

	resp, err = bus.ReadRegisters(9, RegAngle, 1)
	if err != nil {
		t.Errorf("read address 9: %v", err)
	}
	if !resp.Empty() {
		t.Error("read address 9 should be silent")
	}

	want := []Outcome{OutcomeData, OutcomeInvalid, OutcomeSilent}
	if len(obs.outcomes) != len(want) {
		t.Fatalf("observed %d transactions, want %d", len(obs.outcomes), len(want))
	}
	for i := range want {
		if obs.outcomes[i] != want[i] {
			t.Errorf("outcome[%d] = %s, want %s", i, obs.outcomes[i], want[i])
		}
	}

	c := stats.Snapshot()
	if c.Transactions != 3 || c.Responses != 1 || c.Invalid != 1 || c.Silent != 1 {
		t.Errorf("counters = %+v, want 3 transactions / 1 response / 1 invalid / 1 silent", c)
	}
}

func TestBus_ValidationDisabled(t *testing.T) {
	port := newScriptedPort()
	port.answer(BuildRequest(1, RegAngle, 1), []byte{0x01, 0x03, 0x02, 0x01, 0x2C, 0x00, 0x00})

	bus := NewBus(port, WithValidation(false))
	resp, err := bus.ReadRegisters(1, RegAngle, 1)
	if err != nil {
		t.Fatalf("ReadRegisters failed: %v", err)
	}
	crc, ok := resp.CRC()
	if !ok || crc != 0 {
		t.Errorf("CRC() = 0x%04X, %v; want 0x0000, true", crc, ok)
	}
}

func TestReadRecord(t *testing.T) {
	port := newScriptedPort()
	port.answer(BuildRequest(4, RegSpeed, 2), AppendChecksum([]byte{0x04, 0x03, 0x04, 0xFF, 0xFF, 0xFC, 0x18}))
	port.answer(BuildRequest(4, RegTurns, 1), AppendChecksum([]byte{0x04, 0x03, 0x02, 0x00, 0xFE}))
	port.answer(BuildRequest(4, RegAngle, 1), AppendChecksum([]byte{0x04, 0x03, 0x02, 0x01, 0x2C}))

	rec, err := ReadRecord(NewBus(port), 4)
	if err != nil {
		t.Fatalf("ReadRecord failed: %v", err)
	}
	want := Record{Address: 4, AngleRaw: 300, Turns: -2, SpeedRaw: -1000}
	if rec != want {
		t.Errorf("ReadRecord() = %+v, want %+v", rec, want)
	}

	// Writes go out in speed, turns, angle order
	if len(port.written) != 3 {
		t.Fatalf("writes = %d, want 3", len(port.written))
	}
	order := []uint16{RegSpeed, RegTurns, RegAngle}
	for i, reg := range order {
		var req Request
		copy(req[:], port.written[i])
		if req.Start() != reg {
			t.Errorf("write[%d] register = %s, want %s", i, FormatRegister(req.Start()), FormatRegister(reg))
		}
	}
}

func TestReadRecord_SilentFailsWhole(t *testing.T) {
	port := newScriptedPort()
	port.answer(BuildRequest(4, RegSpeed, 2), AppendChecksum([]byte{0x04, 0x03, 0x04, 0x00, 0x00, 0x27, 0x10}))

	_, err := ReadRecord(NewBus(port), 4)
	if !errors.Is(err, ErrSilent) {
		t.Errorf("ReadRecord() error = %v, want ErrSilent", err)
	}
}
