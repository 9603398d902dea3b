// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"sync"
	"time"

	"github.com/Thermoquad/rotastat/pkg/encbus"
)

// Row is one device's entry in the state table
type Row struct {
	Record     encbus.Record
	Generation uint64    // Number of committed polls, 0 until the first one
	UpdatedAt  time.Time // Time of the last commit
	Failures   int       // Consecutive failed polls
	Stale      bool
	LastErr    error
}

// Table holds the last-known record of every registered device, indexed by
// registry position. Records are replaced whole under a single lock.
type Table struct {
	mu   sync.Mutex
	reg  *Registry
	rows []Row
}

// NewTable creates a table with a zeroed record per registered device
func NewTable(reg *Registry) *Table {
	rows := make([]Row, reg.Len())
	for i := range rows {
		rows[i].Record = encbus.Record{Address: reg.Address(i)}
	}
	return &Table{reg: reg, rows: rows}
}

// Registry returns the registry the table was sized from
func (t *Table) Registry() *Registry {
	return t.reg
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Get returns the record at position pos
func (t *Table) Get(pos int) (encbus.Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pos < 0 || pos >= len(t.rows) {
		return encbus.Record{}, false
	}
	return t.rows[pos].Record, true
}

// Row returns a copy of the full row at position pos
func (t *Table) Row(pos int) (Row, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pos < 0 || pos >= len(t.rows) {
		return Row{}, false
	}
	return t.rows[pos], true
}

// Commit replaces the record at pos and clears its failure state.
// Reports whether the row was stale before.
func (t *Table) Commit(pos int, rec encbus.Record) (wasStale bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pos < 0 || pos >= len(t.rows) {
		return false
	}
	row := &t.rows[pos]
	wasStale = row.Stale
	rec.Address = row.Record.Address
	row.Record = rec
	row.Generation++
	row.UpdatedAt = time.Now()
	row.Failures = 0
	row.Stale = false
	row.LastErr = nil
	return wasStale
}

// MarkFailure records a failed poll at pos, leaving the record untouched.
// The row turns stale once staleAfter consecutive failures accumulate
// (staleAfter <= 0 disables staleness). Reports whether this call made it stale.
func (t *Table) MarkFailure(pos int, err error, staleAfter int) (becameStale bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pos < 0 || pos >= len(t.rows) {
		return false
	}
	row := &t.rows[pos]
	row.Failures++
	row.LastErr = err
	if staleAfter > 0 && !row.Stale && row.Failures >= staleAfter {
		row.Stale = true
		return true
	}
	return false
}

// Snapshot returns a copy of every row
func (t *Table) Snapshot() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Row, len(t.rows))
	copy(out, t.rows)
	return out
}
