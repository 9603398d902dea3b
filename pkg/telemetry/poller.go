// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"context"
	"time"

	"github.com/Thermoquad/rotastat/pkg/encbus"
	"github.com/Thermoquad/rotastat/pkg/observability"
	"github.com/rs/zerolog/log"
)

// DefaultStaleAfter is the consecutive failure count that marks a device stale
const DefaultStaleAfter = 5

// Poller keeps the state table fresh by sweeping every registered device
type Poller struct {
	reader     encbus.RegisterReader
	table      *Table
	staleAfter int
	pause      time.Duration

	onSweep func(SweepResult)
}

// SweepResult summarizes one pass over the registry
type SweepResult struct {
	Updated  int
	Failed   int
	Duration time.Duration
}

// PollerOption configures a Poller
type PollerOption func(*Poller)

// WithStaleAfter sets the consecutive failure limit (0 disables staleness)
func WithStaleAfter(n int) PollerOption {
	return func(p *Poller) {
		p.staleAfter = n
	}
}

// WithPause inserts a delay between sweeps (none by default)
func WithPause(d time.Duration) PollerOption {
	return func(p *Poller) {
		p.pause = d
	}
}

// WithSweepHook calls fn after every completed sweep
func WithSweepHook(fn func(SweepResult)) PollerOption {
	return func(p *Poller) {
		p.onSweep = fn
	}
}

// NewPoller creates a poller over reader that writes into table
func NewPoller(reader encbus.RegisterReader, table *Table, opts ...PollerOption) *Poller {
	p := &Poller{
		reader:     reader,
		table:      table,
		staleAfter: DefaultStaleAfter,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Sweep polls every device once in registry order. Bus I/O for a device
// happens outside the table lock; a complete record is then committed in
// one step. A device whose reads fail keeps its previous record.
func (p *Poller) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	start := time.Now()
	reg := p.table.Registry()

	for pos := 0; pos < reg.Len(); pos++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		addr := reg.Address(pos)

		rec, err := encbus.ReadRecord(p.reader, addr)
		if err != nil {
			res.Failed++
			observability.RecordDeviceFailure(addr)
			log.Debug().Err(err).Uint8("address", addr).Msg("poll failed")
			if p.table.MarkFailure(pos, err, p.staleAfter) {
				observability.SetDeviceStale(addr, true)
				log.Warn().Err(err).Uint8("address", addr).Int("failures", p.staleAfter).Msg("device stale")
			}
			continue
		}

		res.Updated++
		if p.table.Commit(pos, rec) {
			observability.SetDeviceStale(addr, false)
			log.Info().Uint8("address", addr).Msg("device recovered")
		}
	}

	res.Duration = time.Since(start)
	observability.RecordSweep(res.Duration)
	if p.onSweep != nil {
		p.onSweep(res)
	}
	return res, nil
}

// Run sweeps until ctx is cancelled
func (p *Poller) Run(ctx context.Context) error {
	for {
		if _, err := p.Sweep(ctx); err != nil {
			return err
		}
		if p.pause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.pause):
			}
		}
	}
}
