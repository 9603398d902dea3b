// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package encbus

import (
	"fmt"
	"sync"
	"time"
)

// Counters is a point-in-time copy of bus statistics
type Counters struct {
	StartTime time.Time
	Elapsed   time.Duration

	Transactions uint64
	Responses    uint64
	Silent       uint64
	Errors       uint64
	Invalid      uint64

	MinLatency   time.Duration
	MaxLatency   time.Duration
	TotalLatency time.Duration // Sum over responded transactions
}

// AverageLatency returns the mean round trip of responded transactions
func (c Counters) AverageLatency() time.Duration {
	if c.Responses == 0 {
		return 0
	}
	return c.TotalLatency / time.Duration(c.Responses)
}

// TransactionRate returns transactions per second
func (c Counters) TransactionRate() float64 {
	if c.Elapsed <= 0 {
		return 0
	}
	return float64(c.Transactions) / c.Elapsed.Seconds()
}

// ErrorRate returns failed transactions (silent, error, invalid) per second
func (c Counters) ErrorRate() float64 {
	if c.Elapsed <= 0 {
		return 0
	}
	return float64(c.Silent+c.Errors+c.Invalid) / c.Elapsed.Seconds()
}

// String returns a formatted statistics summary
func (c Counters) String() string {
	var respondedPercent float64
	if c.Transactions > 0 {
		respondedPercent = float64(c.Responses) * 100.0 / float64(c.Transactions)
	}

	result := fmt.Sprintf("=== Bus Statistics (%.0f seconds) ===\n", c.Elapsed.Seconds())
	result += fmt.Sprintf("Transactions:    %8d\n", c.Transactions)
	result += fmt.Sprintf("Responded:       %8d (%.1f%%)\n", c.Responses, respondedPercent)

	if c.Silent > 0 {
		result += fmt.Sprintf("Silent:          %8d\n", c.Silent)
	}
	if c.Errors > 0 {
		result += fmt.Sprintf("Transport Errors:%8d\n", c.Errors)
	}
	if c.Invalid > 0 {
		result += fmt.Sprintf("Invalid Frames:  %8d\n", c.Invalid)
	}

	if c.Responses > 0 {
		result += fmt.Sprintf("Latency min/avg/max: %.3f / %.3f / %.3f ms\n",
			ms(c.MinLatency), ms(c.AverageLatency()), ms(c.MaxLatency))
	}

	result += fmt.Sprintf("Transaction Rate:%8.1f tx/sec\n", c.TransactionRate())
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", c.ErrorRate())
	result += "====================================\n"

	return result
}

func ms(d time.Duration) float64 {
	return d.Seconds() * 1000.0
}

// Statistics tracks transaction outcomes and round-trip latency
type Statistics struct {
	mu sync.Mutex
	c  Counters
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{c: Counters{StartTime: time.Now()}}
}

// Record accounts for one transaction
func (s *Statistics) Record(outcome Outcome, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.c.Transactions++
	switch outcome {
	case OutcomeData:
		s.c.Responses++
		s.c.TotalLatency += latency
		if s.c.MinLatency == 0 || latency < s.c.MinLatency {
			s.c.MinLatency = latency
		}
		if latency > s.c.MaxLatency {
			s.c.MaxLatency = latency
		}
	case OutcomeSilent:
		s.c.Silent++
	case OutcomeError:
		s.c.Errors++
	case OutcomeInvalid:
		s.c.Invalid++
	}
}

// Snapshot returns a copy of the counters with Elapsed filled in
func (s *Statistics) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.c
	c.Elapsed = time.Since(c.StartTime)
	return c
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	return s.Snapshot().String()
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c = Counters{StartTime: time.Now()}
}
