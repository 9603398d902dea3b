// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Thermoquad/rotastat/pkg/encbus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	busTransactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rotastat",
			Subsystem: "bus",
			Name:      "transactions_total",
			Help:      "Total bus transactions by outcome.",
		},
		[]string{"address", "register", "outcome"},
	)
	busDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rotastat",
			Subsystem: "bus",
			Name:      "transaction_duration_seconds",
			Help:      "Bus round-trip time in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.02, 0.05},
		},
		[]string{"register", "outcome"},
	)
	pollSweeps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rotastat",
			Subsystem: "poll",
			Name:      "sweeps_total",
			Help:      "Completed poller sweeps.",
		},
	)
	pollSweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rotastat",
			Subsystem: "poll",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of one sweep over every registered device.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)
	pollFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rotastat",
			Subsystem: "poll",
			Name:      "device_failures_total",
			Help:      "Skipped device updates.",
		},
		[]string{"address"},
	)
	deviceStale = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rotastat",
			Subsystem: "poll",
			Name:      "device_stale",
			Help:      "1 while a device has exceeded its consecutive failure limit.",
		},
		[]string{"address"},
	)
	discoveredDevices = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rotastat",
			Subsystem: "discovery",
			Name:      "devices",
			Help:      "Devices found by the last discovery sweep.",
		},
	)
	publishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rotastat",
			Subsystem: "publish",
			Name:      "messages_total",
			Help:      "Published messages by topic and result.",
		},
		[]string{"topic", "success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			busTransactions, busDuration,
			pollSweeps, pollSweepDuration, pollFailures, deviceStale,
			discoveredDevices, publishes,
		)
	})
}

// Handler serves the default registry
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func RecordTransaction(address uint8, register uint16, outcome encbus.Outcome, duration time.Duration) {
	RegisterMetrics()
	addr := strconv.Itoa(int(address))
	reg := encbus.FormatRegister(register)
	busTransactions.WithLabelValues(addr, reg, outcome.String()).Inc()
	busDuration.WithLabelValues(reg, outcome.String()).Observe(duration.Seconds())
}

func RecordSweep(duration time.Duration) {
	RegisterMetrics()
	pollSweeps.Inc()
	pollSweepDuration.Observe(duration.Seconds())
}

func RecordDeviceFailure(address uint8) {
	RegisterMetrics()
	pollFailures.WithLabelValues(strconv.Itoa(int(address))).Inc()
}

func SetDeviceStale(address uint8, stale bool) {
	RegisterMetrics()
	v := 0.0
	if stale {
		v = 1
	}
	deviceStale.WithLabelValues(strconv.Itoa(int(address))).Set(v)
}

func SetDiscoveredDevices(n int) {
	RegisterMetrics()
	discoveredDevices.Set(float64(n))
}

func RecordPublish(topic string, success bool) {
	RegisterMetrics()
	publishes.WithLabelValues(topic, strconv.FormatBool(success)).Inc()
}

// BusObserver feeds bus transactions into the metrics above
type BusObserver struct{}

func (BusObserver) ObserveTransaction(address uint8, register uint16, outcome encbus.Outcome, elapsed time.Duration) {
	RecordTransaction(address, register, outcome, elapsed)
}
