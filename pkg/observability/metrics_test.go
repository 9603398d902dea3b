// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/rotastat/pkg/encbus"
)

var _ encbus.Observer = BusObserver{}

func TestHandler_ExposesRecordedMetrics(t *testing.T) {
	BusObserver{}.ObserveTransaction(3, encbus.RegAngle, encbus.OutcomeData, 2*time.Millisecond)
	RecordSweep(15 * time.Millisecond)
	RecordDeviceFailure(4)
	SetDeviceStale(4, true)
	SetDiscoveredDevices(2)
	RecordPublish("encoder_data", true)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	want := []string{
		`rotastat_bus_transactions_total{address="3",outcome="data",register="ANGLE"} 1`,
		`rotastat_poll_sweeps_total 1`,
		`rotastat_poll_device_failures_total{address="4"} 1`,
		`rotastat_poll_device_stale{address="4"} 1`,
		`rotastat_discovery_devices 2`,
		`rotastat_publish_messages_total{success="true",topic="encoder_data"} 1`,
	}
	for _, w := range want {
		if !strings.Contains(text, w) {
			t.Errorf("metrics output missing %q", w)
		}
	}
}
