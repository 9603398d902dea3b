// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import "context"

// Event is one message received from the dataflow host
type Event struct {
	Topic    string
	Metadata map[string]string
	Payload  []byte
}

// EventSource delivers inbound events. Receive blocks until an event
// arrives and returns io.EOF once the stream has ended.
type EventSource interface {
	Receive(ctx context.Context) (Event, error)
}

// Sink accepts outbound messages for the dataflow host
type Sink interface {
	Publish(topic string, metadata map[string]string, payload []byte) error
}

// Renderer draws text lines on a local display
type Renderer interface {
	Render(lines []string) error
}
