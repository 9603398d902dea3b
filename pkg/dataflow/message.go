// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dataflow carries node messages over WebSocket. Every binary
// frame holds one CBOR array: [topic, metadata, payload].
package dataflow

import (
	"fmt"

	"github.com/Thermoquad/rotastat/pkg/telemetry"
	"github.com/fxamacker/cbor/v2"
)

// message is the wire form of one topic message
type message struct {
	_        struct{}          `cbor:",toarray"`
	Topic    string            `cbor:"topic"`
	Metadata map[string]string `cbor:"metadata"`
	Payload  []byte            `cbor:"payload"`
}

// EncodeMessage encodes one topic message
func EncodeMessage(topic string, metadata map[string]string, payload []byte) ([]byte, error) {
	if topic == "" {
		return nil, fmt.Errorf("empty topic")
	}
	data, err := cbor.Marshal(message{Topic: topic, Metadata: metadata, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR: %w", err)
	}
	return data, nil
}

// DecodeMessage parses one topic message
func DecodeMessage(data []byte) (telemetry.Event, error) {
	if len(data) == 0 {
		return telemetry.Event{}, fmt.Errorf("empty CBOR payload")
	}
	var m message
	if err := cbor.Unmarshal(data, &m); err != nil {
		return telemetry.Event{}, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	if m.Topic == "" {
		return telemetry.Event{}, fmt.Errorf("message without topic")
	}
	return telemetry.Event{Topic: m.Topic, Metadata: m.Metadata, Payload: m.Payload}, nil
}
