// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Thermoquad/rotastat/pkg/encbus"
	"github.com/Thermoquad/rotastat/pkg/observability"
	"github.com/rs/zerolog/log"
)

// Publisher defaults
const (
	DefaultPeriod  = 100 * time.Millisecond
	TopicTelemetry = "encoder_data"
	TopicBuffer    = "char_buffer"
)

// Publisher emits the selected device's record on a fixed period
type Publisher struct {
	sink     Sink
	table    *Table
	selector *Selector
	renderer Renderer

	period         time.Duration
	telemetryTopic string
	bufferTopic    string
}

// PublisherOption configures a Publisher
type PublisherOption func(*Publisher)

// WithPeriod sets the publish period
func WithPeriod(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		if d > 0 {
			p.period = d
		}
	}
}

// WithTopics overrides the telemetry and buffer topic names
func WithTopics(telemetry, buffer string) PublisherOption {
	return func(p *Publisher) {
		if telemetry != "" {
			p.telemetryTopic = telemetry
		}
		if buffer != "" {
			p.bufferTopic = buffer
		}
	}
}

// WithRenderer also draws every published record on a local display
func WithRenderer(r Renderer) PublisherOption {
	return func(p *Publisher) {
		p.renderer = r
	}
}

// NewPublisher creates a publisher reading the row chosen by selector
func NewPublisher(sink Sink, table *Table, selector *Selector, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		sink:           sink,
		table:          table,
		selector:       selector,
		period:         DefaultPeriod,
		telemetryTopic: TopicTelemetry,
		bufferTopic:    TopicBuffer,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PublishOnce emits the currently selected record
func (p *Publisher) PublishOnce() error {
	row, ok := p.table.Row(p.selector.Index())
	if !ok {
		return fmt.Errorf("display index %d out of range", p.selector.Index())
	}

	metadata := map[string]string{
		"address": strconv.Itoa(int(row.Record.Address)),
		"stale":   strconv.FormatBool(row.Stale),
	}

	if p.renderer != nil {
		if err := p.renderer.Render(encbus.FormatDisplay(row.Record, p.selector.Buffer())); err != nil {
			log.Warn().Err(err).Msg("render failed")
		}
	}

	if p.sink == nil {
		return nil
	}
	err := p.sink.Publish(p.telemetryTopic, metadata, row.Record.Bytes())
	observability.RecordPublish(p.telemetryTopic, err == nil)
	if err != nil {
		return fmt.Errorf("publish %s: %w", p.telemetryTopic, err)
	}
	return nil
}

// PublishBuffer emits the current input buffer as text
func (p *Publisher) PublishBuffer() error {
	if p.sink == nil {
		return nil
	}
	err := p.sink.Publish(p.bufferTopic, nil, []byte(p.selector.Buffer()))
	observability.RecordPublish(p.bufferTopic, err == nil)
	if err != nil {
		return fmt.Errorf("publish %s: %w", p.bufferTopic, err)
	}
	return nil
}

// Run publishes every period until ctx is cancelled. Publish errors are
// logged and never stop the loop.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.PublishOnce(); err != nil {
				log.Warn().Err(err).Msg("publish failed")
			}
		}
	}
}
