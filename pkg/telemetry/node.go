// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/Thermoquad/rotastat/pkg/encbus"
	"github.com/Thermoquad/rotastat/pkg/keys"
	"github.com/rs/zerolog/log"
)

// Node wires the poller, selector and publisher around one registry
type Node struct {
	Registry  *Registry
	Table     *Table
	Poller    *Poller
	Selector  *Selector
	Publisher *Publisher
}

// NewNode builds every component for an already discovered registry
func NewNode(reader encbus.RegisterReader, reg *Registry, sink Sink, pollerOpts []PollerOption, publisherOpts []PublisherOption) *Node {
	table := NewTable(reg)
	sel := NewSelector(reg)
	return &Node{
		Registry:  reg,
		Table:     table,
		Poller:    NewPoller(reader, table, pollerOpts...),
		Selector:  sel,
		Publisher: NewPublisher(sink, table, sel, publisherOpts...),
	}
}

// HandleEvent reacts to key events and ignores every other topic
func (n *Node) HandleEvent(ev Event) {
	if ev.Topic != keys.Topic {
		return
	}
	if !n.Selector.HandleKey(ev.Payload) {
		return
	}
	if err := n.Publisher.PublishBuffer(); err != nil {
		log.Warn().Err(err).Msg("buffer publish failed")
	}
}

// HandleEvents consumes src until it ends or ctx is cancelled. The end of
// the stream is not an error.
func (n *Node) HandleEvents(ctx context.Context, src EventSource) error {
	for {
		ev, err := src.Receive(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		n.HandleEvent(ev)
	}
}

// Run starts the poller, the publisher and event handling. It returns when
// the event stream ends, ctx is cancelled, or a component fails.
func (n *Node) Run(ctx context.Context, src EventSource) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	stop := func(err error) {
		once.Do(func() {
			if err != nil && !errors.Is(err, context.Canceled) {
				firstErr = err
			}
			cancel()
		})
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		stop(n.Poller.Run(ctx))
	}()
	go func() {
		defer wg.Done()
		stop(n.Publisher.Run(ctx))
	}()
	go func() {
		defer wg.Done()
		stop(n.HandleEvents(ctx, src))
	}()

	wg.Wait()
	return firstErr
}
