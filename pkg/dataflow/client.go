// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataflow

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Thermoquad/rotastat/pkg/telemetry"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// DialOptions configures Dial
type DialOptions struct {
	Username      string
	Password      string
	SkipSSLVerify bool
}

// Client is one subscriber connection to a hub
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	events chan telemetry.Event
	err    error
	done   chan struct{}
}

// Dial opens a WebSocket connection to a hub with optional HTTP Basic auth
func Dial(ctx context.Context, wsURL string, opts DialOptions) (*Client, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: opts.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if opts.Username != "" && opts.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	c := &Client{
		conn:   conn,
		events: make(chan telemetry.Event, inboundQueue),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.err = err
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		ev, err := DecodeMessage(data)
		if err != nil {
			log.Debug().Err(err).Msg("dropping malformed message")
			continue
		}
		select {
		case c.events <- ev:
		default:
			log.Debug().Str("topic", ev.Topic).Msg("receive queue full, message dropped")
		}
	}
}

// Receive returns the next message from the hub. After the connection
// drops it returns ErrConnectionClosed wrapping the cause.
func (c *Client) Receive(ctx context.Context) (telemetry.Event, error) {
	select {
	case ev := <-c.events:
		return ev, nil
	case <-ctx.Done():
		return telemetry.Event{}, ctx.Err()
	case <-c.done:
		// Deliver anything read before the connection dropped
		select {
		case ev := <-c.events:
			return ev, nil
		default:
		}
		return telemetry.Event{}, fmt.Errorf("%w: %v", ErrConnectionClosed, c.err)
	}
}

// Publish sends one message to the hub
func (c *Client) Publish(topic string, metadata map[string]string, payload []byte) error {
	data, err := EncodeMessage(topic, metadata, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Close closes the connection
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}
