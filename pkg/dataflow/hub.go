// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataflow

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Thermoquad/rotastat/pkg/telemetry"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ErrConnectionClosed is returned once a hub or client has been closed
var ErrConnectionClosed = errors.New("websocket connection closed")

const (
	writeTimeout  = 5 * time.Second
	clientBacklog = 64
	inboundQueue  = 64
)

// Hub fans published messages out to every connected subscriber and
// collects the messages they send back as inbound events.
type Hub struct {
	upgrader websocket.Upgrader
	username string
	password string

	mu      sync.Mutex
	clients map[*subscriber]struct{}
	closed  bool

	inbound chan telemetry.Event
	done    chan struct{}
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithBasicAuth requires HTTP Basic credentials on the upgrade request
func WithBasicAuth(username, password string) HubOption {
	return func(h *Hub) {
		h.username = username
		h.password = password
	}
}

// NewHub creates an empty hub
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*subscriber]struct{}),
		inbound: make(chan telemetry.Event, inboundQueue),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribers returns the number of connected clients
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and serves one subscriber
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="rotastat"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, clientBacklog)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[sub] = struct{}{}
	h.mu.Unlock()
	log.Info().Str("remote", r.RemoteAddr).Msg("subscriber connected")

	go h.writeLoop(sub)
	h.readLoop(sub)

	h.drop(sub)
	log.Info().Str("remote", r.RemoteAddr).Msg("subscriber disconnected")
}

func (h *Hub) authorized(r *http.Request) bool {
	if h.username == "" && h.password == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(h.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(h.password)) == 1
	return userOK && passOK
}

func (h *Hub) readLoop(sub *subscriber) {
	for {
		messageType, data, err := sub.conn.ReadMessage()
		if err != nil {
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
		if !h.Inject(ev) {
			return
		}
	}
}

func (h *Hub) writeLoop(sub *subscriber) {
	for data := range sub.send {
		sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := sub.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			sub.conn.Close()
			// Drain until drop closes the channel
			for range sub.send {
			}
			return
		}
	}
	sub.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	sub.conn.Close()
}

func (h *Hub) drop(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[sub]; ok {
		delete(h.clients, sub)
		close(sub.send)
	}
}

// Publish sends a message to every subscriber. A subscriber whose backlog
// is full misses the message.
func (h *Hub) Publish(topic string, metadata map[string]string, payload []byte) error {
	data, err := EncodeMessage(topic, metadata, payload)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrConnectionClosed
	}
	for sub := range h.clients {
		select {
		case sub.send <- data:
		default:
			log.Debug().Str("topic", topic).Msg("subscriber backlog full, message dropped")
		}
	}
	return nil
}

// Inject queues an event as if a subscriber had sent it. Returns false once
// the hub is closed.
func (h *Hub) Inject(ev telemetry.Event) bool {
	select {
	case h.inbound <- ev:
		return true
	case <-h.done:
		return false
	}
}

// Receive returns the next inbound event, or io.EOF after Close
func (h *Hub) Receive(ctx context.Context) (telemetry.Event, error) {
	select {
	case ev := <-h.inbound:
		return ev, nil
	case <-h.done:
		return telemetry.Event{}, io.EOF
	case <-ctx.Done():
		return telemetry.Event{}, ctx.Err()
	}
}

// Close disconnects every subscriber and ends the inbound stream
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	close(h.done)
	for sub := range h.clients {
		delete(h.clients, sub)
		close(sub.send)
	}
	return nil
}
