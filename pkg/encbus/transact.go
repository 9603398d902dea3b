// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package encbus

import (
	"errors"
	"fmt"
	"io"
)

// ErrShortWrite is returned when the transport accepted only part of a request
var ErrShortWrite = errors.New("short write")

// Transport is a duplex, timeout-bounded byte channel to the bus.
// A read that times out without data must return (0, nil).
type Transport interface {
	io.Reader
	io.Writer
}

// inputResetter is implemented by serial ports that can discard stale input
type inputResetter interface {
	ResetInputBuffer() error
}

// Transact sends one read request and collects the reply.
//
// Outcomes:
//   - data:   non-empty Response, nil error
//   - silent: empty Response, nil error (no byte arrived within the timeout)
//   - error:  nil Response, transport error
//
// The reply is not validated here; see Response.Validate.
func Transact(t Transport, address uint8, start, count uint16) (*Response, error) {
	return Exchange(t, BuildRequest(address, start, count))
}

// Exchange writes a prebuilt request and reads its reply
func Exchange(t Transport, req Request) (*Response, error) {
	if r, ok := t.(inputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			return nil, fmt.Errorf("reset input for address %d: %w", req.Address(), err)
		}
	}

	n, err := t.Write(req[:])
	if err != nil {
		return nil, fmt.Errorf("write request to address %d: %w", req.Address(), err)
	}
	if n != len(req) {
		return nil, fmt.Errorf("%w: %d of %d bytes to address %d", ErrShortWrite, n, len(req), req.Address())
	}

	buf := make([]byte, MaxFrameSize)
	want := req.ExpectedResponseSize()
	total := 0

	// Keep reading until the expected frame is complete or the line goes quiet
	for total < want {
		n, err := t.Read(buf[total:])
		if err != nil {
			return nil, fmt.Errorf("read response from address %d: %w", req.Address(), err)
		}
		if n == 0 {
			break
		}
		total += n
	}

	return NewResponse(buf[:total]), nil
}
