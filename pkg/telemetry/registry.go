// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/Thermoquad/rotastat/pkg/encbus"
	"github.com/Thermoquad/rotastat/pkg/observability"
	"github.com/rs/zerolog/log"
)

// ErrNoDevices is returned when discovery finds nothing to poll
var ErrNoDevices = errors.New("no devices found")

// Registry is the ordered set of device addresses found at startup.
// It is immutable once built.
type Registry struct {
	addresses []uint8
}

// NewRegistry builds a registry from known addresses, in the given order
func NewRegistry(addresses ...uint8) (*Registry, error) {
	if len(addresses) == 0 {
		return nil, ErrNoDevices
	}
	seen := make(map[uint8]bool, len(addresses))
	for _, a := range addresses {
		if seen[a] {
			return nil, fmt.Errorf("duplicate device address %d", a)
		}
		seen[a] = true
	}
	return &Registry{addresses: append([]uint8(nil), addresses...)}, nil
}

// Len returns the number of devices
func (r *Registry) Len() int {
	return len(r.addresses)
}

// Address returns the device address at position i
func (r *Registry) Address(i int) uint8 {
	return r.addresses[i]
}

// Addresses returns a copy of the address list
func (r *Registry) Addresses() []uint8 {
	return append([]uint8(nil), r.addresses...)
}

// Position returns the ordinal position of address
func (r *Registry) Position(address uint8) (int, bool) {
	for i, a := range r.addresses {
		if a == address {
			return i, true
		}
	}
	return 0, false
}

// Discover probes every address in [first, last] in ascending order with a
// one-register angle read. A device is online if it answers with data and
// no error; silent and failing addresses are skipped.
func Discover(ctx context.Context, reader encbus.RegisterReader, first, last uint8) (*Registry, error) {
	if first > last {
		return nil, fmt.Errorf("invalid address range %d..%d", first, last)
	}

	var found []uint8
	for addr := first; ; addr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := reader.ReadRegisters(addr, encbus.RegAngle, encbus.AngleRegisters)
		switch {
		case err != nil:
			log.Warn().Err(err).Uint8("address", addr).Msg("discovery probe failed")
		case resp == nil || resp.Empty():
			log.Debug().Uint8("address", addr).Msg("no response")
		default:
			log.Info().Uint8("address", addr).Msg("device online")
			found = append(found, addr)
		}

		if addr == last {
			break
		}
	}

	observability.SetDiscoveredDevices(len(found))

	if len(found) == 0 {
		return nil, fmt.Errorf("%w in range %d..%d", ErrNoDevices, first, last)
	}
	return &Registry{addresses: found}, nil
}
