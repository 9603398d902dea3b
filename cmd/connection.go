// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/Thermoquad/rotastat/pkg/config"
	"github.com/Thermoquad/rotastat/pkg/dataflow"
	"github.com/Thermoquad/rotastat/pkg/encbus"
	"github.com/Thermoquad/rotastat/pkg/observability"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// EnvPassword holds the WebSocket password when set
const EnvPassword = "ROTASTAT_PASSWORD"

// SerialTransport adapts a serial port to encbus.Transport. Reads time out
// with (0, nil), which the transaction loop treats as a quiet line.
type SerialTransport struct {
	port serial.Port
}

func (s *SerialTransport) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialTransport) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

// ResetInputBuffer drops bytes left over from an earlier transaction
func (s *SerialTransport) ResetInputBuffer() error {
	return s.port.ResetInputBuffer()
}

func (s *SerialTransport) Close() error {
	return s.port.Close()
}

// OpenSerialTransport opens a serial port 8N1 with a bounded read timeout
func OpenSerialTransport(portName string, baudRate int, timeout time.Duration) (*SerialTransport, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}

	return &SerialTransport{port: port}, nil
}

// BusHandle is an open register reader plus what is needed to report on it
type BusHandle struct {
	Reader encbus.RegisterReader
	Stats  *encbus.Statistics
	Info   string

	closer io.Closer
}

func (h *BusHandle) Close() error {
	return h.closer.Close()
}

// OpenBus opens the configured driver. Every transaction feeds the returned
// statistics and the Prometheus metrics.
func OpenBus(cfg config.BusConfig) (*BusHandle, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("--port must be specified")
	}

	stats := encbus.NewStatistics()
	opts := []encbus.BusOption{
		encbus.WithValidation(cfg.Validate),
		encbus.WithStatistics(stats),
		encbus.WithObserver(observability.BusObserver{}),
	}
	info := fmt.Sprintf("Serial: %s @ %d baud, timeout %v, driver %s", cfg.Port, cfg.Baud, cfg.Timeout(), cfg.Driver)

	switch cfg.Driver {
	case config.DriverGoburrow:
		rtu, err := encbus.NewRTUReader(encbus.RTUConfig{
			Port:     cfg.Port,
			BaudRate: cfg.Baud,
			Timeout:  cfg.Timeout(),
		}, opts...)
		if err != nil {
			return nil, err
		}
		return &BusHandle{Reader: rtu, Stats: stats, Info: info, closer: rtu}, nil

	default:
		transport, err := OpenSerialTransport(cfg.Port, cfg.Baud, cfg.Timeout())
		if err != nil {
			return nil, err
		}
		return &BusHandle{Reader: encbus.NewBus(transport, opts...), Stats: stats, Info: info, closer: transport}, nil
	}
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv(EnvPassword); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Not a terminal
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// DialHub connects to a running node's WebSocket hub using the --url flags
func DialHub(ctx context.Context) (*dataflow.Client, error) {
	if wsURL == "" {
		return nil, fmt.Errorf("--url must be specified")
	}

	opts := dataflow.DialOptions{
		Username:      wsUsername,
		SkipSSLVerify: wsNoSSLVerify,
	}
	if wsUsername != "" {
		password, err := GetPassword()
		if err != nil {
			return nil, err
		}
		opts.Password = password
	}

	return dataflow.Dial(ctx, wsURL, opts)
}
