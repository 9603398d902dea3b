// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/rotastat/pkg/encbus"
	"github.com/Thermoquad/rotastat/pkg/telemetry"
	"github.com/spf13/cobra"
)

var (
	discoveryFirst uint8
	discoveryLast  uint8
	discoveryRead  bool
)

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Scan the bus for responsive encoders",
	Long: `Probe every address in the configured range with a one-register angle read.

An address counts as online when it returns a non-empty reply without error.
Addresses are probed in ascending order; the resulting list is the registry a
running node would poll.

Examples:
  rotastat discovery --port /dev/ttyUSB0
  rotastat discovery --port /dev/ttyUSB0 --first 1 --last 32 --read

Exit codes:
  0 - At least one device found
  1 - No devices responded
  2 - Connection error`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().Uint8Var(&discoveryFirst, "first", 0, "First address to probe (default from config)")
	discoveryCmd.Flags().Uint8Var(&discoveryLast, "last", 0, "Last address to probe (default from config)")
	discoveryCmd.Flags().BoolVar(&discoveryRead, "read", false, "Read a full record from every device found")
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("first") {
		cfg.Bus.FirstAddress = discoveryFirst
	}
	if cmd.Flags().Changed("last") {
		cfg.Bus.LastAddress = discoveryLast
	}

	bus, err := OpenBus(cfg.Bus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer bus.Close()

	fmt.Printf("Rotastat - Device Discovery\n")
	fmt.Printf("Connection: %s\n", bus.Info)
	fmt.Printf("Range: %d..%d\n\n", cfg.Bus.FirstAddress, cfg.Bus.LastAddress)

	start := time.Now()
	reg, err := telemetry.Discover(cmd.Context(), bus.Reader, cfg.Bus.FirstAddress, cfg.Bus.LastAddress)
	elapsed := time.Since(start)

	if err != nil && !errors.Is(err, telemetry.ErrNoDevices) {
		fmt.Printf("DISCOVERY FAILED: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("--- Discovery summary ---\n")
	fmt.Printf("Scan time: %v\n", elapsed.Round(time.Millisecond))

	if reg == nil {
		fmt.Printf("Devices found: 0\n")
		fmt.Printf("No devices discovered. Check wiring, baud rate and device power.\n")
		os.Exit(1)
	}

	fmt.Printf("Devices found: %d\n", reg.Len())
	for _, addr := range reg.Addresses() {
		if !discoveryRead {
			fmt.Printf("  ID %d\n", addr)
			continue
		}
		rec, err := encbus.ReadRecord(bus.Reader, addr)
		if err != nil {
			fmt.Printf("  ID %2d  read failed: %v\n", addr, err)
			continue
		}
		fmt.Printf("  %s\n", encbus.FormatRecord(rec))
	}

	fmt.Printf("\n%s", bus.Stats.String())
	return nil
}
