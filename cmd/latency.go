// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/rotastat/pkg/encbus"
	"github.com/spf13/cobra"
)

var (
	latencyAddress  uint8
	latencyRounds   int
	latencyInterval time.Duration
	latencyQuiet    bool
)

var latencyCmd = &cobra.Command{
	Use:   "latency",
	Short: "Measure round-trip latency on the speed register",
	Long: `Repeatedly read the speed register of one address and report each
round trip, followed by aggregated bus statistics.

Runs until --rounds reads have completed, or until Ctrl+C when --rounds is 0.`,
	RunE: runLatency,
}

func init() {
	rootCmd.AddCommand(latencyCmd)
	latencyCmd.Flags().Uint8VarP(&latencyAddress, "address", "a", 1, "Device address")
	latencyCmd.Flags().IntVarP(&latencyRounds, "rounds", "n", 100, "Number of reads (0 = until interrupted)")
	latencyCmd.Flags().DurationVar(&latencyInterval, "interval", 0, "Pause between reads")
	latencyCmd.Flags().BoolVarP(&latencyQuiet, "quiet", "q", false, "Only print the summary")
}

func runLatency(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	bus, err := OpenBus(cfg.Bus)
	if err != nil {
		return err
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Rotastat - Latency\n")
	fmt.Printf("Connection: %s\n", bus.Info)
	fmt.Printf("Address: %d, register %s\n", latencyAddress, encbus.FormatRegister(encbus.RegSpeed))
	fmt.Printf("Press Ctrl+C to stop\n\n")

	bus.Stats.Reset()
	for i := 0; latencyRounds == 0 || i < latencyRounds; i++ {
		if ctx.Err() != nil {
			break
		}

		began := time.Now()
		raw, err := encbus.ReadSpeed(bus.Reader, latencyAddress)
		elapsed := time.Since(began)

		if !latencyQuiet {
			if err != nil {
				fmt.Printf("#%-5d %8.3f ms  ERROR %v\n", i+1, float64(elapsed)/float64(time.Millisecond), err)
			} else {
				fmt.Printf("#%-5d %8.3f ms  %9.2f RPM\n", i+1, float64(elapsed)/float64(time.Millisecond), encbus.Record{SpeedRaw: raw}.RPM())
			}
		}

		if latencyInterval > 0 {
			if !sleepContext(ctx, latencyInterval) {
				break
			}
		}
	}

	fmt.Printf("\n%s", bus.Stats.String())
	return nil
}

// sleepContext waits for d and reports false if ctx ended first
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
