// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"

	"github.com/Thermoquad/rotastat/pkg/keys"
	"github.com/Thermoquad/rotastat/pkg/telemetry"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var monitorListen string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the node with a terminal UI",
	Long: `Run the telemetry node and render it in the terminal.

The UI lists every discovered encoder with its last record, poll count, age
and staleness, draws the display frame the publisher emits for the selected
encoder, and shows bus statistics.

Keys drive the selector exactly like remote key events:
  ↑ / ↓        next / previous encoder
  digits       type an encoder ID
  Enter        jump to the typed ID
  Backspace    erase one character
  Esc          quit

With --listen, the node also serves WebSocket subscribers and metrics.
Logs are written to rotastat.log unless ROTASTAT_LOG_FILE says otherwise.`,
	Annotations: map[string]string{annotationTUI: "true"},
	RunE:        runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVarP(&monitorListen, "listen", "l", "", "Also serve WebSocket and metrics on this address")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	bus, err := OpenBus(cfg.Bus)
	if err != nil {
		return err
	}
	defer bus.Close()

	fmt.Printf("Rotastat - Monitor\n")
	fmt.Printf("Connection: %s\n", bus.Info)
	fmt.Printf("Discovering devices %d..%d...\n", cfg.Bus.FirstAddress, cfg.Bus.LastAddress)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	reg, err := telemetry.Discover(ctx, bus.Reader, cfg.Bus.FirstAddress, cfg.Bus.LastAddress)
	if err != nil {
		return fmt.Errorf("discovery: %w", err)
	}

	// The hub is the node's event source even without subscribers
	hub := newHub(cfg.Server)
	defer hub.Close()
	if monitorListen != "" {
		serveHub(ctx, monitorListen, hub)
	}

	renderer := &teaRenderer{}
	node := telemetry.NewNode(bus.Reader, reg, hub, pollerOptions(cfg),
		publisherOptions(cfg, telemetry.WithRenderer(renderer)))

	inject := func(sym string) {
		hub.Inject(telemetry.Event{Topic: keys.Topic, Payload: []byte(sym)})
	}
	p := tea.NewProgram(newMonitorModel(bus.Info, node, bus.Stats, inject))
	renderer.p = p

	nodeErr := make(chan error, 1)
	go func() {
		nodeErr <- node.Run(ctx, hub)
	}()

	_, err = p.Run()
	cancel()
	if runErr := <-nodeErr; runErr != nil {
		log.Error().Err(runErr).Msg("node stopped")
		if err == nil {
			err = runErr
		}
	}
	return err
}
