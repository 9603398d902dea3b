// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/rotastat/pkg/config"
	"github.com/Thermoquad/rotastat/pkg/dataflow"
	"github.com/Thermoquad/rotastat/pkg/keys"
	"github.com/Thermoquad/rotastat/pkg/observability"
	"github.com/Thermoquad/rotastat/pkg/telemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const keysStdin = "stdin"

var (
	runListen string
	runKeys   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Discover encoders, poll them and publish telemetry",
	Long: `Run the telemetry node.

Startup discovers the responsive addresses once. The node then polls every
device continuously, publishes the selected encoder's record on the telemetry
topic every period, and publishes the input buffer whenever a key changes it.

Messages are served to WebSocket subscribers on <listen>/ws; subscribers may
send key events back. Prometheus metrics are served on <listen>/metrics.

Key sources (--keys):
  stdin               raw terminal input (arrows, Enter, Backspace, digits)
  /dev/input/eventN   a Linux keyboard device
  (empty)             subscribers only

Set ROTASTAT_LOG_FILE when reading keys from stdin; the terminal is in raw
mode while the node runs.`,
	RunE: runNode,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runListen, "listen", "l", "", "HTTP listen address (default from config)")
	runCmd.Flags().StringVarP(&runKeys, "keys", "k", "", "Key source: stdin or an input event device")
}

// pollerOptions maps configuration onto poller options
func pollerOptions(cfg config.Config) []telemetry.PollerOption {
	return []telemetry.PollerOption{
		telemetry.WithStaleAfter(cfg.Poll.StaleAfter),
		telemetry.WithPause(cfg.Poll.Pause()),
	}
}

// publisherOptions maps configuration onto publisher options
func publisherOptions(cfg config.Config, extra ...telemetry.PublisherOption) []telemetry.PublisherOption {
	opts := []telemetry.PublisherOption{
		telemetry.WithPeriod(cfg.Publish.Period()),
		telemetry.WithTopics(cfg.Publish.TelemetryTopic, cfg.Publish.BufferTopic),
	}
	return append(opts, extra...)
}

// newHub creates the dataflow hub, with Basic auth when credentials are configured
func newHub(cfg config.ServerConfig) *dataflow.Hub {
	var opts []dataflow.HubOption
	if cfg.Username != "" {
		opts = append(opts, dataflow.WithBasicAuth(cfg.Username, cfg.Password))
	}
	return dataflow.NewHub(opts...)
}

// serveHub serves the hub and metrics until ctx ends
func serveHub(ctx context.Context, listen string, hub *dataflow.Hub) {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.Handle("/metrics", observability.Handler())

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		log.Info().Str("listen", listen).Msg("serving websocket and metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("listen", listen).Msg("http server failed")
		}
	}()
}

// pumpKeys feeds key symbols from src into the hub's inbound stream. Ctrl-C
// on a raw terminal calls cancel.
func pumpKeys(ctx context.Context, cancel context.CancelFunc, hub *dataflow.Hub, src string) (restore func(), err error) {
	restore = func() {}
	inject := func(sym string) bool {
		return hub.Inject(telemetry.Event{Topic: keys.Topic, Payload: []byte(sym)})
	}

	switch src {
	case "":
		return restore, nil

	case keysStdin:
		fd := int(os.Stdin.Fd())
		if term.IsTerminal(fd) {
			state, err := term.MakeRaw(fd)
			if err != nil {
				return restore, fmt.Errorf("raw terminal: %w", err)
			}
			restore = func() { _ = term.Restore(fd, state) }
		}
		go func() {
			decoder := keys.NewTerminalDecoder()
			buf := make([]byte, 64)
			for ctx.Err() == nil {
				n, err := os.Stdin.Read(buf)
				syms, decErr := decoder.Decode(buf[:n])
				for _, sym := range syms {
					if !inject(sym) {
						return
					}
				}
				if decErr != nil {
					log.Info().Msg("interrupted from keyboard")
					cancel()
					return
				}
				if err != nil {
					if !errors.Is(err, io.EOF) {
						log.Warn().Err(err).Msg("stdin read failed")
					}
					return
				}
			}
		}()
		return restore, nil

	default:
		f, err := os.Open(src)
		if err != nil {
			return restore, fmt.Errorf("open key device: %w", err)
		}
		restore = func() { f.Close() }
		go func() {
			reader := keys.NewEvdevReader(f)
			for ctx.Err() == nil {
				sym, err := reader.Next()
				if err != nil {
					if !errors.Is(err, io.EOF) && ctx.Err() == nil {
						log.Warn().Err(err).Str("device", src).Msg("key device read failed")
					}
					return
				}
				if !inject(sym) {
					return
				}
			}
		}()
		return restore, nil
	}
}

func runNode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("listen") {
		cfg.Server.Listen = runListen
	}

	bus, err := OpenBus(cfg.Bus)
	if err != nil {
		return err
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("connection", bus.Info).Msg("discovering devices")
	reg, err := telemetry.Discover(ctx, bus.Reader, cfg.Bus.FirstAddress, cfg.Bus.LastAddress)
	if err != nil {
		return fmt.Errorf("discovery: %w", err)
	}
	log.Info().Str("addresses", fmt.Sprint(reg.Addresses())).Msg("registry ready")

	hub := newHub(cfg.Server)
	defer hub.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveHub(ctx, cfg.Server.Listen, hub)

	restore, err := pumpKeys(ctx, cancel, hub, runKeys)
	if err != nil {
		return err
	}
	defer restore()

	node := telemetry.NewNode(bus.Reader, reg, hub, pollerOptions(cfg), publisherOptions(cfg))
	err = node.Run(ctx, hub)

	log.Info().Msg("node stopped")
	log.Debug().Msg(bus.Stats.String())
	return err
}
