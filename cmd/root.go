// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/Thermoquad/rotastat/pkg/config"
	"github.com/Thermoquad/rotastat/pkg/logging"
	"github.com/spf13/cobra"
)

// annotationTUI marks commands that own the terminal; their logs go to a file
const annotationTUI = "tui"

var (
	// Bus flags
	portName   string
	baudRate   int
	timeoutMS  int
	driverName string
	noValidate bool

	configPath string
	logLevel   string

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool
)

var rootCmd = &cobra.Command{
	Use:   "rotastat",
	Short: "Rotary encoder bus telemetry",
	Long: `Rotastat - polls a multi-drop bus of rotary encoders and publishes their telemetry.

Each encoder answers Modbus-style register reads (angle, speed, turns). Rotastat
discovers the responsive addresses, keeps a state table fresh in the background
and publishes the selected encoder's record together with an input buffer
driven by key events.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 1000000] [--driver native|goburrow]
  WebSocket: --url ws://host:8080/ws [--username user]   (display only)

Settings may also come from a YAML or TOML file given with --config. Flags that
are set explicitly win over the file.

For WebSocket authentication, the password is read from the ROTASTAT_PASSWORD
environment variable, or prompted interactively if not set.`,
	Version:       "0.3.0",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		profile := logging.ProfileRuntime
		if cmd.Annotations[annotationTUI] == "true" {
			profile = logging.ProfileTUI
		}
		logging.Configure(profile)
		if logLevel != "" {
			return logging.SetLevel(logLevel)
		}
		return nil
	},
}

func init() {
	defaults := config.Default()

	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", defaults.Bus.Baud, "Baud rate")
	rootCmd.PersistentFlags().IntVar(&timeoutMS, "timeout", defaults.Bus.TimeoutMS, "Per-transaction read timeout in milliseconds")
	rootCmd.PersistentFlags().StringVar(&driverName, "driver", defaults.Bus.Driver, "Bus driver (native or goburrow)")
	rootCmd.PersistentFlags().BoolVar(&noValidate, "no-validate", false, "Accept replies without checking address, function, length and checksum")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error, off)")

	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// loadConfig resolves the effective configuration: defaults, then the
// --config file, then any flag the user set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return config.Config{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Bus.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Bus.Baud = baudRate
	}
	if flags.Changed("timeout") {
		cfg.Bus.TimeoutMS = timeoutMS
	}
	if flags.Changed("driver") {
		cfg.Bus.Driver = driverName
	}
	if flags.Changed("no-validate") {
		cfg.Bus.Validate = !noValidate
	}

	if err := config.Validate(&cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
