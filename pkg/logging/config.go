// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "ROTASTAT_LOG_LEVEL"
	EnvLogTimestamp = "ROTASTAT_LOG_TIMESTAMP"
	EnvLogNoColor   = "ROTASTAT_LOG_NOCOLOR"
	EnvLogFile      = "ROTASTAT_LOG_FILE"

	// DefaultTUIFile receives logs while a full-screen UI owns the terminal
	DefaultTUIFile = "rotastat.log"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTUI
	ProfileTest
)

// Config is the resolved logger setup
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	File      string
}

var (
	configureOnce sync.Once
	logFile       *os.File
)

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

// Configure installs the global logger for profile. Only the first call has
// any effect.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		cfg := DefaultConfig(profile)
		applyEnvOverrides(&cfg)
		if err := Apply(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "logging: %v, using stderr\n", err)
			cfg.File = ""
			_ = Apply(cfg)
		}
	})
}

func DefaultConfig(profile Profile) Config {
	switch profile {
	case ProfileTest:
		return Config{Level: zerolog.DebugLevel, Timestamp: false}
	case ProfileTUI:
		return Config{Level: zerolog.InfoLevel, Timestamp: true, NoColor: true, File: DefaultTUIFile}
	default:
		return Config{Level: zerolog.InfoLevel, Timestamp: true}
	}
}

// Apply replaces the global logger
func Apply(cfg Config) error {
	var out io.Writer = os.Stderr
	var f *os.File
	if cfg.File != "" {
		var err error
		f, err = os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file %s: %w", cfg.File, err)
		}
		out = f
		cfg.NoColor = true
	}

	cw := zerolog.ConsoleWriter{Out: out, NoColor: cfg.NoColor, TimeFormat: "15:04:05.000"}
	if !cfg.Timestamp {
		cw.PartsExclude = []string{zerolog.TimestampFieldName}
	}

	ctx := zerolog.New(cw).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}

	zerolog.SetGlobalLevel(cfg.Level)
	log.Logger = ctx.Logger()

	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f
	return nil
}

// SetLevel changes the global level from a textual name
func SetLevel(raw string) error {
	lvl, ok := ParseLevel(raw)
	if !ok {
		return fmt.Errorf("unknown log level %q", raw)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	if path := strings.TrimSpace(os.Getenv(EnvLogFile)); path != "" {
		cfg.File = path
	}
}

func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
