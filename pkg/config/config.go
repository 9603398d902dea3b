// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Thermoquad/rotastat/pkg/encbus"
	"github.com/Thermoquad/rotastat/pkg/telemetry"
	"gopkg.in/yaml.v3"
)

// Bus drivers
const (
	DriverNative   = "native"
	DriverGoburrow = "goburrow"
)

type Config struct {
	Bus     BusConfig     `yaml:"bus" toml:"bus"`
	Poll    PollConfig    `yaml:"poll" toml:"poll"`
	Publish PublishConfig `yaml:"publish" toml:"publish"`
	Server  ServerConfig  `yaml:"server" toml:"server"`
}

type BusConfig struct {
	Port         string `yaml:"port" toml:"port"`
	Baud         int    `yaml:"baud" toml:"baud"`
	TimeoutMS    int    `yaml:"timeout_ms" toml:"timeout_ms"`
	Driver       string `yaml:"driver" toml:"driver"`
	Validate     bool   `yaml:"validate" toml:"validate"`
	FirstAddress uint8  `yaml:"first_address" toml:"first_address"`
	LastAddress  uint8  `yaml:"last_address" toml:"last_address"`
}

type PollConfig struct {
	StaleAfter int `yaml:"stale_after" toml:"stale_after"`
	PauseMS    int `yaml:"pause_ms" toml:"pause_ms"`
}

type PublishConfig struct {
	PeriodMS       int    `yaml:"period_ms" toml:"period_ms"`
	TelemetryTopic string `yaml:"telemetry_topic" toml:"telemetry_topic"`
	BufferTopic    string `yaml:"buffer_topic" toml:"buffer_topic"`
}

type ServerConfig struct {
	Listen   string `yaml:"listen" toml:"listen"`
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
}

// Default returns the reference deployment settings
func Default() Config {
	return Config{
		Bus: BusConfig{
			Baud:         encbus.DefaultBaudRate,
			TimeoutMS:    int(encbus.DefaultTimeout / time.Millisecond),
			Driver:       DriverNative,
			Validate:     true,
			FirstAddress: encbus.FirstAddress,
			LastAddress:  encbus.LastAddress,
		},
		Poll: PollConfig{
			StaleAfter: telemetry.DefaultStaleAfter,
		},
		Publish: PublishConfig{
			PeriodMS:       int(telemetry.DefaultPeriod / time.Millisecond),
			TelemetryTopic: telemetry.TopicTelemetry,
			BufferTopic:    telemetry.TopicBuffer,
		},
		Server: ServerConfig{
			Listen: ":8080",
		},
	}
}

// Load reads a YAML (.yaml, .yml) or TOML (.toml) file over the defaults
// and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format %q (use .yaml, .yml or .toml)", filepath.Ext(path))
	}

	if err := Validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks configuration correctness without mutating it
func Validate(cfg *Config) error {
	if cfg.Bus.Baud <= 0 {
		return fmt.Errorf("bus.baud must be positive, got %d", cfg.Bus.Baud)
	}
	if cfg.Bus.TimeoutMS <= 0 {
		return fmt.Errorf("bus.timeout_ms must be positive, got %d", cfg.Bus.TimeoutMS)
	}
	switch cfg.Bus.Driver {
	case DriverNative, DriverGoburrow:
	default:
		return fmt.Errorf("bus.driver must be %q or %q, got %q", DriverNative, DriverGoburrow, cfg.Bus.Driver)
	}
	if cfg.Bus.FirstAddress == 0 {
		return fmt.Errorf("bus.first_address must be at least 1 (0 is broadcast)")
	}
	if cfg.Bus.FirstAddress > cfg.Bus.LastAddress {
		return fmt.Errorf("bus.first_address %d is above bus.last_address %d", cfg.Bus.FirstAddress, cfg.Bus.LastAddress)
	}
	if cfg.Poll.StaleAfter < 0 {
		return fmt.Errorf("poll.stale_after must not be negative, got %d", cfg.Poll.StaleAfter)
	}
	if cfg.Poll.PauseMS < 0 {
		return fmt.Errorf("poll.pause_ms must not be negative, got %d", cfg.Poll.PauseMS)
	}
	if cfg.Publish.PeriodMS <= 0 {
		return fmt.Errorf("publish.period_ms must be positive, got %d", cfg.Publish.PeriodMS)
	}
	if cfg.Publish.TelemetryTopic == "" || cfg.Publish.BufferTopic == "" {
		return fmt.Errorf("publish topics must not be empty")
	}
	if cfg.Publish.TelemetryTopic == cfg.Publish.BufferTopic {
		return fmt.Errorf("publish.telemetry_topic and publish.buffer_topic must differ")
	}
	if (cfg.Server.Username == "") != (cfg.Server.Password == "") {
		return fmt.Errorf("server.username and server.password must be set together")
	}
	return nil
}

// Timeout returns the bus read timeout
func (b BusConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutMS) * time.Millisecond
}

// Pause returns the delay between sweeps
func (p PollConfig) Pause() time.Duration {
	return time.Duration(p.PauseMS) * time.Millisecond
}

// Period returns the publish period
func (p PublishConfig) Period() time.Duration {
	return time.Duration(p.PeriodMS) * time.Millisecond
}
