// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Rotastat - Rotary Encoder Bus Telemetry
//
// Discovers the encoders on a multi-drop serial bus, polls their angle,
// speed and turn count, and publishes the selected encoder's record.

package main

import (
	"os"

	"github.com/Thermoquad/rotastat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
