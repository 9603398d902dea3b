// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Thermoquad/rotastat/pkg/encbus"
	"github.com/spf13/cobra"
)

var (
	probeAddress  uint8
	probeRegister string
	probeCount    uint16
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Send one register read and dump the raw exchange",
	Long: `Send a single read request to one address and print both frames.

The reply is checked for address echo, function code, byte count and
checksum, and every anomaly found is listed. Known registers are decoded.

Registers: angle, speed, turns, or a number such as 0x0041.

Exit codes:
  0 - Valid reply received
  1 - Device silent or reply invalid
  2 - Connection error`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().Uint8VarP(&probeAddress, "address", "a", 1, "Device address")
	probeCmd.Flags().StringVarP(&probeRegister, "register", "r", "angle", "Register to read")
	probeCmd.Flags().Uint16Var(&probeCount, "count", 0, "Register count (default depends on register)")
}

// parseRegister resolves a register name or number and its natural count
func parseRegister(name string) (uint16, uint16, error) {
	switch strings.ToLower(name) {
	case "angle":
		return encbus.RegAngle, encbus.AngleRegisters, nil
	case "speed":
		return encbus.RegSpeed, encbus.SpeedRegisters, nil
	case "turns":
		return encbus.RegTurns, encbus.TurnsRegisters, nil
	}

	v, err := strconv.ParseUint(name, 0, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("unknown register %q", name)
	}
	return uint16(v), 1, nil
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	start, count, err := parseRegister(probeRegister)
	if err != nil {
		return err
	}
	if probeCount > 0 {
		count = probeCount
	}

	if cfg.Bus.Port == "" {
		fmt.Fprintf(os.Stderr, "Connection error: --port must be specified\n")
		os.Exit(2)
	}
	transport, err := OpenSerialTransport(cfg.Bus.Port, cfg.Bus.Baud, cfg.Bus.Timeout())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer transport.Close()

	fmt.Printf("Rotastat - Probe\n")
	fmt.Printf("Connection: Serial: %s @ %d baud, timeout %v\n\n", cfg.Bus.Port, cfg.Bus.Baud, cfg.Bus.Timeout())

	req := encbus.BuildRequest(probeAddress, start, count)
	fmt.Println(encbus.FormatRequest(req))

	resp, err := encbus.Exchange(transport, req)
	if err != nil {
		fmt.Printf("TRANSACTION FAILED: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(encbus.FormatResponse(resp))

	if resp.Empty() {
		fmt.Printf("\nSILENT: address %d did not answer within %v\n", probeAddress, cfg.Bus.Timeout())
		os.Exit(1)
	}

	issues := encbus.ValidateResponse(req, resp)
	if len(issues) > 0 {
		fmt.Printf("\nINVALID REPLY:\n")
		for _, issue := range issues {
			fmt.Printf("  [%s] %s\n", issue.Type, issue.Message)
		}
		os.Exit(1)
	}

	fmt.Printf("\nOK: %s\n", describeData(start, resp.Data()))
	return nil
}

// describeData decodes the data bytes of a known register
func describeData(reg uint16, data []byte) string {
	switch reg {
	case encbus.RegAngle:
		if raw, err := encbus.DecodeAngle(data); err == nil {
			return fmt.Sprintf("ANGLE raw=%d (%.2f')", raw, encbus.Record{AngleRaw: raw}.Degrees())
		}
	case encbus.RegSpeed:
		if raw, err := encbus.DecodeSpeed(data); err == nil {
			return fmt.Sprintf("SPEED raw=%d (%.2f RPM)", raw, encbus.Record{SpeedRaw: raw}.RPM())
		}
	case encbus.RegTurns:
		if turns, err := encbus.DecodeTurns(data); err == nil {
			return fmt.Sprintf("TURNS %d", turns)
		}
	}
	return fmt.Sprintf("%s data=[%s]", encbus.FormatRegister(reg), encbus.FormatHex(data))
}
