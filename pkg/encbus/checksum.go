// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package encbus

import "github.com/sigurn/crc16"

var modbusTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// Checksum computes the CRC-16/MODBUS frame checksum for the given data
// (initial value 0xFFFF, reflected polynomial 0xA001, no final XOR).
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, modbusTable)
}

// AppendChecksum appends the checksum of data in wire order (low byte first).
func AppendChecksum(data []byte) []byte {
	crc := Checksum(data)
	return append(data, byte(crc&0xFF), byte(crc>>8))
}
