//go:build rp2040 || rp2350

package main

import "machine"

// InitUSB configures the USB CDC serial port; TinyGo supplies the descriptors
func InitUSB() {
	_ = machine.Serial.Configure(machine.UARTConfig{})
}

// USBAvailable returns the number of buffered bytes
func USBAvailable() int {
	return machine.Serial.Buffered()
}

// USBRead reads one byte
func USBRead() (byte, error) {
	return machine.Serial.ReadByte()
}

// USBWriteBytes writes data, possibly partially
func USBWriteBytes(data []byte) (int, error) {
	return machine.Serial.Write(data)
}
