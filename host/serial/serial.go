// Package serial opens the link to a soft-PWM MCU.
package serial

import (
	"errors"
	"io"
	"time"
)

// DefaultBaud is the Klipper default; USB CDC ignores it
const DefaultBaud = 250000

var ErrNoDevice = errors.New("serial: device path is required")

// Port is an open serial link. Tests substitute in-memory pipes.
type Port interface {
	io.ReadWriteCloser
	Flush() error
}

// Config holds serial port settings
type Config struct {
	Device string // e.g. /dev/ttyACM0 or COM3
	Baud   int

	// ReadTimeout makes Read return periodically; 0 blocks
	ReadTimeout time.Duration
}

// DefaultConfig returns settings for a USB CDC soft-PWM MCU
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// Validate fills zero values with defaults and rejects unusable settings
func (c *Config) Validate() error {
	if c.Device == "" {
		return ErrNoDevice
	}
	if c.Baud <= 0 {
		c.Baud = DefaultBaud
	}
	if c.ReadTimeout < 0 {
		c.ReadTimeout = 0
	}
	return nil
}
