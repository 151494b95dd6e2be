// Package gpio provides Linux implementations of core.GPIODriver and a
// microsecond clock so core.SoftPWM can run on a single-board computer.
package gpio

import (
	"errors"
	"fmt"
	"log/slog"

	"softpwm/core"
	"softpwm/host/config"
)

var ErrUnsupported = errors.New("gpio: backend not supported on this platform")

// Driver is a core.GPIODriver that owns OS resources
type Driver interface {
	core.GPIODriver
	// Close drives configured outputs low and releases them
	Close() error
}

// Open returns the backend named by cfg
func Open(cfg config.Config) (Driver, error) {
	switch cfg.Backend {
	case config.BackendGPIOCdev:
		return openCdev(cfg.Chip)
	case config.BackendRPIO:
		return openRPIO()
	default:
		return nil, fmt.Errorf("gpio: unknown backend %q", cfg.Backend)
	}
}

// LogDriver drives no hardware; it logs every level change. Used for dry runs.
type LogDriver struct {
	logger *slog.Logger
	levels map[core.GPIOPin]bool
	edges  uint64
}

func NewLogDriver(logger *slog.Logger) *LogDriver {
	return &LogDriver{
		logger: logger,
		levels: make(map[core.GPIOPin]bool),
	}
}

func (d *LogDriver) ConfigureOutput(pin core.GPIOPin) error {
	if _, ok := d.levels[pin]; !ok {
		d.levels[pin] = false
		d.logger.Info("configure output", "pin", pin)
	}
	return nil
}

func (d *LogDriver) SetPin(pin core.GPIOPin, value bool) error {
	if d.levels[pin] != value {
		d.edges++
		d.logger.Debug("edge", "pin", pin, "high", value)
	}
	d.levels[pin] = value
	return nil
}

// Level returns the last level written to pin
func (d *LogDriver) Level(pin core.GPIOPin) bool {
	return d.levels[pin]
}

// Edges counts level changes across all pins
func (d *LogDriver) Edges() uint64 {
	return d.edges
}

func (d *LogDriver) Close() error {
	for pin := range d.levels {
		d.levels[pin] = false
	}
	return nil
}
