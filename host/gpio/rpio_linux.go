//go:build linux

package gpio

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"

	"softpwm/core"
)

// BCM2835-family chips expose GPIO0-GPIO53
const rpioPinCount = 54

// RPIODriver drives Raspberry Pi pins through memory-mapped registers.
// Pins are BCM numbers. Only one RPIODriver may be open at a time.
type RPIODriver struct {
	pins map[core.GPIOPin]rpio.Pin
}

// OpenRPIO maps the GPIO registers (/dev/gpiomem, or /dev/mem as root)
func OpenRPIO() (*RPIODriver, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("gpio: rpio open: %w", err)
	}
	return &RPIODriver{pins: make(map[core.GPIOPin]rpio.Pin)}, nil
}

func openRPIO() (Driver, error) {
	d, err := OpenRPIO()
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (d *RPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	if _, ok := d.pins[pin]; ok {
		return nil
	}
	if pin >= rpioPinCount {
		return fmt.Errorf("gpio: BCM pin %d out of range", pin)
	}
	p := rpio.Pin(pin)
	p.Output()
	d.pins[pin] = p
	return nil
}

func (d *RPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	p, ok := d.pins[pin]
	if !ok {
		if err := d.ConfigureOutput(pin); err != nil {
			return err
		}
		p = d.pins[pin]
	}
	if value {
		p.High()
	} else {
		p.Low()
	}
	return nil
}

// Close drives configured pins low and unmaps the registers
func (d *RPIODriver) Close() error {
	for pin, p := range d.pins {
		p.Low()
		delete(d.pins, pin)
	}
	return rpio.Close()
}
