//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"

	"softpwm/core"
)

const consumer = "softpwm"

// CdevDriver drives lines through the GPIO character device. Pins are line
// offsets on one chip.
type CdevDriver struct {
	chip  *gpiocdev.Chip
	lines map[core.GPIOPin]*gpiocdev.Line
}

// OpenCdev opens a chip by name ("gpiochip0") or path ("/dev/gpiochip0")
func OpenCdev(chip string) (*CdevDriver, error) {
	c, err := gpiocdev.NewChip(chip, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("gpio: open %s: %w", chip, err)
	}
	return &CdevDriver{
		chip:  c,
		lines: make(map[core.GPIOPin]*gpiocdev.Line),
	}, nil
}

func openCdev(chip string) (Driver, error) {
	d, err := OpenCdev(chip)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ConfigureOutput requests the line as an output, initially low
func (d *CdevDriver) ConfigureOutput(pin core.GPIOPin) error {
	if _, ok := d.lines[pin]; ok {
		return nil
	}
	line, err := d.chip.RequestLine(int(pin), gpiocdev.AsOutput(0))
	if err != nil {
		return fmt.Errorf("gpio: request line %d: %w", pin, err)
	}
	d.lines[pin] = line
	return nil
}

func (d *CdevDriver) SetPin(pin core.GPIOPin, value bool) error {
	line, ok := d.lines[pin]
	if !ok {
		if err := d.ConfigureOutput(pin); err != nil {
			return err
		}
		line = d.lines[pin]
	}
	v := 0
	if value {
		v = 1
	}
	return line.SetValue(v)
}

// Close drives every line low, releases it and closes the chip
func (d *CdevDriver) Close() error {
	var err error
	for pin, line := range d.lines {
		err = multierr.Append(err, line.SetValue(0))
		err = multierr.Append(err, line.Close())
		delete(d.lines, pin)
	}
	if d.chip != nil {
		err = multierr.Append(err, d.chip.Close())
		d.chip = nil
	}
	return err
}
