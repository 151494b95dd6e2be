//go:build rp2040 || rp2350

package main

import (
	"errors"
	"machine"

	"softpwm/core"

	"tinygo.org/x/drivers/mcp23017"
)

// Pins from ExpanderPinBase up live on an MCP23017 on I2C0 (SDA=GPIO4,
// SCL=GPIO5). They have no PWM hardware at all, so soft PWM is the only
// way to dim them.
const (
	ExpanderPinBase  = 100
	ExpanderPinCount = 16
	expanderAddress  = 0x20
	expanderI2CFreq  = 400 * machine.KHz
)

var (
	errNoExpander = errors.New("mcp23017 expander not present")
	errInvalidPin = errors.New("invalid pin number")
)

// RPGPIODriver implements core.GPIODriver for native pins and expander pins
type RPGPIODriver struct {
	configuredPins map[core.GPIOPin]machine.Pin
	expander       *mcp23017.Device
}

// NewRPGPIODriver creates the driver and probes for the expander. A missing
// expander is not an error; its pins just fail to configure.
func NewRPGPIODriver() *RPGPIODriver {
	d := &RPGPIODriver{
		configuredPins: make(map[core.GPIOPin]machine.Pin),
	}

	err := machine.I2C0.Configure(machine.I2CConfig{
		Frequency: expanderI2CFreq,
		SDA:       machine.GPIO4,
		SCL:       machine.GPIO5,
	})
	if err != nil {
		core.DebugPrintln("[GPIO] I2C0 configure failed: " + err.Error())
		return d
	}

	dev, err := mcp23017.NewI2C(machine.I2C0, expanderAddress)
	if err != nil {
		core.DebugPrintln("[GPIO] no MCP23017 at 0x20")
		return d
	}
	d.expander = dev
	core.DebugPrintln("[GPIO] MCP23017 expander online")
	return d
}

// ConfigureOutput makes pin a digital output; repeated calls are no-ops
func (d *RPGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	if isExpanderPin(pin) {
		if d.expander == nil {
			return errNoExpander
		}
		return d.expander.Pin(int(pin - ExpanderPinBase)).SetMode(mcp23017.Output)
	}

	if _, exists := d.configuredPins[pin]; exists {
		return nil
	}
	if int(pin) >= nativePinCount {
		return errInvalidPin
	}

	machinePin := machine.Pin(pin)
	machinePin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	d.configuredPins[pin] = machinePin
	return nil
}

// SetPin drives pin high or low, configuring it first if needed
func (d *RPGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	if isExpanderPin(pin) {
		if d.expander == nil {
			return errNoExpander
		}
		return d.expander.Pin(int(pin - ExpanderPinBase)).Set(value)
	}

	machinePin, exists := d.configuredPins[pin]
	if !exists {
		if err := d.ConfigureOutput(pin); err != nil {
			return err
		}
		machinePin = d.configuredPins[pin]
	}
	machinePin.Set(value)
	return nil
}

// HasExpander reports whether the MCP23017 answered at startup
func (d *RPGPIODriver) HasExpander() bool {
	return d.expander != nil
}

func isExpanderPin(pin core.GPIOPin) bool {
	return pin >= ExpanderPinBase && pin < ExpanderPinBase+ExpanderPinCount
}

// registerPins publishes pin names: gpioN for native pins, expN for expander
// pins at their numeric offset. Unused indices stay empty.
func registerPins(withExpander bool) {
	count := nativePinCount
	if withExpander {
		count = ExpanderPinBase + ExpanderPinCount
	}
	names := make([]string, count)
	for i := 0; i < nativePinCount; i++ {
		names[i] = "gpio" + itoa(i)
	}
	if withExpander {
		for i := 0; i < ExpanderPinCount; i++ {
			names[ExpanderPinBase+i] = "exp" + itoa(i)
		}
	}
	core.RegisterEnumeration("pin", names)
}

// itoa formats small non-negative ints without strconv
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [10]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(buf[pos:])
}
