package core

// GPIOPin identifies a hardware output pin.
// Numbering is platform-specific; targets may map ranges to expanders.
type GPIOPin uint32

// GPIODriver is the digital output interface the soft-PWM scheduler drives.
// Platform-specific implementations handle the actual hardware.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output.
	// Calling it again on an already configured pin must be harmless.
	ConfigureOutput(pin GPIOPin) error

	// SetPin drives the pin high (true) or low (false).
	// The level must be applied before the call returns.
	SetPin(pin GPIOPin, value bool) error
}

// Global singleton used by firmware wiring.
var gpioDriver GPIODriver

// SetGPIODriver is called by target-specific code to register its driver.
func SetGPIODriver(d GPIODriver) {
	gpioDriver = d
}

// MustGPIO returns the configured driver or panics if missing.
func MustGPIO() GPIODriver {
	if gpioDriver == nil {
		panic("GPIO driver not configured")
	}
	return gpioDriver
}
