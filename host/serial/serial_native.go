package serial

import (
	"fmt"

	"github.com/tarm/serial"
)

// NativePort is a Port backed by github.com/tarm/serial
type NativePort struct {
	port *serial.Port
	cfg  Config
}

// Open opens the device described by cfg
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, ErrNoDevice
	}
	c := *cfg
	if err := c.Validate(); err != nil {
		return nil, err
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        c.Device,
		Baud:        c.Baud,
		ReadTimeout: c.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", c.Device, err)
	}
	return &NativePort{port: port, cfg: c}, nil
}

func (p *NativePort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *NativePort) Close() error {
	if p.port == nil {
		return nil
	}
	return p.port.Close()
}

// Flush discards unread input and unsent output
func (p *NativePort) Flush() error {
	return p.port.Flush()
}

// Device returns the path the port was opened with
func (p *NativePort) Device() string {
	return p.cfg.Device
}
