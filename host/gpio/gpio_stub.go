//go:build !linux

package gpio

func openCdev(chip string) (Driver, error) {
	return nil, ErrUnsupported
}

func openRPIO() (Driver, error) {
	return nil, ErrUnsupported
}
