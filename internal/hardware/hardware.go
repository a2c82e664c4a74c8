package hardware

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown hardware driver")

// OutputPin is a single binary GPIO output.
type OutputPin interface {
	Write(high bool) error
}

// I2CDevice is one addressed device on an I2C bus.
type I2CDevice interface {
	// Tx writes w and then reads len(r) bytes into r. Either may be empty.
	Tx(w, r []byte) error
	Close() error
}

// Driver opens pins and bus devices by BCM number and address.
type Driver interface {
	Out(pin int) (OutputPin, error)
	I2C(addr uint16) (I2CDevice, error)
	Close() error
}

// Open returns the named driver. "memory" never touches hardware; "periph"
// drives the host's GPIO and I2C through periph.io.
func Open(name, i2cBus string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "memory":
		return NewMemoryDriver(), nil
	case "periph":
		return NewPeriphDriver(i2cBus)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
}
