package hardware

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// PeriphDriver drives host GPIO and I2C through periph.io.
type PeriphDriver struct {
	busName string

	mu  sync.Mutex
	bus i2c.BusCloser
}

// NewPeriphDriver initialises the host drivers. An empty busName selects the
// first available I2C bus.
func NewPeriphDriver(busName string) (*PeriphDriver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	return &PeriphDriver{busName: busName}, nil
}

func (d *PeriphDriver) Out(pin int) (OutputPin, error) {
	name := fmt.Sprintf("GPIO%d", pin)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio pin %s not found", name)
	}
	return &periphPin{pin: p}, nil
}

func (d *PeriphDriver) I2C(addr uint16) (I2CDevice, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bus == nil {
		bus, err := i2creg.Open(d.busName)
		if err != nil {
			return nil, fmt.Errorf("open i2c bus %q: %w", d.busName, err)
		}
		d.bus = bus
	}
	return &periphI2C{dev: &i2c.Dev{Bus: d.bus, Addr: addr}}, nil
}

func (d *PeriphDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bus == nil {
		return nil
	}
	err := d.bus.Close()
	d.bus = nil
	return err
}

type periphPin struct {
	pin gpio.PinIO
}

func (p *periphPin) Write(high bool) error {
	level := gpio.Low
	if high {
		level = gpio.High
	}
	if err := p.pin.Out(level); err != nil {
		return fmt.Errorf("write %s: %w", p.pin.Name(), err)
	}
	return nil
}

type periphI2C struct {
	dev *i2c.Dev
}

func (p *periphI2C) Tx(w, r []byte) error {
	return p.dev.Tx(w, r)
}

// Close is a no-op; the bus is shared and closed with the driver.
func (p *periphI2C) Close() error { return nil }
