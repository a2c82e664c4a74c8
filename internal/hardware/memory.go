package hardware

import (
	"sync"
	"time"
)

// PinWrite is one recorded pin output.
type PinWrite struct {
	Pin  int
	High bool
	At   time.Time
}

// BusWrite is one recorded I2C write.
type BusWrite struct {
	Addr uint16
	Data []byte
}

// MemoryDriver records outputs instead of driving hardware.
type MemoryDriver struct {
	mu        sync.Mutex
	writes    []PinWrite
	busWrites []BusWrite
	readData  map[uint16][]byte
}

func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{readData: make(map[uint16][]byte)}
}

func (d *MemoryDriver) Out(pin int) (OutputPin, error) {
	return &memoryPin{driver: d, pin: pin}, nil
}

func (d *MemoryDriver) I2C(addr uint16) (I2CDevice, error) {
	return &memoryI2C{driver: d, addr: addr}, nil
}

func (d *MemoryDriver) Close() error { return nil }

// SetReadData sets the bytes returned by reads from addr.
func (d *MemoryDriver) SetReadData(addr uint16, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readData[addr] = append([]byte(nil), data...)
}

// Writes returns every pin write in order.
func (d *MemoryDriver) Writes() []PinWrite {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]PinWrite(nil), d.writes...)
}

// PinWrites returns the values written to one pin, in order.
func (d *MemoryDriver) PinWrites(pin int) []bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []bool
	for _, w := range d.writes {
		if w.Pin == pin {
			out = append(out, w.High)
		}
	}
	return out
}

// BusWrites returns every I2C write in order.
func (d *MemoryDriver) BusWrites() []BusWrite {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]BusWrite(nil), d.busWrites...)
}

type memoryPin struct {
	driver *MemoryDriver
	pin    int
}

func (p *memoryPin) Write(high bool) error {
	p.driver.mu.Lock()
	defer p.driver.mu.Unlock()
	p.driver.writes = append(p.driver.writes, PinWrite{Pin: p.pin, High: high, At: time.Now()})
	return nil
}

type memoryI2C struct {
	driver *MemoryDriver
	addr   uint16
}

func (m *memoryI2C) Tx(w, r []byte) error {
	m.driver.mu.Lock()
	defer m.driver.mu.Unlock()
	if len(w) > 0 {
		m.driver.busWrites = append(m.driver.busWrites, BusWrite{Addr: m.addr, Data: append([]byte(nil), w...)})
	}
	if len(r) > 0 {
		copy(r, m.driver.readData[m.addr])
	}
	return nil
}

func (m *memoryI2C) Close() error { return nil }
