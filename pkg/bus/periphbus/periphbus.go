// Package periphbus adapts a periph.io I2C bus to the driver interface used
// by the bus controller and the EEPROM store, so both run on a Linux host.
package periphbus

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"
)

// Bus wraps an i2c.Bus.
type Bus struct {
	bus    i2c.Bus
	closer func() error
}

var _ drivers.I2C = (*Bus)(nil)

// New wraps an already opened bus.
func New(bus i2c.Bus) *Bus {
	return &Bus{bus: bus}
}

// Open initializes the host drivers and opens the named bus ("" selects
// the first one) at the given frequency in Hz.
func Open(name string, frequency uint32) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize host drivers: %w", err)
	}
	bc, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c bus %q: %w", name, err)
	}
	if frequency > 0 {
		if err := bc.SetSpeed(physic.Frequency(frequency) * physic.Hertz); err != nil {
			bc.Close()
			return nil, fmt.Errorf("failed to set i2c speed: %w", err)
		}
	}
	return &Bus{bus: bc, closer: bc.Close}, nil
}

// Tx writes w then reads into r in one transaction.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	return b.bus.Tx(addr, w, r)
}

// ReadRegister reads buf starting at register reg.
func (b *Bus) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	return b.bus.Tx(uint16(addr), []byte{reg}, buf)
}

// WriteRegister writes buf starting at register reg.
func (b *Bus) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	w := make([]byte, 0, len(buf)+1)
	w = append(w, reg)
	w = append(w, buf...)
	return b.bus.Tx(uint16(addr), w, nil)
}

// String names the underlying bus.
func (b *Bus) String() string { return b.bus.String() }

// Close closes the bus if it was opened by Open.
func (b *Bus) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}
