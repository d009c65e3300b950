package store

import (
	"fmt"

	"tinygo.org/x/drivers"
)

const maxAckPolls = 1000

// EEPROM is a 24-series I2C EEPROM with 2-byte memory addresses.
type EEPROM struct {
	bus      drivers.I2C
	address  uint16
	pageSize int
	size     int
	buf      []byte
}

// NewEEPROM returns a backing for the device at address holding size bytes
// written in pages of pageSize.
func NewEEPROM(bus drivers.I2C, address uint8, pageSize, size int) *EEPROM {
	return &EEPROM{
		bus:      bus,
		address:  uint16(address),
		pageSize: pageSize,
		size:     size,
		buf:      make([]byte, 2+pageSize),
	}
}

// Connected reports whether the device acknowledges its address.
func (e *EEPROM) Connected() bool {
	return e.bus.Tx(e.address, nil, []byte{0}) == nil
}

func (e *EEPROM) Read(offset int, p []byte) error {
	if err := e.check(offset, len(p)); err != nil {
		return err
	}
	addr := []byte{byte(offset >> 8), byte(offset)}
	if err := e.bus.Tx(e.address, addr, p); err != nil {
		return fmt.Errorf("eeprom read at %d: %w", offset, err)
	}
	return nil
}

// Write splits p at page boundaries; a page write wraps inside the page
// on the device otherwise.
func (e *EEPROM) Write(offset int, p []byte) error {
	if err := e.check(offset, len(p)); err != nil {
		return err
	}
	for len(p) > 0 {
		n := min(e.pageSize-offset%e.pageSize, len(p))
		if err := e.writePage(offset, p[:n]); err != nil {
			return err
		}
		offset += n
		p = p[n:]
	}
	return nil
}

// Erase fills the whole device with 0xFF.
func (e *EEPROM) Erase() error {
	page := make([]byte, e.pageSize)
	fill(page, 0xFF)
	for off := 0; off < e.size; off += e.pageSize {
		if err := e.writePage(off, page[:min(e.pageSize, e.size-off)]); err != nil {
			return err
		}
	}
	return nil
}

func (e *EEPROM) writePage(offset int, p []byte) error {
	frame := e.buf[:2+len(p)]
	frame[0] = byte(offset >> 8)
	frame[1] = byte(offset)
	copy(frame[2:], p)
	if err := e.bus.Tx(e.address, frame, nil); err != nil {
		return fmt.Errorf("eeprom write at %d: %w", offset, err)
	}
	return e.waitReady()
}

// waitReady polls until the device acknowledges again after an internal
// write cycle.
func (e *EEPROM) waitReady() error {
	var err error
	for i := 0; i < maxAckPolls; i++ {
		if err = e.bus.Tx(e.address, []byte{}, nil); err == nil {
			return nil
		}
	}
	return fmt.Errorf("eeprom write cycle: %w", err)
}

func (e *EEPROM) check(offset, n int) error {
	if offset < 0 || offset+n > e.size {
		return fmt.Errorf("%w: %d bytes at %d in %d byte eeprom", ErrOutOfRange, n, offset, e.size)
	}
	return nil
}
