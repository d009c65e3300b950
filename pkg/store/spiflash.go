package store

import (
	"errors"
	"fmt"

	"tinygo.org/x/drivers"
)

// SPI NOR flash instructions (W25Q / GD25Q families).
const (
	cmdWriteEnable  = 0x06
	cmdPageProgram  = 0x02
	cmdRead         = 0x03
	cmdReadStatus   = 0x05
	cmdSectorErase  = 0x20
	statusBusy      = 0x01
	maxStatusPolls  = 100000
	flashAddressLen = 3
)

// ErrBusy is returned when the flash never leaves its busy state.
var ErrBusy = errors.New("flash busy")

// SPIFlash is one sector of an external SPI NOR flash.
type SPIFlash struct {
	bus        drivers.SPI
	cs         func(selected bool)
	base       uint32
	sectorSize int
	pageSize   int
	buf        []byte
}

// NewSPIFlash returns the sector at base. cs drives the chip select line.
func NewSPIFlash(bus drivers.SPI, cs func(selected bool), base uint32, sectorSize, pageSize int) *SPIFlash {
	return &SPIFlash{
		bus:        bus,
		cs:         cs,
		base:       base,
		sectorSize: sectorSize,
		pageSize:   pageSize,
		buf:        make([]byte, 1+flashAddressLen+pageSize),
	}
}

func (f *SPIFlash) PageSize() int { return f.pageSize }
func (f *SPIFlash) Pages() int    { return f.sectorSize / f.pageSize }

func (f *SPIFlash) ReadPage(page int, p []byte) error {
	base, err := pageBase(page, f.Pages(), f.pageSize, len(p))
	if err != nil {
		return err
	}
	cmd := f.command(cmdRead, f.base+uint32(base))
	return f.transaction(func() error {
		if err := f.bus.Tx(cmd, nil); err != nil {
			return err
		}
		return f.bus.Tx(nil, p)
	})
}

func (f *SPIFlash) ProgramPage(page int, p []byte) error {
	base, err := pageBase(page, f.Pages(), f.pageSize, len(p))
	if err != nil {
		return err
	}
	if err := f.writeEnable(); err != nil {
		return err
	}
	frame := append(f.command(cmdPageProgram, f.base+uint32(base)), p...)
	if err := f.transaction(func() error { return f.bus.Tx(frame, nil) }); err != nil {
		return fmt.Errorf("page program: %w", err)
	}
	return f.wait()
}

func (f *SPIFlash) Erase() error {
	if err := f.writeEnable(); err != nil {
		return err
	}
	cmd := f.command(cmdSectorErase, f.base)
	if err := f.transaction(func() error { return f.bus.Tx(cmd, nil) }); err != nil {
		return fmt.Errorf("sector erase: %w", err)
	}
	return f.wait()
}

func (f *SPIFlash) command(op byte, addr uint32) []byte {
	cmd := f.buf[:1+flashAddressLen]
	cmd[0] = op
	cmd[1] = byte(addr >> 16)
	cmd[2] = byte(addr >> 8)
	cmd[3] = byte(addr)
	return cmd
}

func (f *SPIFlash) writeEnable() error {
	err := f.transaction(func() error {
		return f.bus.Tx([]byte{cmdWriteEnable}, nil)
	})
	if err != nil {
		return fmt.Errorf("write enable: %w", err)
	}
	return nil
}

// wait polls the status register until the write in progress bit clears.
func (f *SPIFlash) wait() error {
	status := []byte{0}
	for i := 0; i < maxStatusPolls; i++ {
		err := f.transaction(func() error {
			if err := f.bus.Tx([]byte{cmdReadStatus}, nil); err != nil {
				return err
			}
			return f.bus.Tx(nil, status)
		})
		if err != nil {
			return fmt.Errorf("read status: %w", err)
		}
		if status[0]&statusBusy == 0 {
			return nil
		}
	}
	return ErrBusy
}

func (f *SPIFlash) transaction(fn func() error) error {
	f.cs(true)
	defer f.cs(false)
	return fn()
}
