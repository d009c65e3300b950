package store

import (
	"errors"
)

var errNack = errors.New("i2c nack")

// fakeEEPROM models a 24-series EEPROM on an I2C bus: page writes wrap
// inside the page and the device NACKs while a write cycle runs.
type fakeEEPROM struct {
	address  uint16
	pageSize int
	mem      []byte
	ptr      int
	busy     int
	writes   int
}

func newFakeEEPROM(address uint16, pageSize, size int) *fakeEEPROM {
	mem := make([]byte, size)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &fakeEEPROM{address: address, pageSize: pageSize, mem: mem}
}

func (f *fakeEEPROM) Tx(addr uint16, w, r []byte) error {
	if addr != f.address {
		return errNack
	}
	if f.busy > 0 {
		f.busy--
		return errNack
	}
	if len(w) >= 2 {
		f.ptr = int(w[0])<<8 | int(w[1])
		data := w[2:]
		if len(data) > 0 {
			page := f.ptr - f.ptr%f.pageSize
			for i, b := range data {
				f.mem[page+(f.ptr-page+i)%f.pageSize] = b
			}
			f.writes++
			f.busy = 2
		}
	}
	for i := range r {
		r[i] = f.mem[(f.ptr+i)%len(f.mem)]
	}
	return nil
}

func (f *fakeEEPROM) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	return f.Tx(uint16(addr), []byte{0, reg}, buf)
}

func (f *fakeEEPROM) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	return f.Tx(uint16(addr), append([]byte{0, reg}, buf...), nil)
}

// fakeFlash models an SPI NOR flash behind a chip select line.
type fakeFlash struct {
	mem      []byte
	selected bool
	op       byte
	addr     int
	wel      bool
	busy     int
	ops      []byte
}

func newFakeFlash(size int) *fakeFlash {
	mem := make([]byte, size)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &fakeFlash{mem: mem}
}

func (f *fakeFlash) cs(selected bool) {
	f.selected = selected
	f.op = 0
}

func (f *fakeFlash) Tx(w, r []byte) error {
	if !f.selected {
		return errors.New("chip not selected")
	}
	if len(w) > 0 && f.op == 0 {
		f.op = w[0]
		f.ops = append(f.ops, f.op)
		if len(w) >= 4 {
			f.addr = int(w[1])<<16 | int(w[2])<<8 | int(w[3])
		}
		switch f.op {
		case cmdWriteEnable:
			f.wel = true
		case cmdPageProgram:
			if f.wel {
				for i, b := range w[4:] {
					f.mem[f.addr+i] &= b
				}
				f.wel = false
				f.busy = 3
			}
		case cmdSectorErase:
			if f.wel {
				base := f.addr - f.addr%DefaultSectorSize
				for i := 0; i < DefaultSectorSize; i++ {
					f.mem[base+i] = 0xFF
				}
				f.wel = false
				f.busy = 3
			}
		}
	}
	for i := range r {
		switch f.op {
		case cmdRead:
			r[i] = f.mem[f.addr+i]
		case cmdReadStatus:
			r[i] = 0
			if f.busy > 0 {
				f.busy--
				r[i] = statusBusy
			}
		}
	}
	return nil
}

func (f *fakeFlash) Transfer(b byte) (byte, error) {
	r := []byte{0}
	err := f.Tx([]byte{b}, r)
	return r[0], err
}
