//go:build tinygo && rp2040

package main

import (
	"machine"

	"github.com/16n-faderbank/16next-firmware/pkg/config"
	"github.com/16n-faderbank/16next-firmware/pkg/store"
)

type mux struct {
	pins [muxPinCount]machine.Pin
}

func newMux() *mux {
	m := &mux{}
	for i := range m.pins {
		m.pins[i] = firstMuxPin + machine.Pin(i)
		m.pins[i].Configure(machine.PinConfig{Mode: machine.PinOutput})
	}
	return m
}

func (m *mux) Select(code uint8) {
	for i, p := range m.pins {
		p.Set(code&(1<<i) != 0)
	}
}

type adc struct {
	machine.ADC
}

func newADC() *adc {
	machine.InitADC()
	a := &adc{machine.ADC{Pin: adcPin}}
	a.Configure(machine.ADCConfig{})
	return a
}

func (a *adc) Get() uint16 { return a.ADC.Get() >> adcShift }

type led struct{ machine.Pin }

func newLED() led {
	ledPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return led{ledPin}
}

// uart is the TRS MIDI output.
type uart struct{ *machine.UART }

func (u uart) Drain() error {
	// the rp2040 driver writes synchronously
	return nil
}

// flashSector is the last sector of the on-board flash data area.
type flashSector struct {
	base     int64
	pageSize int
	pages    int
}

func newFlashSector(sectorSize, pageSize int) *flashSector {
	block := machine.Flash.EraseBlockSize()
	base := (machine.Flash.Size()/block - 1) * block
	return &flashSector{base: base, pageSize: pageSize, pages: sectorSize / pageSize}
}

var _ store.Sector = (*flashSector)(nil)

func (f *flashSector) PageSize() int { return f.pageSize }
func (f *flashSector) Pages() int    { return f.pages }

func (f *flashSector) ReadPage(page int, p []byte) error {
	_, err := machine.Flash.ReadAt(p, f.base+int64(page*f.pageSize))
	return err
}

func (f *flashSector) ProgramPage(page int, p []byte) error {
	_, err := machine.Flash.WriteAt(p, f.base+int64(page*f.pageSize))
	return err
}

func (f *flashSector) Erase() error {
	return machine.Flash.EraseBlocks(f.base/machine.Flash.EraseBlockSize(), 1)
}

// openStore builds the configuration store for the profile's storage kind.
func openStore(sc config.StorageConfig) (*store.Store, error) {
	var dev store.Devices
	switch sc.Kind {
	case config.StorageFlash:
		dev.Sector = newFlashSector(sc.SectorSize, sc.PageSize)
	case config.StorageEEPROM:
		i2c := machine.I2C0
		if err := i2c.Configure(machine.I2CConfig{Frequency: eepromFreq, SDA: eepromSDA, SCL: eepromSCL}); err != nil {
			return nil, err
		}
		dev.I2C = i2c
	case config.StorageSPIFlash:
		spi := machine.SPI0
		if err := spi.Configure(machine.SPIConfig{Frequency: spiFlashHz, SCK: spiFlashSCK, SDO: spiFlashSDO, SDI: spiFlashSDI}); err != nil {
			return nil, err
		}
		spiFlashCS.Configure(machine.PinConfig{Mode: machine.PinOutput})
		spiFlashCS.High()
		dev.SPI = spi
		// chip select is active low
		dev.CS = func(selected bool) { spiFlashCS.Set(!selected) }
	}
	return store.Open(sc, dev)
}
