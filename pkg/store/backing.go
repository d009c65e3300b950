package store

import (
	"errors"
	"fmt"

	"tinygo.org/x/drivers"

	"github.com/16n-faderbank/16next-firmware/pkg/config"
)

// ErrNoDevice is returned when the storage kind needs a device that was not supplied.
var ErrNoDevice = errors.New("storage device missing")

// Devices are the peripherals a backing may be built on. Only the ones the
// configured kind needs have to be set.
type Devices struct {
	Sector  Sector      // flash and file kinds
	I2C     drivers.I2C // eeprom kind
	SPI     drivers.SPI // spi-flash kind
	CS      func(bool)  // spi-flash chip select
	SPIBase uint32      // spi-flash sector address
}

// NewBacking builds the backing selected by cfg.Kind.
func NewBacking(cfg config.StorageConfig, dev Devices) (Backing, error) {
	switch cfg.Kind {
	case config.StorageFlash, config.StorageFile:
		if dev.Sector == nil {
			return nil, fmt.Errorf("%w: %s kind needs a sector", ErrNoDevice, cfg.Kind)
		}
		return NewWearLeveler(dev.Sector), nil
	case config.StorageSPIFlash:
		if dev.SPI == nil || dev.CS == nil {
			return nil, fmt.Errorf("%w: %s kind needs an spi bus and chip select", ErrNoDevice, cfg.Kind)
		}
		return NewWearLeveler(NewSPIFlash(dev.SPI, dev.CS, dev.SPIBase, cfg.SectorSize, cfg.PageSize)), nil
	case config.StorageEEPROM:
		if dev.I2C == nil {
			return nil, fmt.Errorf("%w: %s kind needs an i2c bus", ErrNoDevice, cfg.Kind)
		}
		e := NewEEPROM(dev.I2C, cfg.EEPROMAddress, cfg.EEPROMPageSize, cfg.EEPROMSize)
		if !e.Connected() {
			return nil, fmt.Errorf("%w: no eeprom at 0x%02x", ErrNoDevice, cfg.EEPROMAddress)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown storage kind %q", cfg.Kind)
	}
}

// Open returns a store over the backing selected by cfg.Kind.
func Open(cfg config.StorageConfig, dev Devices) (*Store, error) {
	b, err := NewBacking(cfg, dev)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Kind, err)
	}
	logger.Debug("storage opened", "kind", cfg.Kind)
	return New(b), nil
}
