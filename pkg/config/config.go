package config

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// MaxFaders is the number of per-channel slots in the configuration block.
const MaxFaders = 16

// ErrInvalidProfile is returned by Validate for profiles the firmware cannot run.
var ErrInvalidProfile = errors.New("invalid device profile")

// Filter kinds.
const (
	FilterResponsive = "responsive"
	FilterHysteresis = "hysteresis"
)

// Storage kinds.
const (
	StorageFlash    = "flash"     // on-board flash, last sector, wear-leveled pages
	StorageSPIFlash = "spi-flash" // external SPI NOR flash, wear-leveled pages
	StorageEEPROM   = "eeprom"    // external I2C EEPROM, byte addressable
	StorageFile     = "file"      // host file emulating a flash sector
)

// Profile describes one hardware variant of the controller.
type Profile struct {
	Name        string        `yaml:"name"`
	DeviceIndex uint8         `yaml:"device_index"`
	Firmware    VersionConfig `yaml:"firmware"`
	Faders      FaderConfig   `yaml:"faders"`
	Timing      TimingConfig  `yaml:"timing"`
	Filter      FilterConfig  `yaml:"filter"`
	Storage     StorageConfig `yaml:"storage"`
	Bus         BusConfig     `yaml:"bus"`
	Sysex       SysexConfig   `yaml:"sysex"`
}

// VersionConfig is the firmware version reported in config dumps.
type VersionConfig struct {
	Major uint8 `yaml:"major"`
	Minor uint8 `yaml:"minor"`
	Point uint8 `yaml:"point"`
}

// FaderConfig contains the analog front end layout.
type FaderConfig struct {
	Count     int     `yaml:"count"`
	ADCBits   int     `yaml:"adc_bits"`
	InvertADC bool    `yaml:"invert_adc"` // pots wired in reverse
	MuxLookup []uint8 `yaml:"mux_lookup"` // logical fader -> mux address
}

// TimingConfig contains loop deadlines and busy-wait durations.
type TimingConfig struct {
	ScanPeriod          time.Duration `yaml:"scan_period"`
	MuxSettle           time.Duration `yaml:"mux_settle"`
	RefreshDelay        time.Duration `yaml:"refresh_delay"`  // request-config -> forced refresh
	RefreshSettle       time.Duration `yaml:"refresh_settle"` // busy-wait before a forced refresh
	MIDIBlink           time.Duration `yaml:"midi_blink"`
	ControllerBootDelay time.Duration `yaml:"controller_boot_delay"` // lets followers boot first
}

// FilterConfig contains the analog conditioner parameters.
type FilterConfig struct {
	Kind              string  `yaml:"kind"`
	SnapMultiplier    float32 `yaml:"snap_multiplier"`
	ActivityThreshold float32 `yaml:"activity_threshold"`
	Sleep             bool    `yaml:"sleep"`
	EdgeSnap          bool    `yaml:"edge_snap"`
	Pole              float32 `yaml:"pole"`            // hysteresis kind only
	HysteresisBits    int     `yaml:"hysteresis_bits"` // hysteresis kind only
}

// StorageConfig selects and sizes the configuration backing store.
type StorageConfig struct {
	Kind           string `yaml:"kind"`
	PageSize       int    `yaml:"page_size"`
	SectorSize     int    `yaml:"sector_size"`
	EEPROMAddress  uint8  `yaml:"eeprom_address"`
	EEPROMPageSize int    `yaml:"eeprom_page_size"`
	EEPROMSize     int    `yaml:"eeprom_size"`
	Path           string `yaml:"path"` // file kind only
}

// BusConfig contains the I2C bridge parameters.
type BusConfig struct {
	Address   uint8  `yaml:"address"` // own address in peripheral role
	Frequency uint32 `yaml:"frequency"`
	ScanStart uint8  `yaml:"scan_start"`
	ScanEnd   uint8  `yaml:"scan_end"` // exclusive
}

// SysexConfig sizes the sysex buffers.
type SysexConfig struct {
	BufferSize  int `yaml:"buffer_size"`
	ChunkSize   int `yaml:"chunk_size"`
	InputBuffer int `yaml:"input_buffer"`
}

// Default returns the 16nx profile.
func Default() *Profile {
	return &Profile{
		Name:        "16nx",
		DeviceIndex: 5,
		Firmware:    VersionConfig{Major: 3, Minor: 0, Point: 1},
		Faders: FaderConfig{
			Count:     16,
			ADCBits:   12,
			InvertADC: false,
			// faders 0-7 are wired to mux inputs 7-0
			MuxLookup: []uint8{7, 6, 5, 4, 3, 2, 1, 0, 8, 9, 10, 11, 12, 13, 14, 15},
		},
		Timing: TimingConfig{
			ScanPeriod:          10 * time.Millisecond,
			MuxSettle:           10 * time.Microsecond,
			RefreshDelay:        100 * time.Millisecond,
			RefreshSettle:       time.Millisecond,
			MIDIBlink:           5 * time.Millisecond,
			ControllerBootDelay: 10 * time.Second,
		},
		Filter: FilterConfig{
			Kind:              FilterResponsive,
			SnapMultiplier:    0.0001,
			ActivityThreshold: 32,
			Sleep:             true,
			EdgeSnap:          true,
			Pole:              0.9,
			HysteresisBits:    5,
		},
		Storage: StorageConfig{
			Kind:           StorageFlash,
			PageSize:       256,
			SectorSize:     4096,
			EEPROMAddress:  0x50,
			EEPROMPageSize: 32,
			EEPROMSize:     64 * 1024 / 8,
		},
		Bus: BusConfig{
			Address:   0x34,
			Frequency: 400000,
			ScanStart: 8,
			ScanEnd:   120,
		},
		Sysex: SysexConfig{
			BufferSize:  128,
			ChunkSize:   16,
			InputBuffer: 64,
		},
	}
}

var presets = map[string]func(p *Profile){
	"16nx": func(p *Profile) {},
	"16rx": func(p *Profile) {
		p.Name = "16rx"
		p.DeviceIndex = 4
	},
	"dev": func(p *Profile) {
		p.Name = "dev"
		p.Filter.SnapMultiplier = 0.05
		p.Filter.ActivityThreshold = 16
		p.Filter.EdgeSnap = false
	},
	"duo": func(p *Profile) {
		p.Name = "duo"
		p.DeviceIndex = 6
		p.Faders.Count = 2
		p.Faders.MuxLookup = []uint8{0, 1}
	},
}

// Presets returns the names of the built-in profiles.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns a built-in profile by name.
func Preset(name string) (*Profile, error) {
	apply, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q", name)
	}
	p := Default()
	apply(p)
	return p, nil
}

// Resolution is the number of distinct ADC codes.
func (p *Profile) Resolution() int {
	return 1 << p.Faders.ADCBits
}

// Version returns the firmware version triplet as sent on the wire.
func (p *Profile) Version() [3]byte {
	return [3]byte{p.Firmware.Major, p.Firmware.Minor, p.Firmware.Point}
}

// Validate checks the profile for values the firmware cannot honor.
func (p *Profile) Validate() error {
	switch {
	case p.Faders.Count < 1 || p.Faders.Count > MaxFaders:
		return fmt.Errorf("%w: fader count %d not in 1..%d", ErrInvalidProfile, p.Faders.Count, MaxFaders)
	case len(p.Faders.MuxLookup) != p.Faders.Count:
		return fmt.Errorf("%w: mux lookup has %d entries for %d faders", ErrInvalidProfile, len(p.Faders.MuxLookup), p.Faders.Count)
	case p.Faders.ADCBits < 7 || p.Faders.ADCBits > 14:
		return fmt.Errorf("%w: adc bits %d not in 7..14", ErrInvalidProfile, p.Faders.ADCBits)
	case p.Sysex.ChunkSize < 1:
		return fmt.Errorf("%w: chunk size %d", ErrInvalidProfile, p.Sysex.ChunkSize)
	case p.Storage.PageSize < 4 || p.Storage.SectorSize < p.Storage.PageSize:
		return fmt.Errorf("%w: page size %d, sector size %d", ErrInvalidProfile, p.Storage.PageSize, p.Storage.SectorSize)
	case p.Bus.ScanEnd < p.Bus.ScanStart:
		return fmt.Errorf("%w: bus scan range %d..%d", ErrInvalidProfile, p.Bus.ScanStart, p.Bus.ScanEnd)
	}

	switch p.Filter.Kind {
	case FilterResponsive, FilterHysteresis:
	default:
		return fmt.Errorf("%w: filter kind %q", ErrInvalidProfile, p.Filter.Kind)
	}

	switch p.Storage.Kind {
	case StorageFlash, StorageSPIFlash, StorageEEPROM, StorageFile:
	default:
		return fmt.Errorf("%w: storage kind %q", ErrInvalidProfile, p.Storage.Kind)
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (p *Profile) ensureDefaults() {
	def := Default()

	if p.Name == "" {
		p.Name = def.Name
	}
	if p.Faders.Count == 0 {
		p.Faders.Count = def.Faders.Count
	}
	if p.Faders.ADCBits == 0 {
		p.Faders.ADCBits = def.Faders.ADCBits
	}
	if len(p.Faders.MuxLookup) == 0 {
		// straight wiring
		p.Faders.MuxLookup = make([]uint8, p.Faders.Count)
		for i := range p.Faders.MuxLookup {
			p.Faders.MuxLookup[i] = uint8(i)
		}
	}

	if p.Timing.ScanPeriod == 0 {
		p.Timing.ScanPeriod = def.Timing.ScanPeriod
	}
	if p.Timing.MuxSettle == 0 {
		p.Timing.MuxSettle = def.Timing.MuxSettle
	}
	if p.Timing.RefreshDelay == 0 {
		p.Timing.RefreshDelay = def.Timing.RefreshDelay
	}
	if p.Timing.RefreshSettle == 0 {
		p.Timing.RefreshSettle = def.Timing.RefreshSettle
	}
	if p.Timing.MIDIBlink == 0 {
		p.Timing.MIDIBlink = def.Timing.MIDIBlink
	}

	if p.Filter.Kind == "" {
		p.Filter.Kind = def.Filter.Kind
	}
	if p.Filter.SnapMultiplier == 0 {
		p.Filter.SnapMultiplier = def.Filter.SnapMultiplier
	}
	if p.Filter.ActivityThreshold == 0 {
		p.Filter.ActivityThreshold = def.Filter.ActivityThreshold
	}
	if p.Filter.Pole == 0 {
		p.Filter.Pole = def.Filter.Pole
	}
	if p.Filter.HysteresisBits == 0 {
		p.Filter.HysteresisBits = def.Filter.HysteresisBits
	}

	if p.Storage.Kind == "" {
		p.Storage.Kind = def.Storage.Kind
	}
	if p.Storage.PageSize == 0 {
		p.Storage.PageSize = def.Storage.PageSize
	}
	if p.Storage.SectorSize == 0 {
		p.Storage.SectorSize = def.Storage.SectorSize
	}
	if p.Storage.EEPROMAddress == 0 {
		p.Storage.EEPROMAddress = def.Storage.EEPROMAddress
	}
	if p.Storage.EEPROMPageSize == 0 {
		p.Storage.EEPROMPageSize = def.Storage.EEPROMPageSize
	}
	if p.Storage.EEPROMSize == 0 {
		p.Storage.EEPROMSize = def.Storage.EEPROMSize
	}

	if p.Bus.Address == 0 {
		p.Bus.Address = def.Bus.Address
	}
	if p.Bus.Frequency == 0 {
		p.Bus.Frequency = def.Bus.Frequency
	}
	if p.Bus.ScanStart == 0 && p.Bus.ScanEnd == 0 {
		p.Bus.ScanStart = def.Bus.ScanStart
		p.Bus.ScanEnd = def.Bus.ScanEnd
	}

	if p.Sysex.BufferSize == 0 {
		p.Sysex.BufferSize = def.Sysex.BufferSize
	}
	if p.Sysex.ChunkSize == 0 {
		p.Sysex.ChunkSize = def.Sysex.ChunkSize
	}
	if p.Sysex.InputBuffer == 0 {
		p.Sysex.InputBuffer = def.Sysex.InputBuffer
	}
}
