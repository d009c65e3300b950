package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	p := Default()

	assert.NotNil(t, p)
	assert.Equal(t, "16nx", p.Name)
	assert.Equal(t, uint8(5), p.DeviceIndex)
	assert.Equal(t, [3]byte{3, 0, 1}, p.Version())
	assert.Equal(t, 16, p.Faders.Count)
	assert.Equal(t, 4096, p.Resolution())
	assert.Equal(t, []uint8{7, 6, 5, 4, 3, 2, 1, 0, 8, 9, 10, 11, 12, 13, 14, 15}, p.Faders.MuxLookup)
	assert.Equal(t, 10*time.Millisecond, p.Timing.ScanPeriod)
	assert.Equal(t, 10*time.Microsecond, p.Timing.MuxSettle)
	assert.Equal(t, 100*time.Millisecond, p.Timing.RefreshDelay)
	assert.Equal(t, time.Millisecond, p.Timing.RefreshSettle)
	assert.Equal(t, 5*time.Millisecond, p.Timing.MIDIBlink)
	assert.Equal(t, 10*time.Second, p.Timing.ControllerBootDelay)
	assert.Equal(t, FilterResponsive, p.Filter.Kind)
	assert.Equal(t, float32(32), p.Filter.ActivityThreshold)
	assert.Equal(t, uint8(0x34), p.Bus.Address)
	assert.Equal(t, 128, p.Sysex.BufferSize)
	assert.Equal(t, 16, p.Sysex.ChunkSize)
	assert.NoError(t, p.Validate())
}

func TestPreset(t *testing.T) {
	for _, name := range Presets() {
		p, err := Preset(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, p.Name)
		assert.NoError(t, p.Validate(), name)
	}

	duo, err := Preset("duo")
	require.NoError(t, err)
	assert.Equal(t, 2, duo.Faders.Count)
	assert.Len(t, duo.Faders.MuxLookup, 2)

	_, err = Preset("16zz")
	assert.Error(t, err)
}

func TestLoad_FileNotExists(t *testing.T) {
	p, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, p)
	assert.Equal(t, "16nx", p.Name)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_profile_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
name: bench
device_index: 9
firmware:
  major: 3
  minor: 1
  point: 0

faders:
  count: 4
  adc_bits: 10
  invert_adc: true
  mux_lookup: [3, 2, 1, 0]

timing:
  scan_period: 5ms
  refresh_delay: 250ms

filter:
  kind: hysteresis
  pole: 0.8
  hysteresis_bits: 3

storage:
  kind: file
  path: /tmp/faderbank.bin
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	p, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, p)

	assert.Equal(t, "bench", p.Name)
	assert.Equal(t, uint8(9), p.DeviceIndex)
	assert.Equal(t, [3]byte{3, 1, 0}, p.Version())
	assert.Equal(t, 4, p.Faders.Count)
	assert.Equal(t, 1024, p.Resolution())
	assert.True(t, p.Faders.InvertADC)
	assert.Equal(t, []uint8{3, 2, 1, 0}, p.Faders.MuxLookup)
	assert.Equal(t, 5*time.Millisecond, p.Timing.ScanPeriod)
	assert.Equal(t, 250*time.Millisecond, p.Timing.RefreshDelay)
	assert.Equal(t, FilterHysteresis, p.Filter.Kind)
	assert.Equal(t, float32(0.8), p.Filter.Pole)
	assert.Equal(t, 3, p.Filter.HysteresisBits)
	assert.Equal(t, StorageFile, p.Storage.Kind)
	assert.Equal(t, "/tmp/faderbank.bin", p.Storage.Path)
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_profile_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("invalid: yaml: content: [")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	p, err := Load(tmpfile.Name())
	assert.Error(t, err)
	assert.Nil(t, p)
}

func TestLoad_PartialYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_profile_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("name: partial\n")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	p, err := Load(tmpfile.Name())
	require.NoError(t, err)

	// Should use defaults for missing fields
	assert.Equal(t, "partial", p.Name)
	assert.Equal(t, 16, p.Faders.Count)
	assert.Equal(t, 256, p.Storage.PageSize)
}

func TestLoad_StraightWiring(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_profile_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	// a count without a lookup replaces the default 16-entry table
	_, err = tmpfile.WriteString("faders:\n  count: 3\n  mux_lookup: []\n")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	p, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 1, 2}, p.Faders.MuxLookup)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *Profile)
	}{
		{"no faders", func(p *Profile) { p.Faders.Count = 0 }},
		{"too many faders", func(p *Profile) { p.Faders.Count = 17 }},
		{"lookup mismatch", func(p *Profile) { p.Faders.MuxLookup = p.Faders.MuxLookup[:4] }},
		{"adc too wide", func(p *Profile) { p.Faders.ADCBits = 16 }},
		{"zero chunk", func(p *Profile) { p.Sysex.ChunkSize = 0 }},
		{"sector smaller than page", func(p *Profile) { p.Storage.SectorSize = 128 }},
		{"bad filter", func(p *Profile) { p.Filter.Kind = "kalman" }},
		{"bad storage", func(p *Profile) { p.Storage.Kind = "tape" }},
		{"bad scan range", func(p *Profile) { p.Bus.ScanStart, p.Bus.ScanEnd = 100, 10 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.modify(p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidProfile))
		})
	}
}

func TestSave(t *testing.T) {
	p := Default()
	p.Name = "saved"
	p.Storage.Kind = StorageEEPROM

	tmpfile, err := os.CreateTemp("", "test_save_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	err = p.Save(tmpfile.Name())
	require.NoError(t, err)

	// Load it back and verify
	loaded, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, "saved", loaded.Name)
	assert.Equal(t, StorageEEPROM, loaded.Storage.Kind)
	assert.Equal(t, p.Faders.MuxLookup, loaded.Faders.MuxLookup)
	assert.Equal(t, p.Timing, loaded.Timing)
}
