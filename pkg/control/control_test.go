package control

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/16n-faderbank/16next-firmware/pkg/bus"
	"github.com/16n-faderbank/16next-firmware/pkg/config"
	"github.com/16n-faderbank/16next-firmware/pkg/settings"
	"github.com/16n-faderbank/16next-firmware/pkg/store"
	"github.com/16n-faderbank/16next-firmware/pkg/sysex"
)

// board is a mux and ADC pair: levels are indexed by mux code.
type board struct {
	selected uint8
	levels   [16]uint16
	reads    int
}

func (b *board) Select(code uint8) { b.selected = code }

func (b *board) Get() uint16 {
	b.reads++
	return b.levels[b.selected]
}

// recorder keeps every write as a separate chunk.
type recorder struct {
	chunks [][]byte
	drains int
}

func (r *recorder) Write(p []byte) (int, error) {
	r.chunks = append(r.chunks, append([]byte(nil), p...))
	return len(p), nil
}

func (r *recorder) Drain() error {
	r.drains++
	return nil
}

func (r *recorder) joined() []byte {
	return bytes.Join(r.chunks, nil)
}

func (r *recorder) reset() { r.chunks = nil }

type led struct{ on bool }

func (l *led) Set(on bool) { l.on = on }

type fanout struct {
	probed int
	sent   map[int]uint16
	err    error
}

func (f *fanout) Probe() []uint16 {
	f.probed++
	return []uint16{0x60}
}

func (f *fanout) Send(channel int, value uint16) error {
	if f.sent == nil {
		f.sent = map[int]uint16{}
	}
	f.sent[channel] = value
	return f.err
}

type rig struct {
	profile *config.Profile
	board   *board
	usb     *recorder
	uart    *recorder
	led     *led
	bus     *fanout
	delays  []time.Duration
	store   *store.Store
	sched   *Scheduler
}

// newRig builds a scheduler over the dev profile, whose filter lands on a
// new reading in a single update. block, when not nil, is stored first.
func newRig(t *testing.T, block []byte) *rig {
	t.Helper()
	p, err := config.Preset("dev")
	require.NoError(t, err)

	r := &rig{
		profile: p,
		board:   &board{},
		usb:     &recorder{},
		uart:    &recorder{},
		led:     &led{},
		bus:     &fanout{},
		store:   store.New(store.NewWearLeveler(store.NewMemorySector(store.DefaultSectorSize, store.DefaultPageSize))),
	}
	if block != nil {
		require.NoError(t, r.store.Persist(block))
	}
	r.sched = New(p, Hardware{
		Mux:   r.board,
		ADC:   r.board,
		USB:   r.usb,
		UART:  r.uart,
		LED:   r.led,
		Delay: func(d time.Duration) { r.delays = append(r.delays, d) },
		Bus:   r.bus,
	}, r.store)
	require.NoError(t, r.sched.Start())
	return r
}

// setFader sets the reading of logical fader i.
func (r *rig) setFader(i int, v uint16) {
	r.board.levels[r.profile.Faders.MuxLookup[i]] = v
}

func TestStart_FirstBootWritesDefaults(t *testing.T) {
	r := newRig(t, nil)

	assert.Equal(t, settings.Default(), r.sched.Settings())
	block, err := r.store.Block()
	require.NoError(t, err)
	assert.Equal(t, settings.DefaultBlock(), block)
	assert.Zero(t, r.bus.probed, "peripheral role does not probe")
}

func TestStart_ControllerRoleProbes(t *testing.T) {
	block := settings.DefaultBlock()
	block[3] = 1
	r := newRig(t, block)

	assert.True(t, r.sched.Settings().BusController)
	assert.Equal(t, 1, r.bus.probed)
	assert.Equal(t, []time.Duration{10 * time.Second}, r.delays)
}

func TestUpdateControls_SevenBit(t *testing.T) {
	r := newRig(t, nil)
	r.setFader(0, 2048)

	r.sched.UpdateControls(false)

	assert.Equal(t, [][]byte{{0xB0, 32, 64}}, r.usb.chunks)
	assert.Equal(t, [][]byte{{0xB0, 32, 64}}, r.uart.chunks)
	assert.Equal(t, uint16(2048<<2), r.sched.Values().Load(0))
	assert.True(t, r.sched.Activity())

	// the mux is driven through the lookup table with a settle delay each
	assert.Equal(t, 16, r.board.reads)
	assert.Len(t, r.delays, 16)
	assert.Equal(t, 10*time.Microsecond, r.delays[0])

	// unchanged readings stay quiet
	r.usb.reset()
	r.sched.UpdateControls(false)
	assert.Empty(t, r.usb.chunks)
}

func TestUpdateControls_TRSUsesOwnFields(t *testing.T) {
	block := settings.DefaultBlock()
	block[16] = 3  // USB channel
	block[32] = 5  // TRS channel
	block[48] = 20 // USB CC
	block[64] = 10 // TRS CC
	r := newRig(t, block)
	r.setFader(0, 2048)

	r.sched.UpdateControls(false)

	assert.Equal(t, [][]byte{{0xB2, 20, 64}}, r.usb.chunks)
	assert.Equal(t, [][]byte{{0xB4, 10, 64}}, r.uart.chunks)
}

func TestUpdateControls_HighResolution(t *testing.T) {
	block := settings.DefaultBlock()
	block[80] = 0x01 // USB high resolution on fader 0
	r := newRig(t, block)

	const sample = 1234
	r.setFader(0, sample)
	r.sched.UpdateControls(false)

	msb := byte((sample << 2) >> 7 & 0x7F)
	lsb := byte((sample << 2) & 0x7F)
	assert.Equal(t, [][]byte{{0xB0, 32, msb}, {0xB0, 64, lsb}}, r.usb.chunks)
	assert.Equal(t, [][]byte{{0xB0, 32, sample >> 5}}, r.uart.chunks)
}

func TestUpdateControls_Rotation(t *testing.T) {
	block := settings.DefaultBlock()
	block[2] = 1       // rotated
	block[83+2] = 0x02 // TRS high resolution on fader 15
	r := newRig(t, block)

	r.setFader(0, 2048)
	r.sched.UpdateControls(false)

	// fader 0 reports as fader 15 with the value inverted
	assert.Equal(t, [][]byte{{0xB0, 47, 127 - 64}}, r.usb.chunks)
	inverted := uint16(16383 - 2048<<2)
	assert.Equal(t, [][]byte{{0xB0, 47, byte(inverted >> 7)}, {0xB0, 47 + 32, byte(inverted & 0x7F)}}, r.uart.chunks)
	assert.Equal(t, inverted, r.sched.Values().Load(15))
}

func TestUpdateControls_InvertADC(t *testing.T) {
	r := newRig(t, nil)
	r.profile.Faders.InvertADC = true
	// every other fader sits at the top after inversion
	for i := 0; i < 16; i++ {
		r.setFader(i, 0)
	}
	r.setFader(0, 1000)

	r.sched.UpdateControls(false)
	require.NotEmpty(t, r.usb.chunks)
	assert.Equal(t, []byte{0xB0, 32, (4095 - 1000) >> 5}, r.usb.chunks[0])
}

func TestUpdateControls_ControllerFanout(t *testing.T) {
	block := settings.DefaultBlock()
	block[3] = 1
	r := newRig(t, block)
	r.bus.err = errors.New("nack")

	r.setFader(4, 1000)
	r.sched.UpdateControls(false)

	assert.Equal(t, map[int]uint16{4: 4000}, r.bus.sent)
	assert.NotEmpty(t, r.usb.chunks, "bus errors do not stop MIDI")
}

func TestTick_ScanPeriodAndDrain(t *testing.T) {
	r := newRig(t, nil)
	t0 := time.Unix(1000, 0)

	r.sched.Tick(t0)
	assert.Equal(t, 16, r.board.reads)
	assert.Equal(t, 1, r.uart.drains)

	r.sched.Tick(t0.Add(5 * time.Millisecond))
	assert.Equal(t, 16, r.board.reads)

	r.sched.Tick(t0.Add(10 * time.Millisecond))
	assert.Equal(t, 32, r.board.reads)
	assert.Equal(t, 2, r.uart.drains)
}

func TestTick_LEDPolicy(t *testing.T) {
	r := newRig(t, nil)
	t0 := time.Unix(1000, 0)

	r.sched.HandleMIDI([]byte{0xF8}, t0)
	assert.False(t, r.sched.Activity(), "clock does not count as activity")

	r.sched.HandleMIDI([]byte{0x90, 60, 100}, t0)
	r.sched.Tick(t0.Add(time.Millisecond))
	assert.True(t, r.led.on)

	r.sched.Tick(t0.Add(6 * time.Millisecond))
	r.sched.Tick(t0.Add(7 * time.Millisecond))
	assert.False(t, r.led.on)

	block := settings.DefaultBlock()
	block[0] = 1
	p := newRig(t, block)
	p.sched.Tick(t0)
	assert.True(t, p.led.on, "power LED stays on")
}

func TestHandleMIDI_Thru(t *testing.T) {
	r := newRig(t, nil)
	r.sched.HandleMIDI([]byte{0x90, 60, 100}, time.Unix(0, 0))
	assert.Empty(t, r.uart.chunks)

	block := settings.DefaultBlock()
	block[8] = 1
	thru := newRig(t, block)
	thru.sched.HandleMIDI([]byte{0x90, 60, 100}, time.Unix(0, 0))
	assert.Equal(t, [][]byte{{0x90, 60, 100}}, thru.uart.chunks)

	// sysex for the device is never forwarded
	thru.sched.HandleMIDI(sysex.RequestConfig(), time.Unix(0, 0))
	assert.Len(t, thru.uart.chunks, 1)
}

func TestSysex_FactoryResetThenRequest(t *testing.T) {
	block := settings.DefaultBlock()
	block[2] = 1
	block[20] = 9
	r := newRig(t, block)
	require.True(t, r.sched.Settings().Rotated)

	now := time.Unix(1000, 0)
	r.sched.HandleMIDI([]byte{0xF0, 0x7D, 0x00, 0x00, 0x1A, 0xF7}, now)
	assert.Equal(t, settings.Default(), r.sched.Settings())

	r.usb.reset()
	r.sched.HandleMIDI([]byte{0xF0, 0x7D, 0x00, 0x00, 0x1F, 0xF7}, now)

	for _, c := range r.usb.chunks {
		assert.LessOrEqual(t, len(c), 16)
	}
	dump, err := sysex.ParseConfigDump(r.usb.joined())
	require.NoError(t, err)
	assert.Equal(t, byte(5), dump.DeviceID)
	assert.Equal(t, [3]byte{3, 0, 1}, dump.Version)
	assert.Equal(t, settings.DefaultBlock(), dump.Block)
}

func TestSysex_RequestArmsForcedRefresh(t *testing.T) {
	r := newRig(t, nil)
	now := time.Unix(1000, 0)
	r.sched.Tick(now)

	r.sched.HandleMIDI(sysex.RequestConfig(), now)
	r.usb.reset()
	r.delays = nil

	r.sched.Tick(now.Add(50 * time.Millisecond))
	assert.Empty(t, r.usb.chunks, "nothing moved and the refresh is not due")

	r.sched.Tick(now.Add(101 * time.Millisecond))
	// every fader is sent once even though none changed
	assert.Len(t, r.usb.chunks, 16)
	assert.Equal(t, time.Millisecond, r.delays[0])

	r.usb.reset()
	r.sched.Tick(now.Add(200 * time.Millisecond))
	assert.Empty(t, r.usb.chunks, "the refresh fires once")
}

func TestSysex_EditInChunks(t *testing.T) {
	r := newRig(t, nil)

	block := settings.DefaultBlock()
	block[8] = 1
	block[64] = 99
	msg := sysex.EditConfig(sysex.Identity{DeviceID: 5, Version: [3]byte{3, 0, 1}}, block)
	for off := 0; off < len(msg); off += 16 {
		r.sched.HandleMIDI(msg[off:min(off+16, len(msg))], time.Unix(0, 0))
	}

	assert.True(t, r.sched.Settings().MIDIThru)
	assert.Equal(t, uint8(99), r.sched.Settings().TRSCC[0])

	stored, err := r.store.Block()
	require.NoError(t, err)
	assert.Equal(t, block, stored)
}

func TestSysex_ShortEditIgnored(t *testing.T) {
	r := newRig(t, nil)
	msg := sysex.EditConfig(sysex.Identity{}, []byte{1, 1, 1})
	r.sched.HandleMIDI(msg, time.Unix(0, 0))
	assert.Equal(t, settings.Default(), r.sched.Settings())
}

func TestSysex_OverflowRecovers(t *testing.T) {
	r := newRig(t, nil)
	now := time.Unix(0, 0)

	r.sched.HandleMIDI([]byte{0xF0, 0x7D, 0x00, 0x00, 0x0E}, now)
	filler := bytes.Repeat([]byte{0x01}, 16)
	for i := 0; i < 10; i++ {
		r.sched.HandleMIDI(filler, now)
	}
	assert.Equal(t, settings.Default(), r.sched.Settings())

	r.usb.reset()
	r.sched.HandleMIDI(sysex.RequestConfig(), now)
	_, err := sysex.ParseConfigDump(r.usb.joined())
	assert.NoError(t, err)
}

func TestSysex_OverflowNotForwarded(t *testing.T) {
	block := settings.DefaultBlock()
	block[8] = 1 // thru
	r := newRig(t, block)
	now := time.Unix(0, 0)

	r.sched.HandleMIDI([]byte{0xF0, 0x7D, 0x00, 0x00, 0x0E}, now)
	filler := bytes.Repeat([]byte{0x01}, 16)
	for i := 0; i < 9; i++ {
		r.sched.HandleMIDI(filler, now)
	}
	r.sched.HandleMIDI([]byte{0x01, 0x01, 0xF7}, now)
	assert.Empty(t, r.uart.chunks)
	assert.Equal(t, block, r.sched.Settings().Encode())

	// traffic after the dropped message is forwarded again
	r.sched.HandleMIDI([]byte{0x90, 60, 100}, now)
	assert.Equal(t, [][]byte{{0x90, 60, 100}}, r.uart.chunks)
}

func TestSysex_UnknownTypeIgnored(t *testing.T) {
	r := newRig(t, nil)
	r.sched.HandleMIDI([]byte{0xF0, 0x7D, 0x00, 0x00, 0x42, 0xF7}, time.Unix(0, 0))
	assert.Empty(t, r.usb.chunks)
	assert.Equal(t, settings.Default(), r.sched.Settings())
}

func TestScale(t *testing.T) {
	assert.Equal(t, uint16(127), scale(4095, 12, false))
	assert.Equal(t, uint16(16380), scale(4095, 12, true))
	assert.Equal(t, uint16(127), scale(1023, 10, false))
	assert.Equal(t, uint16(1023<<4), scale(1023, 10, true))
	assert.Equal(t, uint16(bus.MaxValue), maxOutput(true))
}
