// Package control runs the controller: it scans the faders, emits MIDI
// control changes, services the sysex configuration protocol and feeds the
// I2C bridge.
package control

import (
	"io"
	"log/slog"
	"time"

	"github.com/16n-faderbank/16next-firmware/pkg/analog"
	"github.com/16n-faderbank/16next-firmware/pkg/bus"
	"github.com/16n-faderbank/16next-firmware/pkg/config"
	"github.com/16n-faderbank/16next-firmware/pkg/settings"
	"github.com/16n-faderbank/16next-firmware/pkg/store"
	"github.com/16n-faderbank/16next-firmware/pkg/sysex"
)

// logger is the package logger. Defaults to slog.Default().
var logger = slog.Default()

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Mux selects one analog input.
type Mux interface {
	Select(code uint8)
}

// ADC converts the selected input. Readings are in [0, 2^bits-1] for the
// profile's ADC width.
type ADC interface {
	Get() uint16
}

// LED is the status light.
type LED interface {
	Set(on bool)
}

// Drainer is implemented by transports that buffer writes.
type Drainer interface {
	Drain() error
}

// Fanout pushes values to modules on the bus when the controller owns the bus.
type Fanout interface {
	Probe() []uint16
	Send(channel int, value uint16) error
}

var _ Fanout = (*bus.Controller)(nil)

// Hardware holds the collaborators of a Scheduler.
type Hardware struct {
	Mux  Mux
	ADC  ADC
	USB  io.Writer // USB MIDI stream
	UART io.Writer // TRS MIDI stream
	LED  LED
	// Delay busy-waits. It is only used for short settle times and the
	// boot delay in bus controller role.
	Delay func(time.Duration)
	// Bus is used when the settings select the bus controller role.
	Bus Fanout
}

// Scheduler owns the live settings and all per-channel state.
type Scheduler struct {
	profile *config.Profile
	hw      Hardware
	store   *store.Store

	cfg     settings.Settings
	filters []analog.Conditioner
	values  *bus.Values
	reasm   *sysex.Reassembler
	prevUSB []uint16
	cc      [3]byte

	now            time.Time
	nextScan       time.Time
	refreshPending bool
	refreshAt      time.Time
	activity       bool
	activityOff    time.Time
}

// New returns a scheduler. Start must be called before Tick.
func New(p *config.Profile, hw Hardware, st *store.Store) *Scheduler {
	if hw.USB == nil {
		hw.USB = io.Discard
	}
	if hw.UART == nil {
		hw.UART = io.Discard
	}
	if hw.Delay == nil {
		hw.Delay = busyWait
	}

	n := p.Faders.Count
	return &Scheduler{
		profile: p,
		hw:      hw,
		store:   st,
		cfg:     settings.Default(),
		filters: analog.NewBank(p.Filter, p.Resolution(), n),
		values:  bus.NewValues(n),
		reasm:   sysex.NewReassembler(p.Sysex.BufferSize),
		prevUSB: make([]uint16, n),
	}
}

// Start loads the stored settings, writing defaults on first boot. In bus
// controller role it waits for the other modules to boot and probes the bus.
// A storage failure leaves the factory settings active.
func (s *Scheduler) Start() error {
	cfg, _, err := s.store.LoadOrDefault()
	if err != nil {
		logger.Error("failed to load configuration, using defaults", "error", err)
	} else {
		s.cfg = cfg
	}

	if s.cfg.BusController && s.hw.Bus != nil {
		s.hw.Delay(s.profile.Timing.ControllerBootDelay)
		found := s.hw.Bus.Probe()
		logger.Info("i2c bus scanned", "responding", len(found))
	}
	return err
}

// Settings returns the live settings.
func (s *Scheduler) Settings() settings.Settings { return s.cfg }

// Values returns the bus values shared with the peripheral handler.
func (s *Scheduler) Values() *bus.Values { return s.values }

// Activity reports whether the MIDI activity light is lit.
func (s *Scheduler) Activity() bool { return s.activity }

// Tick runs one pass of the main loop.
func (s *Scheduler) Tick(now time.Time) {
	s.now = now

	if s.hw.LED != nil {
		s.hw.LED.Set(s.cfg.PowerLED || (s.cfg.MIDILED && s.activity))
	}
	if s.activity && now.After(s.activityOff) {
		s.activity = false
	}

	if s.refreshPending && now.After(s.refreshAt) {
		// an editor asked for the configuration; send every control
		s.UpdateControls(true)
		s.refreshPending = false
	}

	if now.Before(s.nextScan) {
		return
	}
	s.nextScan = now.Add(s.profile.Timing.ScanPeriod)

	s.UpdateControls(false)

	if d, ok := s.hw.UART.(Drainer); ok {
		if err := d.Drain(); err != nil {
			logger.Debug("uart drain failed", "error", err)
		}
	}
}

func (s *Scheduler) markActivity() {
	s.activity = true
	s.activityOff = s.now.Add(s.profile.Timing.MIDIBlink)
}

func busyWait(d time.Duration) {
	end := time.Now().Add(d)
	for time.Now().Before(end) {
	}
}
