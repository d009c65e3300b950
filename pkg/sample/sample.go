// Package sample turns the controller's control change stream back into
// per-fader samples on the host.
package sample

import (
	"log/slog"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"github.com/16n-faderbank/16next-firmware/pkg/settings"
	"github.com/16n-faderbank/16next-firmware/pkg/transport"
)

// logger is the package logger. Defaults to slog.Default().
var logger = slog.Default()

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Sample is one decoded fader position.
type Sample struct {
	Timestamp time.Time
	Fader     int
	Raw       uint16  // 7 or 14 bit value as sent
	Value     float64 // normalized to [0, 1]
	HighRes   bool
}

type route struct {
	channel uint8 // zero based
	cc      uint8
}

type slot struct {
	fader   int
	highRes bool
	lsb     bool
}

// Decoder maps control changes to faders using the controller settings.
// High resolution faders are reported once their LSB arrives.
type Decoder struct {
	routes map[route]slot
	msb    [settings.Channels]int
}

// NewDecoder builds a decoder for the USB routing of cfg, or the TRS routing
// when trs is set.
func NewDecoder(cfg settings.Settings, trs bool) *Decoder {
	channels, ccs, highRes := cfg.USBChannel, cfg.USBCC, cfg.USBHighRes
	if trs {
		channels, ccs, highRes = cfg.TRSChannel, cfg.TRSCC, cfg.TRSHighRes
	}

	d := &Decoder{routes: make(map[route]slot, 2*settings.Channels)}
	for i := range d.msb {
		d.msb[i] = -1
	}
	add := func(r route, s slot) {
		if _, ok := d.routes[r]; ok {
			logger.Debug("duplicate control route", "fader", s.fader, "channel", r.channel+1, "cc", r.cc)
			return
		}
		d.routes[r] = s
	}
	for i := 0; i < settings.Channels; i++ {
		ch := (channels[i] - 1) & 0x0F
		add(route{ch, ccs[i] & 0x7F}, slot{fader: i, highRes: highRes[i]})
		if highRes[i] {
			add(route{ch, (ccs[i] + 32) & 0x7F}, slot{fader: i, highRes: true, lsb: true})
		}
	}
	return d
}

// Decode returns the sample carried by msg, if any.
func (d *Decoder) Decode(msg midi.Message, now time.Time) (Sample, bool) {
	var ch, cc, val uint8
	if !msg.GetControlChange(&ch, &cc, &val) {
		return Sample{}, false
	}
	s, ok := d.routes[route{ch, cc}]
	if !ok {
		return Sample{}, false
	}

	if !s.highRes {
		return Sample{Timestamp: now, Fader: s.fader, Raw: uint16(val), Value: float64(val) / 127}, true
	}
	if !s.lsb {
		d.msb[s.fader] = int(val)
		return Sample{}, false
	}
	msb := d.msb[s.fader]
	if msb < 0 {
		return Sample{}, false
	}
	d.msb[s.fader] = -1
	raw := uint16(msb)<<7 | uint16(val)
	return Sample{Timestamp: now, Fader: s.fader, Raw: raw, Value: float64(raw) / 16383, HighRes: true}, true
}

// Converter turns a stream of received MIDI chunks into samples.
type Converter func(in <-chan []byte) <-chan Sample

// NewConverter returns a converter for the given settings. The output
// channel is closed when in is closed.
func NewConverter(cfg settings.Settings, bufSize int) Converter {
	return NewFollowingConverter(cfg, nil, bufSize)
}

// NewFollowingConverter is like NewConverter, but every settings value
// received from updates replaces the routing for the chunks that follow.
// A nil updates channel keeps cfg for the whole stream.
func NewFollowingConverter(cfg settings.Settings, updates <-chan settings.Settings, bufSize int) Converter {
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan []byte) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			dec := NewDecoder(cfg, false)
			parser := transport.NewParser(0)
			for {
				var chunk []byte
				select {
				case next, ok := <-updates:
					if !ok {
						updates = nil
						continue
					}
					dec = NewDecoder(next, false)
					logger.Debug("converter routing updated")
					continue
				case c, ok := <-in:
					if !ok {
						return
					}
					chunk = c
				}
				parser.Feed(chunk, func(msg []byte) {
					s, ok := dec.Decode(midi.Message(msg), time.Now())
					if !ok {
						return
					}
					select {
					case out <- s:
					case <-time.After(time.Second):
						logger.Warn("converter output channel full, dropping sample", "fader", s.Fader)
					}
				})
			}
		}()

		return out
	}
}
