package control

import (
	"io"

	"github.com/16n-faderbank/16next-firmware/pkg/bus"
	"github.com/16n-faderbank/16next-firmware/pkg/settings"
)

// UpdateControls scans every fader once. Changed faders, or all of them
// when force is set, are sent as MIDI and stored for the bus.
func (s *Scheduler) UpdateControls(force bool) {
	p := s.profile
	if force {
		s.hw.Delay(p.Timing.RefreshSettle)
	}

	n := p.Faders.Count
	bits := p.Faders.ADCBits
	for i := 0; i < n; i++ {
		s.hw.Mux.Select(p.Faders.MuxLookup[i])
		s.hw.Delay(p.Timing.MuxSettle)

		raw := int(s.hw.ADC.Get())
		if p.Faders.InvertADC {
			raw = (1<<bits - 1) - raw
		}

		v, changed := s.filters[i].Update(raw)
		if !changed && !force {
			continue
		}
		if force {
			// a second conversion settles the filter after a reload
			v, _ = s.filters[i].Update(raw)
		}

		idx := i
		if s.cfg.Rotated {
			idx = n - 1 - i
		}

		busValue := uint16(v << (bus.Resolution - bits))
		if s.cfg.Rotated {
			busValue = bus.MaxValue - busValue
		}
		s.values.Store(idx, busValue)

		usbHighRes := s.cfg.USBHighRes[idx]
		trsHighRes := s.cfg.TRSHighRes[idx]
		usbOut := scale(v, bits, usbHighRes)
		trsOut := scale(v, bits, trsHighRes)

		if usbOut != s.prevUSB[i] || force {
			s.prevUSB[i] = usbOut
			if s.cfg.Rotated {
				usbOut = maxOutput(usbHighRes) - usbOut
				trsOut = maxOutput(trsHighRes) - trsOut
			}
			s.sendCC(s.hw.USB, s.cfg.USBChannel[idx], s.cfg.USBCC[idx], usbOut, usbHighRes)
			s.sendCC(s.hw.UART, s.cfg.TRSChannel[idx], s.cfg.TRSCC[idx], trsOut, trsHighRes)
			s.markActivity()
		}

		if s.cfg.BusController && s.hw.Bus != nil {
			if err := s.hw.Bus.Send(idx, busValue); err != nil {
				logger.Debug("i2c send failed", "channel", idx, "error", err)
			}
		}
	}
}

// scale maps a reading of the given ADC width to 7 or 14 bits.
func scale(v, bits int, highRes bool) uint16 {
	if highRes {
		return uint16(v << (14 - bits))
	}
	return uint16(v >> (bits - 7))
}

func maxOutput(highRes bool) uint16 {
	if highRes {
		return 1<<14 - 1
	}
	return 1<<7 - 1
}

// sendCC writes one control change, or an MSB/LSB pair on cc and cc+32 in
// high resolution mode. Each message is a separate write.
func (s *Scheduler) sendCC(w io.Writer, channel, cc uint8, value uint16, highRes bool) {
	status := settings.StatusByte(channel)
	if !highRes {
		s.writeCC(w, status, cc, byte(value)&0x7F)
		return
	}
	s.writeCC(w, status, cc, byte(value>>7)&0x7F)
	s.writeCC(w, status, (cc+32)&0x7F, byte(value)&0x7F)
}

func (s *Scheduler) writeCC(w io.Writer, status, cc, value byte) {
	s.cc = [3]byte{status, cc & 0x7F, value}
	if _, err := w.Write(s.cc[:]); err != nil {
		logger.Debug("midi write failed", "error", err)
	}
}
