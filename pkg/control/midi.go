package control

import (
	"time"

	"github.com/16n-faderbank/16next-firmware/pkg/settings"
	"github.com/16n-faderbank/16next-firmware/pkg/sysex"
)

// clock is the MIDI timing clock status byte; it does not blink the LED.
const clock = 0xF8

// HandleMIDI processes one chunk read from the USB MIDI stream. Sysex for
// this device is reassembled and dispatched; anything else is forwarded to
// the TRS output when soft thru is on.
func (s *Scheduler) HandleMIDI(chunk []byte, now time.Time) {
	if len(chunk) == 0 {
		return
	}
	s.now = now
	if chunk[0] != clock {
		s.markActivity()
	}

	switch s.reasm.Feed(chunk) {
	case sysex.Complete:
		s.dispatch(s.reasm.Message())
	case sysex.Overflow:
		logger.Warn("dropping sysex message", "error", sysex.ErrOverflow, "capacity", s.profile.Sysex.BufferSize)
	case sysex.Discarded:
		// tail of a dropped message
	case sysex.Ignored:
		if s.cfg.MIDIThru {
			if _, err := s.hw.UART.Write(chunk); err != nil {
				logger.Debug("midi thru failed", "error", err)
			}
		}
	}
}

func (s *Scheduler) dispatch(msg []byte) {
	t := sysex.MessageType(msg[sysex.TypeOffset])
	logger.Debug("sysex received", "type", t, "length", len(msg))

	switch t {
	case sysex.TypeRequestConfig:
		if err := s.sendConfig(); err != nil {
			logger.Error("failed to send configuration", "error", err)
		}
		// live values follow the static configuration
		s.refreshPending = true
		s.refreshAt = s.now.Add(s.profile.Timing.RefreshDelay)

	case sysex.TypeEditConfig:
		// payload excludes the terminator
		if len(msg) < sysex.BlockOffset+settings.LegacyBlockLength+1 {
			logger.Warn("ignoring short configuration edit", "length", len(msg))
			return
		}
		block := msg[sysex.BlockOffset : len(msg)-1]
		if len(block) > settings.BlockLength {
			block = block[:settings.BlockLength]
		}
		cfg, err := s.store.Edit(block)
		if err != nil {
			logger.Error("failed to store configuration", "error", err)
			return
		}
		s.cfg = cfg

	case sysex.TypeFactoryReset:
		if err := s.store.FactoryReset(); err != nil {
			logger.Error("factory reset failed", "error", err)
		}
		cfg, _, err := s.store.LoadOrDefault()
		if err != nil {
			logger.Error("failed to reload configuration", "error", err)
			cfg = settings.Default()
		}
		s.cfg = cfg
	}
}

// sendConfig replies with the stored block after the device id and
// firmware version.
func (s *Scheduler) sendConfig() error {
	block, err := s.store.Block()
	if err != nil {
		return err
	}
	id := sysex.Identity{DeviceID: s.profile.DeviceIndex, Version: s.profile.Version()}
	return sysex.Send(s.hw.USB, sysex.TypeConfigDump, sysex.ConfigDumpPayload(id, block), s.profile.Sysex.ChunkSize)
}
