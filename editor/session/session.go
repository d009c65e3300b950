// Package session talks to a controller over a MIDI link: it fetches and
// edits the configuration with sysex and decodes the live fader stream.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"go.uber.org/multierr"

	"github.com/16n-faderbank/16next-firmware/pkg/sample"
	"github.com/16n-faderbank/16next-firmware/pkg/settings"
	"github.com/16n-faderbank/16next-firmware/pkg/sysex"
	"github.com/16n-faderbank/16next-firmware/pkg/transport"
)

var logger = slog.Default()

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// ErrNoConfig is returned by Edit before any dump was received.
var ErrNoConfig = errors.New("no configuration received yet")

// Dump is a decoded configuration dump.
type Dump struct {
	sysex.Identity
	Settings settings.Settings
	Block    []byte
}

// Session is an open connection to one controller.
type Session struct {
	link transport.Link
	send func(midi.Message) error
	stop func()

	samples chan sample.Sample

	mu      sync.Mutex
	dec     *sample.Decoder
	last    *Dump
	onDump  []func(Dump)
	closed  bool
	closeMu sync.Mutex
}

// Open connects link and starts listening. bufSize sizes the samples
// channel; zero selects a default.
func Open(link transport.Link, bufSize int) (*Session, error) {
	if bufSize <= 0 {
		bufSize = 500
	}
	s := &Session{
		link:    link,
		samples: make(chan sample.Sample, bufSize),
		dec:     sample.NewDecoder(settings.Default(), false),
	}

	in := transport.NewIn("16n in", 0, link)
	out := transport.NewOut("16n out", 0, link)
	if err := in.Open(); err != nil {
		return nil, fmt.Errorf("failed to open link: %w", err)
	}

	send, err := midi.SendTo(out)
	if err != nil {
		return nil, multierr.Append(err, link.Close())
	}
	s.send = send

	stop, err := midi.ListenTo(in, s.receive, midi.UseSysEx())
	if err != nil {
		return nil, multierr.Append(err, link.Close())
	}
	s.stop = stop
	return s, nil
}

// Samples returns the decoded fader stream. It is closed by Close.
func (s *Session) Samples() <-chan sample.Sample { return s.samples }

// OnDump registers a callback for every configuration dump.
func (s *Session) OnDump(cb func(Dump)) {
	s.mu.Lock()
	s.onDump = append(s.onDump, cb)
	s.mu.Unlock()
}

// Last returns the most recent dump.
func (s *Session) Last() (Dump, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Dump{}, false
	}
	return *s.last, true
}

// RequestConfig asks the controller for its configuration. The reply is
// delivered to OnDump callbacks.
func (s *Session) RequestConfig() error {
	return s.send(sysex.RequestConfig())
}

// Edit replaces the controller's configuration. The identity of the last
// dump is echoed back.
func (s *Session) Edit(cfg settings.Settings) error {
	last, ok := s.Last()
	if !ok {
		return ErrNoConfig
	}
	return s.send(sysex.EditConfig(last.Identity, cfg.Encode()))
}

// FactoryReset restores the controller defaults.
func (s *Session) FactoryReset() error {
	return s.send(sysex.FactoryReset())
}

// Close stops listening and closes the link.
func (s *Session) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.link.Close()
	s.stop()
	close(s.samples)
	return err
}

func (s *Session) receive(msg midi.Message, _ int32) {
	if len(msg) > 0 && msg[0] == sysex.Start {
		s.handleSysex(msg)
		return
	}

	s.mu.Lock()
	smp, ok := s.dec.Decode(msg, time.Now())
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case s.samples <- smp:
	default:
		logger.Warn("samples channel full, dropping sample", "fader", smp.Fader)
	}
}

func (s *Session) handleSysex(msg midi.Message) {
	raw := []byte(msg)
	if !sysex.HasHeader(raw) || len(raw) <= sysex.TypeOffset || sysex.MessageType(raw[sysex.TypeOffset]) != sysex.TypeConfigDump {
		logger.Debug("ignoring sysex", "length", len(raw))
		return
	}
	cd, err := sysex.ParseConfigDump(raw)
	if err != nil {
		logger.Warn("bad configuration dump", "error", err)
		return
	}
	cfg, err := settings.Decode(cd.Block)
	if err != nil {
		logger.Warn("bad configuration block", "error", err, "length", len(cd.Block))
		return
	}

	d := Dump{Identity: cd.Identity, Settings: cfg, Block: cd.Block}
	logger.Info("configuration received", "identity", d.Identity.String())

	s.mu.Lock()
	s.last = &d
	s.dec = sample.NewDecoder(cfg, false)
	callbacks := append([]func(Dump){}, s.onDump...)
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb(d)
	}
}
