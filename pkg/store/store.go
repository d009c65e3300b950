// Package store persists the configuration block.
package store

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/16n-faderbank/16next-firmware/pkg/settings"
)

// logger is the package logger. Defaults to slog.Default().
var logger = slog.Default()

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// ErrOutOfRange is returned for accesses beyond the backing memory.
var ErrOutOfRange = errors.New("access out of range")

// Backing is durable byte addressable memory.
type Backing interface {
	Read(offset int, p []byte) error
	Write(offset int, p []byte) error
	// Erase resets the whole region to the erased pattern 0xFF.
	Erase() error
}

var (
	_ Backing = (*WearLeveler)(nil)
	_ Backing = (*EEPROM)(nil)
)

// Store reads and writes the configuration block through a Backing.
type Store struct {
	backing Backing
}

// New returns a store over b.
func New(b Backing) *Store {
	return &Store{backing: b}
}

// Apply decodes block into settings.
func (s *Store) Apply(block []byte) (settings.Settings, error) {
	return settings.Decode(block)
}

// Persist writes block durably. Legacy length blocks are extended with
// cleared high resolution flags.
func (s *Store) Persist(block []byte) error {
	buf, err := prepare(block)
	if err != nil {
		return err
	}
	return s.write(buf)
}

// prepare copies block into a full length buffer. Every byte of a block is
// MIDI data, so values are masked to 7 bits; this also keeps a stored page
// from starting with the erased pattern.
func prepare(block []byte) ([]byte, error) {
	if len(block) < settings.LegacyBlockLength {
		return nil, fmt.Errorf("persist: configuration block of %d bytes", len(block))
	}
	buf := make([]byte, settings.BlockLength)
	copy(buf, block)
	for i := range buf {
		buf[i] &= 0x7F
	}
	return buf, nil
}

func (s *Store) write(buf []byte) error {
	if err := s.backing.Write(0, buf); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

// Block reads the durable block. Never written memory reads as 0xFF.
func (s *Store) Block() ([]byte, error) {
	buf := make([]byte, settings.BlockLength)
	if err := s.backing.Read(0, buf); err != nil {
		return nil, fmt.Errorf("read configuration: %w", err)
	}
	return buf, nil
}

// Edit persists block and returns the stored image applied, so the caller
// sees exactly what was written.
func (s *Store) Edit(block []byte) (settings.Settings, error) {
	buf, err := prepare(block)
	if err != nil {
		return settings.Settings{}, err
	}
	if err := s.write(buf); err != nil {
		return settings.Settings{}, err
	}
	return s.Apply(buf)
}

// FactoryReset erases the backing and writes the default block.
func (s *Store) FactoryReset() error {
	if err := s.backing.Erase(); err != nil {
		return fmt.Errorf("factory reset: %w", err)
	}
	return s.Persist(settings.DefaultBlock())
}

// LoadOrDefault reads the durable block and applies it. On first boot the
// default block is written first.
func (s *Store) LoadOrDefault() (settings.Settings, []byte, error) {
	block, err := s.Block()
	if err != nil {
		return settings.Settings{}, nil, err
	}

	if settings.IsFirstBoot(block) {
		logger.Info("no stored configuration, writing defaults")
		if err := s.FactoryReset(); err != nil {
			return settings.Settings{}, nil, err
		}
		if block, err = s.Block(); err != nil {
			return settings.Settings{}, nil, err
		}
	}

	cfg, err := s.Apply(block)
	if err != nil {
		return settings.Settings{}, nil, err
	}
	return cfg, block, nil
}
