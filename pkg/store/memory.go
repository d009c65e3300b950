package store

import (
	"fmt"
)

// Default flash geometry of the RP2040 boards.
const (
	DefaultPageSize   = 256
	DefaultSectorSize = 4096
)

// MemorySector is a RAM sector with NOR flash semantics.
type MemorySector struct {
	data     []byte
	pageSize int
	programs int
}

var (
	_ Sector = (*MemorySector)(nil)
	_ Sector = (*FileSector)(nil)
	_ Sector = (*SPIFlash)(nil)
)

// NewMemorySector returns an erased sector.
func NewMemorySector(sectorSize, pageSize int) *MemorySector {
	s := &MemorySector{
		data:     make([]byte, sectorSize),
		pageSize: pageSize,
	}
	fill(s.data, 0xFF)
	return s
}

func (s *MemorySector) PageSize() int { return s.pageSize }
func (s *MemorySector) Pages() int    { return len(s.data) / s.pageSize }

// Programs returns the number of page programs.
func (s *MemorySector) Programs() int { return s.programs }

// Bytes exposes the raw sector contents.
func (s *MemorySector) Bytes() []byte { return s.data }

func (s *MemorySector) ReadPage(page int, p []byte) error {
	base, err := pageBase(page, s.Pages(), s.pageSize, len(p))
	if err != nil {
		return err
	}
	copy(p, s.data[base:])
	return nil
}

func (s *MemorySector) ProgramPage(page int, p []byte) error {
	base, err := pageBase(page, s.Pages(), s.pageSize, len(p))
	if err != nil {
		return err
	}
	for i, b := range p {
		s.data[base+i] &= b
	}
	s.programs++
	return nil
}

func (s *MemorySector) Erase() error {
	fill(s.data, 0xFF)
	return nil
}

func pageBase(page, pages, pageSize, n int) (int, error) {
	if page < 0 || page >= pages || n > pageSize {
		return 0, fmt.Errorf("%w: %d bytes in page %d of %d", ErrOutOfRange, n, page, pages)
	}
	return page * pageSize, nil
}
