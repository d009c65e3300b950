//go:build !tinygo

package store

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// FileSector emulates a flash sector in a host file, for the simulator.
type FileSector struct {
	f          *os.File
	sectorSize int
	pageSize   int
	page       []byte
}

// OpenFileSector opens or creates a sector image. A new or short file is
// extended with the erased pattern.
func OpenFileSector(path string, sectorSize, pageSize int) (*FileSector, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open sector file: %w", err)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat sector file: %w", err)
	}
	if size := int(st.Size()); size < sectorSize {
		pad := bytes.Repeat([]byte{0xFF}, sectorSize-size)
		if _, err := f.WriteAt(pad, int64(size)); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to size sector file: %w", err)
		}
	}

	return &FileSector{
		f:          f,
		sectorSize: sectorSize,
		pageSize:   pageSize,
		page:       make([]byte, pageSize),
	}, nil
}

func (s *FileSector) PageSize() int { return s.pageSize }
func (s *FileSector) Pages() int    { return s.sectorSize / s.pageSize }

func (s *FileSector) ReadPage(page int, p []byte) error {
	base, err := pageBase(page, s.Pages(), s.pageSize, len(p))
	if err != nil {
		return err
	}
	if _, err := s.f.ReadAt(p, int64(base)); err != nil && err != io.EOF {
		return fmt.Errorf("failed to read page %d: %w", page, err)
	}
	return nil
}

func (s *FileSector) ProgramPage(page int, p []byte) error {
	base, err := pageBase(page, s.Pages(), s.pageSize, len(p))
	if err != nil {
		return err
	}
	cur := s.page[:len(p)]
	if err := s.ReadPage(page, cur); err != nil {
		return err
	}
	for i, b := range p {
		cur[i] &= b
	}
	if _, err := s.f.WriteAt(cur, int64(base)); err != nil {
		return fmt.Errorf("failed to program page %d: %w", page, err)
	}
	return s.f.Sync()
}

func (s *FileSector) Erase() error {
	if _, err := s.f.WriteAt(bytes.Repeat([]byte{0xFF}, s.sectorSize), 0); err != nil {
		return fmt.Errorf("failed to erase sector file: %w", err)
	}
	return s.f.Sync()
}

// Close closes the file.
func (s *FileSector) Close() error {
	return s.f.Close()
}
