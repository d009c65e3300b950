package store

import (
	"encoding/binary"
	"fmt"
)

// Sector is one erase unit of NOR flash divided into program pages.
type Sector interface {
	PageSize() int
	Pages() int
	// ReadPage reads len(p) bytes from the start of page.
	ReadPage(page int, p []byte) error
	// ProgramPage programs a full page. Programming can only clear bits.
	ProgramPage(page int, p []byte) error
	Erase() error
}

const erasedWord = 0xFFFFFFFF

// WearLeveler spreads writes over the pages of a sector. Every write goes
// to the next unwritten page; the newest page is the one before the first
// unwritten page. The sector is erased only when no unwritten page is left.
type WearLeveler struct {
	sector Sector
	erases int
	image  []byte
}

// NewWearLeveler returns an allocator over s.
func NewWearLeveler(s Sector) *WearLeveler {
	return &WearLeveler{
		sector: s,
		image:  make([]byte, s.PageSize()),
	}
}

// Erases returns the number of sector erases performed.
func (w *WearLeveler) Erases() int { return w.erases }

// FirstEmpty returns the first page whose first word is erased, or -1
// when the sector is full.
func (w *WearLeveler) FirstEmpty() (int, error) {
	var word [4]byte
	for page := 0; page < w.sector.Pages(); page++ {
		if err := w.sector.ReadPage(page, word[:]); err != nil {
			return -1, fmt.Errorf("scan page %d: %w", page, err)
		}
		if binary.LittleEndian.Uint32(word[:]) == erasedWord {
			return page, nil
		}
	}
	return -1, nil
}

// Current returns the newest written page, or -1 when nothing was written.
func (w *WearLeveler) Current() (int, error) {
	empty, err := w.FirstEmpty()
	switch {
	case err != nil:
		return -1, err
	case empty < 0:
		return w.sector.Pages() - 1, nil
	}
	return empty - 1, nil
}

// Read copies bytes of the newest page starting at offset. With no data
// written p is filled with 0xFF.
func (w *WearLeveler) Read(offset int, p []byte) error {
	if offset < 0 || offset+len(p) > w.sector.PageSize() {
		return fmt.Errorf("%w: %d bytes at %d in %d byte page", ErrOutOfRange, len(p), offset, w.sector.PageSize())
	}
	if err := w.load(); err != nil {
		return err
	}
	copy(p, w.image[offset:])
	return nil
}

// Write programs the newest page image with p placed at offset into the
// next unwritten page. A full sector is erased first and written at page 0.
func (w *WearLeveler) Write(offset int, p []byte) error {
	if offset < 0 || offset+len(p) > w.sector.PageSize() {
		return fmt.Errorf("%w: %d bytes at %d in %d byte page", ErrOutOfRange, len(p), offset, w.sector.PageSize())
	}
	if err := w.load(); err != nil {
		return err
	}
	copy(w.image[offset:], p)

	target, err := w.FirstEmpty()
	if err != nil {
		return err
	}
	if target < 0 {
		logger.Debug("sector full, erasing", "pages", w.sector.Pages())
		if err := w.Erase(); err != nil {
			return err
		}
		target = 0
	}

	if err := w.sector.ProgramPage(target, w.image); err != nil {
		return fmt.Errorf("program page %d: %w", target, err)
	}
	return nil
}

// Erase erases the sector.
func (w *WearLeveler) Erase() error {
	if err := w.sector.Erase(); err != nil {
		return fmt.Errorf("erase sector: %w", err)
	}
	w.erases++
	return nil
}

// load reads the newest page into the image, or the erased pattern.
func (w *WearLeveler) load() error {
	page, err := w.Current()
	if err != nil {
		return err
	}
	if page < 0 {
		fill(w.image, 0xFF)
		return nil
	}
	if err := w.sector.ReadPage(page, w.image); err != nil {
		return fmt.Errorf("read page %d: %w", page, err)
	}
	return nil
}

func fill(p []byte, b byte) {
	for i := range p {
		p[i] = b
	}
}
