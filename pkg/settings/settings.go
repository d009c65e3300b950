// Package settings maps the flat configuration block stored in non-volatile
// memory and carried by sysex to the typed controller settings.
//
//	| Offset | Range | Description                        |
//	|--------|-------|------------------------------------|
//	| 0      | 0/1   | LED on when powered                |
//	| 1      | 0/1   | LED blink on MIDI data             |
//	| 2      | 0/1   | Rotate controller outputs 180°     |
//	| 3      | 0/1   | I2C peripheral/controller          |
//	| 4,5    | 0-127 | fader min lsb/msb                  |
//	| 6,7    | 0-127 | fader max lsb/msb                  |
//	| 8      | 0/1   | Soft MIDI thru                     |
//	| 9-15   |       | Reserved                           |
//	| 16-31  | 1-16  | Channel for each control (USB)     |
//	| 32-47  | 1-16  | Channel for each control (TRS)     |
//	| 48-63  | 0-127 | CC for each control (USB)          |
//	| 64-79  | 0-127 | CC for each control (TRS)          |
//	| 80-82  | 0-127 | High resolution flags (USB)        |
//	| 83-85  | 0-127 | High resolution flags (TRS)        |
package settings

import (
	"fmt"
)

// Channels is the number of per-control slots in the block.
const Channels = 16

// Block lengths.
const (
	BlockLength       = 86
	LegacyBlockLength = 80 // revisions without high resolution flags
)

// Offsets.
const (
	offPowerLED      = 0
	offMIDILED       = 1
	offRotated       = 2
	offBusController = 3
	offFaderMin      = 4
	offFaderMax      = 6
	offThru          = 8
	offReserved      = 9
	offUSBChannels   = 16
	offTRSChannels   = 32
	offUSBCCs        = 48
	offTRSCCs        = 64
	offUSBHighRes    = 80
	offTRSHighRes    = 83
)

// FirstBootOffset holds 0xFF while the block was never written.
const FirstBootOffset = offMIDILED

// Erased is the value of unwritten non-volatile memory.
const Erased = 0xFF

var defaultBlock = [BlockLength]byte{
	0, 1, 0, 0, 0, 0, 0, 0, // 0-7
	0, 0, 0, 0, 0, 0, 0, 0, // 8-15
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, // 16-31
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, // 32-47
	32, 33, 34, 35, 36, 37, 38, 39, 40, 41, 42, 43, 44, 45, 46, 47, // 48-63
	32, 33, 34, 35, 36, 37, 38, 39, 40, 41, 42, 43, 44, 45, 46, 47, // 64-79
	0, 0, 0, // 80-82
	0, 0, 0, // 83-85
}

// DefaultBlock returns a copy of the factory configuration block.
func DefaultBlock() []byte {
	b := defaultBlock
	return b[:]
}

// IsFirstBoot reports whether block was read from never written memory.
func IsFirstBoot(block []byte) bool {
	return len(block) <= FirstBootOffset || block[FirstBootOffset] == Erased
}

// Settings is the typed controller configuration.
type Settings struct {
	PowerLED      bool
	MIDILED       bool
	Rotated       bool
	BusController bool // false: bus peripheral
	MIDIThru      bool
	FaderMin      uint16
	FaderMax      uint16
	Reserved      [7]byte

	USBChannel [Channels]uint8 // 1-16
	TRSChannel [Channels]uint8
	USBCC      [Channels]uint8
	TRSCC      [Channels]uint8
	USBHighRes [Channels]bool
	TRSHighRes [Channels]bool
}

// Default returns the factory settings.
func Default() Settings {
	s, _ := Decode(DefaultBlock())
	return s
}

// Decode maps a block into settings. Both the current and the legacy
// block lengths are accepted; longer input is truncated to BlockLength.
func Decode(block []byte) (Settings, error) {
	var s Settings
	if len(block) < LegacyBlockLength {
		return s, fmt.Errorf("configuration block of %d bytes, want %d", len(block), BlockLength)
	}

	s.PowerLED = block[offPowerLED] != 0
	s.MIDILED = block[offMIDILED] != 0
	s.Rotated = block[offRotated] != 0
	s.BusController = block[offBusController] != 0
	s.MIDIThru = block[offThru] != 0
	s.FaderMin = unpack14(block[offFaderMin:])
	s.FaderMax = unpack14(block[offFaderMax:])
	copy(s.Reserved[:], block[offReserved:offUSBChannels])

	copy(s.USBChannel[:], block[offUSBChannels:])
	copy(s.TRSChannel[:], block[offTRSChannels:])
	copy(s.USBCC[:], block[offUSBCCs:])
	copy(s.TRSCC[:], block[offTRSCCs:])

	if len(block) >= BlockLength {
		s.USBHighRes = unpackFlags(block[offUSBHighRes:])
		s.TRSHighRes = unpackFlags(block[offTRSHighRes:])
	}
	return s, nil
}

// Encode maps settings into a BlockLength block.
func (s Settings) Encode() []byte {
	block := make([]byte, BlockLength)
	block[offPowerLED] = boolByte(s.PowerLED)
	block[offMIDILED] = boolByte(s.MIDILED)
	block[offRotated] = boolByte(s.Rotated)
	block[offBusController] = boolByte(s.BusController)
	block[offThru] = boolByte(s.MIDIThru)
	pack14(block[offFaderMin:], s.FaderMin)
	pack14(block[offFaderMax:], s.FaderMax)
	copy(block[offReserved:offUSBChannels], s.Reserved[:])

	copy(block[offUSBChannels:], s.USBChannel[:])
	copy(block[offTRSChannels:], s.TRSChannel[:])
	copy(block[offUSBCCs:], s.USBCC[:])
	copy(block[offTRSCCs:], s.TRSCC[:])

	packFlags(block[offUSBHighRes:], s.USBHighRes)
	packFlags(block[offTRSHighRes:], s.TRSHighRes)
	return block
}

// StatusByte returns the control change status byte for a 1-16 channel.
// Out of range channels wrap into 1-16.
func StatusByte(channel uint8) byte {
	return 0xB0 | (channel-1)&0x0F
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func unpack14(p []byte) uint16 {
	return uint16(p[0]&0x7F) | uint16(p[1]&0x7F)<<7
}

func pack14(p []byte, v uint16) {
	p[0] = byte(v & 0x7F)
	p[1] = byte(v>>7) & 0x7F
}

// unpackFlags reads 16 flags from three 7-bit bytes, little-endian.
func unpackFlags(p []byte) [Channels]bool {
	bits := uint32(p[0]&0x7F) | uint32(p[1]&0x7F)<<7 | uint32(p[2]&0x03)<<14

	var flags [Channels]bool
	for i := range flags {
		flags[i] = bits&(1<<i) != 0
	}
	return flags
}

func packFlags(p []byte, flags [Channels]bool) {
	var bits uint32
	for i, on := range flags {
		if on {
			bits |= 1 << i
		}
	}
	p[0] = byte(bits & 0x7F)
	p[1] = byte(bits>>7) & 0x7F
	p[2] = byte(bits>>14) & 0x03
}
