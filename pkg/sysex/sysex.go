// Package sysex implements the vendor system exclusive protocol used to read,
// edit and reset the controller configuration.
//
// Every message is framed as
//
//	F0 7D 00 00 <type> <payload...> F7
//
// and travels in transport sized chunks.
package sysex

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gitlab.com/gomidi/midi/v2"
)

// Framing bytes.
const (
	Start byte = 0xF0
	End   byte = 0xF7
)

// Manufacturer is the non-commercial manufacturer id triplet.
var Manufacturer = [3]byte{0x7D, 0x00, 0x00}

// Header is the prefix that marks a message addressed to the controller.
var Header = []byte{Start, Manufacturer[0], Manufacturer[1], Manufacturer[2]}

// Fixed offsets into a complete message.
const (
	TypeOffset    = 4 // message type
	PayloadOffset = 5 // first payload byte
	BlockOffset   = 9 // configuration block after device id and version
)

// DefaultChunkSize is the largest single write to the USB MIDI stream.
const DefaultChunkSize = 16

// MessageType is the byte at TypeOffset.
type MessageType byte

const (
	TypeConfigDump    MessageType = 0x0F // "c0nFig": device -> editor
	TypeEditConfig    MessageType = 0x0E // "c0nfig Edit": editor -> device
	TypeFactoryReset  MessageType = 0x1A // "initi1Alize"
	TypeRequestConfig MessageType = 0x1F // "1nFo"
)

func (t MessageType) String() string {
	switch t {
	case TypeConfigDump:
		return "config-dump"
	case TypeEditConfig:
		return "edit-config"
	case TypeFactoryReset:
		return "factory-reset"
	case TypeRequestConfig:
		return "request-config"
	}
	return fmt.Sprintf("unknown(0x%02X)", byte(t))
}

var (
	// ErrOverflow means a message did not fit in the reassembly buffer.
	ErrOverflow = errors.New("sysex message exceeds buffer")
	// ErrNotDump means a message is not a well formed config dump.
	ErrNotDump = errors.New("not a config dump")
)

// HasHeader reports whether p starts with the vendor header.
func HasHeader(p []byte) bool {
	return len(p) >= len(Header) && bytes.Equal(p[:len(Header)], Header)
}

// Frame builds a complete message of the given type.
func Frame(t MessageType, payload []byte) []byte {
	data := make([]byte, 0, len(Manufacturer)+1+len(payload))
	data = append(data, Manufacturer[:]...)
	data = append(data, byte(t))
	data = append(data, payload...)
	return midi.SysEx(data).Bytes()
}

// WriteChunked writes frame in order as writes of at most size bytes. The
// last write may be shorter; there is never an empty trailing write.
func WriteChunked(w io.Writer, frame []byte, size int) error {
	if size <= 0 {
		size = DefaultChunkSize
	}
	for off := 0; off < len(frame); off += size {
		end := min(off+size, len(frame))
		if _, err := w.Write(frame[off:end]); err != nil {
			return fmt.Errorf("failed to write sysex chunk at %d: %w", off, err)
		}
	}
	return nil
}

// Send frames payload and writes it in chunks.
func Send(w io.Writer, t MessageType, payload []byte, chunkSize int) error {
	return WriteChunked(w, Frame(t, payload), chunkSize)
}

// Identity is the device id and firmware version that lead a dump or edit payload.
type Identity struct {
	DeviceID byte
	Version  [3]byte
}

func (id Identity) String() string {
	return fmt.Sprintf("device %d, firmware %d.%d.%d", id.DeviceID, id.Version[0], id.Version[1], id.Version[2])
}

func (id Identity) bytes() []byte {
	return []byte{id.DeviceID, id.Version[0], id.Version[1], id.Version[2]}
}

// ConfigDump is the payload of a TypeConfigDump message.
type ConfigDump struct {
	Identity
	Block []byte
}

// ConfigDumpPayload builds the payload the device sends in reply to a request.
func ConfigDumpPayload(id Identity, block []byte) []byte {
	return append(id.bytes(), block...)
}

// RequestConfig returns the message an editor sends to ask for the configuration.
func RequestConfig() []byte {
	return Frame(TypeRequestConfig, nil)
}

// FactoryReset returns the message that restores the default configuration.
func FactoryReset() []byte {
	return Frame(TypeFactoryReset, nil)
}

// EditConfig returns the message that replaces the configuration with block.
func EditConfig(id Identity, block []byte) []byte {
	return Frame(TypeEditConfig, append(id.bytes(), block...))
}

// ParseConfigDump decodes a complete dump message.
func ParseConfigDump(msg []byte) (ConfigDump, error) {
	var data []byte
	if !midi.Message(msg).GetSysEx(&data) {
		return ConfigDump{}, fmt.Errorf("%w: not a sysex frame", ErrNotDump)
	}
	// data is the message without F0 and F7
	if len(data) < len(Manufacturer)+1 || !bytes.Equal(data[:len(Manufacturer)], Manufacturer[:]) {
		return ConfigDump{}, fmt.Errorf("%w: wrong manufacturer", ErrNotDump)
	}
	if t := MessageType(data[TypeOffset-1]); t != TypeConfigDump {
		return ConfigDump{}, fmt.Errorf("%w: message type %s", ErrNotDump, t)
	}
	payload := data[PayloadOffset-1:]
	if len(payload) < 4 {
		return ConfigDump{}, fmt.Errorf("%w: payload of %d bytes", ErrNotDump, len(payload))
	}

	dump := ConfigDump{
		Identity: Identity{
			DeviceID: payload[0],
			Version:  [3]byte{payload[1], payload[2], payload[3]},
		},
		Block: append([]byte(nil), payload[4:]...),
	}
	return dump, nil
}
