package transport

// Packet is a USB-MIDI event packet: cable number and code index in the
// first byte followed by up to three MIDI bytes.
type Packet [4]byte

// Code index numbers.
const (
	CINSystemCommon2 = 0x2
	CINSystemCommon3 = 0x3
	CINSysExStart    = 0x4
	CINSysExEnd1     = 0x5
	CINSysExEnd2     = 0x6
	CINSysExEnd3     = 0x7
	CINControlChange = 0xB
	CINSingleByte    = 0xF
)

// CIN returns the code index number.
func (p Packet) CIN() byte { return p[0] & 0x0F }

// Cable returns the virtual cable number.
func (p Packet) Cable() byte { return p[0] >> 4 }

// Len is the number of MIDI bytes the packet carries.
func (p Packet) Len() int {
	switch p.CIN() {
	case CINSysExEnd1, CINSingleByte:
		return 1
	case CINSystemCommon2, CINSysExEnd2, 0xC, 0xD:
		return 2
	case CINSystemCommon3, CINSysExStart, CINSysExEnd3, 0x8, 0x9, 0xA, CINControlChange, 0xE:
		return 3
	}
	return 0
}

// Bytes returns the MIDI bytes carried by the packet.
func (p Packet) Bytes() []byte {
	return append([]byte(nil), p[1:1+p.Len()]...)
}

// Unpack concatenates the MIDI bytes of packets.
func Unpack(packets ...Packet) []byte {
	var out []byte
	for _, p := range packets {
		out = append(out, p[1:1+p.Len()]...)
	}
	return out
}

// Packer converts a MIDI byte stream into USB-MIDI packets. Sysex is
// packed three bytes at a time as it arrives; other messages are packed
// when complete.
type Packer struct {
	cable  byte
	send   func(Packet) error
	parser *Parser

	sysex bool
	sx    [3]byte
	n     int
}

// NewPacker returns a packer for the given cable that hands each packet to
// send.
func NewPacker(cable byte, send func(Packet) error) *Packer {
	return &Packer{cable: cable & 0x0F, send: send, parser: NewParser(0)}
}

// Write packs p. It stops at the first failed send.
func (w *Packer) Write(p []byte) (int, error) {
	var err error
	for i, c := range p {
		switch {
		case c >= realtime:
			err = w.emit(CINSingleByte, c)
		case c == sysexStart:
			w.parser.Reset()
			w.sysex = true
			w.n = 0
			err = w.sysexByte(c)
		case w.sysex && c == sysexEnd:
			err = w.sysexEnd()
		case w.sysex && c < 0x80:
			err = w.sysexByte(c)
		default:
			w.sysex = false
			w.parser.Feed([]byte{c}, func(msg []byte) {
				if err == nil {
					err = w.message(msg)
				}
			})
		}
		if err != nil {
			return i, err
		}
	}
	return len(p), nil
}

func (w *Packer) sysexByte(c byte) error {
	w.sx[w.n] = c
	w.n++
	if w.n < 3 {
		return nil
	}
	w.n = 0
	return w.emit(CINSysExStart, w.sx[:]...)
}

func (w *Packer) sysexEnd() error {
	w.sysex = false
	w.sx[w.n] = sysexEnd
	n := w.n + 1
	w.n = 0
	return w.emit(CINSysExEnd1+byte(n-1), w.sx[:n]...)
}

func (w *Packer) message(msg []byte) error {
	status := msg[0]
	switch {
	case status < 0xF0:
		return w.emit(status>>4, msg...)
	case len(msg) == 1:
		return w.emit(CINSysExEnd1, msg...)
	case len(msg) == 2:
		return w.emit(CINSystemCommon2, msg...)
	default:
		return w.emit(CINSystemCommon3, msg...)
	}
}

func (w *Packer) emit(cin byte, data ...byte) error {
	var p Packet
	p[0] = w.cable<<4 | cin
	copy(p[1:], data)
	return w.send(p)
}

// Pack returns the packets for a byte stream on one cable.
func Pack(cable byte, stream []byte) []Packet {
	var out []Packet
	w := NewPacker(cable, func(p Packet) error {
		out = append(out, p)
		return nil
	})
	// Write only fails when send does, and appending cannot.
	_, _ = w.Write(stream)
	return out
}
