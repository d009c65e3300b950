package transport

const (
	sysexStart = 0xF0
	sysexEnd   = 0xF7
	realtime   = 0xF8
)

// DefaultMaxSysex bounds the sysex messages a Parser accumulates.
const DefaultMaxSysex = 1024

// dataLength is the number of data bytes following status.
func dataLength(status byte) int {
	switch {
	case status < 0x80:
		return -1
	case status < 0xC0, status >= 0xE0 && status < 0xF0:
		return 2
	case status < 0xE0:
		return 1
	}
	switch status {
	case 0xF1, 0xF3:
		return 1
	case 0xF2:
		return 2
	}
	return 0
}

// Parser splits a MIDI byte stream into complete messages. It follows
// running status and lets real-time bytes through in the middle of other
// messages. Oversized sysex messages are dropped.
type Parser struct {
	max     int
	buf     []byte
	running byte
	need    int
	sysex   bool
	dropped bool
}

// NewParser returns a parser; max bounds sysex length, zero selects
// DefaultMaxSysex.
func NewParser(max int) *Parser {
	if max <= 0 {
		max = DefaultMaxSysex
	}
	return &Parser{max: max, buf: make([]byte, 0, 16)}
}

// Feed consumes b and calls emit with every completed message. The slice
// passed to emit is owned by the callee.
func (p *Parser) Feed(b []byte, emit func(msg []byte)) {
	for _, c := range b {
		switch {
		case c >= realtime:
			emit([]byte{c})

		case c == sysexStart:
			p.running = 0
			p.sysex = true
			p.dropped = false
			p.buf = append(p.buf[:0], c)

		case c == sysexEnd:
			if p.sysex && !p.dropped {
				emit(append(p.buf, c))
				p.buf = make([]byte, 0, 16)
			}
			p.sysex = false
			p.buf = p.buf[:0]

		case c >= 0x80:
			// any other status ends an unterminated sysex
			p.sysex = false
			p.need = dataLength(c)
			p.buf = append(p.buf[:0], c)
			if c < 0xF0 {
				p.running = c
			} else {
				p.running = 0
			}
			if p.need == 0 {
				emit(p.take())
			}

		case p.sysex:
			if p.dropped {
				continue
			}
			if len(p.buf) >= p.max-1 {
				logger.Warn("dropping oversized sysex", "limit", p.max)
				p.dropped = true
				continue
			}
			p.buf = append(p.buf, c)

		default:
			if len(p.buf) == 0 {
				if p.running == 0 {
					continue
				}
				p.buf = append(p.buf, p.running)
				p.need = dataLength(p.running)
			}
			p.buf = append(p.buf, c)
			if len(p.buf)-1 == p.need {
				emit(p.take())
			}
		}
	}
}

func (p *Parser) take() []byte {
	msg := append([]byte(nil), p.buf...)
	p.buf = p.buf[:0]
	return msg
}

// Reset drops any partial message and the running status.
func (p *Parser) Reset() {
	p.buf = p.buf[:0]
	p.running = 0
	p.sysex = false
	p.dropped = false
}
