package sysex

// DefaultBufferSize is the reassembly capacity of the device.
const DefaultBufferSize = 128

// State of the reassembler.
type State int

const (
	Idle State = iota
	Collecting
	// Discarding skips the rest of an overflowed message up to its
	// terminator.
	Discarding
)

func (s State) String() string {
	switch s {
	case Collecting:
		return "collecting"
	case Discarding:
		return "discarding"
	}
	return "idle"
}

// Status is the outcome of feeding one chunk.
type Status int

const (
	// Ignored: idle and the chunk does not start a message. The chunk is
	// ordinary MIDI traffic.
	Ignored Status = iota
	// Partial: the chunk was consumed and the message is not finished.
	Partial
	// Complete: the terminator was seen; Message returns the message.
	Complete
	// Overflow: the message did not fit and was dropped.
	Overflow
	// Discarded: the chunk belonged to a dropped message.
	Discarded
)

func (s Status) String() string {
	switch s {
	case Ignored:
		return "ignored"
	case Partial:
		return "partial"
	case Complete:
		return "complete"
	case Overflow:
		return "overflow"
	case Discarded:
		return "discarded"
	}
	return "unknown"
}

// Reassembler glues inbound chunks into complete messages in a fixed buffer.
type Reassembler struct {
	buf   []byte
	off   int
	state State
	done  int // length of the last complete message
}

// NewReassembler returns a reassembler holding at most capacity bytes.
func NewReassembler(capacity int) *Reassembler {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &Reassembler{buf: make([]byte, capacity)}
}

func (r *Reassembler) State() State { return r.state }

// Message returns the last complete message. It is valid until the next Feed.
func (r *Reassembler) Message() []byte {
	return r.buf[:r.done]
}

// Reset drops any partial message.
func (r *Reassembler) Reset() {
	r.state = Idle
	r.off = 0
}

// Feed consumes one inbound chunk. After an overflow, chunks are discarded
// until the terminator, a new header or another status byte.
func (r *Reassembler) Feed(chunk []byte) Status {
	if r.state == Discarding {
		switch {
		case HasHeader(chunk):
			r.state = Idle
		case len(chunk) > 0 && chunk[0] >= 0xF8:
			// realtime bytes may interleave with sysex
			return Ignored
		case len(chunk) > 0 && chunk[0] >= 0x80 && chunk[0] != End:
			r.state = Idle
			return Ignored
		default:
			r.skip(chunk)
			return Discarded
		}
	}

	if r.state == Idle {
		if !HasHeader(chunk) {
			return Ignored
		}
		clear(r.buf)
		r.off = 0
		r.done = 0
		r.state = Collecting
	}

	for i, b := range chunk {
		if r.off >= len(r.buf) {
			r.Reset()
			r.state = Discarding
			r.skip(chunk[i:])
			return Overflow
		}
		r.buf[r.off] = b
		r.off++
		if b == End {
			r.done = r.off
			r.Reset()
			return Complete
		}
	}
	return Partial
}

// skip leaves the discarding state once the terminator is in p.
func (r *Reassembler) skip(p []byte) {
	for _, b := range p {
		if b == End {
			r.state = Idle
			return
		}
	}
}
