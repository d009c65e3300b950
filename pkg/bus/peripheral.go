package bus

import (
	"sync/atomic"
)

// DefaultAddress is the controller's own address in peripheral role.
const DefaultAddress = 0x34

// Event is an I2C target event.
type Event int

const (
	Receive Event = iota // controller wrote data
	Request              // controller wants data
	Finish               // stop or restart
)

// Peripheral answers a bus controller: a one byte write selects a channel,
// a read returns that channel's value MSB first.
//
// Handle runs in bus event context. It only touches atomics and a fixed
// reply buffer and never blocks.
type Peripheral struct {
	values   *Values
	selected atomic.Int32
	reply    [2]byte
}

// NewPeripheral returns a handler serving values.
func NewPeripheral(values *Values) *Peripheral {
	return &Peripheral{values: values}
}

// Selected returns the active channel.
func (p *Peripheral) Selected() int {
	return int(p.selected.Load())
}

// Handle processes one event. For Request it returns the two bytes to
// send; the slice is reused by the next call.
func (p *Peripheral) Handle(ev Event, data []byte) []byte {
	switch ev {
	case Receive:
		if len(data) > 0 {
			p.selected.Store(int32(p.values.Clamp(int(data[0]))))
		}
	case Request:
		v := p.values.Load(p.Selected())
		p.reply[0] = byte(v >> 8)
		p.reply[1] = byte(v)
		return p.reply[:]
	}
	return nil
}
