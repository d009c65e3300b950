// Package bus bridges fader values onto the I2C jack, either as bus
// controller pushing values to known modules or as a peripheral answering
// read requests from a controller.
package bus

import (
	"sync/atomic"
)

// MaxChannels is the largest supported fader count.
const MaxChannels = 16

// Resolution is the bit width of values on the bus, independent of the ADC.
const Resolution = 14

// MaxValue is the largest bus value.
const MaxValue = 1<<Resolution - 1

// Values holds the latest bus value of every channel. The scan loop is the
// only writer and the bus event handler the only reader, so each slot is a
// single atomic word and no lock is involved.
type Values struct {
	v [MaxChannels]atomic.Uint32
	n int
}

// NewValues returns storage for n channels.
func NewValues(n int) *Values {
	if n < 1 {
		n = 1
	}
	if n > MaxChannels {
		n = MaxChannels
	}
	return &Values{n: n}
}

// Len returns the channel count.
func (v *Values) Len() int { return v.n }

// Store sets channel ch. Out of range channels are dropped.
func (v *Values) Store(ch int, val uint16) {
	if ch < 0 || ch >= v.n {
		return
	}
	v.v[ch].Store(uint32(val))
}

// Load returns channel ch, clamped into range.
func (v *Values) Load(ch int) uint16 {
	return uint16(v.v[v.Clamp(ch)].Load())
}

// Clamp maps any index into [0, Len()-1].
func (v *Values) Clamp(ch int) int {
	switch {
	case ch < 0:
		return 0
	case ch >= v.n:
		return v.n - 1
	}
	return ch
}
