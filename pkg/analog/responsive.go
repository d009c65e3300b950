// Package analog turns noisy fader readings into stable control values.
package analog

import (
	"github.com/chewxy/math32"
)

// DefaultResolution is the 12-bit ADC range.
const DefaultResolution = 4096

// errorAlpha is the coefficient of the noise estimate EMA.
const errorAlpha = 0.3

// Conditioner filters a stream of raw readings from one channel.
type Conditioner interface {
	// Update feeds one raw reading and returns the conditioned value and
	// whether it differs from the previous one.
	Update(raw int) (value int, changed bool)
	Value() int
}

var (
	_ Conditioner = (*Filter)(nil)
	_ Conditioner = (*Hysteresis)(nil)
)

// Filter is an adaptive EMA whose gain grows with the distance between the
// input and the smoothed value. Small deltas are smoothed hard and large
// ones are tracked almost immediately. With sleep enabled the output
// freezes while the estimated noise stays under the activity threshold.
type Filter struct {
	resolution        int
	snapMultiplier    float32
	activityThreshold float32
	sleepEnable       bool
	edgeSnap          bool

	smooth   float32
	errorEMA float32
	sleeping bool

	raw     int
	value   int
	changed bool
}

// NewFilter returns a filter for a 12-bit channel with edge snap enabled
// and an activity threshold of 16.
func NewFilter(sleep bool, snapMultiplier float32) *Filter {
	f := &Filter{
		resolution:        DefaultResolution,
		activityThreshold: 16,
		sleepEnable:       sleep,
		edgeSnap:          true,
	}
	f.SetSnapMultiplier(snapMultiplier)
	return f
}

func (f *Filter) Value() int     { return f.value }
func (f *Filter) Raw() int       { return f.raw }
func (f *Filter) Changed() bool  { return f.changed }
func (f *Filter) Sleeping() bool { return f.sleeping }

func (f *Filter) EnableSleep(on bool)    { f.sleepEnable = on }
func (f *Filter) EnableEdgeSnap(on bool) { f.edgeSnap = on }

// SetActivityThreshold sets the noise magnitude below which the filter sleeps.
func (f *Filter) SetActivityThreshold(th float32) { f.activityThreshold = th }

// SetResolution sets the number of ADC codes.
func (f *Filter) SetResolution(res int) {
	if res < 2 {
		res = 2
	}
	f.resolution = res
}

// SetSnapMultiplier sets the input scale of the snap curve, clamped to [0, 1].
func (f *Filter) SetSnapMultiplier(m float32) {
	switch {
	case m > 1:
		m = 1
	case m < 0:
		m = 0
	}
	f.snapMultiplier = m
}

// Update feeds one reading.
func (f *Filter) Update(raw int) (int, bool) {
	f.raw = raw
	prev := f.value
	f.value = f.respond(raw)
	f.changed = f.value != prev
	return f.value, f.changed
}

func (f *Filter) respond(raw int) int {
	in := float32(raw)
	res := float32(f.resolution)

	// stretch readings near the rails so the extremes stay reachable
	if f.sleepEnable && f.edgeSnap {
		if in < f.activityThreshold {
			in = in*2 - f.activityThreshold
		} else if in > res-f.activityThreshold {
			in = in*2 - res + f.activityThreshold
		}
	}

	delta := in - f.smooth
	f.errorEMA += (delta - f.errorEMA) * errorAlpha

	if f.sleepEnable {
		f.sleeping = math32.Abs(f.errorEMA) < f.activityThreshold
		if f.sleeping {
			return int(f.smooth)
		}
	}

	snap := snapCurve(math32.Abs(delta) * f.snapMultiplier)
	if f.sleepEnable {
		snap = 0.5*snap + 0.5
	}

	f.smooth += delta * snap
	f.smooth = math32.Max(0, math32.Min(f.smooth, res-1))

	return int(f.smooth)
}

// snapCurve maps 0 to 0 and tends to 1, saturating at x = 1.
func snapCurve(x float32) float32 {
	y := (1 - 1/(x+1)) * 2
	return math32.Min(y, 1)
}
