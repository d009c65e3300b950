package analog

// Hysteresis is a fixed-pole EMA followed by a quantizer that drops bits
// low-order bits. The quantized level only moves once the filtered input
// leaves the band around the current level, so a reading sitting on a step
// boundary does not toggle.
type Hysteresis struct {
	alpha  float32
	bits   uint
	margin int
	offset int
	maxIn  int
	maxOut int

	filtered float32
	level    int
}

// NewHysteresis returns a filter for inputs in [0, resolution-1]. pole is in
// [0, 1); zero disables smoothing.
func NewHysteresis(pole float32, bits int, resolution int) *Hysteresis {
	if bits < 1 {
		bits = 1
	}
	if resolution < 2 {
		resolution = DefaultResolution
	}
	return &Hysteresis{
		alpha:  1 - pole,
		bits:   uint(bits),
		margin: 1<<bits - 1,
		offset: 1 << (bits - 1),
		maxIn:  resolution - 1,
		maxOut: (resolution - 1) >> bits,
	}
}

// Level returns the quantized output level.
func (h *Hysteresis) Level() int { return h.level }

// Value returns the level scaled back to the input range.
func (h *Hysteresis) Value() int { return h.level << h.bits }

// Update feeds one reading. The returned value is Value().
func (h *Hysteresis) Update(raw int) (int, bool) {
	h.filtered += (float32(raw) - h.filtered) * h.alpha
	in := int(h.filtered)

	full := h.level<<h.bits | h.offset
	lower, upper := 0, h.maxIn
	if h.level > 0 {
		lower = full - h.margin
	}
	if h.level < h.maxOut {
		upper = full + h.margin
	}

	if in < lower || in > upper {
		h.level = in >> h.bits
		return h.Value(), true
	}
	return h.Value(), false
}
