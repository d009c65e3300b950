package sample

// DownsampleSamples decimates samples to at most maxPoints for display.
// dst is reused when it has enough capacity.
func DownsampleSamples(dst []Sample, samples []Sample, maxPoints int) []Sample {
	return downsample(dst, samples, maxPoints)
}

// DownsampleValues is DownsampleSamples for plain values.
func DownsampleValues(dst []float64, values []float64, maxPoints int) []float64 {
	return downsample(dst, values, maxPoints)
}

func downsample[T any](dst, src []T, maxPoints int) []T {
	if len(src) <= maxPoints {
		if cap(dst) >= len(src) {
			dst = dst[:len(src)]
			copy(dst, src)
			return dst
		}
		result := make([]T, len(src))
		copy(result, src)
		return result
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]T, 0, maxPoints)
	}

	step := float64(len(src)) / float64(maxPoints)
	for i := range maxPoints {
		idx := int(float64(i) * step)
		if idx < len(src) {
			dst = append(dst, src[idx])
		}
	}
	return dst
}
