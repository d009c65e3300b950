package sample

// NewAveragingConverter averages the last windowSize samples of each fader.
// Every input sample produces one averaged output sample for its fader.
func NewAveragingConverter(windowSize, bufSize int) func(in <-chan Sample) <-chan Sample {
	if windowSize <= 0 {
		windowSize = 1
	}
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan Sample) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			windows := make(map[int][]Sample)
			for s := range in {
				w := append(windows[s.Fader], s)
				if len(w) > windowSize {
					w = w[1:]
				}
				windows[s.Fader] = w
				out <- averageSamples(w)
			}
		}()

		return out
	}
}

// averageSamples averages values of one fader. The newest sample supplies
// the timestamp and resolution.
func averageSamples(samples []Sample) Sample {
	if len(samples) == 0 {
		return Sample{}
	}

	last := samples[len(samples)-1]
	var sumRaw, sumValue float64
	for _, s := range samples {
		sumRaw += float64(s.Raw)
		sumValue += s.Value
	}

	n := float64(len(samples))
	avg := last
	avg.Raw = uint16(sumRaw/n + 0.5)
	avg.Value = sumValue / n
	return avg
}
