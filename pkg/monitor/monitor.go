// Package monitor keeps a sliding window of fader samples on the host and
// detects fader moves from their velocity.
package monitor

import (
	"slices"
	"sync"
	"time"

	"github.com/16n-faderbank/16next-firmware/pkg/sample"
)

// Move is a span during which a fader travelled faster than the threshold.
type Move struct {
	Fader     int
	StartTime time.Time
	EndTime   time.Time
	From      float64 // normalized position at the start
	To        float64 // normalized position at the latest sample
	Active    bool    // still moving
}

// Duration is the length of the move so far.
func (m Move) Duration() time.Duration { return m.EndTime.Sub(m.StartTime) }

// Options configures a Monitor.
type Options struct {
	Window    time.Duration // history kept per fader
	Threshold float64       // speed in full travels per second
	MinMove   time.Duration // shorter moves are discarded as jitter
}

// DefaultOptions returns options suited to hand movements.
func DefaultOptions() Options {
	return Options{
		Window:    10 * time.Second,
		Threshold: 0.25,
		MinMove:   20 * time.Millisecond,
	}
}

// Update is passed to callbacks after each sample.
type Update struct {
	Fader      int
	History    []sample.Sample
	Velocities []float64 // n-1 values for n samples
	Moves      []Move    // all moves in the window, every fader
}

type track struct {
	samples    []sample.Sample
	velocities []float64
	active     int // index into moves, or -1
}

// Monitor buffers samples per fader. Buffers are trimmed by timestamp.
type Monitor struct {
	opts Options

	mu       sync.RWMutex
	tracks   map[int]*track
	moves    []Move
	shutdown bool

	cbMu      sync.RWMutex
	callbacks []func(Update)
}

// New returns a monitor. Zero options fall back to DefaultOptions.
func New(opts Options) *Monitor {
	def := DefaultOptions()
	if opts.Window <= 0 {
		opts.Window = def.Window
	}
	if opts.Threshold <= 0 {
		opts.Threshold = def.Threshold
	}
	return &Monitor{opts: opts, tracks: make(map[int]*track)}
}

// ProcessSamples consumes input until it is closed. No callbacks run after
// that until ResetShutdown.
func (m *Monitor) ProcessSamples(input <-chan sample.Sample) {
	for s := range input {
		m.processSample(s)
	}
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()
}

func (m *Monitor) processSample(s sample.Sample) {
	m.mu.Lock()

	t, ok := m.tracks[s.Fader]
	if !ok {
		t = &track{active: -1}
		m.tracks[s.Fader] = t
	}
	t.samples = append(t.samples, s)

	cutoff := s.Timestamp.Add(-m.opts.Window)
	drop := 0
	for drop < len(t.samples)-1 && !t.samples[drop].Timestamp.After(cutoff) {
		drop++
	}
	if drop > 0 {
		t.samples = t.samples[drop:]
		t.velocities = t.velocities[min(drop, len(t.velocities)):]
	}

	if n := len(t.samples); n >= 2 {
		prev, curr := t.samples[n-2], t.samples[n-1]
		v := 0.0
		if dt := curr.Timestamp.Sub(prev.Timestamp).Seconds(); dt > 0 {
			v = (curr.Value - prev.Value) / dt
		}
		t.velocities = append(t.velocities, v)
		m.updateMoves(s.Fader, t, prev, curr, v)
	}
	m.expireMoves(cutoff)

	notify := !m.shutdown
	u := Update{
		Fader:      s.Fader,
		History:    slices.Clone(t.samples),
		Velocities: slices.Clone(t.velocities),
		Moves:      slices.Clone(m.moves),
	}
	m.mu.Unlock()

	if notify {
		m.notify(u)
	}
}

func (m *Monitor) updateMoves(fader int, t *track, prev, curr sample.Sample, v float64) {
	fast := v >= m.opts.Threshold || -v >= m.opts.Threshold

	if i := t.active; i >= 0 {
		mv := &m.moves[i]
		if fast {
			mv.EndTime = curr.Timestamp
			mv.To = curr.Value
			return
		}
		mv.Active = false
		t.active = -1
		if mv.Duration() < m.opts.MinMove {
			m.removeMove(i)
		}
		return
	}

	if fast {
		m.moves = append(m.moves, Move{
			Fader:     fader,
			StartTime: prev.Timestamp,
			EndTime:   curr.Timestamp,
			From:      prev.Value,
			To:        curr.Value,
			Active:    true,
		})
		t.active = len(m.moves) - 1
	}
}

// removeMove deletes moves[i] and fixes the active indexes of the tracks.
func (m *Monitor) removeMove(i int) {
	if i < 0 || i >= len(m.moves) {
		return
	}
	m.moves = slices.Delete(m.moves, i, i+1)
	for _, t := range m.tracks {
		if t.active > i {
			t.active--
		}
	}
}

// expireMoves drops finished moves that ended before cutoff.
func (m *Monitor) expireMoves(cutoff time.Time) {
	for i := 0; i < len(m.moves); {
		if !m.moves[i].Active && m.moves[i].EndTime.Before(cutoff) {
			m.removeMove(i)
			continue
		}
		i++
	}
}

// History returns a copy of the buffered samples of one fader.
func (m *Monitor) History(fader int) []sample.Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.tracks[fader]; ok {
		return slices.Clone(t.samples)
	}
	return nil
}

// Velocities returns a copy of the velocities of one fader.
func (m *Monitor) Velocities(fader int) []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.tracks[fader]; ok {
		return slices.Clone(t.velocities)
	}
	return nil
}

// Latest returns the newest sample of a fader.
func (m *Monitor) Latest(fader int) (sample.Sample, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tracks[fader]
	if !ok || len(t.samples) == 0 {
		return sample.Sample{}, false
	}
	return t.samples[len(t.samples)-1], true
}

// Faders returns the faders seen so far in ascending order.
func (m *Monitor) Faders() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int, 0, len(m.tracks))
	for f := range m.tracks {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// Moves returns a copy of the moves in the window.
func (m *Monitor) Moves() []Move {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.moves)
}

// OnUpdate registers a callback run after every sample. Callbacks run on
// the ProcessSamples goroutine and must return quickly.
func (m *Monitor) OnUpdate(cb func(Update)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// ResetShutdown allows callbacks again after the input was closed.
func (m *Monitor) ResetShutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown = false
}

func (m *Monitor) notify(u Update) {
	m.cbMu.RLock()
	callbacks := slices.Clone(m.callbacks)
	m.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(u)
		}
	}
}
