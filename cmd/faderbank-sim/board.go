package main

import (
	"math"
	"sync"
	"time"
)

// board simulates the fader bank: every fader follows its own slow sine
// with a little noise on top, quantized to the ADC width.
type board struct {
	bits  int
	noise float64
	start time.Time

	mu       sync.Mutex
	selected uint8
	held     map[uint8]float64
	period   time.Duration
	now      func() time.Time
}

func newBoard(bits int, noise float64, period time.Duration) *board {
	if period <= 0 {
		period = 20 * time.Second
	}
	return &board{
		bits:   bits,
		noise:  noise,
		period: period,
		start:  time.Now(),
		held:   make(map[uint8]float64),
		now:    time.Now,
	}
}

// Select latches the mux address.
func (b *board) Select(code uint8) {
	b.mu.Lock()
	b.selected = code
	b.mu.Unlock()
}

// Hold pins a mux input to a normalized position; negative releases it.
func (b *board) Hold(code uint8, pos float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pos < 0 {
		delete(b.held, code)
		return
	}
	b.held[code] = math.Min(pos, 1)
}

// Get converts the selected input.
func (b *board) Get() uint16 {
	b.mu.Lock()
	code := b.selected
	pos, ok := b.held[code]
	b.mu.Unlock()

	if !ok {
		pos = b.position(code, b.now().Sub(b.start))
	}
	full := float64(int(1)<<b.bits - 1)
	v := pos*full + b.jitter(code)
	return uint16(math.Max(0, math.Min(full, math.Round(v))))
}

// position is the unheld position of input code after elapsed.
func (b *board) position(code uint8, elapsed time.Duration) float64 {
	phase := 2 * math.Pi * (elapsed.Seconds()/b.period.Seconds() + float64(code)/16)
	return 0.5 + 0.5*math.Sin(phase)
}

func (b *board) jitter(code uint8) float64 {
	t := float64(b.now().Sub(b.start).Nanoseconds())
	return (math.Sin(t*0.001+float64(code)) + math.Cos(t*0.0013)) * b.noise * 0.5
}

type led struct {
	mu sync.Mutex
	on bool
}

func (l *led) Set(on bool) {
	l.mu.Lock()
	if on != l.on {
		logger.Debug("led", "on", on)
	}
	l.on = on
	l.mu.Unlock()
}
