// Package scope provides a fyne widget that plots fader positions over time.
package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/16n-faderbank/16next-firmware/pkg/monitor"
	"github.com/16n-faderbank/16next-firmware/pkg/sample"
	"github.com/16n-faderbank/16next-firmware/pkg/settings"
)

// ScopeWidget shows one trace per fader. Positions are normalized so the
// vertical axis is fixed at [0, 1].
type ScopeWidget struct {
	widget.BaseWidget

	window time.Duration

	mu     sync.RWMutex
	traces [settings.Channels][]sample.Sample
	moves  []monitor.Move
	hidden [settings.Channels]bool
	xMin   time.Time
	xMax   time.Time

	maxDisplayPoints int
}

// New returns a scope showing the given time window.
func New(window time.Duration) *ScopeWidget {
	if window <= 0 {
		window = monitor.DefaultOptions().Window
	}
	now := time.Now()
	s := &ScopeWidget{
		window:           window,
		xMin:             now.Add(-window),
		xMax:             now,
		maxDisplayPoints: 500,
	}
	s.ExtendBaseWidget(s)
	s.Refresh()
	return s
}

// UpdateData replaces the trace of one fader. Call it from a monitor
// callback through fyne.Do.
func (s *ScopeWidget) UpdateData(u monitor.Update) {
	if u.Fader < 0 || u.Fader >= settings.Channels {
		return
	}

	s.mu.Lock()
	s.traces[u.Fader] = sample.DownsampleSamples(s.traces[u.Fader], u.History, s.maxDisplayPoints)
	s.moves = u.Moves
	if n := len(u.History); n > 0 {
		if last := u.History[n-1].Timestamp; last.After(s.xMax) {
			s.xMax = last
			s.xMin = last.Add(-s.window)
		}
	}
	s.mu.Unlock()

	s.Refresh()
}

// SetVisible shows or hides the trace of a fader.
func (s *ScopeWidget) SetVisible(fader int, visible bool) {
	if fader < 0 || fader >= settings.Channels {
		return
	}
	s.mu.Lock()
	s.hidden[fader] = !visible
	s.mu.Unlock()
	s.Refresh()
}

// Clear drops all traces.
func (s *ScopeWidget) Clear() {
	s.mu.Lock()
	for i := range s.traces {
		s.traces[i] = s.traces[i][:0]
	}
	s.moves = nil
	s.mu.Unlock()
	s.Refresh()
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &scopeRenderer{
		scope:   s,
		grid:    bg,
		objects: []fyne.CanvasObject{bg},
	}
}

// traceColor picks the color of a fader's trace.
func traceColor(fader int) color.RGBA {
	palette := [...]color.RGBA{
		{R: 255, G: 165, B: 0, A: 255},
		{R: 100, G: 200, B: 255, A: 255},
		{R: 120, G: 220, B: 120, A: 255},
		{R: 240, G: 100, B: 120, A: 255},
		{R: 200, G: 150, B: 255, A: 255},
		{R: 240, G: 230, B: 110, A: 255},
		{R: 90, G: 230, B: 210, A: 255},
		{R: 230, G: 230, B: 230, A: 255},
	}
	c := palette[fader%len(palette)]
	if fader >= len(palette) {
		// second bank is drawn darker
		c.R, c.G, c.B = c.R/4*3, c.G/4*3, c.B/4*3
	}
	return c
}
