package scope

import (
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"github.com/stretchr/testify/assert"
)

func TestPlotProject(t *testing.T) {
	t0 := time.Unix(100, 0)
	p := newPlot(fyne.NewSize(470, 360), t0, t0.Add(10*time.Second))
	assert.Equal(t, float32(400), p.w)
	assert.Equal(t, float32(300), p.h)

	assert.Equal(t, fyne.NewPos(50, 320), p.project(t0, 0))
	assert.Equal(t, fyne.NewPos(450, 20), p.project(t0.Add(10*time.Second), 1))
	assert.Equal(t, fyne.NewPos(250, 170), p.project(t0.Add(5*time.Second), 0.5))

	// clamped to the plot
	assert.Equal(t, fyne.NewPos(50, 20), p.project(t0.Add(-time.Second), 2))
	assert.Equal(t, fyne.NewPos(450, 320), p.project(t0.Add(time.Minute), -1))
}

func TestPlotProject_EmptySpan(t *testing.T) {
	t0 := time.Unix(100, 0)
	p := newPlot(fyne.NewSize(470, 360), t0, t0)
	assert.Equal(t, float32(50), p.project(t0.Add(time.Second), 0).X)
}

func TestTraceColor(t *testing.T) {
	assert.NotEqual(t, traceColor(0), traceColor(1))
	assert.NotEqual(t, traceColor(0), traceColor(8))
	assert.Equal(t, uint8(255), traceColor(15).A)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "50%", formatPercent(0.5))
	assert.Equal(t, "100%", formatPercent(1))
	assert.Equal(t, "now", formatAge(0))
	assert.Equal(t, "-0.50s", formatAge(500*time.Millisecond))
	assert.Equal(t, "-10.0s", formatAge(10*time.Second))
}
