package scope

import (
	"fmt"
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"github.com/16n-faderbank/16next-firmware/pkg/monitor"
	"github.com/16n-faderbank/16next-firmware/pkg/sample"
	"github.com/16n-faderbank/16next-firmware/pkg/settings"
)

type scopeRenderer struct {
	scope *ScopeWidget

	grid    *canvas.Rectangle
	objects []fyne.CanvasObject

	lastSize fyne.Size
}

// plot is the drawing area inside the axis margins.
type plot struct {
	x, y, w, h float32
	xMin, xMax time.Time
}

func newPlot(size fyne.Size, xMin, xMax time.Time) plot {
	const left, right, top, bottom = 50, 20, 20, 40
	return plot{
		x: left, y: top,
		w: size.Width - left - right, h: size.Height - top - bottom,
		xMin: xMin, xMax: xMax,
	}
}

// project maps a timestamp and a normalized position into widget
// coordinates. Values outside the plot are clamped to its edges.
func (p plot) project(t time.Time, v float64) fyne.Position {
	span := p.xMax.Sub(p.xMin).Seconds()
	fx := 0.0
	if span > 0 {
		fx = t.Sub(p.xMin).Seconds() / span
	}
	fx = clamp01(fx)
	v = clamp01(v)
	return fyne.NewPos(p.x+float32(fx)*p.w, p.y+p.h-float32(v)*p.h)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

func (r *scopeRenderer) Layout(size fyne.Size) {
	r.grid.Resize(size)
	if r.lastSize != size {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

func (r *scopeRenderer) Refresh() {
	s := r.scope
	s.mu.RLock()
	var traces [settings.Channels][]sample.Sample
	for i := range s.traces {
		if !s.hidden[i] {
			traces[i] = s.traces[i]
		}
	}
	moves := s.moves
	xMin, xMax := s.xMin, s.xMax
	s.mu.RUnlock()

	size := s.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	r.objects = []fyne.CanvasObject{r.grid}
	p := newPlot(size, xMin, xMax)

	r.drawGrid(p)
	r.drawMoves(p, moves)
	for i, tr := range traces {
		r.drawTrace(p, i, tr)
	}
	canvas.Refresh(r.grid)
}

func (r *scopeRenderer) drawGrid(p plot) {
	lineColor := color.RGBA{R: 40, G: 40, B: 40, A: 255}
	textColor := color.RGBA{R: 150, G: 150, B: 150, A: 255}

	const hLines = 4
	for i := range hLines + 1 {
		v := 1 - float64(i)/hLines
		y := p.project(p.xMin, v).Y
		line := canvas.NewLine(lineColor)
		line.Position1 = fyne.NewPos(p.x, y)
		line.Position2 = fyne.NewPos(p.x+p.w, y)
		line.StrokeWidth = 1
		r.objects = append(r.objects, line)

		text := canvas.NewText(formatPercent(v), textColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(p.x-5, y-6))
		r.objects = append(r.objects, text)
	}

	const vLines = 10
	span := p.xMax.Sub(p.xMin)
	for i := range vLines + 1 {
		x := p.x + float32(i)*p.w/vLines
		line := canvas.NewLine(lineColor)
		line.Position1 = fyne.NewPos(x, p.y)
		line.Position2 = fyne.NewPos(x, p.y+p.h)
		line.StrokeWidth = 1
		r.objects = append(r.objects, line)

		text := canvas.NewText(formatAge(span-span*time.Duration(i)/vLines), textColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-20, p.y+p.h+5))
		r.objects = append(r.objects, text)
	}
}

func (r *scopeRenderer) drawTrace(p plot, fader int, samples []sample.Sample) {
	if len(samples) < 2 {
		return
	}
	c := traceColor(fader)
	prev := p.project(samples[0].Timestamp, samples[0].Value)
	for _, s := range samples[1:] {
		// hold the previous level until the next change
		curr := p.project(s.Timestamp, s.Value)
		corner := fyne.NewPos(curr.X, prev.Y)
		r.addLine(c, prev, corner, 1.5)
		r.addLine(c, corner, curr, 1.5)
		prev = curr
	}
	r.addLine(c, prev, fyne.NewPos(p.x+p.w, prev.Y), 1.5)
}

// drawMoves marks detected moves with a band along the bottom axis.
func (r *scopeRenderer) drawMoves(p plot, moves []monitor.Move) {
	for _, m := range moves {
		start := p.project(m.StartTime, 0)
		end := p.project(m.EndTime, 0)
		c := traceColor(m.Fader)
		band := color.NRGBA{R: c.R, G: c.G, B: c.B, A: 160}
		r.addLine(band, fyne.NewPos(start.X, p.y+p.h-2), fyne.NewPos(end.X, p.y+p.h-2), 4)
	}
}

func (r *scopeRenderer) addLine(c color.Color, from, to fyne.Position, width float32) {
	line := canvas.NewLine(c)
	line.Position1 = from
	line.Position2 = to
	line.StrokeWidth = width
	r.objects = append(r.objects, line)
}

func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *scopeRenderer) Destroy() {}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

func formatAge(d time.Duration) string {
	if d <= 0 {
		return "now"
	}
	if d < time.Second {
		return fmt.Sprintf("-%.2fs", d.Seconds())
	}
	return fmt.Sprintf("-%.1fs", d.Seconds())
}
