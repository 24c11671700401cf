package trend

import (
	"fmt"
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
)

var (
	gridColor   = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor  = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	weightColor = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	feedColor   = color.RGBA{R: 0, G: 100, B: 200, A: 255}
	tempColor   = color.RGBA{R: 100, G: 200, B: 255, A: 255}
)

type renderer struct {
	trend *Widget

	bg       *canvas.Rectangle
	objects  []fyne.CanvasObject
	lastSize fyne.Size
}

// MinSize returns the minimum size of the widget.
func (r *renderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 240)
}

// Layout arranges the widget components.
func (r *renderer) Layout(size fyne.Size) {
	r.bg.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		r.trend.BaseWidget.Refresh()
	}
}

// Refresh rebuilds the plot.
func (r *renderer) Refresh() {
	r.trend.mu.RLock()
	points := r.trend.displayPoints
	tempC := r.trend.lastTempC
	yMin, yMax := r.trend.yMin, r.trend.yMax
	xMin, xMax := r.trend.xMin, r.trend.xMax
	r.trend.mu.RUnlock()

	size := r.trend.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	r.objects = []fyne.CanvasObject{r.bg}

	const (
		marginLeft   = float32(60)
		marginRight  = float32(20)
		marginTop    = float32(20)
		marginBottom = float32(40)
	)
	p := plot{
		x:    marginLeft,
		y:    marginTop,
		w:    size.Width - marginLeft - marginRight,
		h:    size.Height - marginTop - marginBottom,
		yMin: yMin,
		yMax: yMax,
		xMin: xMin,
		xMax: xMax,
	}

	r.drawGrid(p)
	r.drawFeedSpans(p, points)
	r.drawWeight(p, points)

	if len(points) > 0 {
		text := canvas.NewText(fmt.Sprintf("%.2f °C", tempC), tempColor)
		text.TextSize = 11
		text.Move(fyne.NewPos(p.x+10, p.y+10))
		r.objects = append(r.objects, text)
	}
}

type plot struct {
	x, y, w, h float32
	yMin, yMax float64
	xMin, xMax time.Time
}

func (p plot) pos(t time.Time, kg float32) fyne.Position {
	x := p.x + float32(t.Sub(p.xMin).Seconds()/p.xMax.Sub(p.xMin).Seconds())*p.w
	y := p.y + p.h - float32((float64(kg)-p.yMin)/(p.yMax-p.yMin))*p.h
	return fyne.NewPos(x, y)
}

func (r *renderer) drawGrid(p plot) {
	const hLines, vLines = 6, 10

	for i := range hLines + 1 {
		y := p.y + float32(i)*p.h/hLines
		r.line(gridColor, 1, fyne.NewPos(p.x, y), fyne.NewPos(p.x+p.w, y))

		value := p.yMax - float64(i)*(p.yMax-p.yMin)/hLines
		text := canvas.NewText(fmt.Sprintf("%.3fkg", value), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(p.x-5, y-6))
		r.objects = append(r.objects, text)
	}

	span := p.xMax.Sub(p.xMin)
	for i := range vLines + 1 {
		x := p.x + float32(i)*p.w/vLines
		r.line(gridColor, 1, fyne.NewPos(x, p.y), fyne.NewPos(x, p.y+p.h))

		offset := span * time.Duration(i) / vLines
		text := canvas.NewText(fmt.Sprintf("%.0fs", offset.Seconds()), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-20, p.y+p.h+5))
		r.objects = append(r.objects, text)
	}
}

// drawFeedSpans marks the start and end of every dispensing period.
func (r *renderer) drawFeedSpans(p plot, points []Point) {
	for _, span := range Spans(points) {
		for _, idx := range span {
			x := p.pos(points[idx].Time, 0).X
			r.line(feedColor, 1, fyne.NewPos(x, p.y), fyne.NewPos(x, p.y+p.h))
		}
	}
}

func (r *renderer) drawWeight(p plot, points []Point) {
	for i := 1; i < len(points); i++ {
		r.line(weightColor, 1.5,
			p.pos(points[i-1].Time, points[i-1].WeightKg),
			p.pos(points[i].Time, points[i].WeightKg))
	}
}

func (r *renderer) line(c color.Color, width float32, from, to fyne.Position) {
	l := canvas.NewLine(c)
	l.Position1 = from
	l.Position2 = to
	l.StrokeWidth = width
	r.objects = append(r.objects, l)
}

// Objects returns all canvas objects for rendering.
func (r *renderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *renderer) Destroy() {}
