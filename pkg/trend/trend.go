package trend

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

// DefaultMaxDisplayPoints limits the points rendered at once.
const DefaultMaxDisplayPoints = 1000

// Widget is a Fyne widget plotting the filtered weight over time with the
// dispensing periods marked.
type Widget struct {
	widget.BaseWidget

	window time.Duration

	// Data (protected by mu)
	mu            sync.RWMutex
	displayPoints []Point
	lastTempC     float32

	// Auto-scaling
	yMin, yMax float64
	xMin, xMax time.Time

	maxDisplayPoints int
}

// New creates a trend widget showing at least window of time.
func New(window time.Duration) *Widget {
	w := &Widget{
		window:           window,
		displayPoints:    make([]Point, 0, DefaultMaxDisplayPoints),
		maxDisplayPoints: DefaultMaxDisplayPoints,
	}
	w.ExtendBaseWidget(w)
	w.Refresh()
	return w
}

// UpdateData replaces the plotted points.
// This should be called from the frame callback using fyne.Do().
func (w *Widget) UpdateData(points []Point) {
	w.mu.Lock()
	w.displayPoints = Downsample(w.displayPoints, points, w.maxDisplayPoints)
	if len(points) > 0 {
		w.lastTempC = points[len(points)-1].TempC
	}
	w.yMin, w.yMax, w.xMin, w.xMax = autoScale(w.displayPoints, w.window)
	w.mu.Unlock()

	// Refresh outside the lock, the renderer takes it
	w.Refresh()
}

// autoScale returns the axis ranges for points with a 10% vertical margin and
// at least window of time.
func autoScale(points []Point, window time.Duration) (yMin, yMax float64, xMin, xMax time.Time) {
	if len(points) == 0 {
		now := time.Now()
		return 0, 1, now, now.Add(window)
	}

	yMin = float64(points[0].WeightKg)
	yMax = yMin
	for _, p := range points {
		v := float64(p.WeightKg)
		if v < yMin {
			yMin = v
		}
		if v > yMax {
			yMax = v
		}
	}

	span := yMax - yMin
	if span == 0 {
		span = 1.0
	}
	yMin -= span * 0.1
	yMax += span * 0.1

	xMin = points[0].Time
	xMax = points[len(points)-1].Time
	if xMax.Sub(xMin) < window {
		xMax = xMin.Add(window)
	}
	return yMin, yMax, xMin, xMax
}

// CreateRenderer creates the widget renderer.
func (w *Widget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &renderer{
		trend:   w,
		bg:      bg,
		objects: []fyne.CanvasObject{bg},
	}
}
