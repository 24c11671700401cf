package trend

import (
	"sync"
	"time"

	"github.com/itohio/feedflow/pkg/telemetry"
)

// Point is one plotted telemetry frame.
type Point struct {
	Time       time.Time
	WeightKg   float32
	TempC      float32
	FeedActive bool
}

// PointFromFrame converts a telemetry frame.
func PointFromFrame(f telemetry.Frame) Point {
	return Point{
		Time:       f.Time,
		WeightKg:   f.WeightKg,
		TempC:      f.TempC,
		FeedActive: f.FeedActive || f.Running,
	}
}

// History keeps the frames of a sliding time window.
type History struct {
	window time.Duration

	mu     sync.RWMutex
	points []Point
}

// NewHistory creates a history holding the last window of frames.
func NewHistory(window time.Duration) *History {
	return &History{
		window: window,
		points: make([]Point, 0, 256),
	}
}

// Add appends a point and drops the ones that fell out of the window.
func (h *History) Add(p Point) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.points = append(h.points, p)

	cutoff := p.Time.Add(-h.window)
	drop := 0
	for drop < len(h.points) && h.points[drop].Time.Before(cutoff) {
		drop++
	}
	if drop > 0 {
		h.points = append(h.points[:0], h.points[drop:]...)
	}
}

// Points copies the current points into dst, reusing its capacity.
func (h *History) Points(dst []Point) []Point {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return append(dst[:0], h.points...)
}

// Len returns the number of points held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.points)
}

// Downsample reduces points to at most maxPoints by decimation.
// Destination-based: reuses dst if it has sufficient capacity, otherwise allocates new.
func Downsample(dst []Point, points []Point, maxPoints int) []Point {
	if len(points) <= maxPoints {
		if cap(dst) >= len(points) {
			dst = dst[:len(points)]
			copy(dst, points)
			return dst
		}
		result := make([]Point, len(points))
		copy(result, points)
		return result
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]Point, 0, maxPoints)
	}

	step := float64(len(points)) / float64(maxPoints)
	for i := range maxPoints {
		idx := int(float64(i) * step)
		if idx < len(points) {
			dst = append(dst, points[idx])
		}
	}

	return dst
}

// Spans returns the [start, end] index pairs of consecutive feed-active points.
func Spans(points []Point) [][2]int {
	var spans [][2]int
	start := -1
	for i, p := range points {
		switch {
		case p.FeedActive && start < 0:
			start = i
		case !p.FeedActive && start >= 0:
			spans = append(spans, [2]int{start, i - 1})
			start = -1
		}
	}
	if start >= 0 {
		spans = append(spans, [2]int{start, len(points) - 1})
	}
	return spans
}
