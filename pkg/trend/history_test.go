package trend

import (
	"testing"
	"time"

	"github.com/itohio/feedflow/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointFromFrame(t *testing.T) {
	now := time.Now()
	p := PointFromFrame(telemetry.Frame{Time: now, WeightKg: 1.5, TempC: 24, Running: true})
	assert.Equal(t, Point{Time: now, WeightKg: 1.5, TempC: 24, FeedActive: true}, p)
}

func TestHistory_Window(t *testing.T) {
	start := time.Unix(0, 0)
	h := NewHistory(10 * time.Second)

	for s := 0; s <= 20; s += 2 {
		h.Add(Point{Time: start.Add(time.Duration(s) * time.Second), WeightKg: float32(s)})
	}

	points := h.Points(nil)
	require.Len(t, points, 6)
	assert.Equal(t, float32(10), points[0].WeightKg)
	assert.Equal(t, float32(20), points[5].WeightKg)
	assert.Equal(t, 6, h.Len())
}

func TestHistory_PointsReusesDestination(t *testing.T) {
	h := NewHistory(time.Minute)
	h.Add(Point{Time: time.Unix(1, 0)})

	dst := make([]Point, 5, 10)
	points := h.Points(dst)
	assert.Len(t, points, 1)
	assert.Equal(t, cap(dst), cap(points))
}

func TestDownsample_NoDownsampling(t *testing.T) {
	points := []Point{{WeightKg: 1}, {WeightKg: 2}, {WeightKg: 3}}

	result := Downsample(nil, points, 10)
	assert.Equal(t, points, result)

	dst := make([]Point, 0, 10)
	result = Downsample(dst, points, 10)
	assert.Equal(t, points, result)
	assert.Equal(t, cap(dst), cap(result))
}

func TestDownsample_WithDownsampling(t *testing.T) {
	points := make([]Point, 100)
	for i := range points {
		points[i] = Point{WeightKg: float32(i) * 0.01}
	}

	dst := make([]Point, 0, 20)
	result := Downsample(dst, points, 10)
	require.Len(t, result, 10)
	assert.Equal(t, points[0], result[0])
	assert.GreaterOrEqual(t, result[len(result)-1].WeightKg, float32(0.8))
	assert.Equal(t, cap(dst), cap(result))

	result = Downsample(nil, points, 10)
	assert.Len(t, result, 10)
}

func TestSpans(t *testing.T) {
	tests := []struct {
		name   string
		active []bool
		want   [][2]int
	}{
		{name: "empty", active: nil, want: nil},
		{name: "never active", active: []bool{false, false}, want: nil},
		{name: "one span", active: []bool{false, true, true, false}, want: [][2]int{{1, 2}}},
		{name: "open at end", active: []bool{false, true}, want: [][2]int{{1, 1}}},
		{name: "two spans", active: []bool{true, false, true, true}, want: [][2]int{{0, 0}, {2, 3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := make([]Point, len(tt.active))
			for i, a := range tt.active {
				points[i].FeedActive = a
			}
			assert.Equal(t, tt.want, Spans(points))
		})
	}
}

func TestAutoScale(t *testing.T) {
	start := time.Unix(0, 0)

	yMin, yMax, xMin, xMax := autoScale(nil, time.Minute)
	assert.Equal(t, 0.0, yMin)
	assert.Equal(t, 1.0, yMax)
	assert.Equal(t, time.Minute, xMax.Sub(xMin))

	points := []Point{
		{Time: start, WeightKg: 1},
		{Time: start.Add(time.Second), WeightKg: 2},
	}
	yMin, yMax, xMin, xMax = autoScale(points, time.Minute)
	assert.InDelta(t, 0.9, yMin, 1e-9)
	assert.InDelta(t, 2.1, yMax, 1e-9)
	assert.Equal(t, start, xMin)
	assert.Equal(t, start.Add(time.Minute), xMax)

	flat := []Point{{Time: start, WeightKg: 3}}
	yMin, yMax, _, _ = autoScale(flat, time.Minute)
	assert.InDelta(t, 2.9, yMin, 1e-9)
	assert.InDelta(t, 3.1, yMax, 1e-9)
}
