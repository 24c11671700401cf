package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdaptive_SelectsCoefficient(t *testing.T) {
	tests := []struct {
		name  string
		start float32
		raw   float32
		want  float32
	}{
		{"small fluctuation uses slow alpha", 1.000, 1.010, 1.004},
		{"jump uses fast alpha", 0.000, 2.000, 1.800},
		{"drop uses fast alpha", 2.000, 0.000, 0.200},
		{"no change", 0.500, 0.500, 0.500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(0.90, 0.40, 0.02)
			f.Reset(tt.start)
			got := f.Update(tt.raw)
			assert.InDelta(t, tt.want, got, 1e-5)
			assert.InDelta(t, tt.want, f.Value(), 1e-5)
		})
	}
}

func TestAdaptive_ThresholdIsExclusive(t *testing.T) {
	f := New(0.5, 0.25, 0.25)
	f.Reset(1.0)

	// diff == threshold stays on the slow coefficient
	assert.InDelta(t, 1.0625, f.Update(1.25), 1e-6)
}

func TestAdaptive_StartsAtZero(t *testing.T) {
	f := New(0.90, 0.40, 0.02)
	assert.Equal(t, float32(0), f.Value())
}

func TestAdaptive_NeverOvershoots(t *testing.T) {
	f := New(0.90, 0.40, 0.02)

	// Deterministic pseudo-random walk with occasional jumps
	seed := uint32(12345)
	next := func() float32 {
		seed = seed*1664525 + 1013904223
		return float32(seed>>8) / float32(1<<24)
	}

	for i := 0; i < 2000; i++ {
		raw := next() * 0.05
		if i%97 == 0 {
			raw += next() * 10
		}

		prev := f.Value()
		got := f.Update(raw)

		lo, hi := prev, raw
		if lo > hi {
			lo, hi = hi, lo
		}
		assert.GreaterOrEqual(t, got, lo-1e-6, "sample %d", i)
		assert.LessOrEqual(t, got, hi+1e-6, "sample %d", i)
	}
}

func TestAdaptive_ConvergesOnStep(t *testing.T) {
	f := New(0.90, 0.40, 0.02)

	for i := 0; i < 20; i++ {
		f.Update(2.5)
	}
	assert.InDelta(t, 2.5, f.Value(), 1e-4)
}
