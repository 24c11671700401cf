package filter

import "github.com/chewxy/math32"

// Adaptive is an exponential smoother that switches between two coefficients.
// Jumps larger than the threshold (an object placed on or removed from the scale)
// are tracked with the fast coefficient, everything else (vibration, settling)
// is damped with the slow one.
//
// Adaptive is not safe for concurrent use. It is owned by the control loop.
type Adaptive struct {
	value     float32 // current filtered estimate in kg
	fastAlpha float32
	slowAlpha float32
	jumpKg    float32
}

// New creates an adaptive filter starting at 0 kg.
func New(fastAlpha, slowAlpha, jumpKg float32) *Adaptive {
	return &Adaptive{
		fastAlpha: fastAlpha,
		slowAlpha: slowAlpha,
		jumpKg:    jumpKg,
	}
}

// Update folds a new raw sample into the estimate and returns it.
// It must be called once per new sensor sample, never on idle cycles.
func (a *Adaptive) Update(rawKg float32) float32 {
	alpha := a.slowAlpha
	if math32.Abs(rawKg-a.value) > a.jumpKg {
		alpha = a.fastAlpha
	}

	a.value = alpha*rawKg + (1-alpha)*a.value
	return a.value
}

// Value returns the current filtered estimate.
func (a *Adaptive) Value() float32 {
	return a.value
}

// Reset replaces the estimate, e.g. after a tare.
func (a *Adaptive) Reset(kg float32) {
	a.value = kg
}
