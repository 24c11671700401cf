package servo

import (
	"log"
	"sync"

	"github.com/chewxy/math32"
)

// Actuator is the PWM primitive driving the servo. It is implemented by the
// tinygo servo driver on the firmware and by Mock on the host.
type Actuator interface {
	SetPulseWidth(us uint16) error
}

// Range describes the logical angle range and the pulse widths it maps to.
type Range struct {
	MinAngle   int32
	MaxAngle   int32
	MinPulseUs uint16
	MaxPulseUs uint16
}

// Mapper converts logical angles into pulse widths. It is the only component
// that talks to the Actuator; everything else goes through it.
//
// The last commanded angle is the single source of truth for the actuator
// position, the actuator itself is never read back.
type Mapper struct {
	rng      Range
	actuator Actuator

	mu    sync.RWMutex
	angle int32
	pulse uint16
}

// NewMapper creates a mapper for the given range. No pulse is written until the
// first SetLogicalAngle.
func NewMapper(rng Range, actuator Actuator) *Mapper {
	return &Mapper{
		rng:      rng,
		actuator: actuator,
		angle:    rng.MinAngle,
		pulse:    rng.MinPulseUs,
	}
}

// SetLogicalAngle clamps the angle to the supported range, maps it linearly to
// the pulse range and writes it. Out-of-range input is clamped, not rejected;
// the return value reports whether clamping happened.
func (m *Mapper) SetLogicalAngle(angle int32) (clamped bool) {
	target := angle
	if target < m.rng.MinAngle {
		target = m.rng.MinAngle
	} else if target > m.rng.MaxAngle {
		target = m.rng.MaxAngle
	}
	clamped = target != angle
	if clamped {
		log.Printf("servo: angle %d clamped to %d", angle, target)
	}

	pulse := m.pulseFor(target)

	m.mu.Lock()
	m.angle = target
	m.pulse = pulse
	m.mu.Unlock()

	if err := m.actuator.SetPulseWidth(pulse); err != nil {
		log.Printf("servo: failed to write %dus: %v", pulse, err)
	}

	return clamped
}

// Angle returns the last commanded logical angle.
func (m *Mapper) Angle() int32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.angle
}

// Pulse returns the last written pulse width in microseconds.
func (m *Mapper) Pulse() uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pulse
}

// pulseFor maps an in-range angle to a pulse width, rounded to the nearest microsecond.
func (m *Mapper) pulseFor(angle int32) uint16 {
	span := float32(m.rng.MaxAngle - m.rng.MinAngle)
	frac := float32(angle-m.rng.MinAngle) / span
	width := float32(m.rng.MaxPulseUs - m.rng.MinPulseUs)
	return m.rng.MinPulseUs + uint16(math32.Round(frac*width))
}
