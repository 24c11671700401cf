package sensor

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/chewxy/math32"
)

// AbsentC is the reading a temperature driver reports when the probe is disconnected.
const AbsentC float32 = -127

// CalibrationKey is the settings key of the load cell calibration factor.
const CalibrationKey = "calibration_factor"

// ErrSensorFault is reported for invalid or disconnected sensor readings.
var ErrSensorFault = errors.New("sensor fault")

// WeightSource provides raw weight samples. Poll returns ok == false when no
// new conversion is available; callers must not resample on such cycles.
type WeightSource interface {
	Poll() (kg float32, ok bool)
}

// Probe reads the temperature probe in degrees Celsius. A disconnected probe
// reads AbsentC; a broken conversion may read NaN.
type Probe interface {
	ReadC() float32
}

// ValidC reports whether a probe reading is a real temperature.
func ValidC(c float32) bool {
	return !math32.IsNaN(c) && c != AbsentC
}

// AbsentProbe is a Probe for builds without a temperature sensor.
type AbsentProbe struct{}

// ReadC always reports a disconnected probe.
func (AbsentProbe) ReadC() float32 { return AbsentC }

// Scale converts raw load cell counts to kilograms.
type Scale struct {
	Factor float32 // counts per kilogram
	Tare   int32   // counts with an empty scale
}

// Kg converts a raw conversion result.
func (s Scale) Kg(counts int32) float32 {
	return float32(counts-s.Tare) / s.Factor
}

// CalibrationStore is a durable float value store.
type CalibrationStore interface {
	Float(key string) (v float32, ok bool, err error)
	SetFloat(key string, v float32) error
}

// LoadCalibration reads the calibration factor under key. An absent value or
// one outside (0, max) is replaced by def, which is written back.
func LoadCalibration(store CalibrationStore, key string, def, maxFactor float32) (float32, error) {
	v, ok, err := store.Float(key)
	if err != nil {
		log.Printf("SensorFault: failed to read calibration %q: %v", key, err)
		ok = false
	}
	if ok && !math32.IsNaN(v) && v > 0 && v < maxFactor {
		return v, nil
	}

	if ok {
		log.Printf("calibration %q = %g out of range, using default %g", key, v, def)
	} else {
		log.Printf("calibration %q not set, using default %g", key, def)
	}
	if err := store.SetFloat(key, def); err != nil {
		return def, fmt.Errorf("failed to store calibration %q: %w", key, err)
	}
	return def, nil
}

// MemoryStore is a CalibrationStore kept in memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]float32
}

var _ CalibrationStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]float32)}
}

// Float returns the value stored under key.
func (m *MemoryStore) Float(key string) (float32, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// SetFloat stores v under key.
func (m *MemoryStore) SetFloat(key string, v float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = v
	return nil
}
