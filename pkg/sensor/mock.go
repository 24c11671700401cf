package sensor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/feedflow/pkg/config"
)

// DefaultBufferSize is the number of conversions the mock buffers.
const DefaultBufferSize = 16

// Mock simulates a feeder hopper on a load cell together with a temperature
// probe. Feed flows onto the scale while the gate is open.
type Mock struct {
	cfg    *config.MockConfig
	isOpen func() bool

	samples   chan float32
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool

	// Simulation state
	elapsed time.Duration
	weight  float32 // true weight on the scale
	tempC   float32
	scale   *Scale // nil reports kilograms directly
}

var (
	_ WeightSource = (*Mock)(nil)
	_ Probe        = (*Mock)(nil)
)

// NewMock creates a simulated hopper. isOpen reports whether the gate is
// currently commanded open.
func NewMock(cfg *config.MockConfig, isOpen func() bool) *Mock {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}
	if isOpen == nil {
		isOpen = func() bool { return false }
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Mock{
		cfg:     cfg,
		isOpen:  isOpen,
		samples: make(chan float32, DefaultBufferSize),
		ctx:     ctx,
		cancel:  cancel,
		weight:  cfg.StartKg,
		tempC:   cfg.TempC,
	}
}

// Connect starts producing conversions at the configured sample rate.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}
	m.connected = true

	go m.generateSamples()

	return nil
}

// Close stops the simulation.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}

	m.cancel()
	m.connected = false

	return nil
}

// IsConnected returns whether the simulation is running.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Poll returns the newest pending conversion, discarding older ones.
func (m *Mock) Poll() (float32, bool) {
	var (
		kg float32
		ok bool
	)
	for {
		select {
		case v := <-m.samples:
			kg, ok = v, true
		default:
			return kg, ok
		}
	}
}

// ReadC returns the simulated probe temperature.
func (m *Mock) ReadC() float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.cfg.ProbeAbsent {
		return AbsentC
	}
	return m.tempC
}

// Calibrate routes conversions through the raw count path. The simulated
// cell reports CountsPerKg counts per kilogram and s turns them back into
// kilograms, so a factor that does not match the cell skews every reading.
func (m *Mock) Calibrate(s Scale) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scale = &s
}

// Weight returns the true weight on the scale, without noise.
func (m *Mock) Weight() float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.weight
}

// Advance moves the simulation forward by dt and returns the noisy conversion
// the load cell would report.
func (m *Mock) Advance(dt time.Duration) float32 {
	open := m.isOpen()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.elapsed += dt
	if open {
		m.weight += m.cfg.FlowRateKgPerS * float32(dt.Seconds())
	}

	// Slow drift around the configured water temperature
	t := float32(m.elapsed.Seconds())
	m.tempC = m.cfg.TempC + 0.5*math32.Sin(t/60)

	ms := float32(m.elapsed.Milliseconds())
	noise := (math32.Sin(ms*0.7) + math32.Cos(ms*1.3)) * m.cfg.NoiseKg * 0.5

	kg := m.weight + noise
	if m.scale == nil {
		return kg
	}
	return m.scale.Kg(int32(math32.Round(kg * m.cfg.CountsPerKg)))
}

// generateSamples produces conversions until the mock is closed.
func (m *Mock) generateSamples() {
	ticker := time.NewTicker(m.cfg.SampleRate)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			sample := m.Advance(m.cfg.SampleRate)
			select {
			case m.samples <- sample:
			case <-m.ctx.Done():
				return
			default:
				// Channel full, skip
			}
		}
	}
}
