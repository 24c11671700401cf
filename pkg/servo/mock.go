package servo

import "sync"

// Mock is an in-memory Actuator that records every pulse written to it.
type Mock struct {
	mu     sync.RWMutex
	pulses []uint16
	err    error
}

var _ Actuator = (*Mock)(nil)

// NewMock creates a mock actuator.
func NewMock() *Mock {
	return &Mock{}
}

// SetPulseWidth records the pulse width.
func (m *Mock) SetPulseWidth(us uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.pulses = append(m.pulses, us)
	return nil
}

// FailWith makes subsequent writes return err. Pass nil to recover.
func (m *Mock) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Last returns the last written pulse width and whether anything was written.
func (m *Mock) Last() (uint16, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.pulses) == 0 {
		return 0, false
	}
	return m.pulses[len(m.pulses)-1], true
}

// Writes returns a copy of every pulse written so far.
func (m *Mock) Writes() []uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]uint16, len(m.pulses))
	copy(result, m.pulses)
	return result
}
