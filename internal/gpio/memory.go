package gpio

import "sync"

// MemoryLine records writes instead of touching hardware. It backs the "none"
// backend and tests.
type MemoryLine struct {
	Pin int

	mu     sync.Mutex
	value  bool
	writes []bool
	closed bool
	// Err, when set, is returned from Set.
	Err error
}

// NewMemoryLine returns a low line for pin.
func NewMemoryLine(pin int) *MemoryLine {
	return &MemoryLine{Pin: pin}
}

func (m *MemoryLine) Set(high bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.value = high
	m.writes = append(m.writes, high)
	return nil
}

func (m *MemoryLine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = false
	m.closed = true
	return nil
}

// High reports the current level.
func (m *MemoryLine) High() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}

// Writes returns every level written so far.
func (m *MemoryLine) Writes() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bool(nil), m.writes...)
}

// Closed reports whether Close was called.
func (m *MemoryLine) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
