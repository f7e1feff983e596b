// Package clock supplies the current logical time in whole seconds.
package clock

import (
	"sync"
	"time"
)

// Instant is a count of seconds since the Unix epoch.
type Instant = int64

// Clock returns the current instant.
type Clock interface {
	Now() Instant
}

// Real reads the wall clock.
type Real struct{}

// Now returns the current UTC Unix timestamp.
func (Real) Now() Instant {
	return time.Now().UTC().Unix()
}

// MockStart is the instant a new Mock starts at.
const MockStart Instant = 1000

// Mock is a deterministic clock advanced by hand. It is safe for concurrent use.
type Mock struct {
	mu   sync.Mutex
	time Instant
}

// NewMock returns a Mock set to MockStart.
func NewMock() *Mock {
	return &Mock{time: MockStart}
}

// Now returns the mock time.
func (m *Mock) Now() Instant {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.time
}

// Advance moves the clock forward by seconds and returns the new time.
func (m *Mock) Advance(seconds int64) Instant {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.time += seconds
	return m.time
}

// Set moves the clock to an absolute instant.
func (m *Mock) Set(at Instant) {
	m.mu.Lock()
	m.time = at
	m.mu.Unlock()
}
