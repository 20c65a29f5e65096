package internal

import (
	"sync"
	"time"
)

// Clock provides the wall-clock time used for reservoir windows.
type Clock interface {
	Now() time.Time
}

// DefaultClock reads the system clock.
type DefaultClock struct{}

// Now returns the current time.
func (DefaultClock) Now() time.Time {
	return time.Now()
}

// MockClock is a manually advanced clock for tests and examples.
type MockClock struct {
	mu      sync.Mutex
	nowTime time.Time
}

// NewMockClock returns a MockClock fixed at t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{nowTime: t}
}

// Now returns the clock's current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowTime
}

// Advance moves the clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nowTime = c.nowTime.Add(d)
}
