// Package clock provides the clocks that stamp archive records.
package clock

import (
	"sync"
	"time"

	"github.com/artpar/typedwire/ports"
)

// Real returns the current UTC time.
type Real struct{}

// Now returns the current time in UTC.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

var _ ports.Clock = Real{}

// Fake is a controllable clock. With a non-zero step every call to Now
// advances it, which gives records distinct, ordered timestamps.
type Fake struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

// NewFake creates a fake clock set to t.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

// NewStepping creates a fake clock that moves forward by step after every
// reading.
func NewStepping(t time.Time, step time.Duration) *Fake {
	return &Fake{current: t, step: step}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.current
	f.current = f.current.Add(f.step)
	return now
}

// Set sets the fake current time.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
}

// Advance moves the fake time forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

var _ ports.Clock = (*Fake)(nil)
