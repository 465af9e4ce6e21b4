// Package clock abstracts the current time so "today" is injectable.
package clock

import (
	"sync"
	"time"

	"cloud.google.com/go/civil"
)

// Clock returns the current time. Production code injects Real(); tests
// inject a Fake with a fixed date.
type Clock interface {
	Now() time.Time
}

// Today returns the calendar date of c.Now() in its own location.
func Today(c Clock) civil.Date {
	return civil.DateOf(c.Now())
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Real returns the wall clock.
func Real() Clock { return realClock{} }

// Fake is a manually controlled clock. Safe for concurrent use.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake set to now.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

// FakeAt returns a Fake set to noon UTC on the given date.
func FakeAt(year int, month time.Month, day int) *Fake {
	return NewFake(time.Date(year, month, day, 12, 0, 0, 0, time.UTC))
}

// Now returns the fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
