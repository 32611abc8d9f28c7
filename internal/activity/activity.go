// Package activity records when the service last handled an annotation.
package activity

import (
	"sync/atomic"
	"time"
)

// Tracker holds the time of the most recent annotation call. It is safe for
// concurrent use. The zero value is not usable; call New.
type Tracker struct {
	now  func() time.Time
	last atomic.Int64 // unix nanoseconds, 0 = never
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func New(opts ...Option) *Tracker {
	t := &Tracker{now: time.Now}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Touch records the current time.
func (t *Tracker) Touch() {
	t.last.Store(t.now().UnixNano())
}

// Last returns the time of the most recent Touch, or the zero time if there
// has been none.
func (t *Tracker) Last() time.Time {
	ns := t.last.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
