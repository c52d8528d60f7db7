package deferred

import "sync/atomic"

// Toggle is a single-slot flag shared between the input goroutine and the
// frame loop. The zero value is false.
type Toggle struct {
	v atomic.Bool
}

// Set stores v.
func (t *Toggle) Set(v bool) { t.v.Store(v) }

// Flip inverts the flag and returns the new value.
func (t *Toggle) Flip() bool {
	for {
		old := t.v.Load()
		if t.v.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Load returns the current value. A nil Toggle reads as false.
func (t *Toggle) Load() bool {
	if t == nil {
		return false
	}
	return t.v.Load()
}
