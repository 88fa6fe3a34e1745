// Package mailbox provides a single-slot, latest-value-wins holder.
package mailbox

import "sync/atomic"

// Slot holds the most recent value written by its producer. Each write
// replaces the previous value; readers always see a complete value.
type Slot[T any] struct {
	v atomic.Pointer[T]
}

// Store replaces the held value. Storing nil empties the slot.
func (s *Slot[T]) Store(v *T) {
	s.v.Store(v)
}

// Put stores a copy of v.
func (s *Slot[T]) Put(v T) {
	s.v.Store(&v)
}

// Load returns the held value, or nil when empty.
func (s *Slot[T]) Load() *T {
	return s.v.Load()
}

// Take empties the slot and returns what it held.
func (s *Slot[T]) Take() *T {
	return s.v.Swap(nil)
}

// Clear empties the slot.
func (s *Slot[T]) Clear() {
	s.v.Store(nil)
}
