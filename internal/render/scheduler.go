// Package render paints the kiosk canvas: live video or the frozen frame with
// state-dependent overlays, redrawn at most once per pending request.
package render

import "sync"

// Scheduler coalesces redraw requests. Any number of Request calls made
// before the loop picks the redraw up collapse into one draw.
type Scheduler struct {
	mu        sync.Mutex
	pending   bool
	requests  uint64
	coalesced uint64
	wake      chan struct{}
}

// NewScheduler returns an idle scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{wake: make(chan struct{}, 1)}
}

// Request schedules a redraw and reports whether it was the one that did;
// false means a redraw was already pending.
func (s *Scheduler) Request() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests++
	if s.pending {
		s.coalesced++
		return false
	}
	s.pending = true
	s.wake <- struct{}{}
	return true
}

// C fires once per scheduled redraw.
func (s *Scheduler) C() <-chan struct{} {
	return s.wake
}

// Begin marks the pending redraw as taken. Requests that arrive while the
// caller draws schedule the next one.
func (s *Scheduler) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = false
}

// Pending reports whether a redraw is outstanding.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Stats returns the total and coalesced request counts.
func (s *Scheduler) Stats() (requests, coalesced uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests, s.coalesced
}
