package kiosk

import "time"

// Window is a hysteresis timer. It remembers when evidence first appeared and
// when it was last seen, so gaps shorter than a grace period can be ignored.
type Window struct {
	start   time.Time
	last    time.Time
	running bool
}

// Feed records positive evidence at now, starting the window if needed.
func (w *Window) Feed(now time.Time) {
	if !w.running {
		w.start = now
		w.running = true
	}
	w.last = now
}

// Reset forgets all evidence.
func (w *Window) Reset() {
	*w = Window{}
}

// Running reports whether evidence has been fed since the last reset.
func (w *Window) Running() bool { return w.running }

// Start returns when the current run of evidence began.
func (w *Window) Start() time.Time { return w.start }

// LastSeen returns when evidence was last fed.
func (w *Window) LastSeen() time.Time { return w.last }

// Elapsed returns how long the window has been running at now.
func (w *Window) Elapsed(now time.Time) time.Duration {
	if !w.running {
		return 0
	}
	return now.Sub(w.start)
}

// Expired reports whether no evidence has arrived for at least grace.
func (w *Window) Expired(now time.Time, grace time.Duration) bool {
	return w.running && now.Sub(w.last) >= grace
}
