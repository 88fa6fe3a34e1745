// Package tray provides the operator's system tray for a running kiosk.
package tray

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/ayusman/posebooth/internal/kiosk"
)

// Tray mirrors the kiosk status in the menu bar and offers Reset and Quit.
type Tray struct {
	onReset func()
	onOpen  func()
	onQuit  func()
	title   string
	mu      sync.RWMutex

	// Menu items stored for later updates
	menuStatus *systray.MenuItem
	menuPhotos *systray.MenuItem
}

// New creates a new Tray.
func New() *Tray {
	return &Tray{title: "Posebooth"}
}

// OnReset sets the callback for the Reset menu item.
func (t *Tray) OnReset(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReset = fn
}

// OnOpen sets the callback for the Open Kiosk menu item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback for the Quit menu item.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit stops a running tray.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle(t.title)
	systray.SetTooltip("Posebooth photo kiosk")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem(statusTitle(kiosk.Snapshot{State: kiosk.StateIdle}), "Current kiosk state")
	t.menuStatus.Disable()
	t.menuPhotos = systray.AddMenuItem(photosTitle(0), "Photos taken this session")
	t.menuPhotos.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuReset := systray.AddMenuItem("Reset", "Return the kiosk to idle")
	menuOpen := systray.AddMenuItem("Open Kiosk...", "Open the kiosk page in a browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit Posebooth")

	go func() {
		for {
			select {
			case <-menuReset.ClickedCh:
				t.call(func() func() { return t.onReset })
			case <-menuOpen.ClickedCh:
				t.call(func() func() { return t.onOpen })
			case <-menuQuit.ClickedCh:
				t.call(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

// call runs a callback outside the lock.
func (t *Tray) call(get func() func()) {
	t.mu.RLock()
	callback := get()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// SetStatus updates the status line from a snapshot.
func (t *Tray) SetStatus(snap kiosk.Snapshot) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(statusTitle(snap))
	}
}

// SetPhotos updates the photo counter.
func (t *Tray) SetPhotos(n int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.menuPhotos != nil {
		t.menuPhotos.SetTitle(photosTitle(n))
	}
}

// Watch polls snapshot every interval and mirrors it until ctx is done.
// Completed cycles are counted by their cycle ID.
func (t *Tray) Watch(ctx context.Context, snapshot func() kiosk.Snapshot, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w := watcher{}
	for {
		snap := snapshot()
		if changed, photos := w.observe(snap); changed {
			t.SetStatus(snap)
			t.SetPhotos(photos)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// watcher tracks what the tray last showed.
type watcher struct {
	last      string
	lastCycle string
	photos    int
	started   bool
}

func (w *watcher) observe(snap kiosk.Snapshot) (bool, int) {
	counted := false
	if snap.State == kiosk.StateCompleted && snap.CycleID != "" && snap.CycleID != w.lastCycle {
		w.lastCycle = snap.CycleID
		w.photos++
		counted = true
	}
	title := statusTitle(snap)
	if w.started && title == w.last && !counted {
		return false, w.photos
	}
	w.started = true
	w.last = title
	return true, w.photos
}

func statusTitle(snap kiosk.Snapshot) string {
	label := snap.State.Status()
	if snap.State == kiosk.StateCountdown && snap.Countdown > 0 {
		label = fmt.Sprintf("%s (%d)", label, snap.Countdown)
	}
	return fmt.Sprintf("%s: %s", snap.State, label)
}

func photosTitle(n int) string {
	if n == 1 {
		return "1 photo"
	}
	return fmt.Sprintf("%d photos", n)
}
