// Package timer implements the one-shot/periodic callback timer the ISO-TP
// state machines schedule their supervision deadlines on (N_Bs, N_Cr); the
// STmin pacing between consecutive frames does not use it. Grounded on the original
// decom library's platform timer (src/impl/windows/util/timer.h), which
// runs a dedicated polling worker thread — this port takes the shortcut
// the teacher's own tp/tools.go Timer takes and rides the Go runtime's
// timer wheel via time.AfterFunc instead of hand-rolling a polling thread.
package timer

import (
	"sync"
	"time"
)

// Timer fires a callback once or periodically after a configured period,
// matching decom::util::timer's start/stop/is_running contract.
type Timer struct {
	mu       sync.Mutex
	period   time.Duration
	periodic bool
	fn       func()
	t        *time.Timer
	running  bool
	start    time.Time
}

// New constructs a stopped timer. Call Start to arm it.
func New() *Timer {
	return &Timer{}
}

// Start arms the timer to call fn after period, once (periodic=false) or
// repeatedly every period (periodic=true). Restarts the timer if it is
// already running, mirroring timer::start()'s "if running it is restarted".
func (t *Timer) Start(period time.Duration, periodic bool, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.t != nil {
		t.t.Stop()
	}
	t.period, t.periodic, t.fn = period, periodic, fn
	t.running = true
	t.start = time.Now()
	t.t = time.AfterFunc(period, t.fire)
}

func (t *Timer) fire() {
	t.mu.Lock()
	fn := t.fn
	periodic := t.periodic
	running := t.running
	t.mu.Unlock()

	if !running || fn == nil {
		return
	}
	if periodic {
		t.mu.Lock()
		if t.running {
			t.start = time.Now()
			t.t = time.AfterFunc(t.period, t.fire)
		}
		t.mu.Unlock()
	} else {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
	}
	fn()
}

// Stop disarms the timer. Safe to call on an already-stopped timer.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	if t.t != nil {
		t.t.Stop()
	}
}

// IsRunning reports whether the timer is currently armed.
func (t *Timer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Elapsed returns the time since the timer was last (re)started, or -1 if
// it is not running — mirrors timer::get_elapsed().
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return -1
	}
	return time.Since(t.start)
}
