package simulate

import (
	"sync"
	"time"
)

// DefaultQuiescence is how long inputs must stay quiet before a debounced
// recomputation fires.
const DefaultQuiescence = 250 * time.Millisecond

// Debouncer coalesces rapid successive triggers into a single invocation
// after a quiescence interval. Simulation inputs (percent shift, event tag,
// horizon) change faster than recomputation is worth, and each recomputation
// may imply a baseline fetch, so callers trigger through a Debouncer instead
// of invoking directly.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	fn    func()
}

// NewDebouncer wraps fn with a quiescence delay. A non-positive delay falls
// back to DefaultQuiescence.
func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	if delay <= 0 {
		delay = DefaultQuiescence
	}
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger schedules an invocation, resetting the quiescence clock. Only the
// last of a rapid burst of triggers results in a call.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fn)
}

// Flush runs any pending invocation immediately.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	pending := d.timer != nil && d.timer.Stop()
	d.timer = nil
	d.mu.Unlock()

	if pending {
		d.fn()
	}
}

// Stop cancels any pending invocation.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
