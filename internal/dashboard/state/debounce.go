package state

import (
	"sync"
	"time"
)

// DefaultDebounce is how long the dashboard waits after the last
// preference change before writing it to the store.
const DefaultDebounce = 200 * time.Millisecond

// Debouncer coalesces rapid calls: only the last value handed to Call
// within the quiet window is delivered to fn. Flush and Stop make
// shutdown deterministic.
type Debouncer struct {
	mu      sync.Mutex
	d       time.Duration
	timer   *time.Timer
	pending func()
	stopped bool
}

func NewDebouncer(d time.Duration) *Debouncer {
	if d <= 0 {
		d = DefaultDebounce
	}
	return &Debouncer{d: d}
}

func (b *Debouncer) Call(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.pending = fn
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.d, b.fire)
}

func (b *Debouncer) fire() {
	b.mu.Lock()
	fn := b.pending
	b.pending = nil
	b.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Flush runs any pending call immediately.
func (b *Debouncer) Flush() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
	}
	fn := b.pending
	b.pending = nil
	b.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Stop drops any pending call and refuses new ones.
func (b *Debouncer) Stop() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.pending = nil
	b.stopped = true
	b.mu.Unlock()
}
