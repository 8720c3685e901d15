package clock

import (
	"sort"
	"sync"
	"time"
)

// Manual provides deterministic time control for tests. Timers and tickers
// fire only when Advance moves the clock past their deadline.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*waiter
	changed chan struct{}
}

type waiter struct {
	deadline time.Time
	period   time.Duration // zero for one-shot timers
	ch       chan time.Time
	stopped  bool
}

// NewManual creates a manual clock starting at t.
func NewManual(t time.Time) *Manual {
	return &Manual{
		now:     t,
		changed: make(chan struct{}),
	}
}

// Now returns the current time according to the manual clock.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// After returns a channel that receives once the clock has advanced by d.
func (m *Manual) After(d time.Duration) <-chan time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := &waiter{deadline: m.now.Add(d), ch: make(chan time.Time, 1)}
	if d <= 0 {
		w.ch <- m.now
		return w.ch
	}
	m.addLocked(w)
	return w.ch
}

// NewTicker returns a ticker driven by Advance.
func (m *Manual) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	w := &waiter{deadline: m.now.Add(d), period: d, ch: make(chan time.Time, 1)}
	m.addLocked(w)
	return &manualTicker{clock: m, w: w}
}

// Advance moves the clock forward by d, firing every timer that falls due.
// A ticker that falls due several times delivers at most one pending tick,
// like time.Ticker.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.now = m.now.Add(d)

	kept := m.waiters[:0]
	for _, w := range m.waiters {
		if w.stopped {
			continue
		}
		if w.deadline.After(m.now) {
			kept = append(kept, w)
			continue
		}
		select {
		case w.ch <- w.deadline:
		default:
		}
		if w.period > 0 {
			for !w.deadline.After(m.now) {
				w.deadline = w.deadline.Add(w.period)
			}
			kept = append(kept, w)
		}
	}
	m.waiters = kept
	m.notifyLocked()
}

// Pending returns the number of armed one-shot timers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, w := range m.waiters {
		if !w.stopped && w.period == 0 {
			n++
		}
	}
	return n
}

// BlockUntil waits until at least n one-shot timers are armed or the timeout
// elapses. It reports whether the condition was met.
func (m *Manual) BlockUntil(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		m.mu.Lock()
		changed := m.changed
		m.mu.Unlock()

		if m.Pending() >= n {
			return true
		}
		select {
		case <-changed:
		case <-deadline:
			return m.Pending() >= n
		}
	}
}

func (m *Manual) addLocked(w *waiter) {
	m.waiters = append(m.waiters, w)
	sort.SliceStable(m.waiters, func(i, j int) bool {
		return m.waiters[i].deadline.Before(m.waiters[j].deadline)
	})
	m.notifyLocked()
}

func (m *Manual) notifyLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}

type manualTicker struct {
	clock *Manual
	w     *waiter
}

func (t *manualTicker) C() <-chan time.Time { return t.w.ch }

func (t *manualTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.w.stopped = true
}
