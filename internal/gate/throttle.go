package gate

import (
	"sync"
	"time"
)

// Throttle is a per-address sliding-window connection limiter.
type Throttle struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow
	limit   int
	window  time.Duration
}

// slidingWindow holds accepted attempt times, oldest first.
type slidingWindow struct {
	timestamps []time.Time
}

// NewThrottle allows at most limit attempts per address within window.
// Values below one are raised to the minimum.
func NewThrottle(limit int, window time.Duration) *Throttle {
	return &Throttle{
		windows: make(map[string]*slidingWindow),
		limit:   max(1, limit),
		window:  max(time.Second, window),
	}
}

// Allow records an attempt at now and reports whether it fits the window.
// Rejected attempts are not recorded.
func (t *Throttle) Allow(key string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.windows[key]
	if w == nil {
		w = &slidingWindow{}
		t.windows[key] = w
	}
	w.cleanup(now, t.window)
	if len(w.timestamps) >= t.limit {
		return false
	}
	w.timestamps = append(w.timestamps, now)
	return true
}

// Prune drops addresses whose windows have fully elapsed.
func (t *Throttle) Prune(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for key, w := range t.windows {
		w.cleanup(now, t.window)
		if len(w.timestamps) == 0 {
			delete(t.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of addresses currently tracked.
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.windows)
}

func (w *slidingWindow) cleanup(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for ; i < len(w.timestamps); i++ {
		if w.timestamps[i].After(cutoff) {
			break
		}
	}
	w.timestamps = w.timestamps[i:]
}
