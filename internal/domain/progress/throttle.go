package progress

import (
	"sync"
	"time"
)

// throttle gates re-derivation per (actor, course, registration) so
// high-frequency interaction streams don't re-derive on every event.
type throttle struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func newThrottle() *throttle {
	return &throttle{last: make(map[string]time.Time)}
}

// allow reports whether a derivation may run now, recording the run time
// when it may.
func (t *throttle) allow(key string, now time.Time, interval time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.last[key]; ok && now.Sub(prev) < interval {
		return false
	}
	t.last[key] = now
	return true
}
