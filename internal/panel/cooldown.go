package panel

import (
	"sync"
	"time"
)

// cooldown is a last-call timestamp guard. A trigger inside the window is
// dropped, not deferred: refreshes from mount, tab focus and manual refresh
// collapse to at most one network call per window.
type cooldown struct {
	mu     sync.Mutex
	window time.Duration
	last   time.Time
}

func newCooldown(window time.Duration) *cooldown {
	return &cooldown{window: window}
}

// allow reports whether a call may proceed now, recording the timestamp when
// it does.
func (c *cooldown) allow(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.last.IsZero() && now.Sub(c.last) < c.window {
		return false
	}
	c.last = now
	return true
}
