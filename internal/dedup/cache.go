// Package dedup provides a small "have I seen this key recently" cache with a
// sliding time window. It backs duplicate suppression for forwarded log
// records and delivered notifications.
package dedup

import (
	"sync"
	"time"
)

// DefaultWindow is the dedup window used when a non-positive window is
// configured.
const DefaultWindow = 5 * time.Second

// Cache tracks the last time each key was observed. A key counts as a
// duplicate while its last observation is within the configured window.
// Updates are overwrite-on-seen (last-write-wins on the timestamp), so no
// per-key coordination is needed beyond the cache mutex.
//
// Eviction is opportunistic: a sweep runs at most once per window, during a
// regular Seen call. Any entry present is therefore at most two windows old.
type Cache struct {
	mu sync.Mutex

	// window is the sliding duplicate-suppression window.
	window time.Duration

	// entries maps a key to the last time it was observed.
	entries map[string]time.Time

	// lastSweep is when the last opportunistic eviction pass ran.
	lastSweep time.Time

	// now returns the current time. Injectable for tests.
	now func() time.Time
}

// New creates a cache with the given sliding window.
func New(window time.Duration) *Cache {
	return NewWithClock(window, time.Now)
}

// NewWithClock creates a cache with an injectable clock. Tests use this to
// drive the window deterministically.
func NewWithClock(window time.Duration, now func() time.Time) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}

	return &Cache{
		window:  window,
		entries: make(map[string]time.Time),
		now:     now,
	}
}

// Seen reports whether key was observed within the window, and records the
// current observation either way. A second call with the same key inside the
// window returns true; after the window has fully elapsed it returns false
// again.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.maybeSweep(now)

	last, ok := c.entries[key]
	c.entries[key] = now

	return ok && now.Sub(last) < c.window
}

// Forget drops a key so the next Seen call reports it as new.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Len returns the number of tracked keys, including ones that have aged out
// but have not yet been swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// maybeSweep evicts aged-out entries at most once per window. The caller must
// hold the mutex.
func (c *Cache) maybeSweep(now time.Time) {
	if now.Sub(c.lastSweep) < c.window {
		return
	}
	c.lastSweep = now

	for key, last := range c.entries {
		if now.Sub(last) >= c.window {
			delete(c.entries, key)
		}
	}
}
