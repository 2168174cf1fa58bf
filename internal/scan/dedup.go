package scan

import (
	"sync"
	"time"
)

// sweepThreshold bounds the dedup map before expired entries are evicted.
const sweepThreshold = 4096

// Deduper suppresses rapid duplicate scans of the same value within one
// process. It is advisory only; the durable record is the scan_events
// table, so losing this state on restart is fine.
type Deduper struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	entries map[string]time.Time
}

// NewDeduper creates a Deduper with the given suppression window.
func NewDeduper(window time.Duration) *Deduper {
	return &Deduper{
		window:  window,
		now:     time.Now,
		entries: make(map[string]time.Time),
	}
}

// Observe records a scan and reports whether an identical scan for the
// same store and mode was observed within the window.
func (d *Deduper) Observe(storeID, mode, scanValue string) bool {
	key := storeID + "|" + mode + "|" + scanValue

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	last, seen := d.entries[key]
	d.entries[key] = now

	if len(d.entries) > sweepThreshold {
		d.sweep(now)
	}

	return seen && now.Sub(last) < d.window
}

// sweep evicts expired entries. Caller holds the lock.
func (d *Deduper) sweep(now time.Time) {
	for k, t := range d.entries {
		if now.Sub(t) >= d.window {
			delete(d.entries, k)
		}
	}
}
