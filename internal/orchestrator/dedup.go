package orchestrator

import (
	"strings"
	"time"
)

const defaultDedupWindow = 10 * time.Second

// progressDedup suppresses progress lines already seen from any
// provider within a rolling window. Used only by the single consumer
// loop, so it needs no locking.
type progressDedup struct {
	window time.Duration
	seen   map[string]time.Time
}

func newProgressDedup(window time.Duration) *progressDedup {
	if window <= 0 {
		window = defaultDedupWindow
	}
	return &progressDedup{
		window: window,
		seen:   make(map[string]time.Time),
	}
}

// Suppress reports whether the message duplicates one seen within the
// window. First occurrences are recorded and pass through.
func (d *progressDedup) Suppress(text string, now time.Time) bool {
	key := normalizeProgress(text)
	if key == "" {
		return false
	}
	d.evict(now)
	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = now
	return false
}

func (d *progressDedup) evict(now time.Time) {
	for key, at := range d.seen {
		if now.Sub(at) > d.window {
			delete(d.seen, key)
		}
	}
}

// normalizeProgress lowercases and squashes whitespace so trivially
// reworded duplicates compare equal.
func normalizeProgress(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
