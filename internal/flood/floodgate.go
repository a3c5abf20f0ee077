// Package flood rate-limits unauthenticated submitters so a single visitor
// cannot monopolize the owner's queue.
package flood

import (
	"sync"
	"time"
)

const (
	// windowDuration is the fixed time window for flood detection
	windowDuration = 60 * time.Second
	// cleanupInterval is how often expired entries are removed
	cleanupInterval = 10 * time.Minute
	// idleTimeout is how long before an idle submitter entry is dropped
	idleTimeout = 10 * time.Minute
)

// Floodgate provides per-submitter sliding-window rate limiting.
type Floodgate struct {
	limitPerMinute int
	entries        map[string]*submitterEntry
	mutex          sync.Mutex
	stopCleanup    chan struct{}
}

type submitterEntry struct {
	timestamps []time.Time
	lastSeen   time.Time
}

// New creates a Floodgate allowing limitPerMinute submissions per submitter
// within a fixed 60 second window.
func New(limitPerMinute int) *Floodgate {
	fg := &Floodgate{
		limitPerMinute: limitPerMinute,
		entries:        make(map[string]*submitterEntry),
		stopCleanup:    make(chan struct{}),
	}

	go fg.cleanup()

	return fg
}

// Stop stops the background cleanup goroutine.
func (fg *Floodgate) Stop() {
	close(fg.stopCleanup)
}

// Allow reports whether a submission from the given submitter should be
// processed, recording it when allowed.
func (fg *Floodgate) Allow(submitterID string) bool {
	now := time.Now()

	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	entry, exists := fg.entries[submitterID]
	if !exists {
		entry = &submitterEntry{
			timestamps: make([]time.Time, 0, fg.limitPerMinute+1),
		}
		fg.entries[submitterID] = entry
	}

	entry.lastSeen = now

	windowStart := now.Add(-windowDuration)
	valid := entry.timestamps[:0]
	for _, ts := range entry.timestamps {
		if ts.After(windowStart) {
			valid = append(valid, ts)
		}
	}
	entry.timestamps = valid

	if len(entry.timestamps) >= fg.limitPerMinute {
		return false
	}

	entry.timestamps = append(entry.timestamps, now)
	return true
}

func (fg *Floodgate) cleanup() {
	fg.performCleanup()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-fg.stopCleanup:
			return
		case <-ticker.C:
			fg.performCleanup()
		}
	}
}

func (fg *Floodgate) performCleanup() {
	cutoff := time.Now().Add(-idleTimeout)

	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	for key, entry := range fg.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(fg.entries, key)
		}
	}
}
