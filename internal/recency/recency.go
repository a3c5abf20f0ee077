// Package recency maintains a bounded window of recently accepted tracks
// and flags submissions that are too similar to something just added.
package recency

import (
	"strings"
	"sync"
	"time"

	"crowdqueue/internal/core"
)

const (
	// RetentionSize is how many accepted tracks are kept in memory.
	RetentionSize = 20
	// CheckWindow is how many of the most recent entries the duplicate
	// scan consults. Narrower than retention on purpose.
	CheckWindow = 10

	exactDuplicateReason   = "This exact song was already added recently"
	similarDuplicateReason = "Very similar song by the same artist was recently added"
)

// Entry is one accepted track retained for duplicate detection.
type Entry struct {
	ID         string
	Name       string
	Artists    []string
	AddedAt    time.Time
	Popularity int
}

// Window is a thread-safe FIFO of recently accepted tracks. Oldest entries
// are evicted first once RetentionSize is exceeded.
type Window struct {
	mutex   sync.Mutex
	entries []Entry
	now     func() time.Time
}

func NewWindow() *Window {
	return &Window{now: time.Now}
}

// Check scans the most recent CheckWindow entries and reports whether the
// candidate is an exact or near duplicate. The first matching entry in scan
// order determines the reason; matches are never aggregated.
//
// This is a heuristic: same title by a shared collaborator counts as a
// duplicate, a retitled re-release does not.
func (w *Window) Check(candidate core.Track) (bool, string) {
	candidateName := strings.ToLower(candidate.Name)
	candidateArtists := lowerAll(candidate.Artists)

	w.mutex.Lock()
	defer w.mutex.Unlock()

	start := len(w.entries) - CheckWindow
	if start < 0 {
		start = 0
	}

	for _, recent := range w.entries[start:] {
		if recent.ID == candidate.ID {
			return true, exactDuplicateReason
		}

		if strings.ToLower(recent.Name) == candidateName &&
			anyArtistOverlap(lowerAll(recent.Artists), candidateArtists) {
			return true, similarDuplicateReason
		}
	}

	return false, ""
}

// Record appends an accepted track and truncates the window to the most
// recent RetentionSize entries. Call only for accepted submissions.
func (w *Window) Record(track core.Track) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.entries = append(w.entries, Entry{
		ID:         track.ID,
		Name:       track.Name,
		Artists:    append([]string(nil), track.Artists...),
		AddedAt:    w.now(),
		Popularity: track.Popularity,
	})

	if len(w.entries) > RetentionSize {
		w.entries = w.entries[len(w.entries)-RetentionSize:]
	}
}

// Size returns the number of retained entries.
func (w *Window) Size() int {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return len(w.entries)
}

func lowerAll(names []string) []string {
	lowered := make([]string, len(names))
	for i, name := range names {
		lowered[i] = strings.ToLower(name)
	}
	return lowered
}

func anyArtistOverlap(a, b []string) bool {
	for _, name := range a {
		for _, other := range b {
			if name == other {
				return true
			}
		}
	}
	return false
}
