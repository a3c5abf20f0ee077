// Package analytics persists append-only usage counters and a bounded
// activity log to a flat JSON file. Persistence is best-effort: a missing or
// corrupt file yields a fresh zero-state and write failures are logged and
// swallowed, never surfaced to the submitter.
package analytics

import (
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/zap"

	"crowdqueue/internal/core"
)

const (
	// maxRecentActivity caps the persisted activity log, FIFO eviction.
	maxRecentActivity = 100
	// topN is how many artists/tracks the insights ranking returns.
	topN = 5

	filePermission = 0o600

	// Sizing for the approximate distinct-track filter.
	bloomCapacity          = 100000
	bloomFalsePositiveRate = 0.001
)

// Activity is one accepted submission in the bounded activity log.
type Activity struct {
	Track      string    `json:"track"`
	Timestamp  time.Time `json:"timestamp"`
	Popularity int       `json:"popularity"`
}

// State is the persisted analytics record.
type State struct {
	TotalSubmissions     int                `json:"total_submissions"`
	PopularTracks        map[string]int     `json:"popular_tracks"`
	PopularArtists       map[string]int     `json:"popular_artists"`
	RecentActivity       []Activity         `json:"recent_activity"`
	DuplicatePrevention  int                `json:"duplicate_prevention"`
	RecommendationsGiven int                `json:"recommendations_given"`
	UniqueTracks         int                `json:"unique_tracks"`
	SeenTracks           *bloom.BloomFilter `json:"seen_tracks,omitempty"`
}

func zeroState() State {
	return State{
		PopularTracks:  make(map[string]int),
		PopularArtists: make(map[string]int),
		SeenTracks:     bloom.NewWithEstimates(bloomCapacity, bloomFalsePositiveRate),
	}
}

// LoadResult reports how the store obtained its initial state, so callers
// and tests can distinguish "used default state" from "read succeeded".
type LoadResult struct {
	FromFile bool
	Err      error
}

// Store is the process-wide analytics state, guarded by a mutex so counter
// increments from concurrent submissions are never lost.
type Store struct {
	path   string
	logger *zap.Logger
	now    func() time.Time

	mutex sync.Mutex
	state State

	// First-seen order per ranking key, used to break count ties
	// deterministically. Rebuilt from sorted keys after a file load.
	trackOrder  map[string]int
	artistOrder map[string]int
	orderSeq    int
}

// Open loads the analytics state from path, falling back to a zero state
// when the file is absent or unreadable. It never fails.
func Open(path string, logger *zap.Logger) (*Store, LoadResult) {
	store := &Store{
		path:        path,
		logger:      logger,
		now:         time.Now,
		state:       zeroState(),
		trackOrder:  make(map[string]int),
		artistOrder: make(map[string]int),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Failed to read analytics file, starting fresh",
				zap.String("path", path),
				zap.Error(err))
		}
		return store, LoadResult{Err: err}
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		logger.Warn("Failed to parse analytics file, starting fresh",
			zap.String("path", path),
			zap.Error(err))
		return store, LoadResult{Err: err}
	}

	if state.PopularTracks == nil {
		state.PopularTracks = make(map[string]int)
	}
	if state.PopularArtists == nil {
		state.PopularArtists = make(map[string]int)
	}
	if state.SeenTracks == nil {
		state.SeenTracks = bloom.NewWithEstimates(bloomCapacity, bloomFalsePositiveRate)
	}

	store.state = state
	store.seedOrderFromState()

	logger.Info("Loaded analytics state",
		zap.String("path", path),
		zap.Int("totalSubmissions", state.TotalSubmissions))

	return store, LoadResult{FromFile: true}
}

// RecordAcceptance updates all acceptance counters for a track and persists.
func (s *Store) RecordAcceptance(track core.Track) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.state.TotalSubmissions++

	trackKey := track.Label()
	s.state.PopularTracks[trackKey]++
	s.noteTrackKey(trackKey)

	for _, artist := range track.Artists {
		s.state.PopularArtists[artist]++
		s.noteArtistKey(artist)
	}

	if !s.state.SeenTracks.TestAndAddString(track.ID) {
		s.state.UniqueTracks++
	}

	s.state.RecentActivity = append(s.state.RecentActivity, Activity{
		Track:      trackKey,
		Timestamp:  s.now(),
		Popularity: track.Popularity,
	})
	if len(s.state.RecentActivity) > maxRecentActivity {
		s.state.RecentActivity = s.state.RecentActivity[len(s.state.RecentActivity)-maxRecentActivity:]
	}

	s.save()
}

// RecordDuplicateBlocked increments the duplicate prevention counter and
// persists.
func (s *Store) RecordDuplicateBlocked() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.state.DuplicatePrevention++
	s.save()
}

// AddRecommendationsGiven adds the number of recommendations actually
// returned to the caller and persists.
func (s *Store) AddRecommendationsGiven(n int) {
	if n <= 0 {
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.state.RecommendationsGiven += n
	s.save()
}

// Insights summarizes the accumulated state. Top-N rankings are sorted by
// count descending; equal counts keep first-seen order.
func (s *Store) Insights() core.Insights {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return core.Insights{
		TotalSubmissions:     s.state.TotalSubmissions,
		DuplicatesBlocked:    s.state.DuplicatePrevention,
		RecommendationsGiven: s.state.RecommendationsGiven,
		UniqueTracks:         s.state.UniqueTracks,
		TopArtists:           rankTop(s.state.PopularArtists, s.artistOrder),
		TopTracks:            rankTop(s.state.PopularTracks, s.trackOrder),
		RecentActivityCount:  len(s.state.RecentActivity),
	}
}

// save writes the state to disk. Caller holds the mutex. Failures are
// logged and dropped.
func (s *Store) save() {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		s.logger.Warn("Failed to encode analytics state", zap.Error(err))
		return
	}

	if err := os.WriteFile(s.path, data, filePermission); err != nil {
		s.logger.Warn("Failed to save analytics state",
			zap.String("path", s.path),
			zap.Error(err))
	}
}

func (s *Store) noteTrackKey(key string) {
	if _, seen := s.trackOrder[key]; !seen {
		s.trackOrder[key] = s.orderSeq
		s.orderSeq++
	}
}

func (s *Store) noteArtistKey(key string) {
	if _, seen := s.artistOrder[key]; !seen {
		s.artistOrder[key] = s.orderSeq
		s.orderSeq++
	}
}

// seedOrderFromState assigns tie-break positions after a file load. JSON
// maps carry no order, so sorted key order is used to stay deterministic
// across restarts.
func (s *Store) seedOrderFromState() {
	for _, key := range sortedKeys(s.state.PopularTracks) {
		s.noteTrackKey(key)
	}
	for _, key := range sortedKeys(s.state.PopularArtists) {
		s.noteArtistKey(key)
	}
}

func sortedKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func rankTop(counts map[string]int, order map[string]int) []core.RankedEntry {
	entries := make([]core.RankedEntry, 0, len(counts))
	for name, count := range counts {
		entries = append(entries, core.RankedEntry{Name: name, Count: count})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return order[entries[i].Name] < order[entries[j].Name]
	})

	if len(entries) > topN {
		entries = entries[:topN]
	}

	return entries
}
