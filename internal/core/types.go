package core

import (
	"context"
	"strings"
)

// Track is the canonical identity of a resolved song. Immutable once
// produced by the resolver.
type Track struct {
	ID         string
	Name       string
	Artists    []string
	Popularity int
	URI        string
	URL        string
	PreviewURL string
}

// ArtistLine returns the artists comma-joined in upstream order.
func (t Track) ArtistLine() string {
	return strings.Join(t.Artists, ", ")
}

// Label returns the "name - primary artist" key used for analytics.
func (t Track) Label() string {
	if len(t.Artists) == 0 {
		return t.Name
	}
	return t.Name + " - " + t.Artists[0]
}

// Recommendation is a similar-track suggestion surfaced alongside a
// submission outcome.
type Recommendation struct {
	Name        string   `json:"name"`
	Artists     []string `json:"artists"`
	ExternalURL string   `json:"external_url"`
	Popularity  int      `json:"popularity"`
	PreviewURL  string   `json:"preview_url,omitempty"`
}

type SubmissionStatus int

const (
	// StatusAccepted indicates the track was enqueued on the owner's playback
	StatusAccepted SubmissionStatus = iota
	// StatusRejected indicates the track was blocked as a near-duplicate
	StatusRejected
	// StatusFailed indicates resolution or enqueue failed
	StatusFailed
)

func (s SubmissionStatus) String() string {
	switch s {
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SubmissionOutcome is the result of one pass through the submission
// pipeline. Transient, one per call.
type SubmissionOutcome struct {
	Status          SubmissionStatus `json:"status"`
	Allowed         bool             `json:"allowed"`
	Reason          string           `json:"reason"`
	Track           *Track           `json:"-"`
	Recommendations []Recommendation `json:"recommendations"`
	Suggestion      string           `json:"suggestion,omitempty"`
}

// MusicService is the upstream capability surface the pipeline consumes.
// The production implementation lives in internal/spotify; tests supply
// fakes.
type MusicService interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]Track, error)
	GetTrack(ctx context.Context, trackID string) (*Track, error)
	AddToQueue(ctx context.Context, trackURI string) error
	GetRecommendations(ctx context.Context, seedTrackID string, count int) ([]Track, error)
	IsOwnerAuthenticated(ctx context.Context) bool
}

// RecencyFilter decides whether a candidate is too similar to something
// added recently and records accepted tracks.
type RecencyFilter interface {
	Check(track Track) (isDuplicate bool, reason string)
	Record(track Track)
	Size() int
}

// RankedEntry is a name with its submission count, used for top-N insights.
type RankedEntry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Insights summarizes usage patterns accumulated by the analytics store.
type Insights struct {
	TotalSubmissions     int           `json:"total_submissions"`
	DuplicatesBlocked    int           `json:"duplicate_prevention_count"`
	RecommendationsGiven int           `json:"recommendations_given"`
	UniqueTracks         int           `json:"unique_tracks"`
	TopArtists           []RankedEntry `json:"top_artists"`
	TopTracks            []RankedEntry `json:"top_tracks"`
	RecentActivityCount  int           `json:"recent_activity_count"`
}

// AnalyticsStore receives best-effort usage analytics. Implementations
// must never surface persistence errors to the submitter.
type AnalyticsStore interface {
	RecordAcceptance(track Track)
	RecordDuplicateBlocked()
	AddRecommendationsGiven(n int)
	Insights() Insights
}

// RecommendationProvider fetches similar-track suggestions for a seed track.
type RecommendationProvider interface {
	Recommend(ctx context.Context, seed Track, limit int) []Recommendation
}
