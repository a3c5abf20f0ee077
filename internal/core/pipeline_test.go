package core_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"crowdqueue/internal/analytics"
	"crowdqueue/internal/core"
	"crowdqueue/internal/recency"
	"crowdqueue/internal/recommend"
)

// fakeMusicService fakes the upstream capability surface, counting calls so
// tests can assert the pipeline short-circuits where required.
type fakeMusicService struct {
	searchResults map[string][]core.Track
	tracks        map[string]*core.Track
	recsBySeed    map[string][]core.Track
	enqueueErr    error
	authenticated bool

	queuedURIs  []string
	searchCalls int
	lookupCalls int
	recCalls    int
}

func (f *fakeMusicService) SearchTracks(_ context.Context, query string, _ int) ([]core.Track, error) {
	f.searchCalls++
	return f.searchResults[query], nil
}

func (f *fakeMusicService) GetTrack(_ context.Context, trackID string) (*core.Track, error) {
	f.lookupCalls++
	if track, exists := f.tracks[trackID]; exists {
		return track, nil
	}
	return nil, core.ErrTrackNotFound
}

func (f *fakeMusicService) AddToQueue(_ context.Context, trackURI string) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.queuedURIs = append(f.queuedURIs, trackURI)
	return nil
}

func (f *fakeMusicService) GetRecommendations(_ context.Context, seedTrackID string, _ int) ([]core.Track, error) {
	f.recCalls++
	return f.recsBySeed[seedTrackID], nil
}

func (f *fakeMusicService) IsOwnerAuthenticated(_ context.Context) bool {
	return f.authenticated
}

func bohemianService() *fakeMusicService {
	t1 := &core.Track{
		ID:         "t1",
		Name:       "Bohemian Rhapsody",
		Artists:    []string{"Queen"},
		Popularity: 90,
		URI:        "spotify:track:t1",
		URL:        "https://open.spotify.com/track/t1",
	}

	return &fakeMusicService{
		authenticated: true,
		tracks:        map[string]*core.Track{"t1": t1},
		searchResults: map[string][]core.Track{
			"Bohemian Rhapsody": {*t1},
		},
		recsBySeed: map[string][]core.Track{},
	}
}

func newPipeline(t *testing.T, service *fakeMusicService) (*core.Pipeline, *analytics.Store) {
	t.Helper()

	logger := zap.NewNop()
	store, _ := analytics.Open(filepath.Join(t.TempDir(), "analytics.json"), logger)
	window := recency.NewWindow()
	selector := recommend.NewSelector(service, window, store, logger)

	return core.NewPipeline(core.DefaultConfig(), service, window, store, selector, logger), store
}

func TestPipeline_AcceptedSubmission(t *testing.T) {
	service := bohemianService()
	pipeline, store := newPipeline(t, service)

	outcome := pipeline.ProcessSubmission(context.Background(), "Bohemian Rhapsody")

	if outcome.Status != core.StatusAccepted || !outcome.Allowed {
		t.Fatalf("Expected accepted outcome, got %+v", outcome)
	}

	if !strings.Contains(outcome.Reason, "Bohemian Rhapsody") || !strings.Contains(outcome.Reason, "Queen") {
		t.Errorf("Confirmation must name the track and artists, got %q", outcome.Reason)
	}

	if len(service.queuedURIs) != 1 || service.queuedURIs[0] != "spotify:track:t1" {
		t.Errorf("Enqueue should be invoked once with the track URI, got %v", service.queuedURIs)
	}

	if got := store.Insights().TotalSubmissions; got != 1 {
		t.Errorf("total_submissions = %d, want 1", got)
	}
}

func TestPipeline_DuplicateResubmission(t *testing.T) {
	service := bohemianService()
	pipeline, store := newPipeline(t, service)

	first := pipeline.ProcessSubmission(context.Background(), "Bohemian Rhapsody")
	if first.Status != core.StatusAccepted {
		t.Fatalf("First submission should be accepted, got %+v", first)
	}

	// Resubmit the same track via its link this time.
	second := pipeline.ProcessSubmission(context.Background(), "https://open.spotify.com/track/t1")

	if second.Status != core.StatusRejected || second.Allowed {
		t.Fatalf("Resubmission should be rejected, got %+v", second)
	}

	if !strings.Contains(second.Reason, "already added recently") {
		t.Errorf("Rejection reason should mention recent addition, got %q", second.Reason)
	}

	if second.Suggestion != "Try one of these similar tracks instead!" {
		t.Errorf("Unexpected suggestion string %q", second.Suggestion)
	}

	if len(service.queuedURIs) != 1 {
		t.Errorf("Enqueue must not be invoked for a duplicate, got %v", service.queuedURIs)
	}

	if got := store.Insights().DuplicatesBlocked; got != 1 {
		t.Errorf("duplicate_prevention = %d, want 1", got)
	}
}

func TestPipeline_OwnerNotAuthenticated(t *testing.T) {
	service := bohemianService()
	service.authenticated = false
	pipeline, _ := newPipeline(t, service)

	outcome := pipeline.ProcessSubmission(context.Background(), "Bohemian Rhapsody")

	if outcome.Status != core.StatusFailed {
		t.Fatalf("Expected failed outcome, got %+v", outcome)
	}

	if !strings.Contains(outcome.Reason, "authenticate") {
		t.Errorf("Reason should report the authentication condition, got %q", outcome.Reason)
	}

	if service.searchCalls+service.lookupCalls+service.recCalls != 0 || len(service.queuedURIs) != 0 {
		t.Error("No upstream capability may be called before owner authentication")
	}
}

func TestPipeline_NoActiveDevice(t *testing.T) {
	service := bohemianService()
	service.enqueueErr = core.ErrNoActiveDevice
	pipeline, store := newPipeline(t, service)

	outcome := pipeline.ProcessSubmission(context.Background(), "Bohemian Rhapsody")

	if outcome.Status != core.StatusFailed {
		t.Fatalf("Expected failed outcome, got %+v", outcome)
	}

	if !strings.Contains(outcome.Reason, "active Spotify device") {
		t.Errorf("No-active-device must be surfaced as an actionable message, got %q", outcome.Reason)
	}

	if pipeline.RecencySize() != 0 {
		t.Error("Failed enqueue must not record into the recency window")
	}

	if got := store.Insights().TotalSubmissions; got != 0 {
		t.Errorf("Failed enqueue must not count as a submission, got %d", got)
	}
}

func TestPipeline_NoSearchResults(t *testing.T) {
	service := bohemianService()
	pipeline, _ := newPipeline(t, service)

	outcome := pipeline.ProcessSubmission(context.Background(), "definitely not a song")

	if outcome.Status != core.StatusFailed {
		t.Fatalf("Expected failed outcome, got %+v", outcome)
	}

	if !strings.Contains(outcome.Reason, "No tracks found") {
		t.Errorf("Reason should report the empty result set, got %q", outcome.Reason)
	}
}

func TestPipeline_RecommendationsInConfirmation(t *testing.T) {
	service := bohemianService()
	service.recsBySeed["t1"] = []core.Track{
		{ID: "r1", Name: "Somebody to Love", Artists: []string{"Queen"}, URL: "u1"},
		{ID: "r2", Name: "Don't Stop Me Now", Artists: []string{"Queen"}, URL: "u2"},
		{ID: "r3", Name: "Killer Queen", Artists: []string{"Queen"}, URL: "u3"},
	}
	pipeline, store := newPipeline(t, service)

	outcome := pipeline.ProcessSubmission(context.Background(), "Bohemian Rhapsody")

	if len(outcome.Recommendations) != 3 {
		t.Fatalf("Expected 3 recommendations, got %d", len(outcome.Recommendations))
	}

	if !strings.Contains(outcome.Reason, "Others might also enjoy") ||
		!strings.Contains(outcome.Reason, "Somebody to Love") ||
		strings.Contains(outcome.Reason, "Killer Queen") {
		t.Errorf("Only the first two recommendations belong in the message, got %q", outcome.Reason)
	}

	if got := store.Insights().RecommendationsGiven; got != 3 {
		t.Errorf("recommendations_given = %d, want 3", got)
	}
}

func TestPipeline_AcceptedTrackFiltersItsOwnRecommendations(t *testing.T) {
	service := bohemianService()
	// Upstream echoes the seed back as a candidate; the second duplicate
	// scan runs against the updated window and drops it.
	service.recsBySeed["t1"] = []core.Track{
		*service.tracks["t1"],
		{ID: "r1", Name: "Somebody to Love", Artists: []string{"Queen"}, URL: "u1"},
	}
	pipeline, _ := newPipeline(t, service)

	outcome := pipeline.ProcessSubmission(context.Background(), "Bohemian Rhapsody")

	if len(outcome.Recommendations) != 1 {
		t.Fatalf("Seed echo should be filtered out, got %d recommendations", len(outcome.Recommendations))
	}

	if outcome.Recommendations[0].Name != "Somebody to Love" {
		t.Errorf("Unexpected surviving recommendation %+v", outcome.Recommendations[0])
	}
}
