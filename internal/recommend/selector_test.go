package recommend

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"crowdqueue/internal/core"
)

type fakeService struct {
	candidates     []core.Track
	err            error
	requestedCount int
}

func (f *fakeService) SearchTracks(_ context.Context, _ string, _ int) ([]core.Track, error) {
	return nil, nil
}

func (f *fakeService) GetTrack(_ context.Context, _ string) (*core.Track, error) {
	return nil, nil
}

func (f *fakeService) AddToQueue(_ context.Context, _ string) error {
	return nil
}

func (f *fakeService) GetRecommendations(_ context.Context, _ string, count int) ([]core.Track, error) {
	f.requestedCount = count
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

func (f *fakeService) IsOwnerAuthenticated(_ context.Context) bool {
	return true
}

type fakeFilter struct {
	duplicateIDs map[string]bool
}

func (f *fakeFilter) Check(track core.Track) (bool, string) {
	if f.duplicateIDs[track.ID] {
		return true, "This exact song was already added recently"
	}
	return false, ""
}

func (f *fakeFilter) Record(_ core.Track) {}

func (f *fakeFilter) Size() int { return len(f.duplicateIDs) }

type fakeAnalytics struct {
	recommendationsGiven int
}

func (f *fakeAnalytics) RecordAcceptance(_ core.Track) {}

func (f *fakeAnalytics) RecordDuplicateBlocked() {}

func (f *fakeAnalytics) AddRecommendationsGiven(n int) {
	f.recommendationsGiven += n
}

func (f *fakeAnalytics) Insights() core.Insights {
	return core.Insights{RecommendationsGiven: f.recommendationsGiven}
}

func candidate(id string) core.Track {
	return core.Track{
		ID:      id,
		Name:    "Song " + id,
		Artists: []string{"Artist " + id},
		URL:     "https://open.spotify.com/track/" + id,
	}
}

func TestSelector_LimitAndOverFetch(t *testing.T) {
	service := &fakeService{}
	for i := 0; i < 6; i++ {
		service.candidates = append(service.candidates, candidate(fmt.Sprintf("r%d", i)))
	}

	analytics := &fakeAnalytics{}
	selector := NewSelector(service, &fakeFilter{}, analytics, zap.NewNop())

	recs := selector.Recommend(context.Background(), candidate("seed"), 3)

	if service.requestedCount != 6 {
		t.Errorf("Expected over-fetch of 6 candidates, requested %d", service.requestedCount)
	}

	if len(recs) != 3 {
		t.Fatalf("Expected 3 recommendations, got %d", len(recs))
	}

	if analytics.recommendationsGiven != 3 {
		t.Errorf("Counter should advance by returned count, got %d", analytics.recommendationsGiven)
	}
}

func TestSelector_FiltersDuplicates(t *testing.T) {
	service := &fakeService{
		candidates: []core.Track{candidate("r0"), candidate("r1"), candidate("r2")},
	}
	filter := &fakeFilter{duplicateIDs: map[string]bool{"r0": true, "r2": true}}

	selector := NewSelector(service, filter, &fakeAnalytics{}, zap.NewNop())

	recs := selector.Recommend(context.Background(), candidate("seed"), 3)

	if len(recs) != 1 {
		t.Fatalf("Expected 1 recommendation after filtering, got %d", len(recs))
	}

	if recs[0].Name != "Song r1" {
		t.Errorf("Expected surviving candidate r1, got %q", recs[0].Name)
	}
}

func TestSelector_UpstreamFailureIsEmpty(t *testing.T) {
	service := &fakeService{err: fmt.Errorf("rate limited")}
	analytics := &fakeAnalytics{}

	selector := NewSelector(service, &fakeFilter{}, analytics, zap.NewNop())

	if recs := selector.Recommend(context.Background(), candidate("seed"), 3); len(recs) != 0 {
		t.Errorf("Upstream failure must yield an empty list, got %d items", len(recs))
	}

	if analytics.recommendationsGiven != 0 {
		t.Errorf("Counter must not advance on failure, got %d", analytics.recommendationsGiven)
	}
}

func TestSelector_ZeroLimit(t *testing.T) {
	selector := NewSelector(&fakeService{}, &fakeFilter{}, &fakeAnalytics{}, zap.NewNop())

	if recs := selector.Recommend(context.Background(), candidate("seed"), 0); recs != nil {
		t.Errorf("Zero limit should return nil, got %v", recs)
	}
}
