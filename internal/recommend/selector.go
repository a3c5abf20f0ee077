// Package recommend selects similar-track suggestions for a seed track,
// filtered against the recent-submission window.
package recommend

import (
	"context"

	"go.uber.org/zap"

	"crowdqueue/internal/core"
)

// overFetchFactor compensates for candidates lost to duplicate filtering.
const overFetchFactor = 2

// Selector fetches seeded recommendation candidates and keeps the first
// non-duplicate ones. Best-effort: upstream failures yield an empty list.
type Selector struct {
	service   core.MusicService
	recency   core.RecencyFilter
	analytics core.AnalyticsStore
	logger    *zap.Logger
}

func NewSelector(
	service core.MusicService,
	recency core.RecencyFilter,
	analytics core.AnalyticsStore,
	logger *zap.Logger,
) *Selector {
	return &Selector{
		service:   service,
		recency:   recency,
		analytics: analytics,
		logger:    logger,
	}
}

// Recommend returns up to limit suggestions seeded by the given track.
// Candidates are considered in upstream order; anything the recency filter
// would reject is skipped. The recommendations-given counter advances by
// the number actually returned.
func (s *Selector) Recommend(ctx context.Context, seed core.Track, limit int) []core.Recommendation {
	if limit < 1 {
		return nil
	}

	candidates, err := s.service.GetRecommendations(ctx, seed.ID, limit*overFetchFactor)
	if err != nil {
		s.logger.Warn("Failed to fetch recommendations",
			zap.String("seedTrackID", seed.ID),
			zap.Error(err))
		return nil
	}

	selected := make([]core.Recommendation, 0, limit)
	for _, candidate := range candidates {
		if isDup, _ := s.recency.Check(candidate); isDup {
			continue
		}

		selected = append(selected, core.Recommendation{
			Name:        candidate.Name,
			Artists:     candidate.Artists,
			ExternalURL: candidate.URL,
			Popularity:  candidate.Popularity,
			PreviewURL:  candidate.PreviewURL,
		})

		if len(selected) >= limit {
			break
		}
	}

	s.analytics.AddRecommendationsGiven(len(selected))

	return selected
}
