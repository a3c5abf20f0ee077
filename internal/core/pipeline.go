package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	duplicateSuggestion = "Try one of these similar tracks instead!"
	maxInlineRecs       = 2
)

// Pipeline sequences resolver, duplicate filter, enqueue, recommendation
// selection, and analytics for one submission at a time. The
// check-then-enqueue-then-record sequence runs under a single lock so two
// near-simultaneous submissions of the same track cannot both pass the
// duplicate check.
type Pipeline struct {
	config    *Config
	service   MusicService
	resolver  *Resolver
	recency   RecencyFilter
	analytics AnalyticsStore
	recs      RecommendationProvider
	logger    *zap.Logger

	submitMutex sync.Mutex
}

func NewPipeline(
	config *Config,
	service MusicService,
	recency RecencyFilter,
	analytics AnalyticsStore,
	recs RecommendationProvider,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		config:    config,
		service:   service,
		resolver:  NewResolver(service, config.Queue.SearchLimit, logger.Named("resolver")),
		recency:   recency,
		analytics: analytics,
		recs:      recs,
		logger:    logger,
	}
}

// ProcessSubmission resolves a raw query and attempts to append the resolved
// track to the owner's playback queue. Every failure is returned as an
// outcome, never as an error.
func (p *Pipeline) ProcessSubmission(ctx context.Context, rawQuery string) SubmissionOutcome {
	if !p.service.IsOwnerAuthenticated(ctx) {
		return SubmissionOutcome{
			Status: StatusFailed,
			Reason: "Queue owner needs to authenticate first. Owner should connect Spotify to set up the queue.",
		}
	}

	track, err := p.resolver.Resolve(ctx, rawQuery)
	if err != nil {
		p.logger.Info("Submission failed to resolve",
			zap.String("query", rawQuery),
			zap.Error(err))

		return SubmissionOutcome{
			Status: StatusFailed,
			Reason: resolutionReason(rawQuery, err),
		}
	}

	p.submitMutex.Lock()

	if isDup, reason := p.recency.Check(*track); isDup {
		p.submitMutex.Unlock()

		p.analytics.RecordDuplicateBlocked()
		p.logger.Info("Submission blocked as duplicate",
			zap.String("trackID", track.ID),
			zap.String("reason", reason))

		return SubmissionOutcome{
			Status:          StatusRejected,
			Reason:          reason,
			Track:           track,
			Recommendations: p.recs.Recommend(ctx, *track, p.config.Queue.RejectedRecLimit),
			Suggestion:      duplicateSuggestion,
		}
	}

	if err := p.service.AddToQueue(ctx, track.URI); err != nil {
		p.submitMutex.Unlock()

		p.logger.Error("Failed to add track to queue",
			zap.String("trackID", track.ID),
			zap.Error(err))

		return SubmissionOutcome{
			Status: StatusFailed,
			Reason: enqueueReason(err),
			Track:  track,
		}
	}

	p.recency.Record(*track)
	p.submitMutex.Unlock()

	p.analytics.RecordAcceptance(*track)

	// The just-accepted track is now in the window, so it filters itself
	// out of its own recommendation list.
	recommendations := p.recs.Recommend(ctx, *track, p.config.Queue.AcceptedRecLimit)

	p.logger.Info("Track added to queue",
		zap.String("trackID", track.ID),
		zap.String("track", track.Label()),
		zap.Int("recommendations", len(recommendations)))

	return SubmissionOutcome{
		Status:          StatusAccepted,
		Allowed:         true,
		Reason:          acceptedMessage(*track, recommendations),
		Track:           track,
		Recommendations: recommendations,
	}
}

// Insights reports accumulated usage analytics.
func (p *Pipeline) Insights() Insights {
	return p.analytics.Insights()
}

// IsOwnerAuthenticated reports whether the queue owner's Spotify session is
// usable.
func (p *Pipeline) IsOwnerAuthenticated(ctx context.Context) bool {
	return p.service.IsOwnerAuthenticated(ctx)
}

// RecencySize returns the current number of retained recent tracks.
func (p *Pipeline) RecencySize() int {
	return p.recency.Size()
}

func acceptedMessage(track Track, recommendations []Recommendation) string {
	message := fmt.Sprintf("Added '%s' by %s to the queue!", track.Name, track.ArtistLine())

	if len(recommendations) == 0 {
		return message
	}

	inline := recommendations
	if len(inline) > maxInlineRecs {
		inline = inline[:maxInlineRecs]
	}

	names := make([]string, 0, len(inline))
	for _, rec := range inline {
		names = append(names, fmt.Sprintf("%s by %s", rec.Name, strings.Join(rec.Artists, ", ")))
	}

	return message + " Others might also enjoy: " + strings.Join(names, ", ")
}

func resolutionReason(rawQuery string, err error) string {
	switch {
	case errors.Is(err, ErrInvalidLinkFormat):
		return "Invalid Spotify link format."
	case errors.Is(err, ErrTrackNotFound):
		return "Could not find track information for that link."
	case errors.Is(err, ErrNoResultsFound):
		return fmt.Sprintf("No tracks found for '%s'. Try a different search term.", strings.TrimSpace(rawQuery))
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}

func enqueueReason(err error) string {
	if errors.Is(err, ErrNoActiveDevice) {
		return "No active Spotify device found. The queue owner needs to start playback on a device first."
	}
	return fmt.Sprintf("Error adding track to queue: %v", err)
}
