package core

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var trackLinkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`https?://open\.spotify\.com/track/([a-zA-Z0-9]+)`),
	regexp.MustCompile(`spotify:track:([a-zA-Z0-9]+)`),
}

// IsTrackLink reports whether the query contains a recognized Spotify track
// link or URI.
func IsTrackLink(query string) bool {
	for _, pattern := range trackLinkPatterns {
		if pattern.MatchString(query) {
			return true
		}
	}
	return false
}

// ExtractTrackID returns the track ID embedded in a Spotify link or URI,
// or an empty string when no pattern matches. First matching pattern wins.
func ExtractTrackID(query string) string {
	for _, pattern := range trackLinkPatterns {
		if matches := pattern.FindStringSubmatch(query); len(matches) > 1 {
			return matches[1]
		}
	}
	return ""
}

// Resolver turns a raw user string into a canonical track, either by
// extracting a track ID from a link or by searching the upstream catalog.
type Resolver struct {
	service     MusicService
	searchLimit int
	logger      *zap.Logger
}

func NewResolver(service MusicService, searchLimit int, logger *zap.Logger) *Resolver {
	if searchLimit < 1 {
		searchLimit = 1
	}

	return &Resolver{
		service:     service,
		searchLimit: searchLimit,
		logger:      logger,
	}
}

func (r *Resolver) Resolve(ctx context.Context, rawQuery string) (*Track, error) {
	query := strings.TrimSpace(rawQuery)

	if IsTrackLink(query) {
		return r.resolveLink(ctx, query)
	}

	return r.resolveSearch(ctx, query)
}

func (r *Resolver) resolveLink(ctx context.Context, query string) (*Track, error) {
	trackID := ExtractTrackID(query)
	if trackID == "" {
		return nil, ErrInvalidLinkFormat
	}

	track, err := r.service.GetTrack(ctx, trackID)
	if err != nil {
		r.logger.Warn("Track lookup failed",
			zap.String("trackID", trackID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
	}

	if err := validateTrack(track); err != nil {
		return nil, err
	}

	return track, nil
}

func (r *Resolver) resolveSearch(ctx context.Context, query string) (*Track, error) {
	tracks, err := r.service.SearchTracks(ctx, query, r.searchLimit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w for %q", ErrNoResultsFound, query)
	}

	// Highest-ranked result is canonical.
	track := tracks[0]
	if err := validateTrack(&track); err != nil {
		return nil, err
	}

	return &track, nil
}

func validateTrack(track *Track) error {
	if track == nil || track.ID == "" {
		return ErrTrackNotFound
	}

	if len(track.Artists) == 0 {
		return fmt.Errorf("track %s resolved without artists", track.ID)
	}

	return nil
}
