package core

import "errors"

// Resolution and enqueue failures the pipeline distinguishes when building
// a user-facing reason. Anything else from upstream is treated as a generic
// failure and surfaced without retry.
var (
	// ErrInvalidLinkFormat marks input that looks like a Spotify link but
	// carries no extractable track ID.
	ErrInvalidLinkFormat = errors.New("invalid Spotify link format")

	// ErrTrackNotFound marks a link whose track ID does not resolve upstream.
	ErrTrackNotFound = errors.New("track not found")

	// ErrNoResultsFound marks a free-text search with an empty result set.
	ErrNoResultsFound = errors.New("no tracks found")

	// ErrNoActiveDevice marks an enqueue attempt while the owner has no
	// active playback device.
	ErrNoActiveDevice = errors.New("no active playback device")
)
