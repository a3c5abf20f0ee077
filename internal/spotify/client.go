// Package spotify implements the upstream music capabilities (search, track
// lookup, queue, recommendations, owner auth status) against the Spotify
// Web API.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"crowdqueue/internal/core"
	"crowdqueue/pkg/fuzzy"
)

const (
	// FilePermission is the permission for token files
	FilePermission = 0o600
	// TrackCacheSize bounds the resolved-track metadata cache
	TrackCacheSize = 256
	// trackURIPrefix is the scheme prefix of a Spotify track URI
	trackURIPrefix = "spotify:track:"
)

type Client struct {
	config     *core.SpotifyConfig
	logger     *zap.Logger
	client     *spotify.Client
	normalizer *fuzzy.Normalizer
	auth       *spotifyauth.Authenticator
	trackCache *lru.Cache[string, core.Track]
}

type TokenData struct {
	Token *oauth2.Token `json:"token"`
}

func NewClient(config *core.SpotifyConfig, logger *zap.Logger) *Client {
	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(config.RedirectURL),
		spotifyauth.WithScopes(
			spotifyauth.ScopeUserModifyPlaybackState,
			spotifyauth.ScopeUserReadPlaybackState,
		),
		spotifyauth.WithClientID(config.ClientID),
		spotifyauth.WithClientSecret(config.ClientSecret),
	)

	trackCache, _ := lru.New[string, core.Track](TrackCacheSize)

	return &Client{
		config:     config,
		logger:     logger,
		normalizer: fuzzy.NewNormalizer(),
		auth:       auth,
		trackCache: trackCache,
	}
}

// Authenticate restores a saved owner token or walks the OAuth flow.
func (c *Client) Authenticate(ctx context.Context) error {
	token, err := c.loadToken()
	if err != nil {
		c.logger.Info("No saved token found, starting OAuth flow")
		return c.startOAuthFlow(ctx)
	}

	client := spotify.New(c.auth.Client(ctx, token))
	c.client = client

	user, err := client.CurrentUser(ctx)
	if err != nil {
		c.logger.Warn("Saved token invalid, starting OAuth flow", zap.Error(err))
		return c.startOAuthFlow(ctx)
	}

	c.logger.Info("Authenticated successfully", zap.String("user", user.DisplayName))
	return nil
}

// SearchTracks searches the catalog and returns up to limit tracks, best
// match first. The query is normalized before searching; with more than one
// result the list is re-ranked by similarity to the original query.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]core.Track, error) {
	if c.client == nil {
		return nil, fmt.Errorf("client not authenticated")
	}

	if limit < 1 {
		limit = 1
	}

	normalizedQuery := c.normalizer.NormalizeTitle(query)

	results, err := c.client.Search(ctx, normalizedQuery, spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	if results.Tracks == nil || len(results.Tracks.Tracks) == 0 {
		return nil, nil
	}

	tracks := make([]core.Track, 0, limit)
	for i := range results.Tracks.Tracks {
		if len(tracks) >= limit {
			break
		}
		tracks = append(tracks, convertFullTrack(&results.Tracks.Tracks[i]))
	}

	if len(tracks) > 1 {
		c.rankTracks(tracks, normalizedQuery)
	}

	return tracks, nil
}

// GetTrack looks up a track by ID, serving repeated lookups from an LRU
// cache. Link submissions of popular tracks hit the cache often.
func (c *Client) GetTrack(ctx context.Context, trackID string) (*core.Track, error) {
	if c.client == nil {
		return nil, fmt.Errorf("client not authenticated")
	}

	if cached, ok := c.trackCache.Get(trackID); ok {
		return &cached, nil
	}

	track, err := c.client.GetTrack(ctx, spotify.ID(trackID))
	if err != nil {
		return nil, fmt.Errorf("failed to get track: %w", err)
	}

	coreTrack := convertFullTrack(track)
	c.trackCache.Add(trackID, coreTrack)

	return &coreTrack, nil
}

// AddToQueue appends a track to the owner's playback queue. A missing
// playback device is reported as core.ErrNoActiveDevice.
func (c *Client) AddToQueue(ctx context.Context, trackURI string) error {
	if c.client == nil {
		return fmt.Errorf("client not authenticated")
	}

	trackID := strings.TrimPrefix(trackURI, trackURIPrefix)

	if err := c.client.QueueSong(ctx, spotify.ID(trackID)); err != nil {
		return classifyPlayerError(err)
	}

	c.logger.Info("Track added to queue", zap.String("trackID", trackID))
	return nil
}

// GetRecommendations fetches up to count tracks seeded by a track ID.
func (c *Client) GetRecommendations(ctx context.Context, seedTrackID string, count int) ([]core.Track, error) {
	if c.client == nil {
		return nil, fmt.Errorf("client not authenticated")
	}

	seeds := spotify.Seeds{Tracks: []spotify.ID{spotify.ID(seedTrackID)}}

	recs, err := c.client.GetRecommendations(ctx, seeds, nil, spotify.Limit(count))
	if err != nil {
		return nil, fmt.Errorf("failed to get recommendations: %w", err)
	}

	tracks := make([]core.Track, 0, len(recs.Tracks))
	for i := range recs.Tracks {
		tracks = append(tracks, convertSimpleTrack(&recs.Tracks[i]))
	}

	return tracks, nil
}

// IsOwnerAuthenticated reports whether the owner's session is usable by
// probing the current-user endpoint.
func (c *Client) IsOwnerAuthenticated(ctx context.Context) bool {
	if c.client == nil {
		return false
	}

	if _, err := c.client.CurrentUser(ctx); err != nil {
		c.logger.Debug("Owner authentication probe failed", zap.Error(err))
		return false
	}

	return true
}

func classifyPlayerError(err error) error {
	var spErr spotify.Error
	if errors.As(err, &spErr) && strings.Contains(strings.ToLower(spErr.Message), "no active device") {
		return fmt.Errorf("%w: %s", core.ErrNoActiveDevice, spErr.Message)
	}

	if strings.Contains(strings.ToLower(err.Error()), "no active device") {
		return core.ErrNoActiveDevice
	}

	return fmt.Errorf("failed to add track to queue: %w", err)
}

func convertFullTrack(track *spotify.FullTrack) core.Track {
	coreTrack := convertSimpleTrack(&track.SimpleTrack)
	coreTrack.Popularity = int(track.Popularity)
	return coreTrack
}

func convertSimpleTrack(track *spotify.SimpleTrack) core.Track {
	artists := make([]string, 0, len(track.Artists))
	for _, artist := range track.Artists {
		artists = append(artists, artist.Name)
	}

	return core.Track{
		ID:         string(track.ID),
		Name:       track.Name,
		Artists:    artists,
		URI:        string(track.URI),
		URL:        track.ExternalURLs["spotify"],
		PreviewURL: track.PreviewURL,
	}
}

// rankTracks sorts in place by similarity of name and artists to the query.
func (c *Client) rankTracks(tracks []core.Track, normalizedQuery string) {
	score := func(track core.Track) float64 {
		normalizedTitle := c.normalizer.NormalizeTitle(track.Name)
		normalizedArtist := c.normalizer.NormalizeArtist(track.ArtistLine())

		titleSimilarity := c.normalizer.CalculateSimilarity(normalizedTitle, normalizedQuery)
		combined := c.normalizer.CalculateSimilarity(normalizedArtist+" "+normalizedTitle, normalizedQuery)

		return 0.7*titleSimilarity + 0.3*combined
	}

	scores := make([]float64, len(tracks))
	for i, track := range tracks {
		scores[i] = score(track)
	}

	for i := 0; i < len(tracks)-1; i++ {
		for j := i + 1; j < len(tracks); j++ {
			if scores[i] < scores[j] {
				scores[i], scores[j] = scores[j], scores[i]
				tracks[i], tracks[j] = tracks[j], tracks[i]
			}
		}
	}
}

func (c *Client) startOAuthFlow(ctx context.Context) error {
	state := "crowdqueue-auth-state"
	authURL := c.auth.AuthURL(state)

	fmt.Printf("Please visit the following URL to authorize the application:\n%s\n", authURL)
	fmt.Print("Enter the authorization code: ")

	var code string
	if _, err := fmt.Scanln(&code); err != nil {
		return fmt.Errorf("failed to read authorization code: %w", err)
	}

	token, err := c.auth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code for token: %w", err)
	}

	if saveErr := c.saveToken(token); saveErr != nil {
		c.logger.Warn("Failed to save token", zap.Error(saveErr))
	}

	client := spotify.New(c.auth.Client(ctx, token))
	c.client = client

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	c.logger.Info("OAuth flow completed successfully", zap.String("user", user.DisplayName))
	return nil
}

func (c *Client) loadToken() (*oauth2.Token, error) {
	file, err := os.Open(c.config.TokenPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	var tokenData TokenData
	if err := json.Unmarshal(data, &tokenData); err != nil {
		return nil, err
	}

	return tokenData.Token, nil
}

func (c *Client) saveToken(token *oauth2.Token) error {
	tokenData := TokenData{Token: token}

	data, err := json.MarshalIndent(tokenData, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(c.config.TokenPath, data, FilePermission)
}
