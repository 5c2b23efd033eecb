// Spotify API implementation of [Service]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spotik/spotik/internal/models"
	"github.com/spotik/spotik/internal/shared"
	"golang.org/x/time/rate"
)

const (
	spotifyAccountsURL = "https://accounts.spotify.com"
	spotifyBaseURL     = "https://api.spotify.com/v1"

	defaultRateLimit = 5.0
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Country     string `json:"country"`
	Product     string `json:"product"` // premium, free, etc.
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
	URI    string   `json:"uri"`
}

// SpotifyAlbum represents a Spotify album reference.
type SpotifyAlbum struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	URI        string          `json:"uri"`
}

// spotifyPlaylistItem wraps a track within a playlist page.
type spotifyPlaylistItem struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// spotifyTracksPage is a paginated response of playlist items or top tracks.
//
// Playlist pages nest the track under "track"; top-track pages inline it.
// Both shapes decode here because the unused fields stay zero.
type spotifyTracksPage struct {
	Items []json.RawMessage `json:"items"`
	Next  *string           `json:"next"`
	Total int               `json:"total"`
}

// spotifyArtistsPage is a paginated response of artists.
type spotifyArtistsPage struct {
	Items []SpotifyArtist `json:"items"`
	Next  *string         `json:"next"`
}

// spotifyCreatedPlaylist is the response body of a playlist creation call.
type spotifyCreatedPlaylist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyService implements [Service] against the Spotify Web API.
//
// All requests pass through a shared [rate.Limiter] so that concurrent
// pipeline operations stay under the API rate limit.
type SpotifyService struct {
	clientID     string
	clientSecret string
	baseURL      string
	accountsURL  string
	httpClient   *http.Client
	limiter      *rate.Limiter
	logger       *log.Logger
}

// SpotifyOpts contains construction options for [SpotifyService].
type SpotifyOpts struct {
	ClientID     string
	ClientSecret string
	RateLimit    float64      // requests per second, defaults to 5
	HTTPClient   *http.Client // defaults to http.DefaultClient
	BaseURL      string       // overridden in tests
	AccountsURL  string       // overridden in tests
	Logger       *log.Logger
}

// NewSpotifyService creates a new Spotify service with the given client credentials.
func NewSpotifyService(opts SpotifyOpts) (*SpotifyService, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client_id and client_secret are required", shared.ErrMissingCredentials)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.AccountsURL == "" {
		opts.AccountsURL = spotifyAccountsURL
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &SpotifyService{
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		baseURL:      opts.BaseURL,
		accountsURL:  opts.AccountsURL,
		httpClient:   opts.HTTPClient,
		limiter:      rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		logger:       opts.Logger,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// doRequest performs an authenticated, rate-limited HTTP request against the API.
func (s *SpotifyService) doRequest(ctx context.Context, method, fullURL, accessToken string, body, result any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRemoteFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s: status %d", shared.ErrRemoteFetch, method, fullURL, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Refresh exchanges a refresh token for a fresh access token via the
// accounts token endpoint (grant_type=refresh_token).
func (s *SpotifyService) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: empty refresh token", shared.ErrRefreshFailed)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	tokenURL := s.accountsURL + "/api/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(s.clientID, s.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: token endpoint returned status %d", shared.ErrRefreshFailed, resp.StatusCode)
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("%w: failed to decode token response: %v", shared.ErrRefreshFailed, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: token endpoint returned no access token", shared.ErrRefreshFailed)
	}

	return &token, nil
}

// Profile retrieves the current token owner's profile.
func (s *SpotifyService) Profile(ctx context.Context, accessToken string) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, s.baseURL+"/me", accessToken, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// PlaylistTracksURL returns the first page URL for a playlist's track listing.
func (s *SpotifyService) PlaylistTracksURL(playlistID string) string {
	return fmt.Sprintf("%s/playlists/%s/tracks?limit=100", s.baseURL, url.PathEscape(playlistID))
}

// TopTracksURL returns the first page URL of the user's top tracks.
func (s *SpotifyService) TopTracksURL(limit int) string {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	return fmt.Sprintf("%s/me/top/tracks?limit=%d", s.baseURL, limit)
}

// TopArtistsURL returns the first page URL of the user's top artists.
func (s *SpotifyService) TopArtistsURL(limit int) string {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	return fmt.Sprintf("%s/me/top/artists?limit=%d", s.baseURL, limit)
}

// TracksPage fetches one page of tracks from pageURL.
//
// Handles both playlist pages (items nest the track under "track") and
// top-track pages (items are tracks). Returns the next-page URL or ""
// when the remote reports no further page.
func (s *SpotifyService) TracksPage(ctx context.Context, accessToken, pageURL string) ([]models.Track, string, error) {
	var page spotifyTracksPage
	if err := s.doRequest(ctx, http.MethodGet, pageURL, accessToken, nil, &page); err != nil {
		return nil, "", err
	}

	tracks := make([]models.Track, 0, len(page.Items))
	for _, raw := range page.Items {
		var item spotifyPlaylistItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, "", fmt.Errorf("%w: malformed page item: %v", shared.ErrRemoteFetch, err)
		}

		track := item.Track
		if track.URI == "" && track.Name == "" {
			// Top-track pages inline the track object.
			if err := json.Unmarshal(raw, &track); err != nil {
				return nil, "", fmt.Errorf("%w: malformed page item: %v", shared.ErrRemoteFetch, err)
			}
		}
		if track.URI == "" {
			// Local or removed tracks come back without a URI; skip them.
			continue
		}

		t := models.Track{
			URI:        track.URI,
			Title:      track.Name,
			Album:      track.Album.Name,
			DurationMS: track.DurationMS,
		}
		if len(track.Artists) > 0 {
			t.Artist = track.Artists[0].Name
		}
		tracks = append(tracks, t)
	}

	next := ""
	if page.Next != nil {
		next = *page.Next
	}
	return tracks, next, nil
}

// ArtistsPage fetches one page of artists from pageURL.
func (s *SpotifyService) ArtistsPage(ctx context.Context, accessToken, pageURL string) ([]SpotifyArtist, string, error) {
	var page spotifyArtistsPage
	if err := s.doRequest(ctx, http.MethodGet, pageURL, accessToken, nil, &page); err != nil {
		return nil, "", err
	}

	next := ""
	if page.Next != nil {
		next = *page.Next
	}
	return page.Items, next, nil
}

// AddTracks appends up to 100 track URIs to the playlist in submission order.
func (s *SpotifyService) AddTracks(ctx context.Context, accessToken, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	if len(uris) > 100 {
		return fmt.Errorf("%w: at most 100 uris per call, got %d", shared.ErrInvalidInput, len(uris))
	}

	endpoint := fmt.Sprintf("%s/playlists/%s/tracks", s.baseURL, url.PathEscape(playlistID))
	body := map[string]any{"uris": uris}

	if err := s.doRequest(ctx, http.MethodPost, endpoint, accessToken, body, nil); err != nil {
		return fmt.Errorf("%w: add tracks: %v", shared.ErrRemoteMutation, err)
	}
	return nil
}

// RemoveTracks removes all occurrences of up to 100 track URIs from the playlist.
func (s *SpotifyService) RemoveTracks(ctx context.Context, accessToken, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	if len(uris) > 100 {
		return fmt.Errorf("%w: at most 100 uris per call, got %d", shared.ErrInvalidInput, len(uris))
	}

	tracks := make([]map[string]string, 0, len(uris))
	for _, uri := range uris {
		tracks = append(tracks, map[string]string{"uri": uri})
	}

	endpoint := fmt.Sprintf("%s/playlists/%s/tracks", s.baseURL, url.PathEscape(playlistID))
	body := map[string]any{"tracks": tracks}

	if err := s.doRequest(ctx, http.MethodDelete, endpoint, accessToken, body, nil); err != nil {
		return fmt.Errorf("%w: remove tracks: %v", shared.ErrRemoteMutation, err)
	}
	return nil
}

// CreatePlaylist creates a new private playlist owned by userID and returns its ID.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, accessToken, userID, name, description string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: playlist name is required", shared.ErrInvalidInput)
	}

	endpoint := fmt.Sprintf("%s/users/%s/playlists", s.baseURL, url.PathEscape(userID))
	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      false,
	}

	var created spotifyCreatedPlaylist
	if err := s.doRequest(ctx, http.MethodPost, endpoint, accessToken, body, &created); err != nil {
		return "", fmt.Errorf("%w: create playlist: %v", shared.ErrRemoteMutation, err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: create playlist returned no id", shared.ErrRemoteMutation)
	}

	return created.ID, nil
}
