// package services defines interface Service for the remote music catalog API
package services

import (
	"context"

	"github.com/spotik/spotik/internal/models"
)

// TokenResponse is the remote token endpoint's reply to a refresh grant.
//
// RefreshToken is usually empty: Spotify only rotates it occasionally.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Service is the typed surface of the remote collection API consumed by the
// credential cache and the playlist pipeline.
//
// Every method takes a bearer access token explicitly: the service instance
// is shared across users and holds no per-user state.
type Service interface {
	// Refresh exchanges a refresh token for a new access token.
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)

	// Profile retrieves the profile of the token's owner.
	Profile(ctx context.Context, accessToken string) (*SpotifyUser, error)

	// PlaylistTracksURL returns the first page URL for a playlist's tracks.
	PlaylistTracksURL(playlistID string) string

	// TopTracksURL returns the first page URL for the user's top tracks.
	TopTracksURL(limit int) string

	// TopArtistsURL returns the first page URL for the user's top artists.
	TopArtistsURL(limit int) string

	// TracksPage fetches a single page of tracks from pageURL and returns
	// the items plus the next-page URL ("" when the listing is exhausted).
	TracksPage(ctx context.Context, accessToken, pageURL string) ([]models.Track, string, error)

	// ArtistsPage fetches a single page of artists from pageURL.
	ArtistsPage(ctx context.Context, accessToken, pageURL string) ([]SpotifyArtist, string, error)

	// AddTracks appends up to 100 track URIs to a playlist in submission order.
	AddTracks(ctx context.Context, accessToken, playlistID string, uris []string) error

	// RemoveTracks removes all occurrences of up to 100 track URIs from a playlist.
	RemoveTracks(ctx context.Context, accessToken, playlistID string, uris []string) error

	// CreatePlaylist creates an empty playlist owned by userID and returns its ID.
	CreatePlaylist(ctx context.Context, accessToken, userID, name, description string) (string, error)

	// Name returns the name of the remote service (e.g. "Spotify")
	Name() string
}
