// package testing contains shared testing utilities
package testing

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/spotik/spotik/internal/models"
	"github.com/spotik/spotik/internal/services"
	"github.com/spotik/spotik/internal/shared"
)

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// MemStore is an in-memory auth.Store recording how often it was saved.
type MemStore struct {
	mu      sync.Mutex
	Records map[string]models.Credential
	Saves   int
	LoadErr error
	SaveErr error
}

func NewMemStore() *MemStore {
	return &MemStore{Records: map[string]models.Credential{}}
}

func (s *MemStore) Load() (map[string]models.Credential, error) {
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.Credential, len(s.Records))
	for k, v := range s.Records {
		out[k] = v
	}
	return out, nil
}

func (s *MemStore) Save(records map[string]models.Credential) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Saves++
	s.Records = make(map[string]models.Credential, len(records))
	for k, v := range records {
		s.Records[k] = v
	}
	return nil
}

// StubService is a configurable test double for [services.Service].
//
// Unset hooks return zero values. Call counts are safe for concurrent use.
type StubService struct {
	mu sync.Mutex

	RefreshFn        func(ctx context.Context, refreshToken string) (*services.TokenResponse, error)
	ProfileFn        func(ctx context.Context, accessToken string) (*services.SpotifyUser, error)
	TracksPageFn     func(ctx context.Context, accessToken, pageURL string) ([]models.Track, string, error)
	ArtistsPageFn    func(ctx context.Context, accessToken, pageURL string) ([]services.SpotifyArtist, string, error)
	AddTracksFn      func(ctx context.Context, accessToken, playlistID string, uris []string) error
	RemoveTracksFn   func(ctx context.Context, accessToken, playlistID string, uris []string) error
	CreatePlaylistFn func(ctx context.Context, accessToken, userID, name, description string) (string, error)

	RefreshCalls int
	AddCalls     [][]string
	RemoveCalls  [][]string
}

func (s *StubService) Name() string { return "stub" }

func (s *StubService) Refresh(ctx context.Context, refreshToken string) (*services.TokenResponse, error) {
	s.mu.Lock()
	s.RefreshCalls++
	s.mu.Unlock()
	if s.RefreshFn == nil {
		return nil, fmt.Errorf("refresh not stubbed")
	}
	return s.RefreshFn(ctx, refreshToken)
}

func (s *StubService) Profile(ctx context.Context, accessToken string) (*services.SpotifyUser, error) {
	if s.ProfileFn == nil {
		return &services.SpotifyUser{ID: "stub-user"}, nil
	}
	return s.ProfileFn(ctx, accessToken)
}

func (s *StubService) PlaylistTracksURL(playlistID string) string {
	return "stub://playlists/" + playlistID + "/tracks"
}

func (s *StubService) TopTracksURL(limit int) string {
	return "stub://me/top/tracks"
}

func (s *StubService) TopArtistsURL(limit int) string {
	return "stub://me/top/artists"
}

func (s *StubService) TracksPage(ctx context.Context, accessToken, pageURL string) ([]models.Track, string, error) {
	if s.TracksPageFn == nil {
		return nil, "", nil
	}
	return s.TracksPageFn(ctx, accessToken, pageURL)
}

func (s *StubService) ArtistsPage(ctx context.Context, accessToken, pageURL string) ([]services.SpotifyArtist, string, error) {
	if s.ArtistsPageFn == nil {
		return nil, "", nil
	}
	return s.ArtistsPageFn(ctx, accessToken, pageURL)
}

func (s *StubService) AddTracks(ctx context.Context, accessToken, playlistID string, uris []string) error {
	s.mu.Lock()
	s.AddCalls = append(s.AddCalls, append([]string(nil), uris...))
	s.mu.Unlock()
	if s.AddTracksFn == nil {
		return nil
	}
	return s.AddTracksFn(ctx, accessToken, playlistID, uris)
}

func (s *StubService) RemoveTracks(ctx context.Context, accessToken, playlistID string, uris []string) error {
	s.mu.Lock()
	s.RemoveCalls = append(s.RemoveCalls, append([]string(nil), uris...))
	s.mu.Unlock()
	if s.RemoveTracksFn == nil {
		return nil
	}
	return s.RemoveTracksFn(ctx, accessToken, playlistID, uris)
}

func (s *StubService) CreatePlaylist(ctx context.Context, accessToken, userID, name, description string) (string, error) {
	if s.CreatePlaylistFn == nil {
		return "stub-playlist", nil
	}
	return s.CreatePlaylistFn(ctx, accessToken, userID, name, description)
}

// PagedTracks builds a TracksPage hook serving pages of the given tracks
// with pageSize items each, using synthetic cursors.
func PagedTracks(tracks []models.Track, pageSize int) func(ctx context.Context, accessToken, pageURL string) ([]models.Track, string, error) {
	return func(ctx context.Context, accessToken, pageURL string) ([]models.Track, string, error) {
		start := 0
		fmt.Sscanf(pageURL, "stub://page/%d", &start)

		end := start + pageSize
		if end > len(tracks) {
			end = len(tracks)
		}
		next := ""
		if end < len(tracks) {
			next = fmt.Sprintf("stub://page/%d", end)
		}
		return tracks[start:end], next, nil
	}
}

// FailingPage is a TracksPage hook that always reports a remote failure.
func FailingPage(ctx context.Context, accessToken, pageURL string) ([]models.Track, string, error) {
	return nil, "", fmt.Errorf("%w: stub page failure", shared.ErrRemoteFetch)
}
