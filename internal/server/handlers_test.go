package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/spotik/spotik/internal/auth"
	"github.com/spotik/spotik/internal/models"
	"github.com/spotik/spotik/internal/tasks"
	spotiktest "github.com/spotik/spotik/internal/testing"
)

func newTestHandler(t *testing.T, svc *spotiktest.StubService) *APIHandler {
	t.Helper()

	store := spotiktest.NewMemStore()
	store.Records["u1"] = models.Credential{
		UserID:       "u1",
		AccessToken:  "tok",
		RefreshToken: "r1",
		ExpiresAt:    time.Now().Add(time.Hour),
	}

	cache, err := auth.NewCache(auth.CacheOpts{Store: store, Remote: svc})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	engine := tasks.NewPlaylistEngine(svc, nil)
	return NewAPIHandler(cache, engine, svc, nil)
}

func doRequest(h http.Handler, method, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if method == http.MethodPost {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		if len(form) > 0 {
			target += "?" + form.Encode()
		}
		req = httptest.NewRequest(method, target, nil)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

func TestAPIHandlerErrors(t *testing.T) {
	t.Run("Missing User ID", func(t *testing.T) {
		h := newTestHandler(t, &spotiktest.StubService{})

		rec := doRequest(h, http.MethodGet, "/me", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if body := decodeBody(t, rec); body["error"] != "Missing user_id" {
			t.Errorf("unexpected error body: %v", body)
		}
	})

	t.Run("Unknown User Is Unauthorized", func(t *testing.T) {
		h := newTestHandler(t, &spotiktest.StubService{})

		rec := doRequest(h, http.MethodGet, "/me", url.Values{"user_id": {"stranger"}})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
		if body := decodeBody(t, rec); body["error"] != "User not authorized" {
			t.Errorf("unexpected error body: %v", body)
		}
	})

	t.Run("Wrong Method", func(t *testing.T) {
		h := newTestHandler(t, &spotiktest.StubService{})

		if rec := doRequest(h, http.MethodPost, "/me", nil); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405 for POST /me, got %d", rec.Code)
		}
		if rec := doRequest(h, http.MethodGet, "/playlists/shuffle", nil); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405 for GET /playlists/shuffle, got %d", rec.Code)
		}
	})

	t.Run("Unknown Path", func(t *testing.T) {
		h := newTestHandler(t, &spotiktest.StubService{})

		if rec := doRequest(h, http.MethodGet, "/nope", nil); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("Invalid Key Policy", func(t *testing.T) {
		h := newTestHandler(t, &spotiktest.StubService{})

		rec := doRequest(h, http.MethodGet, "/playlists/find-duplicates", url.Values{
			"user_id":     {"u1"},
			"playlist_id": {"p1"},
			"key":         {"fuzzy"},
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Invalid Limit", func(t *testing.T) {
		h := newTestHandler(t, &spotiktest.StubService{})

		rec := doRequest(h, http.MethodGet, "/top-tracks", url.Values{
			"user_id": {"u1"},
			"limit":   {"many"},
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Remote Failure Maps To Bad Gateway", func(t *testing.T) {
		svc := &spotiktest.StubService{}
		svc.TracksPageFn = spotiktest.FailingPage
		h := newTestHandler(t, svc)

		rec := doRequest(h, http.MethodGet, "/playlists/find-duplicates", url.Values{
			"user_id":     {"u1"},
			"playlist_id": {"p1"},
		})
		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
		if body := decodeBody(t, rec); body["error"] != "Remote service error" {
			t.Errorf("unexpected error body: %v", body)
		}
	})
}

func TestAPIHandlerEndpoints(t *testing.T) {
	playlist := []models.Track{
		{URI: "spotify:track:1", Title: "Song", Artist: "Band"},
		{URI: "spotify:track:2", Title: "Other", Artist: "Band"},
		{URI: "spotify:track:3", Title: "Song", Artist: "Band"},
	}

	t.Run("Me", func(t *testing.T) {
		h := newTestHandler(t, &spotiktest.StubService{})

		rec := doRequest(h, http.MethodGet, "/me", url.Values{"user_id": {"u1"}})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if body := decodeBody(t, rec); body["id"] != "stub-user" {
			t.Errorf("unexpected profile body: %v", body)
		}
	})

	t.Run("Find Duplicates", func(t *testing.T) {
		svc := &spotiktest.StubService{}
		svc.TracksPageFn = spotiktest.PagedTracks(playlist, 100)
		h := newTestHandler(t, svc)

		rec := doRequest(h, http.MethodGet, "/playlists/find-duplicates", url.Values{
			"user_id":     {"u1"},
			"playlist_id": {"p1"},
			"key":         {"loose"},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		body := decodeBody(t, rec)
		if body["total"] != float64(3) || body["removed_count"] != float64(1) {
			t.Errorf("unexpected report: %v", body)
		}
		if len(svc.RemoveCalls) != 0 || len(svc.AddCalls) != 0 {
			t.Error("inspection endpoint must not mutate the playlist")
		}
	})

	t.Run("Remove Duplicates", func(t *testing.T) {
		svc := &spotiktest.StubService{}
		svc.TracksPageFn = spotiktest.PagedTracks(playlist, 100)
		h := newTestHandler(t, svc)

		rec := doRequest(h, http.MethodPost, "/playlists/remove-duplicates", url.Values{
			"user_id":     {"u1"},
			"playlist_id": {"p1"},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(svc.RemoveCalls) != 1 {
			t.Errorf("expected one delete call, got %d", len(svc.RemoveCalls))
		}
	})

	t.Run("Copy Requires Name", func(t *testing.T) {
		h := newTestHandler(t, &spotiktest.StubService{})

		rec := doRequest(h, http.MethodPost, "/playlists/copy", url.Values{
			"user_id":     {"u1"},
			"playlist_id": {"p1"},
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if body := decodeBody(t, rec); body["error"] != "Missing name" {
			t.Errorf("unexpected error body: %v", body)
		}
	})

	t.Run("Shuffle Reports Warning", func(t *testing.T) {
		svc := &spotiktest.StubService{}
		svc.TracksPageFn = spotiktest.PagedTracks(playlist, 100)
		h := newTestHandler(t, svc)

		rec := doRequest(h, http.MethodPost, "/playlists/shuffle", url.Values{
			"user_id":     {"u1"},
			"playlist_id": {"p1"},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if body := decodeBody(t, rec); body["warning"] == "" {
			t.Error("expected non-atomic warning in response")
		}
	})
}
