package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/spotik/spotik/internal/auth"
	"github.com/spotik/spotik/internal/models"
	"github.com/spotik/spotik/internal/services"
	"github.com/spotik/spotik/internal/shared"
	"github.com/spotik/spotik/internal/tasks"
)

// APIHandler serves the playlist and listing endpoints.
//
// Every endpoint resolves a credential through the cache first; a user
// with no record on file, or whose refresh fails, gets 401 with the
// documented error body.
type APIHandler struct {
	cache  *auth.Cache
	engine *tasks.PlaylistEngine
	svc    services.Service
	logger *log.Logger
}

// NewAPIHandler creates the API handler.
func NewAPIHandler(cache *auth.Cache, engine *tasks.PlaylistEngine, svc services.Service, logger *log.Logger) *APIHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &APIHandler{cache: cache, engine: engine, svc: svc, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *APIHandler) Routes() []string {
	return []string{
		"/me",
		"/top-tracks",
		"/genres",
		"/compare",
		"/playlists/find-duplicates",
		"/playlists/remove-duplicates",
		"/playlists/shuffle",
		"/playlists/copy",
	}
}

func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/me":
		h.get(w, r, h.me)
	case "/top-tracks":
		h.get(w, r, h.topTracks)
	case "/genres":
		h.get(w, r, h.genres)
	case "/compare":
		h.get(w, r, h.compare)
	case "/playlists/find-duplicates":
		h.get(w, r, h.findDuplicates)
	case "/playlists/remove-duplicates":
		h.post(w, r, h.removeDuplicates)
	case "/playlists/shuffle":
		h.post(w, r, h.shuffle)
	case "/playlists/copy":
		h.post(w, r, h.copyPlaylist)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *APIHandler) get(w http.ResponseWriter, r *http.Request, fn http.HandlerFunc) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	fn(w, r)
}

func (h *APIHandler) post(w http.ResponseWriter, r *http.Request, fn http.HandlerFunc) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	fn(w, r)
}

// credential resolves the user_id parameter into a usable credential,
// writing the error response itself when that fails.
func (h *APIHandler) credential(w http.ResponseWriter, r *http.Request, param string) (models.Credential, bool) {
	userID := r.FormValue(param)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "Missing "+param)
		return models.Credential{}, false
	}

	cred, err := h.cache.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotAuthorized) || errors.Is(err, shared.ErrRefreshFailed) {
			writeError(w, http.StatusUnauthorized, "User not authorized")
		} else {
			h.logger.Error("credential lookup failed", "user", userID, "err", err)
			writeError(w, http.StatusInternalServerError, "Credential lookup failed")
		}
		return models.Credential{}, false
	}

	return cred, true
}

// operr maps pipeline errors onto HTTP responses.
func (h *APIHandler) operr(w http.ResponseWriter, op string, err error) {
	h.logger.Error("operation failed", "op", op, "err", err)
	switch {
	case errors.Is(err, shared.ErrMissingArgument), errors.Is(err, shared.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, shared.ErrRemoteFetch), errors.Is(err, shared.ErrPaginationLoop), errors.Is(err, shared.ErrRemoteMutation):
		writeError(w, http.StatusBadGateway, "Remote service error")
	default:
		writeError(w, http.StatusInternalServerError, "Internal error")
	}
}

func (h *APIHandler) me(w http.ResponseWriter, r *http.Request) {
	cred, ok := h.credential(w, r, "user_id")
	if !ok {
		return
	}

	profile, err := h.svc.Profile(r.Context(), cred.AccessToken)
	if err != nil {
		h.operr(w, "me", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *APIHandler) topTracks(w http.ResponseWriter, r *http.Request) {
	cred, ok := h.credential(w, r, "user_id")
	if !ok {
		return
	}

	limit := 0
	if raw := r.FormValue("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	items, err := h.engine.TopTracks(r.Context(), cred, limit)
	if err != nil {
		h.operr(w, "top-tracks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": cred.UserID, "tracks": items})
}

func (h *APIHandler) genres(w http.ResponseWriter, r *http.Request) {
	cred, ok := h.credential(w, r, "user_id")
	if !ok {
		return
	}

	counts, err := h.engine.Genres(r.Context(), cred)
	if err != nil {
		h.operr(w, "genres", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": cred.UserID, "genres": counts})
}

func (h *APIHandler) compare(w http.ResponseWriter, r *http.Request) {
	cred, ok := h.credential(w, r, "user_id")
	if !ok {
		return
	}
	other, ok := h.credential(w, r, "other_id")
	if !ok {
		return
	}

	result, err := h.engine.Compare(r.Context(), cred, other, 50)
	if err != nil {
		h.operr(w, "compare", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) findDuplicates(w http.ResponseWriter, r *http.Request) {
	cred, ok := h.credential(w, r, "user_id")
	if !ok {
		return
	}
	playlistID := r.FormValue("playlist_id")
	if playlistID == "" {
		writeError(w, http.StatusBadRequest, "Missing playlist_id")
		return
	}

	policy, err := tasks.ParseKeyPolicy(r.FormValue("key"), tasks.KeyStrict)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.engine.FindDuplicates(r.Context(), cred, playlistID, policy)
	if err != nil {
		h.operr(w, "find-duplicates", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) removeDuplicates(w http.ResponseWriter, r *http.Request) {
	cred, ok := h.credential(w, r, "user_id")
	if !ok {
		return
	}
	playlistID := r.FormValue("playlist_id")
	if playlistID == "" {
		writeError(w, http.StatusBadRequest, "Missing playlist_id")
		return
	}

	policy, err := tasks.ParseKeyPolicy(r.FormValue("key"), tasks.KeyLoose)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.engine.RemoveDuplicates(r.Context(), cred, playlistID, policy)
	if err != nil {
		h.operr(w, "remove-duplicates", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) shuffle(w http.ResponseWriter, r *http.Request) {
	cred, ok := h.credential(w, r, "user_id")
	if !ok {
		return
	}
	playlistID := r.FormValue("playlist_id")
	if playlistID == "" {
		writeError(w, http.StatusBadRequest, "Missing playlist_id")
		return
	}

	result, err := h.engine.Shuffle(r.Context(), cred, playlistID)
	if err != nil {
		h.operr(w, "shuffle", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) copyPlaylist(w http.ResponseWriter, r *http.Request) {
	cred, ok := h.credential(w, r, "user_id")
	if !ok {
		return
	}
	playlistID := r.FormValue("playlist_id")
	if playlistID == "" {
		writeError(w, http.StatusBadRequest, "Missing playlist_id")
		return
	}
	name := r.FormValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "Missing name")
		return
	}

	result, err := h.engine.Copy(r.Context(), cred, playlistID, name)
	if err != nil {
		h.operr(w, "copy", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the documented JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
