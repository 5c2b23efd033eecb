package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spotik/spotik/internal/auth"
	"github.com/spotik/spotik/internal/services"
	"github.com/spotik/spotik/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"

	// stateTTL bounds how long an issued state token stays redeemable.
	stateTTL = 10 * time.Minute
)

// Scopes requested on every authorization, covering profile reads,
// playlist reads and the playlist mutations the pipeline performs.
var Scopes = []string{
	"user-read-private",
	"playlist-modify-public",
	"playlist-modify-private",
	"playlist-read-private",
	"user-library-read",
	"user-top-read",
}

// NewOAuthConfig builds the [oauth2.Config] for the authorization-code flow.
func NewOAuthConfig(conf shared.SpotifyConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     conf.ClientID,
		ClientSecret: conf.ClientSecret,
		RedirectURL:  conf.RedirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}
}

// OAuthHandler serves the authorization-code flow for any number of
// users: /login issues a state token and redirects to the consent page,
// /callback exchanges the code and stores the credential in the cache
// keyed by the remote user ID.
type OAuthHandler struct {
	config *oauth2.Config
	svc    services.Service
	cache  *auth.Cache
	logger *log.Logger

	mu     sync.Mutex
	states map[string]time.Time
	now    func() time.Time
}

// NewOAuthHandler creates an OAuth handler backed by the credential cache.
func NewOAuthHandler(config *oauth2.Config, svc services.Service, cache *auth.Cache, logger *log.Logger) *OAuthHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &OAuthHandler{
		config: config,
		svc:    svc,
		cache:  cache,
		logger: logger,
		states: map[string]time.Time{},
		now:    time.Now,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/", "/login", "/callback"}
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/", "/login":
		h.login(w, r)
	case "/callback":
		h.callback(w, r)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// login issues a fresh state token and redirects to the consent page.
func (h *OAuthHandler) login(w http.ResponseWriter, r *http.Request) {
	state := shared.GenerateID()

	h.mu.Lock()
	h.pruneLocked()
	h.states[state] = h.now().Add(stateTTL)
	h.mu.Unlock()

	http.Redirect(w, r, h.config.AuthCodeURL(state, oauth2.AccessTypeOffline), http.StatusFound)
}

// callback validates the state, exchanges the code, resolves the remote
// user ID, and stores the credential.
func (h *OAuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")

	h.mu.Lock()
	expiry, ok := h.states[state]
	delete(h.states, state)
	h.mu.Unlock()

	if !ok || h.now().After(expiry) {
		writeError(w, http.StatusBadRequest, "Invalid state parameter")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		errParam := r.URL.Query().Get("error")
		h.logger.Warn("authorization denied", "error", errParam)
		writeError(w, http.StatusBadRequest, "Authorization failed")
		return
	}

	token, err := h.config.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("token exchange failed", "err", err)
		writeError(w, http.StatusBadGateway, "Token exchange failed")
		return
	}
	if token.RefreshToken == "" {
		writeError(w, http.StatusBadGateway, "Authorization grant returned no refresh token")
		return
	}

	profile, err := h.svc.Profile(r.Context(), token.AccessToken)
	if err != nil {
		h.logger.Error("profile lookup failed", "err", err)
		writeError(w, http.StatusBadGateway, "Failed to resolve user profile")
		return
	}

	expiresIn := int(time.Until(token.Expiry).Seconds())
	if err := h.cache.Set(profile.ID, token.AccessToken, token.RefreshToken, expiresIn); err != nil {
		h.logger.Error("failed to store credential", "user", profile.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to store credential")
		return
	}

	h.logger.Info("user authorized", "user", profile.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":      profile.ID,
		"display_name": profile.DisplayName,
	})
}

// pruneLocked drops expired state tokens. Callers hold h.mu.
func (h *OAuthHandler) pruneLocked() {
	now := h.now()
	for state, expiry := range h.states {
		if now.After(expiry) {
			delete(h.states, state)
		}
	}
}
