package models

import (
	"time"
)

// Track represents one entry of a remote playlist at fetch time.
type Track struct {
	URI        string `json:"uri"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	DurationMS int    `json:"duration_ms,omitempty"`
	Position   int    `json:"position"`
}

// Credential is the token record for one authorized user.
//
// The record is owned exclusively by the auth cache: AccessToken and
// ExpiresAt are replaced on every refresh, RefreshToken is carried
// forward unless the remote returns a new one.
type Credential struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Fresh reports whether the access token is still usable at now,
// leaving skew of headroom before the recorded expiry.
func (c Credential) Fresh(now time.Time, skew time.Duration) bool {
	return now.Add(skew).Before(c.ExpiresAt)
}
