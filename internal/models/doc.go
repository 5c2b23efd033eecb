// Package models defines the domain entities shared across the playlist service.
//
// Two categories of types live here:
//
// 1. Remote collection data: [Track] represents one playlist entry as returned
// by the Spotify API, carrying the attributes the duplicate detector keys on.
//
// 2. Credential state: [Credential] is the per-user token record owned by the
// auth cache and persisted in the snapshot store. Expiry timestamps serialize
// as RFC 3339 so snapshots survive process restarts.
package models
