// Package auth owns the per-user credential lifecycle.
//
// # Cache
//
// [Cache] issues, caches, and transparently refreshes access tokens.
// A lookup within the skew window of expiry triggers a synchronous
// refresh; concurrent lookups for the same user collapse into a single
// remote call through [singleflight.Group]. Failed refreshes retain the
// stale record for later retry rather than evicting the user.
//
// # Persistence
//
// The [Store] interface persists the whole record set as one snapshot
// after every mutation. Two implementations exist:
//   - [FileStore] : single JSON document, replaced via temp-file rename
//   - [SQLiteStore] : credentials table rewritten in one transaction
//
// Expiry timestamps serialize as RFC 3339 and are reconstituted on load,
// so restarts preserve refresh timing.
package auth
