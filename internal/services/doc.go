// Package services implements the typed [Service] client for the remote
// music catalog (Spotify Web API).
//
// # Service Interface
//
// [Service] exposes the capability set the rest of the system consumes:
// paged fetches, batched track addition/removal (≤100 items per call,
// the API's hard limit), playlist creation, profile lookup, and the
// refresh-token grant used by the credential cache.
//
// The client is stateless with respect to users: every call takes the
// bearer token explicitly, so one instance serves all authorized users.
//
// # Rate Limiting
//
// All outbound requests wait on a shared [rate.Limiter] sized from
// configuration, keeping concurrent pipeline operations within the
// API's request budget.
//
// # Error Handling
//
// Failures map onto the shared sentinels:
//   - [shared.ErrRemoteFetch] : transport failure or non-2xx on a read
//   - [shared.ErrRemoteMutation] : failure of an add/remove/create call
//   - [shared.ErrRefreshFailed] : token endpoint rejected the refresh grant
package services
