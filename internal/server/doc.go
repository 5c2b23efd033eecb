// Package server provides HTTP routing, middleware, and the service's
// endpoint handlers.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes
// first), following the standard Go pattern. [BasicRouter] uses
// [http.ServeMux] internally with method filtering.
//
// # OAuth Boundary
//
// [OAuthHandler] serves the multi-user authorization-code flow: /login
// issues a state token (CSRF protection, 10 minute TTL) and redirects
// to the consent page; /callback exchanges the code, resolves the
// remote user ID from the profile endpoint, and stores the credential
// in the cache.
//
// # API Endpoints
//
// [APIHandler] serves the pipeline and listing endpoints. The error
// contract is uniform: missing or malformed parameters yield 400, a
// user without a usable credential yields 401 with
// {"error": "User not authorized"}, and remote failures yield 502.
package server
