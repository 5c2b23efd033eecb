package shared

import "fmt"

var (
	// Credential errors
	ErrNotAuthorized = fmt.Errorf("user not authorized")
	ErrRefreshFailed = fmt.Errorf("token refresh failed")

	// Remote API errors
	ErrRemoteFetch    = fmt.Errorf("remote fetch failed")
	ErrRemoteMutation = fmt.Errorf("remote mutation failed")
	ErrPaginationLoop = fmt.Errorf("pagination loop detected")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing client credentials")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
