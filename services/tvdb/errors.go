package tvdb

import "fmt"

// AuthError is returned when the upstream rejects the login credentials or
// answers with a malformed login response.
type AuthError struct {
	Status int
	Reason string
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("tvdb login failed: status %d", e.Status)
	}
	return fmt.Sprintf("tvdb login failed: %s", e.Reason)
}

// UpstreamError is returned for non-success responses from the metadata
// API. It carries the status code and request path for diagnostics.
type UpstreamError struct {
	Status int
	Path   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("tvdb get %s failed: status %d", e.Path, e.Status)
}

// retryable reports whether an upstream failure is worth retrying.
func (e *UpstreamError) retryable() bool {
	return e.Status == 429 || e.Status >= 500
}
