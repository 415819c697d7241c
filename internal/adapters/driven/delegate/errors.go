package delegate

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidResponse indicates the peer answered with an unexpected body.
	ErrInvalidResponse = errors.New("delegate: invalid response")
)

// APIError represents a non-2xx answer from a peer server.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("delegate: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// IsUnauthorized checks if the peer rejected the session token.
func IsUnauthorized(err error) bool {
	return statusOf(err) == http.StatusUnauthorized
}

// IsForbidden checks if the peer refused access to the folder.
func IsForbidden(err error) bool {
	return statusOf(err) == http.StatusForbidden
}

// IsServerError checks if the peer failed internally.
func IsServerError(err error) bool {
	return statusOf(err) >= http.StatusInternalServerError
}

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
