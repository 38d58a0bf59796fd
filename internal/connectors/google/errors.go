package google

import (
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Common Google API errors.
var (
	// ErrNoCredentials indicates neither a token nor a credentials file was configured.
	ErrNoCredentials = errors.New("google: no credentials configured")

	// ErrUnauthorized indicates invalid or expired credentials.
	ErrUnauthorized = errors.New("google: unauthorised (invalid credentials)")

	// ErrForbidden indicates insufficient permissions.
	ErrForbidden = errors.New("google: forbidden (insufficient permissions)")

	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("google: resource not found")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("google: rate limit exceeded")

	// ErrPageTokenExpired indicates a page token is no longer valid (410 GONE).
	// The listing must restart from the first page.
	ErrPageTokenExpired = errors.New("google: page token expired, listing must restart")
)

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	return hasCode(err, http.StatusTooManyRequests)
}

// IsPageTokenExpired returns true if the error indicates an expired page token (410 GONE).
func IsPageTokenExpired(err error) bool {
	if errors.Is(err, ErrPageTokenExpired) {
		return true
	}
	return hasCode(err, http.StatusGone)
}

func hasCode(err error, code int) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == code
	}
	return false
}

// WrapError converts a Google API error to a more specific error type.
// The original error stays reachable with errors.As.
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}

	var sentinel error
	switch gerr.Code {
	case http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case http.StatusForbidden:
		sentinel = ErrForbidden
	case http.StatusNotFound:
		sentinel = ErrNotFound
	case http.StatusTooManyRequests:
		sentinel = ErrRateLimited
	case http.StatusGone:
		sentinel = ErrPageTokenExpired
	default:
		return err
	}
	return errors.Join(sentinel, err)
}
