package fetcher

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrFetchFailed matches every *FetchFailed via errors.Is.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrTooManyRedirects is returned when the redirect hop limit is exceeded.
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrBodyTooLarge is returned when a response exceeds the body limit.
	ErrBodyTooLarge = errors.New("response body too large")
)

// FetchFailed describes a URL that could not be fetched after all attempts,
// or that failed permanently (4xx).
type FetchFailed struct {
	URL        string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *FetchFailed) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s failed after %d attempt(s): status %d: %v", e.URL, e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchFailed) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrFetchFailed.
func (e *FetchFailed) Is(target error) bool {
	return target == ErrFetchFailed
}

// statusError is an unexpected HTTP status for one attempt.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// permanent reports whether the status must not be retried.
func (e *statusError) permanent() bool {
	return e.code < http.StatusInternalServerError && e.code != http.StatusTooManyRequests
}
