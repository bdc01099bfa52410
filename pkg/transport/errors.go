package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrInvalidBaseURL is returned by New when the base URL is not an
	// absolute http or https URL.
	ErrInvalidBaseURL = errors.New("invalid base URL: must be an absolute http or https URL")

	// ErrInvalidProxyAddress is returned when the SOCKS5 proxy address is not
	// in "host:port" format.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrForeignOrigin is returned when an absolute request URL does not share
	// the scheme and host of the base URL. Credentials are never sent to a
	// different origin.
	ErrForeignOrigin = errors.New("request URL is outside the configured base URL origin")

	// ErrBodyTooLarge is returned when a successful response body exceeds
	// the configured maximum size.
	ErrBodyTooLarge = errors.New("response body exceeds the size limit")
)

// Error describes a failed request. StatusCode is zero when no response was
// received (connection failure, timeout, cancellation).
type Error struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
	}
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
		}
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: request failed", e.Method, e.URL)
}

// Unwrap returns the underlying network or context error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout reports whether the request failed because a deadline expired.
func (e *Error) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}
