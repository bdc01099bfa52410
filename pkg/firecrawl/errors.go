package firecrawl

import (
	"errors"
	"fmt"

	"github.com/nao1215/simplecrawl/pkg/poller"
	"github.com/nao1215/simplecrawl/pkg/schema"
	"github.com/nao1215/simplecrawl/pkg/transport"
)

// Error types returned by the client, re-exported from the packages that
// produce them.
type (
	ValidationError  = schema.ValidationError
	TransportError   = transport.Error
	PollTimeoutError = poller.PollTimeoutError
	JobFailedError   = poller.JobFailedError
)

// ConfigError reports an invalid client configuration. It is returned by the
// constructors before any request is sent.
type ConfigError struct {
	Field  string
	Value  string
	Source Source
	Err    error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid %s %q (from %s): %v", e.Field, e.Value, e.Source, e.Err)
	}
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ScrapeError wraps the *ValidationError or *TransportError that made a
// scrape fail.
type ScrapeError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *ScrapeError) Error() string {
	return fmt.Sprintf("scrape %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

var errNegative = errors.New("must not be negative")
