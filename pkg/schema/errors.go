package schema

import "fmt"

// ValidationError reports malformed caller input or a response that lacks a
// field the client requires. It is never retried.
type ValidationError struct {
	// Field is the name of the offending field, using the wire name when the
	// error comes from a response (e.g. "metadata.sourceURL").
	Field string

	// Value is the rejected value rendered as text. Empty for missing fields.
	Value string

	// Reason describes the violated rule.
	Reason string

	// Err is the underlying cause, if any (e.g. a JSON syntax error).
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg = fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field, value, reason string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

func missing(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "required field is missing"}
}
