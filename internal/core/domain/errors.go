package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrUnknownStream indicates a record arrived on a stream with no definition.
	ErrUnknownStream = errors.New("unknown stream")

	// ErrMissingConfig indicates a required configuration field is absent.
	ErrMissingConfig = errors.New("missing required configuration")

	// ErrUnknownRun indicates a run id with no persisted ledger.
	ErrUnknownRun = errors.New("unknown run")

	// Authentication errors.

	// ErrAuthFailed indicates the login exchange was rejected.
	// No record can be delivered without a token, so this is fatal to the run.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrAuthExpired indicates the access token was rejected mid-run and a
	// refreshed token was rejected again.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrRetryExhausted indicates a retryable failure outlived the backoff ceiling.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)

// ValidationError reports a record that cannot be delivered: a missing
// mandatory field, a failed type coercion, or a broken business rule.
// It is fatal to one record only; processing continues.
type ValidationError struct {
	// Stream is the stream the record arrived on.
	Stream string

	// Field is the offending field, when the failure is field-specific.
	Field string

	// Reason describes what went wrong.
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: field %q: %s", e.Stream, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Stream, e.Reason)
}

// APIError represents a non-2xx response from the remote API.
type APIError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Body is the response body, truncated for logging.
	Body string

	// URL is the request URL.
	URL string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("optiply: API error %d: %s (URL: %s)", e.StatusCode, e.Body, e.URL)
}

// IsValidation checks whether the error is a per-record validation failure.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// IsNotFound checks whether the error is a 404 from the remote API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404
	}
	return false
}

// IsAuthFailure checks whether the error means the run cannot continue
// because no valid token can be obtained.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrAuthExpired)
}
