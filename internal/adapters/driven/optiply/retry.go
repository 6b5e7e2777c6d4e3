package optiply

import "time"

// Classification buckets an HTTP outcome for retry handling.
type Classification int

const (
	// ClassOK is any 2xx response.
	ClassOK Classification = iota

	// ClassAuthExpired is a 401: refresh the token and resend once without
	// consuming a retry attempt.
	ClassAuthExpired

	// ClassNotFound is a 404: fatal for the record, logged as a warning,
	// the run continues.
	ClassNotFound

	// ClassFatal is any other 4xx: fatal for the record.
	ClassFatal

	// ClassRetryable is a 5xx or a network-level failure: backoff and
	// resend up to the ceiling.
	ClassRetryable
)

// RetryPolicy classifies HTTP outcomes and computes backoff delays.
// It is a pure function of (status, attempt); the dispatcher owns the loop.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries for a retryable failure.
	MaxAttempts int

	// BaseDelay is the first backoff interval; each attempt doubles it.
	BaseDelay time.Duration
}

// DefaultRetryPolicy mirrors the historical exponential backoff:
// five tries with a doubling delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
	}
}

// Classify buckets an HTTP status code.
func Classify(status int) Classification {
	switch {
	case status >= 200 && status < 300:
		return ClassOK
	case status == 401:
		return ClassAuthExpired
	case status == 404:
		return ClassNotFound
	case status >= 400 && status < 500:
		return ClassFatal
	default:
		return ClassRetryable
	}
}

// NextDelay returns the backoff before resending attempt (zero-based):
// BaseDelay << attempt.
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return p.BaseDelay << uint(attempt)
}

// Exhausted reports whether attempt (zero-based) was the last allowed try.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return attempt+1 >= p.MaxAttempts
}
