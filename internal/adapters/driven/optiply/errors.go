package optiply

import (
	"github.com/custodia-labs/optiply-target/internal/core/domain"
)

// maxBodyPreview bounds how much of a response body lands in errors and logs.
const maxBodyPreview = 512

// bodyPreview truncates a response body for error reporting.
func bodyPreview(body []byte) string {
	if len(body) > maxBodyPreview {
		return string(body[:maxBodyPreview]) + "..."
	}
	return string(body)
}

// newAPIError builds the typed error for a non-2xx response.
func newAPIError(status int, body []byte, url string) *domain.APIError {
	return &domain.APIError{
		StatusCode: status,
		Body:       bodyPreview(body),
		URL:        url,
	}
}
