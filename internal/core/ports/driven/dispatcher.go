package driven

import (
	"context"

	"github.com/custodia-labs/optiply-target/internal/core/domain"
)

// SendResult reports a successful delivery.
type SendResult struct {
	// ExternalID is the remote-assigned identifier. Set for creates; may be
	// empty for updates and deletes.
	ExternalID string

	// StatusCode is the HTTP status the API answered with.
	StatusCode int
}

// Dispatcher delivers one transformed payload to the remote API.
// Implementations own authentication, retry and backoff; callers receive
// either a result or a terminal error for that record.
type Dispatcher interface {
	// Send delivers payload to the stream's endpoint using the verb implied
	// by op. localID identifies the remote entity for updates and deletes.
	Send(ctx context.Context, def *domain.StreamDefinition, op domain.OperationKind, localID string, payload map[string]any) (*SendResult, error)
}
