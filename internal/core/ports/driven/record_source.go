package driven

import (
	"context"

	"github.com/custodia-labs/optiply-target/internal/core/domain"
)

// RecordSource supplies records produced by the upstream extraction process.
// The source owns decoding of the wire envelope; core only sees typed records.
type RecordSource interface {
	// Next returns the next record, blocking until one is available.
	// It returns io.EOF when the upstream signals end of input, and the
	// context error if ctx is cancelled while waiting.
	Next(ctx context.Context) (*domain.Record, error)
}
