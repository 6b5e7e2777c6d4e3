package driving

import (
	"context"

	"github.com/custodia-labs/optiply-target/internal/core/domain"
)

// RunStatus reports progress of an in-flight run.
type RunStatus struct {
	// RecordsProcessed is the number of records that completed bookkeeping.
	RecordsProcessed int

	// ErrorCount is the number of records that failed.
	ErrorCount int

	// Running reports whether the run is still consuming records.
	Running bool
}

// TargetRunner drives the delivery pipeline over an input batch.
type TargetRunner interface {
	// Run consumes records until end of input, delivering each one and
	// emitting state as progress is made. It returns the final snapshot.
	// Per-record failures do not fail the run; only an unrecoverable
	// authentication failure does.
	Run(ctx context.Context) (*domain.StateSnapshot, error)

	// Status returns progress of the current run.
	Status() RunStatus
}
