package driven

import (
	"context"

	"github.com/custodia-labs/optiply-target/internal/core/domain"
)

// LedgerStore persists per-run outcome entries for audit and resume.
type LedgerStore interface {
	// AppendEntry records one bookmark entry for a run and stream.
	AppendEntry(ctx context.Context, runID, stream string, entry domain.BookmarkEntry) error

	// SaveSummary stores or replaces the per-stream counters for a run.
	SaveSummary(ctx context.Context, runID string, summary map[string]domain.StreamSummary) error

	// LoadRun reconstructs the snapshot of a previous run.
	LoadRun(ctx context.Context, runID string) (*domain.StateSnapshot, error)

	// Close releases resources.
	Close() error
}
