package driven

import (
	"context"

	"github.com/custodia-labs/optiply-target/internal/core/domain"
)

// StateWriter emits bookmark state back toward the upstream process, so that
// partial progress is externally observable even if the run is interrupted.
type StateWriter interface {
	// WriteState emits an incremental state message with the snapshot so far.
	WriteState(ctx context.Context, snapshot domain.StateSnapshot) error

	// WriteFinal persists the end-of-run artifact (in addition to the last
	// state message). Called once, at run completion.
	WriteFinal(ctx context.Context, snapshot domain.StateSnapshot) error
}
