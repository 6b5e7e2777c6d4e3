package singer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/custodia-labs/optiply-target/internal/core/domain"
	"github.com/custodia-labs/optiply-target/internal/core/ports/driven"
	"github.com/custodia-labs/optiply-target/internal/logger"
)

// Ensure StateWriter implements the interface.
var _ driven.StateWriter = (*StateWriter)(nil)

// StateWriter emits STATE messages on out (normally stdout) and writes the
// end-of-run artifact to StatePath. Concurrent stream workers emit through
// one writer, so emission is serialized.
type StateWriter struct {
	mu  sync.Mutex
	out io.Writer

	// StatePath is where the final artifact lands. Empty disables it.
	StatePath string

	// JobDetailsPath, when the file exists, gets its metrics block patched
	// with the export summary at run end.
	JobDetailsPath string
}

// NewStateWriter creates a state writer targeting out.
func NewStateWriter(out io.Writer, statePath string) *StateWriter {
	return &StateWriter{out: out, StatePath: statePath}
}

// WriteState emits one STATE message carrying the snapshot.
func (w *StateWriter) WriteState(_ context.Context, snapshot domain.StateSnapshot) error {
	value, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	msg := Message{Type: TypeState, Value: value}
	line, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding state message: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.out.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("writing state message: %w", err)
	}
	return nil
}

// WriteFinal persists the artifact file and patches job details if present.
func (w *StateWriter) WriteFinal(_ context.Context, snapshot domain.StateSnapshot) error {
	if w.StatePath != "" {
		data, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding final state: %w", err)
		}
		if err := os.WriteFile(w.StatePath, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", w.StatePath, err)
		}
		logger.Info("wrote final state to %s", w.StatePath)
	}

	if w.JobDetailsPath != "" {
		if err := w.patchJobDetails(snapshot); err != nil {
			// Job details are advisory; a failed patch never fails the run.
			logger.Warn("updating %s: %v", w.JobDetailsPath, err)
		}
	}
	return nil
}

// patchJobDetails rewrites the metrics block of an existing job-details
// file with this run's summary and bookmark details.
func (w *StateWriter) patchJobDetails(snapshot domain.StateSnapshot) error {
	data, err := os.ReadFile(w.JobDetailsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var details []map[string]any
	if err := json.Unmarshal(data, &details); err != nil {
		return fmt.Errorf("parsing job details: %w", err)
	}
	if len(details) == 0 {
		return nil
	}

	details[0]["metrics"] = map[string]any{
		"recordCount":   map[string]any{},
		"exportSummary": snapshot.Summary,
		"exportDetails": snapshot.Bookmarks,
	}

	updated, err := json.MarshalIndent(details, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding job details: %w", err)
	}
	return os.WriteFile(w.JobDetailsPath, updated, 0o644)
}

// ReadSnapshot loads a previously written artifact, used to seed the ledger
// when resuming over the same batch.
func ReadSnapshot(path string) (*domain.StateSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap domain.StateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing state artifact %s: %w", path, err)
	}
	return &snap, nil
}
