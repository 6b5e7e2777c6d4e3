// Package memory provides in-memory store adapters, used in tests and when
// no persistence is configured.
package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/optiply-target/internal/core/domain"
	"github.com/custodia-labs/optiply-target/internal/core/ports/driven"
)

// Ensure LedgerStore implements the interface.
var _ driven.LedgerStore = (*LedgerStore)(nil)

// LedgerStore is an in-memory implementation of driven.LedgerStore.
type LedgerStore struct {
	mu        sync.RWMutex
	entries   map[string]map[string][]domain.BookmarkEntry
	summaries map[string]map[string]domain.StreamSummary
}

// NewLedgerStore creates an empty in-memory ledger store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		entries:   make(map[string]map[string][]domain.BookmarkEntry),
		summaries: make(map[string]map[string]domain.StreamSummary),
	}
}

// AppendEntry records one bookmark entry for a run and stream.
func (s *LedgerStore) AppendEntry(_ context.Context, runID, stream string, entry domain.BookmarkEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.entries[runID]
	if !ok {
		run = make(map[string][]domain.BookmarkEntry)
		s.entries[runID] = run
	}
	run[stream] = append(run[stream], entry)
	return nil
}

// SaveSummary stores or replaces the per-stream counters for a run.
func (s *LedgerStore) SaveSummary(_ context.Context, runID string, summary map[string]domain.StreamSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(map[string]domain.StreamSummary, len(summary))
	for k, v := range summary {
		copied[k] = v
	}
	s.summaries[runID] = copied
	return nil
}

// LoadRun reconstructs the snapshot of a previous run.
func (s *LedgerStore) LoadRun(_ context.Context, runID string) (*domain.StateSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.entries[runID]
	if !ok {
		return nil, domain.ErrUnknownRun
	}

	snap := &domain.StateSnapshot{
		Bookmarks: make(map[string][]domain.BookmarkEntry, len(run)),
		Summary:   make(map[string]domain.StreamSummary),
	}
	for stream, entries := range run {
		copied := make([]domain.BookmarkEntry, len(entries))
		copy(copied, entries)
		snap.Bookmarks[stream] = copied
	}
	for stream, sum := range s.summaries[runID] {
		snap.Summary[stream] = sum
	}
	return snap, nil
}

// Close releases resources. A no-op for the in-memory store.
func (s *LedgerStore) Close() error {
	return nil
}
