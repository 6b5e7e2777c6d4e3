package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/custodia-labs/optiply-target/internal/core/domain"
	"github.com/custodia-labs/optiply-target/internal/core/ports/driven"
	"github.com/custodia-labs/optiply-target/internal/logger"
)

// Outcome classifies how a record's delivery concluded, selecting the
// summary counter it contributes to.
type Outcome int

const (
	// OutcomeCreated is a successful create of a new entity.
	OutcomeCreated Outcome = iota

	// OutcomeUpdated is a successful update or delete of a known entity.
	OutcomeUpdated

	// OutcomeExisting is a no-op duplicate: the content hash matched a prior
	// success and no remote call was made.
	OutcomeExisting

	// OutcomeFailed is any terminal per-record failure.
	OutcomeFailed
)

// Ledger tracks per-record outcomes and per-stream counters. State is
// append-only during a run. Counters are partitioned by stream, so workers
// of different streams never contend on one lock.
type Ledger struct {
	runID string
	store driven.LedgerStore // optional; nil disables persistence

	mu      sync.RWMutex
	streams map[string]*streamLedger
}

// streamLedger holds one stream's entries and counters.
type streamLedger struct {
	mu      sync.Mutex
	entries []domain.BookmarkEntry
	summary domain.StreamSummary
	seen    map[string]bool // content hashes of successful deliveries
}

// NewLedger creates a ledger for one run. store may be nil.
func NewLedger(runID string, store driven.LedgerStore) *Ledger {
	return &Ledger{
		runID:   runID,
		store:   store,
		streams: make(map[string]*streamLedger),
	}
}

// HashRecord computes the stable content hash of a record's fields:
// SHA-256 over the canonical JSON encoding (object keys sorted).
func HashRecord(data map[string]any) string {
	// encoding/json writes map keys in sorted order, which makes the
	// encoding canonical for our purposes.
	encoded, err := json.Marshal(data)
	if err != nil {
		encoded = []byte{}
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

// SeenSuccess reports whether a record with this content hash already
// succeeded during this run (or was seeded from a prior run's state).
func (l *Ledger) SeenSuccess(stream, hash string) bool {
	sl := l.forStream(stream)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.seen[hash]
}

// Seed marks the successful entries of a prior run's snapshot as already
// delivered, so a rerun over the same batch skips them as existing.
func (l *Ledger) Seed(snapshot *domain.StateSnapshot) {
	if snapshot == nil {
		return
	}
	for stream, entries := range snapshot.Bookmarks {
		sl := l.forStream(stream)
		sl.mu.Lock()
		for _, e := range entries {
			if e.Success {
				sl.seen[e.Hash] = true
			}
		}
		sl.mu.Unlock()
	}
}

// Record appends a bookmark entry and bumps the matching counter. Every
// record that entered the router lands here exactly once.
func (l *Ledger) Record(ctx context.Context, stream string, entry domain.BookmarkEntry, outcome Outcome) {
	sl := l.forStream(stream)
	sl.mu.Lock()
	sl.entries = append(sl.entries, entry)
	switch outcome {
	case OutcomeCreated:
		sl.summary.Success++
	case OutcomeUpdated:
		sl.summary.Updated++
	case OutcomeExisting:
		sl.summary.Existing++
	default:
		sl.summary.Fail++
	}
	if entry.Success {
		sl.seen[entry.Hash] = true
	}
	sl.mu.Unlock()

	if l.store != nil {
		if err := l.store.AppendEntry(ctx, l.runID, stream, entry); err != nil {
			logger.Warn("ledger store append failed for %s: %v", stream, err)
		}
	}
}

// Snapshot returns a copy of all bookmarks and counters so far.
func (l *Ledger) Snapshot() domain.StateSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := domain.StateSnapshot{
		Bookmarks: make(map[string][]domain.BookmarkEntry, len(l.streams)),
		Summary:   make(map[string]domain.StreamSummary, len(l.streams)),
	}
	for name, sl := range l.streams {
		sl.mu.Lock()
		entries := make([]domain.BookmarkEntry, len(sl.entries))
		copy(entries, sl.entries)
		snap.Bookmarks[name] = entries
		snap.Summary[name] = sl.summary
		sl.mu.Unlock()
	}
	return snap
}

// Flush returns the final snapshot and persists the summary to the store.
// Called at stream completion and at shutdown.
func (l *Ledger) Flush(ctx context.Context) domain.StateSnapshot {
	snap := l.Snapshot()
	if l.store != nil {
		if err := l.store.SaveSummary(ctx, l.runID, snap.Summary); err != nil {
			logger.Warn("ledger store summary save failed: %v", err)
		}
	}
	return snap
}

// RunID returns the identifier the ledger persists entries under.
func (l *Ledger) RunID() string {
	return l.runID
}

func (l *Ledger) forStream(stream string) *streamLedger {
	l.mu.RLock()
	sl, ok := l.streams[stream]
	l.mu.RUnlock()
	if ok {
		return sl
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if sl, ok = l.streams[stream]; ok {
		return sl
	}
	sl = &streamLedger{seen: make(map[string]bool)}
	l.streams[stream] = sl
	return sl
}
