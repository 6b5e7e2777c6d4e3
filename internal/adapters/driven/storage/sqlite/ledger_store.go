// Package sqlite provides the persistent run ledger: every bookmark entry
// and summary survives process restarts, enabling audit and resume.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/optiply-target/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/optiply-target/internal/core/domain"
	"github.com/custodia-labs/optiply-target/internal/core/ports/driven"
)

// Ensure LedgerStore implements the interface.
var _ driven.LedgerStore = (*LedgerStore)(nil)

// LedgerStore is a SQLite-backed implementation of driven.LedgerStore.
type LedgerStore struct {
	db   *sql.DB
	path string
}

// NewLedgerStore opens (creating if needed) the ledger database at dbPath.
func NewLedgerStore(dbPath string) (*LedgerStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	// WAL mode for concurrent stream workers appending entries.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}

	s := &LedgerStore{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *LedgerStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *LedgerStore) Path() string {
	return s.path
}

// AppendEntry records one bookmark entry for a run and stream.
func (s *LedgerStore) AppendEntry(ctx context.Context, runID, stream string, entry domain.BookmarkEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (run_id, stream, hash, success, local_id, external_id, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, stream, entry.Hash, boolInt(entry.Success), entry.ID, entry.ExternalID, entry.Error)
	if err != nil {
		return fmt.Errorf("appending ledger entry: %w", err)
	}
	return nil
}

// SaveSummary stores or replaces the per-stream counters for a run.
func (s *LedgerStore) SaveSummary(ctx context.Context, runID string, summary map[string]domain.StreamSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning summary transaction: %w", err)
	}
	defer tx.Rollback()

	for stream, sum := range summary {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_summaries (run_id, stream, success, fail, existing, updated)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, stream) DO UPDATE SET
				success = excluded.success,
				fail = excluded.fail,
				existing = excluded.existing,
				updated = excluded.updated
		`, runID, stream, sum.Success, sum.Fail, sum.Existing, sum.Updated)
		if err != nil {
			return fmt.Errorf("saving summary for %s: %w", stream, err)
		}
	}
	return tx.Commit()
}

// LoadRun reconstructs the snapshot of a previous run.
func (s *LedgerStore) LoadRun(ctx context.Context, runID string) (*domain.StateSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stream, hash, success, local_id, external_id, error
		FROM ledger_entries WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying ledger entries: %w", err)
	}
	defer rows.Close()

	snap := &domain.StateSnapshot{
		Bookmarks: make(map[string][]domain.BookmarkEntry),
		Summary:   make(map[string]domain.StreamSummary),
	}
	found := false
	for rows.Next() {
		var stream string
		var entry domain.BookmarkEntry
		var success int
		if err := rows.Scan(&stream, &entry.Hash, &success, &entry.ID, &entry.ExternalID, &entry.Error); err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}
		entry.Success = success != 0
		snap.Bookmarks[stream] = append(snap.Bookmarks[stream], entry)
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading ledger entries: %w", err)
	}
	if !found {
		return nil, domain.ErrUnknownRun
	}

	sums, err := s.db.QueryContext(ctx, `
		SELECT stream, success, fail, existing, updated
		FROM run_summaries WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying run summaries: %w", err)
	}
	defer sums.Close()

	for sums.Next() {
		var stream string
		var sum domain.StreamSummary
		if err := sums.Scan(&stream, &sum.Success, &sum.Fail, &sum.Existing, &sum.Updated); err != nil {
			return nil, fmt.Errorf("scanning run summary: %w", err)
		}
		snap.Summary[stream] = sum
	}
	if err := sums.Err(); err != nil {
		return nil, fmt.Errorf("reading run summaries: %w", err)
	}
	return snap, nil
}

// migrate runs all pending migrations.
func (s *LedgerStore) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}
		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
