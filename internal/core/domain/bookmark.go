package domain

// BookmarkEntry records the outcome of one processed record. Entries are
// append-only within a run; together with the summary they form the
// resumability artifact emitted as state.
type BookmarkEntry struct {
	// Hash is the stable content hash of the record's significant fields.
	Hash string `json:"hash"`

	// Success reports whether delivery succeeded.
	Success bool `json:"success"`

	// ID is the record's local identifier, when it carried one.
	ID string `json:"id,omitempty"`

	// ExternalID is the remote-assigned identifier, present on successful creates.
	ExternalID string `json:"externalId,omitempty"`

	// Error holds the failure reason for unsuccessful entries.
	Error string `json:"error,omitempty"`
}

// StreamSummary aggregates per-stream outcome counters. Counters are
// monotonically incremented as records complete.
type StreamSummary struct {
	// Success counts newly created entities.
	Success int `json:"success"`

	// Fail counts records that could not be delivered.
	Fail int `json:"fail"`

	// Existing counts records whose content hash matched a prior success
	// in the same run; these are not re-sent.
	Existing int `json:"existing"`

	// Updated counts successful updates and deletes of known entities.
	Updated int `json:"updated"`
}

// Total returns the number of records accounted for in the summary.
func (s StreamSummary) Total() int {
	return s.Success + s.Fail + s.Existing + s.Updated
}

// StateSnapshot is the full resumability artifact: every bookmark and the
// summary counters, keyed by stream name.
type StateSnapshot struct {
	// Bookmarks holds the per-stream bookmark lists.
	Bookmarks map[string][]BookmarkEntry `json:"bookmarks"`

	// Summary holds the per-stream counters.
	Summary map[string]StreamSummary `json:"summary"`
}
