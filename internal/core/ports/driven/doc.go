// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
//   - RecordSource: Supplies incoming records from the extraction layer
//   - Dispatcher: Delivers one payload to the remote API
//   - TokenProvider: Provides access tokens for authenticated API calls
//   - StateWriter: Emits bookmark state back toward the extraction layer
//   - LedgerStore: Persists per-run outcome entries for audit and resume
//
// Import rules: this package may import domain only, never adapters.
package driven
