// Package services implements the core pipeline: the field mapper, the
// outcome ledger and the per-stream sink router. Services depend on ports
// and domain types only; adapters are injected at construction.
package services
