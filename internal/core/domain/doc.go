// Package domain contains the core types of the delivery pipeline:
// records, stream definitions, bookmarks and the error taxonomy.
// It has no dependencies on adapters or external services.
package domain
