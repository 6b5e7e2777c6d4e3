package singer

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/custodia-labs/optiply-target/internal/core/domain"
	"github.com/custodia-labs/optiply-target/internal/core/ports/driven"
	"github.com/custodia-labs/optiply-target/internal/logger"
)

// Ensure Reader implements the interface.
var _ driven.RecordSource = (*Reader)(nil)

// Line buffer limits: records can be large, a single line is capped at 20MB.
const (
	initialBuffer = 64 * 1024
	maxLineSize   = 20 * 1024 * 1024
)

// Reader decodes the inbound envelope into records. Malformed lines and
// non-record messages are logged and skipped; the run continues.
type Reader struct {
	scanner *bufio.Scanner
	schemas map[string]bool
}

// NewReader wraps r (normally stdin).
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialBuffer), maxLineSize)
	return &Reader{
		scanner: scanner,
		schemas: make(map[string]bool),
	}
}

// Next returns the next record. io.EOF signals end of input.
func (r *Reader) Next(ctx context.Context) (*domain.Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			logger.Warn("skipping malformed input line: %v", err)
			continue
		}

		switch msg.Type {
		case TypeRecord:
			if msg.Stream == "" || msg.Record == nil {
				logger.Warn("skipping RECORD message without stream or payload")
				continue
			}
			return &domain.Record{Stream: msg.Stream, Data: msg.Record}, nil

		case TypeSchema:
			if msg.Stream != "" && !r.schemas[msg.Stream] {
				r.schemas[msg.Stream] = true
				logger.Debug("registered schema for stream %s", msg.Stream)
			}

		case TypeState:
			// Inbound STATE markers are positions of the extractor, not
			// ours; pass over them.
			logger.Debug("ignoring inbound STATE message")

		default:
			logger.Debug("ignoring message type %q", msg.Type)
		}
	}
}

// SeenSchema reports whether a SCHEMA message arrived for the stream.
func (r *Reader) SeenSchema(stream string) bool {
	return r.schemas[stream]
}
