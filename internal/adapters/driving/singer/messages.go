// Package singer implements the line-delimited JSON envelope used to talk
// to the upstream extraction process: RECORD and SCHEMA messages in, STATE
// messages out. The envelope is a fixed format this adapter honors, not
// designs.
package singer

import "encoding/json"

// Message types in the envelope.
const (
	TypeRecord = "RECORD"
	TypeSchema = "SCHEMA"
	TypeState  = "STATE"
)

// Message is one line of the protocol.
type Message struct {
	// Type discriminates the message kind (RECORD, SCHEMA, STATE).
	Type string `json:"type"`

	// Stream names the stream for RECORD and SCHEMA messages.
	Stream string `json:"stream,omitempty"`

	// Record carries the payload of a RECORD message.
	Record map[string]any `json:"record,omitempty"`

	// Schema carries the JSON schema of a SCHEMA message. Schemas are
	// accepted for stream registration but not enforced here.
	Schema json.RawMessage `json:"schema,omitempty"`

	// KeyProperties lists the primary key fields declared by a SCHEMA.
	KeyProperties []string `json:"key_properties,omitempty"`

	// Value carries the state payload of a STATE message.
	Value json.RawMessage `json:"value,omitempty"`
}
