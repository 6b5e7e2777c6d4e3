package domain

import "fmt"

// OperationKind identifies the remote operation a record maps to.
type OperationKind int

const (
	// OperationCreate posts a new entity to the stream endpoint.
	OperationCreate OperationKind = iota

	// OperationUpdate patches an existing entity identified by the record's id.
	OperationUpdate

	// OperationDelete removes an existing entity identified by the record's id.
	OperationDelete
)

// String returns the operation name for logging.
func (k OperationKind) String() string {
	switch k {
	case OperationCreate:
		return "create"
	case OperationUpdate:
		return "update"
	case OperationDelete:
		return "delete"
	default:
		return fmt.Sprintf("operation(%d)", int(k))
	}
}

// deletedAtField marks soft-deleted records emitted by the extraction layer.
const deletedAtField = "_sdc_deleted_at"

// operationField optionally forces the operation kind on a record.
const operationField = "_operation"

// Record is one unit of incoming data, tagged with the stream it belongs to.
// Records are consumed exactly once; only their outcome survives, in the ledger.
type Record struct {
	// Stream is the name of the stream this record was emitted on.
	Stream string

	// Data maps incoming field names to raw values as decoded from the wire.
	// Values may be strings, numbers, booleans, nested structures or nil.
	Data map[string]any
}

// LocalID returns the record's own identifier, if it carries one.
// A present id marks the record as referring to a known remote entity.
func (r *Record) LocalID() string {
	id, ok := r.Data["id"]
	if !ok || id == nil {
		return ""
	}
	switch v := id.(type) {
	case string:
		return v
	case float64:
		// JSON numbers decode as float64; ids are integral.
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Operation derives the operation kind from the record's prior-state markers.
// A deletion marker wins over everything; a present id means update; the
// default is create.
func (r *Record) Operation() OperationKind {
	if op, ok := r.Data[operationField].(string); ok && op == "delete" {
		return OperationDelete
	}
	if del, ok := r.Data[deletedAtField]; ok && del != nil {
		if s, isStr := del.(string); !isStr || s != "" {
			return OperationDelete
		}
	}
	if r.LocalID() != "" {
		return OperationUpdate
	}
	return OperationCreate
}
