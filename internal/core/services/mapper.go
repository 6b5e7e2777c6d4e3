package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/optiply-target/internal/core/domain"
)

// Fields the extraction layer attaches that never travel to the API.
var reservedFields = map[string]bool{
	"id":                     true,
	"_sdc_deleted_at":        true,
	"_operation":             true,
	"line_items":             true,
	"remoteDataSyncedToDate": true,
}

// supplierTypes enumerates the accepted supplier type values.
var supplierTypes = map[string]bool{
	"vendor":   true,
	"producer": true,
}

// glnLength is the required length of a global location number.
const glnLength = 13

// FieldMapper applies a stream's declarative mapping table to a record,
// producing the outbound payload or a ValidationError. A record either maps
// completely or not at all; partial payloads are never produced.
type FieldMapper struct{}

// NewFieldMapper creates a field mapper.
func NewFieldMapper() *FieldMapper {
	return &FieldMapper{}
}

// Transform validates and converts rec according to def. Mandatory fields
// are enforced for creates; updates patch only the fields present.
func (m *FieldMapper) Transform(def *domain.StreamDefinition, rec *domain.Record) (map[string]any, error) {
	payload := make(map[string]any)

	if len(def.Fields) == 0 {
		// Uncatalogued stream: pass fields through untouched.
		for k, v := range rec.Data {
			if reservedFields[k] || v == nil {
				continue
			}
			payload[k] = v
		}
	} else {
		for _, mapping := range def.Fields {
			raw, ok := rec.Data[mapping.From]
			if !ok || raw == nil {
				continue
			}
			value, err := coerce(raw, mapping.Type)
			if err != nil {
				return nil, &domain.ValidationError{
					Stream: def.Name,
					Field:  mapping.From,
					Reason: err.Error(),
				}
			}
			payload[mapping.To] = value
		}
	}

	// Line items expand before the mandatory check: order streams derive
	// totalValue from their items.
	if def.LineItemsType != "" {
		if err := expandLineItems(def, rec, payload); err != nil {
			return nil, err
		}
	}

	if rec.Operation() == domain.OperationCreate {
		if err := checkMandatory(def, payload); err != nil {
			return nil, err
		}
	}

	if def.Rules != "" {
		if err := applyRules(def, payload); err != nil {
			return nil, err
		}
	}

	return payload, nil
}

// checkMandatory verifies every mandatory field landed in the payload with a
// non-blank value.
func checkMandatory(def *domain.StreamDefinition, payload map[string]any) error {
	for _, name := range def.Mandatory {
		v, ok := payload[name]
		if !ok {
			return &domain.ValidationError{Stream: def.Name, Field: name, Reason: "missing mandatory field"}
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return &domain.ValidationError{Stream: def.Name, Field: name, Reason: "missing mandatory field"}
		}
	}
	return nil
}

// applyRules evaluates stream-specific business rules after type coercion.
func applyRules(def *domain.StreamDefinition, payload map[string]any) error {
	switch def.Rules {
	case "supplier":
		if t, ok := payload["type"].(string); ok && !supplierTypes[t] {
			return &domain.ValidationError{
				Stream: def.Name,
				Field:  "type",
				Reason: fmt.Sprintf("must be one of vendor, producer; got %q", t),
			}
		}
		if gln, ok := payload["globalLocationNumber"].(string); ok && len(gln) != glnLength {
			return &domain.ValidationError{
				Stream: def.Name,
				Field:  "globalLocationNumber",
				Reason: fmt.Sprintf("must be %d characters, got %d", glnLength, len(gln)),
			}
		}
	}
	return nil
}

// expandLineItems converts a JSON-encoded line_items field into nested order
// lines of the stream's line type, recomputing totalValue from the subtotals.
// Subtotal and total values travel as strings, matching the API contract.
func expandLineItems(def *domain.StreamDefinition, rec *domain.Record, payload map[string]any) error {
	raw, ok := rec.Data["line_items"]
	if !ok || raw == nil {
		return nil
	}

	items, err := coerceArray(raw)
	if err != nil {
		return &domain.ValidationError{Stream: def.Name, Field: "line_items", Reason: err.Error()}
	}

	var total float64
	lines := make([]map[string]any, 0, len(items))
	for i, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			return &domain.ValidationError{
				Stream: def.Name,
				Field:  "line_items",
				Reason: fmt.Sprintf("item %d is not an object", i),
			}
		}
		subtotal, err := coerceFloat(fields["subtotalValue"])
		if err != nil {
			return &domain.ValidationError{
				Stream: def.Name,
				Field:  "line_items",
				Reason: fmt.Sprintf("item %d subtotalValue: %v", i, err),
			}
		}
		total += subtotal

		attrs := map[string]any{
			"quantity":      fields["quantity"],
			"subtotalValue": strconv.FormatFloat(subtotal, 'f', -1, 64),
			"productId":     fields["productId"],
		}
		if v, ok := fields["expectedDeliveryDate"]; ok && v != nil {
			attrs["expectedDeliveryDate"] = v
		}
		lines = append(lines, map[string]any{
			"type":       def.LineItemsType,
			"attributes": attrs,
		})
	}

	payload["totalValue"] = strconv.FormatFloat(total, 'f', -1, 64)
	payload["orderLines"] = lines
	return nil
}

// coerce converts a raw value to the declared field type.
func coerce(raw any, t domain.FieldType) (any, error) {
	switch t {
	case domain.FieldBool:
		return coerceBool(raw)
	case domain.FieldInt:
		return coerceInt(raw)
	case domain.FieldFloat:
		return coerceFloat(raw)
	case domain.FieldDate:
		return coerceDate(raw)
	case domain.FieldArray:
		return coerceArray(raw)
	case domain.FieldString:
		return coerceString(raw)
	default:
		return raw, nil
	}
}

func coerceBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(v) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return false, fmt.Errorf("cannot convert %q to boolean", v)
	default:
		return false, fmt.Errorf("cannot convert %T to boolean", raw)
	}
}

func coerceInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to integer", v.String())
		}
		return int64(f), nil
	case string:
		// Decimal forms like "10.0" are accepted and truncated.
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to integer", v)
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to integer", raw)
	}
}

func coerceFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to float", v.String())
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to float", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float", raw)
	}
}

// dateLayouts are tried in order when parsing datetime-like strings.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func coerceDate(raw any) (string, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC().Format(time.RFC3339), nil
	case string:
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts.UTC().Format(time.RFC3339), nil
			}
		}
		return "", fmt.Errorf("cannot parse %q as datetime", v)
	default:
		return "", fmt.Errorf("cannot convert %T to datetime", raw)
	}
}

func coerceArray(raw any) ([]any, error) {
	switch v := raw.(type) {
	case []any:
		return v, nil
	case string:
		var parsed []any
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			return nil, fmt.Errorf("cannot parse %q as JSON array", v)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to array", raw)
	}
}

func coerceString(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case json.Number:
		return v.String(), nil
	default:
		return "", fmt.Errorf("cannot convert %T to string", raw)
	}
}
