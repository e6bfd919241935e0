// Package jsonaccessor implements recordquery.RecordAccessor over
// JSON-object records ({"field": value, ...}); the record type comes from
// Deserialize's recordType argument, not from the payload. It is the
// reference accessor this module's own tests are written against, the way
// the teacher's internal/transformer.go turns a JSON payload into typed
// attribute values behind a schema registry.
package jsonaccessor

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/brindledata/recordquery"
)

// jsonRecord is the concrete recordquery.Record this accessor produces:
// the record-type tag alongside the decoded attribute map.
type jsonRecord struct {
	recordType string
	data       map[string]any
}

// SchemaSet optionally validates a record type's data against a JSON
// schema before Deserialize hands it back, mirroring the teacher's
// validateAgainstSchema step in transformer.go. Nil entries skip
// validation for that record type.
type SchemaSet map[string]*jsonschema.Resolved

// Accessor is the reference RecordAccessor. Schemas is optional; a nil
// or zero-value Accessor validates nothing.
type Accessor struct {
	Schemas SchemaSet
}

// New returns an Accessor with no schema validation.
func New() *Accessor {
	return &Accessor{}
}

// NewWithSchemas returns an Accessor that validates decoded records
// against the given per-record-type JSON schemas.
func NewWithSchemas(schemas SchemaSet) *Accessor {
	return &Accessor{Schemas: schemas}
}

func (a *Accessor) Deserialize(recordType string, raw []byte) (recordquery.Record, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, recordquery.NewSchemaMismatchError(fmt.Sprintf("jsonaccessor: unmarshal %s record", recordType), err)
	}

	if resolved, ok := a.Schemas[recordType]; ok && resolved != nil {
		if err := resolved.Validate(any(data)); err != nil {
			return nil, recordquery.NewSchemaMismatchError(fmt.Sprintf("jsonaccessor: %s record failed schema validation", recordType), err)
		}
	}

	return &jsonRecord{recordType: recordType, data: data}, nil
}

func (a *Accessor) RecordTypeOf(r recordquery.Record) string {
	rec, ok := r.(*jsonRecord)
	if !ok {
		return ""
	}
	return rec.recordType
}

// ExtractField returns the zero or more scalar values held by field. An
// array value fans out to one TupleElement per element (spec.md §3's
// multi-valued field rule); an absent or null field yields none, a JSON
// object is rejected, and any other JSON value yields exactly one.
func (a *Accessor) ExtractField(r recordquery.Record, field string) ([]recordquery.TupleElement, error) {
	rec, ok := r.(*jsonRecord)
	if !ok {
		return nil, recordquery.NewSchemaMismatchError("jsonaccessor: ExtractField on foreign record type", nil)
	}

	v, present := rec.data[field]
	if !present || v == nil {
		return nil, nil
	}

	if arr, ok := v.([]any); ok {
		out := make([]recordquery.TupleElement, 0, len(arr))
		for _, item := range arr {
			el, err := toTupleElement(item)
			if err != nil {
				return nil, recordquery.NewTupleDecodeError(fmt.Sprintf("jsonaccessor: field %q element", field), err)
			}
			out = append(out, el)
		}
		return out, nil
	}

	el, err := toTupleElement(v)
	if err != nil {
		return nil, recordquery.NewTupleDecodeError(fmt.Sprintf("jsonaccessor: field %q", field), err)
	}
	return []recordquery.TupleElement{el}, nil
}

// ExtractPrimaryKey evaluates pk and rejects any fan-out, since a primary
// key must resolve to exactly one tuple (spec.md §3).
func (a *Accessor) ExtractPrimaryKey(r recordquery.Record, pk recordquery.KeyExpression) (recordquery.Tuple, error) {
	tuples, err := pk.Evaluate(r, a)
	if err != nil {
		return nil, err
	}
	if len(tuples) != 1 {
		return nil, recordquery.NewSchemaMismatchError(
			fmt.Sprintf("jsonaccessor: primary key expression produced %d tuples, want 1", len(tuples)), nil)
	}
	return tuples[0], nil
}

// ReconstructFromIndexTuple always reports false: this reference accessor
// never attempts to rebuild a record purely from an index's stored tuple,
// so CoveringIndexScan candidates always fall back to a point-read
// (spec.md §9's covering-reconstruction Open Question, decided "false" as
// the conservative default — see DESIGN.md).
func (a *Accessor) ReconstructFromIndexTuple(recordquery.Index, recordquery.Tuple) (recordquery.Record, bool) {
	return nil, false
}

func toTupleElement(v any) (recordquery.TupleElement, error) {
	switch val := v.(type) {
	case nil:
		return recordquery.Null, nil
	case bool:
		return recordquery.Bool(val), nil
	case float64:
		if val == float64(int64(val)) {
			return recordquery.Int64(int64(val)), nil
		}
		return recordquery.Double(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return recordquery.Int64(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return recordquery.TupleElement{}, fmt.Errorf("decode json.Number %q: %w", val, err)
		}
		return recordquery.Double(f), nil
	case string:
		return recordquery.Str(val), nil
	default:
		return recordquery.TupleElement{}, fmt.Errorf("unsupported JSON value type %T", v)
	}
}
