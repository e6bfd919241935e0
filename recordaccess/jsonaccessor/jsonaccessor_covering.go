package jsonaccessor

import (
	"github.com/brindledata/recordquery"
)

// CoveringAccessor is a second reference accessor, exercised by this
// package's tests, whose ReconstructFromIndexTuple
// actually builds a record from the index's stored tuple instead of
// always falling back to a point-read. It assumes every covering index it
// is asked to reconstruct from has a Root expression that is a flat
// Concatenate of Field leaves (no nested Concatenate/Literal), which is
// the only shape spec.md §4.H's covering-index candidates produce.
type CoveringAccessor struct {
	Accessor
	// RecordType is stamped on every record this accessor reconstructs,
	// since Index carries no record-type tag of its own.
	RecordType string
}

func NewCovering(recordType string) *CoveringAccessor {
	return &CoveringAccessor{RecordType: recordType}
}

func (a *CoveringAccessor) ReconstructFromIndexTuple(index recordquery.Index, indexTuple recordquery.Tuple) (recordquery.Record, bool) {
	fields := flatFieldNames(index.Root)
	if len(fields) == 0 || len(fields) != len(indexTuple) {
		return nil, false
	}

	data := make(map[string]any, len(fields))
	for i, field := range fields {
		data[field] = fromTupleElement(indexTuple[i])
	}
	return &jsonRecord{recordType: a.RecordType, data: data}, true
}

// flatFieldNames returns the leading Field-leaf names of a Concatenate
// key expression in order, or a single name for a bare Field. Nil for any
// other shape (Literal leaves contribute no field, nested Concatenate
// isn't produced by this module's index roots).
func flatFieldNames(k recordquery.KeyExpression) []string {
	switch k.Kind {
	case recordquery.KeyExprField:
		return []string{k.Field}
	case recordquery.KeyExprConcatenate:
		names := make([]string, 0, len(k.Children))
		for _, child := range k.Children {
			if child.Kind != recordquery.KeyExprField {
				return nil
			}
			names = append(names, child.Field)
		}
		return names
	default:
		return nil
	}
}

func fromTupleElement(el recordquery.TupleElement) any {
	switch el.Kind {
	case recordquery.KindNull:
		return nil
	case recordquery.KindBool:
		return el.Bool
	case recordquery.KindInt64:
		return el.Int64
	case recordquery.KindDouble:
		return el.Double
	case recordquery.KindString:
		return el.Str
	case recordquery.KindBytes:
		return el.Bytes
	default:
		return nil
	}
}
