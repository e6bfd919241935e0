// Package recordquery implements a query engine core for a typed record
// layer sitting above an ordered key-value store. Predicates, DNF
// normalization, planning, execution, statistics, and aggregation live in
// sub-packages; this package holds the shared domain vocabulary (records,
// tuples, key expressions, indexes) and the engine facade.
package recordquery

// ElementKind identifies the variant held by a TupleElement. The ordering
// of these constants mirrors the total order mandated by the tuple codec:
// null < bool < int64 < double < string < bytes.
type ElementKind int

const (
	KindNull ElementKind = iota
	KindBool
	KindInt64
	KindDouble
	KindString
	KindBytes
)

// TupleElement is one position of a Tuple: a totally ordered sum of
// null, bool, int64, double, string, and bytes.
type TupleElement struct {
	Kind   ElementKind
	Bool   bool
	Int64  int64
	Double float64
	Str    string
	Bytes  []byte
}

// Null is the canonical null element.
var Null = TupleElement{Kind: KindNull}

func Bool(v bool) TupleElement     { return TupleElement{Kind: KindBool, Bool: v} }
func Int64(v int64) TupleElement   { return TupleElement{Kind: KindInt64, Int64: v} }
func Double(v float64) TupleElement { return TupleElement{Kind: KindDouble, Double: v} }
func Str(v string) TupleElement    { return TupleElement{Kind: KindString, Str: v} }
func Bytes(v []byte) TupleElement  { return TupleElement{Kind: KindBytes, Bytes: v} }

// Tuple is an ordered, heterogeneous sequence of TupleElements.
type Tuple []TupleElement

// Record is the opaque record payload the engine reads and writes; its
// concrete shape is owned by the caller's RecordAccessor.
type Record any

// FieldDescriptor names one field of a record type. The engine only needs
// the name; type checking of extracted values happens at match time.
type FieldDescriptor struct {
	Name string
}

// RecordType declares a record's name, primary key expression, field list,
// and the indexes maintained for it. Index maintenance itself is external
// (see the write path collaborator in SPEC_FULL.md); RecordType is the
// read-side description the planner consults.
type RecordType struct {
	Name          string
	PrimaryKey    KeyExpression
	Fields        []FieldDescriptor
	Indexes       []Index
}

// IndexByName returns the named index, or false if this record type has
// none by that name.
func (t RecordType) IndexByName(name string) (Index, bool) {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return Index{}, false
}
