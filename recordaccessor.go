package recordquery

// RecordAccessor is the external collaborator consumed by plan execution
// for deserialization and field extraction (spec.md §1: "record
// serialization and schema declarations... assumed to provide field
// extraction and primary-key extraction"). Implementations are supplied
// by the caller; recordaccess/jsonaccessor is a reference implementation
// used by this module's own tests.
type RecordAccessor interface {
	// Deserialize turns raw record bytes into a Record of the named type.
	Deserialize(recordType string, raw []byte) (Record, error)

	// ExtractField returns the zero or more typed scalar values held by
	// the named field on r. A field absent from r yields an empty slice,
	// not an error.
	ExtractField(r Record, field string) ([]TupleElement, error)

	// ExtractPrimaryKey evaluates pk against r. Since primary keys must
	// be single-valued, an expression that fans out to more than one
	// tuple is a SchemaMismatch.
	ExtractPrimaryKey(r Record, pk KeyExpression) (Tuple, error)

	// RecordTypeOf returns the record-type tag carried by r, used by
	// FullScan to drop records of the wrong type found under a shared
	// range (spec.md §4.F).
	RecordTypeOf(r Record) string

	// ReconstructFromIndexTuple attempts to build a Record purely from an
	// index's stored tuple, without a point-read. The boolean return is
	// the covering-reconstruction capability flag from spec.md §9: false
	// means "not supported by this accessor", and callers must fall back
	// to a point-read by primary key.
	ReconstructFromIndexTuple(index Index, indexTuple Tuple) (Record, bool)
}
