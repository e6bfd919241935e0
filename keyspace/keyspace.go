// Package keyspace builds the two top-level subspaces the record layer
// partitions its keyspace into — records under "R", index entries under
// "I" — and the key ranges cursors and the planner scan. Small glue
// package sitting between tuplecodec (generic ordered tuple packing)
// and the root package's domain types (RecordType, Index), which can't
// depend on tuplecodec directly without an import cycle.
package keyspace

import (
	"github.com/brindledata/recordquery"
	"github.com/brindledata/recordquery/tuplecodec"
)

var root = tuplecodec.NewSubspace(nil)

// RecordsSubspace returns the subspace holding all records of recordType.
func RecordsSubspace(recordType string) tuplecodec.Subspace {
	return root.Sub("R").Sub(recordType)
}

// RecordKey packs the full key for one record: R/<type>/<pk>.
func RecordKey(recordType string, pk recordquery.Tuple) []byte {
	return RecordsSubspace(recordType).Pack(pk)
}

// IndexSubspace returns the subspace holding all entries of the named index.
func IndexSubspace(indexName string) tuplecodec.Subspace {
	return root.Sub("I").Sub(indexName)
}

// IndexRange computes the begin/end byte keys for a scan over indexName
// bounded by beginValues/endValues (either may be nil/empty for an
// open-ended bound on that side). When beginValues equals endValues
// (an equality scan) the end key gets 0xFF appended so every
// primary-key suffix sharing that prefix is included.
func IndexRange(indexName string, beginValues, endValues recordquery.Tuple) (begin, end []byte) {
	sub := IndexSubspace(indexName)
	begin = sub.Pack(beginValues)

	if len(endValues) == 0 {
		_, subEnd := sub.Range()
		return begin, subEnd
	}

	packedEnd := sub.Pack(endValues)
	if beginValues.Equal(endValues) {
		return begin, tuplecodec.EqualityEnd(packedEnd)
	}
	return begin, packedEnd
}
