package aggregate

import (
	"context"
	"fmt"

	"github.com/brindledata/recordquery"
	"github.com/brindledata/recordquery/engine/heap"
	"github.com/brindledata/recordquery/keyspace"
	"github.com/brindledata/recordquery/kvstore"
	"github.com/brindledata/recordquery/predicate"
	"github.com/brindledata/recordquery/tuplecodec"
)

// ResolveRankIndex finds the Rank index to scan for a top-N/bottom-N
// query: by name when indexName is non-empty, otherwise the single Rank
// index on rt whose rank field (the last component of its root
// expression) is sortField (spec.md §4.I's auto-detect rule).
func ResolveRankIndex(rt recordquery.RecordType, indexName, sortField string) (recordquery.Index, error) {
	if indexName != "" {
		idx, ok := rt.IndexByName(indexName)
		if !ok {
			return recordquery.Index{}, recordquery.NewIndexNotFoundError(indexName)
		}
		if idx.Kind != recordquery.IndexKindRank {
			return recordquery.Index{}, recordquery.NewInvalidArgumentError(recordquery.ErrCodeIndexNotFound,
				fmt.Sprintf("aggregate: index %q is not a Rank index", indexName))
		}
		return idx, nil
	}

	var found []recordquery.Index
	for _, idx := range rt.Indexes {
		if idx.Kind != recordquery.IndexKindRank {
			continue
		}
		if field, ok := rankField(idx); ok && field == sortField {
			found = append(found, idx)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return recordquery.Index{}, recordquery.NewInvalidArgumentError(recordquery.ErrCodeIndexNotFound,
			fmt.Sprintf("aggregate: no rank index found sorting by %q", sortField))
	default:
		return recordquery.Index{}, recordquery.NewInvalidArgumentError(recordquery.ErrCodeIndexNotFound,
			fmt.Sprintf("aggregate: multiple rank indexes sort by %q, name one explicitly", sortField))
	}
}

// rankField returns the name of idx's rank/sort field: the last component
// of a Concatenate root, or the bare field of a single-Field root.
func rankField(idx recordquery.Index) (string, bool) {
	switch idx.Root.Kind {
	case recordquery.KeyExprField:
		return idx.Root.Field, true
	case recordquery.KeyExprConcatenate:
		if len(idx.Root.Children) == 0 {
			return "", false
		}
		last := idx.Root.Children[len(idx.Root.Children)-1]
		if last.Kind == recordquery.KeyExprField {
			return last.Field, true
		}
	}
	return "", false
}

// groupingPrefixFromWhere extracts an equality value per grouping field
// from a flat where clause (a single FieldCmp-Eq leaf, or an And of such
// leaves), returning an error if the clause references anything outside
// idx's grouping fields or uses a non-equality comparison.
func groupingPrefixFromWhere(idx recordquery.Index, where predicate.Predicate) (recordquery.Tuple, error) {
	leaves := map[string]recordquery.TupleElement{}
	var collect func(predicate.Predicate) error
	collect = func(p predicate.Predicate) error {
		switch p.Kind {
		case predicate.KindAnd:
			for _, c := range p.Children {
				if err := collect(c); err != nil {
					return err
				}
			}
			return nil
		case predicate.KindFieldCmp:
			if p.Op != predicate.OpEq {
				return fmt.Errorf("only equality comparisons are supported in a topN/bottomN where clause, got %s on %q", p.Op, p.Field)
			}
			leaves[p.Field] = p.Value
			return nil
		default:
			return fmt.Errorf("unsupported topN/bottomN where clause shape")
		}
	}
	if err := collect(where); err != nil {
		return nil, recordquery.NewInvalidArgumentError(recordquery.ErrCodeTopNWithSimpleRankFilter, "aggregate: "+err.Error())
	}

	grouping := idx.GroupingFields()
	tuple := make(recordquery.Tuple, 0, len(grouping))
	for _, field := range grouping {
		v, ok := leaves[field]
		if !ok {
			return nil, recordquery.NewInvalidArgumentError(recordquery.ErrCodeTopNWithSimpleRankFilter,
				fmt.Sprintf("aggregate: topN/bottomN where clause must constrain every grouping field of index %q, missing %q", idx.Name, field))
		}
		tuple = append(tuple, v)
		delete(leaves, field)
	}
	if len(leaves) > 0 {
		return nil, recordquery.NewInvalidArgumentError(recordquery.ErrCodeTopNWithSimpleRankFilter,
			fmt.Sprintf("aggregate: topN/bottomN where clause references fields outside index %q's grouping prefix", idx.Name))
	}
	return tuple, nil
}

type rankEntry struct {
	rank recordquery.TupleElement
	pk   recordquery.Tuple
}

func rankLess(a, b rankEntry) bool {
	return a.rank.Compare(b.rank) < 0
}

// scanRank opens a range scan over index, restricted to the grouping
// prefix when where is non-empty, accumulating entries into a bounded
// heap of size n. bottomN selects the MaxHeap-keeps-smallest-k
// behavior (bottom-N); its negation selects MinHeap-keeps-largest-k
// (top-N).
func scanRank(ctx context.Context, store kvstore.Store, snapshot bool, index recordquery.Index, pkLen, n int, where *predicate.Predicate, bottomN bool) ([]rankEntry, error) {
	var begin, end []byte
	if where != nil {
		prefix, err := groupingPrefixFromWhere(index, *where)
		if err != nil {
			return nil, err
		}
		begin, end = keyspace.IndexRange(index.Name, prefix, prefix)
	} else {
		sub := keyspace.IndexSubspace(index.Name)
		begin, end = sub.Range()
	}

	iter, err := store.Range(ctx, begin, end, snapshot)
	if err != nil {
		return nil, fmt.Errorf("aggregate: rank scan %s: %w", index.Name, err)
	}
	defer iter.Close()

	sub := keyspace.IndexSubspace(index.Name)
	groupingLen := len(index.GroupingFields())

	var h *heap.Bounded[rankEntry]
	if bottomN {
		h = heap.NewMaxHeap(n, rankLess)
	} else {
		h = heap.NewMinHeap(n, rankLess)
	}

	for iter.Next(ctx) {
		stripped, ok := sub.Strip(iter.KV().Key)
		if !ok {
			return nil, fmt.Errorf("aggregate: rank key %x not in index subspace %s", iter.KV().Key, index.Name)
		}
		tuple, err := tuplecodec.Unpack(stripped)
		if err != nil {
			return nil, recordquery.NewTupleDecodeError(fmt.Sprintf("aggregate: rank entry in %s", index.Name), err)
		}
		if len(tuple) <= groupingLen+pkLen-1 {
			return nil, recordquery.NewTupleDecodeError(
				fmt.Sprintf("aggregate: rank entry in %s has %d components, want at least %d", index.Name, len(tuple), groupingLen+pkLen), nil)
		}
		rankValue := tuple[groupingLen]
		pk := tuple[len(tuple)-pkLen:]
		h.Insert(rankEntry{rank: rankValue, pk: append(recordquery.Tuple{}, pk...)})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("aggregate: rank scan %s: %w", index.Name, err)
	}

	return h.Sorted(rankLess), nil
}

// TopN returns the n records with the largest values of index's rank
// field, descending. where may only constrain a composite index's
// grouping fields with equality (spec.md §4.I); nil is always allowed.
func TopN(ctx context.Context, store kvstore.Store, accessor recordquery.RecordAccessor, snapshot bool, rt recordquery.RecordType, index recordquery.Index, n int, where *predicate.Predicate) ([]recordquery.Record, error) {
	if n <= 0 {
		return nil, recordquery.NewInvalidArgumentError(recordquery.ErrCodeInvalidLimit, "aggregate: topN requires n > 0")
	}
	if where != nil && !index.IsComposite() {
		return nil, recordquery.NewInvalidArgumentError(recordquery.ErrCodeTopNWithSimpleRankFilter,
			fmt.Sprintf("aggregate: topN on simple rank index %q cannot be combined with a where filter", index.Name))
	}

	pkLen := pkLength(rt.PrimaryKey)
	entries, err := scanRank(ctx, store, snapshot, index, pkLen, n, where, false)
	if err != nil {
		return nil, err
	}
	// scanRank's heap.Sorted is ascending; topN wants descending.
	out := make([]recordquery.Record, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		rec, found, err := pointRead(ctx, store, accessor, snapshot, rt.Name, entries[i].pk)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, rec)
		}
	}
	return out, nil
}

// BottomN returns the n records with the smallest values of index's rank
// field, ascending.
func BottomN(ctx context.Context, store kvstore.Store, accessor recordquery.RecordAccessor, snapshot bool, rt recordquery.RecordType, index recordquery.Index, n int, where *predicate.Predicate) ([]recordquery.Record, error) {
	if n <= 0 {
		return nil, recordquery.NewInvalidArgumentError(recordquery.ErrCodeInvalidLimit, "aggregate: bottomN requires n > 0")
	}
	if where != nil && !index.IsComposite() {
		return nil, recordquery.NewInvalidArgumentError(recordquery.ErrCodeTopNWithSimpleRankFilter,
			fmt.Sprintf("aggregate: bottomN on simple rank index %q cannot be combined with a where filter", index.Name))
	}

	pkLen := pkLength(rt.PrimaryKey)
	entries, err := scanRank(ctx, store, snapshot, index, pkLen, n, where, true)
	if err != nil {
		return nil, err
	}
	out := make([]recordquery.Record, 0, len(entries))
	for _, e := range entries {
		rec, found, err := pointRead(ctx, store, accessor, snapshot, rt.Name, e.pk)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, rec)
		}
	}
	return out, nil
}

func pointRead(ctx context.Context, store kvstore.Store, accessor recordquery.RecordAccessor, snapshot bool, recordType string, pk recordquery.Tuple) (recordquery.Record, bool, error) {
	key := keyspace.RecordKey(recordType, pk)
	raw, ok, err := store.Get(ctx, key, snapshot)
	if err != nil {
		return nil, false, fmt.Errorf("aggregate: point read %s: %w", recordType, err)
	}
	if !ok {
		return nil, false, nil
	}
	rec, err := accessor.Deserialize(recordType, raw)
	if err != nil {
		return nil, false, fmt.Errorf("aggregate: deserialize %s: %w", recordType, err)
	}
	return rec, true, nil
}

func pkLength(pk recordquery.KeyExpression) int {
	if pk.Kind == recordquery.KeyExprConcatenate {
		return len(pk.Children)
	}
	return 1
}
