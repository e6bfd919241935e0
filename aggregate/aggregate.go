// Package aggregate evaluates pre-maintained COUNT/SUM/MIN/MAX indexes,
// RANK top-N/bottom-N retrieval, and in-memory GroupBy accumulation
// (spec.md §4.I). Grounded on the teacher's accumulate-then-return shape
// in internal/federated_pagination.go, retargeted from a Postgres/DuckDB
// federated fetch to a single ordered-KV scan.
package aggregate

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/brindledata/recordquery"
	"github.com/brindledata/recordquery/keyspace"
	"github.com/brindledata/recordquery/predicate"
)

// PointReader is the minimal collaborator EvaluateAggregate needs: a
// single key lookup. Any kvstore.Store (via a one-shot Get) and a txn
// handle both satisfy it.
type PointReader interface {
	Get(ctx context.Context, key []byte, snapshot bool) ([]byte, bool, error)
}

// EvaluateAggregate reads a COUNT/SUM/MIN/MAX index's maintained cell for
// one grouping tuple and decodes it as a little-endian int64, returning 0
// for an absent key (spec.md §4.I). It rejects an index whose kind is not
// COUNT/SUM/MIN/MAX; it does not check which of those four kinds the
// index is.
func EvaluateAggregate(ctx context.Context, reader PointReader, snapshot bool, index recordquery.Index, groupingValues recordquery.Tuple) (int64, error) {
	if !index.Kind.IsAggregate() {
		return 0, recordquery.NewInvalidArgumentError(recordquery.ErrCodeIndexNotFound,
			fmt.Sprintf("aggregate: index %q is not a COUNT/SUM/MIN/MAX index", index.Name))
	}

	key := keyspace.IndexSubspace(index.Name).Pack(groupingValues)
	raw, ok, err := reader.Get(ctx, key, snapshot)
	if err != nil {
		return 0, fmt.Errorf("aggregate: read %s: %w", index.Name, err)
	}
	if !ok {
		return 0, nil
	}
	if len(raw) != 8 {
		return 0, recordquery.NewTupleDecodeError(
			fmt.Sprintf("aggregate: %s cell is %d bytes, want 8", index.Name, len(raw)), nil)
	}
	return int64(binary.LittleEndian.Uint64(raw)), nil
}

// AggKind enumerates the GroupBy accumulation functions from spec.md §4.I.
type AggKind string

const (
	AggCount AggKind = "count"
	AggSum   AggKind = "sum"
	AggAvg   AggKind = "avg"
	AggMin   AggKind = "min"
	AggMax   AggKind = "max"
)

// Aggregation names one accumulation to compute per group. As is the
// key this aggregation's result is reported under in GroupResult.Values
// and the field HAVING compares against; when empty it defaults to
// "count" for AggCount and "<kind>_<field>" otherwise. Field is ignored
// for AggCount.
type Aggregation struct {
	Kind  AggKind
	Field string
	As    string
}

func (a Aggregation) alias() string {
	if a.As != "" {
		return a.As
	}
	if a.Kind == AggCount {
		return "count"
	}
	return string(a.Kind) + "_" + a.Field
}

// Having filters groups after every Aggregation has been computed,
// comparing the named aggregation's result against Value.
type Having struct {
	Aggregation string
	Op          predicate.Op
	Value       recordquery.TupleElement
}

// GroupBySpec groups a scanned record stream by Field and computes one
// value per Aggregation, optionally dropping groups that fail Having.
type GroupBySpec struct {
	Field        string
	Aggregations []Aggregation
	Having       *Having
}

// GroupResult is one group's key and computed aggregation values.
type GroupResult struct {
	Key    recordquery.TupleElement
	Values map[string]recordquery.TupleElement
}

// RecordStream is the minimal collaborator EvaluateGroupBy consumes: a
// forward-only record cursor, satisfied by cursor.Cursor without this
// package importing it (avoiding a cursor->aggregate->cursor cycle; the
// caller opens the cursor via the engine facade and hands it over).
type RecordStream interface {
	Next(ctx context.Context) bool
	Record() recordquery.Record
	Err() error
}

type groupAccumulator struct {
	key    recordquery.TupleElement
	count  int64
	sums   map[string]float64
	nums   map[string]int64
	mins   map[string]recordquery.TupleElement
	maxs   map[string]recordquery.TupleElement
	allInt map[string]bool
}

func newGroupAccumulator(key recordquery.TupleElement) *groupAccumulator {
	return &groupAccumulator{
		key:    key,
		sums:   map[string]float64{},
		nums:   map[string]int64{},
		mins:   map[string]recordquery.TupleElement{},
		maxs:   map[string]recordquery.TupleElement{},
		allInt: map[string]bool{},
	}
}

// EvaluateGroupBy scans every record stream yields, accumulating
// per-group aggregates in memory and filtering by Having (spec.md §4.I).
// accessor extracts the grouping field and every Aggregation's field.
func EvaluateGroupBy(ctx context.Context, stream RecordStream, accessor recordquery.RecordAccessor, spec GroupBySpec) ([]GroupResult, error) {
	groups := map[string]*groupAccumulator{}
	var order []string

	for stream.Next(ctx) {
		r := stream.Record()
		keys, err := accessor.ExtractField(r, spec.Field)
		if err != nil {
			return nil, fmt.Errorf("aggregate: extract group field %q: %w", spec.Field, err)
		}
		if len(keys) != 1 {
			return nil, recordquery.NewSchemaMismatchError(
				fmt.Sprintf("aggregate: group field %q must be single-valued, got %d values", spec.Field, len(keys)), nil)
		}
		groupKey := keys[0]
		token := groupToken(groupKey)

		acc, ok := groups[token]
		if !ok {
			acc = newGroupAccumulator(groupKey)
			groups[token] = acc
			order = append(order, token)
		}
		acc.count++

		for _, agg := range spec.Aggregations {
			if agg.Kind == AggCount {
				continue
			}
			values, err := accessor.ExtractField(r, agg.Field)
			if err != nil {
				return nil, fmt.Errorf("aggregate: extract %q for %s: %w", agg.Field, agg.alias(), err)
			}
			for _, v := range values {
				accumulate(acc, agg, v)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("aggregate: group by %s: %w", spec.Field, err)
	}

	out := make([]GroupResult, 0, len(order))
	for _, token := range order {
		acc := groups[token]
		values := make(map[string]recordquery.TupleElement, len(spec.Aggregations))
		for _, agg := range spec.Aggregations {
			values[agg.alias()] = finalize(acc, agg)
		}
		if spec.Having != nil && !satisfiesHaving(values, *spec.Having) {
			continue
		}
		out = append(out, GroupResult{Key: acc.key, Values: values})
	}
	return out, nil
}

func accumulate(acc *groupAccumulator, agg Aggregation, v recordquery.TupleElement) {
	alias := agg.alias()
	n := numeric(v)

	switch agg.Kind {
	case AggSum, AggAvg:
		acc.sums[alias] += n
		if _, seen := acc.allInt[alias]; !seen {
			acc.allInt[alias] = v.Kind == recordquery.KindInt64
		} else if v.Kind != recordquery.KindInt64 {
			acc.allInt[alias] = false
		}
		acc.nums[alias]++
	case AggMin:
		cur, ok := acc.mins[alias]
		if !ok || (recordquery.Tuple{v}).Compare(recordquery.Tuple{cur}) < 0 {
			acc.mins[alias] = v
		}
	case AggMax:
		cur, ok := acc.maxs[alias]
		if !ok || (recordquery.Tuple{v}).Compare(recordquery.Tuple{cur}) > 0 {
			acc.maxs[alias] = v
		}
	}
}

func finalize(acc *groupAccumulator, agg Aggregation) recordquery.TupleElement {
	alias := agg.alias()
	switch agg.Kind {
	case AggCount:
		return recordquery.Int64(acc.count)
	case AggSum:
		if acc.allInt[alias] {
			return recordquery.Int64(int64(acc.sums[alias]))
		}
		return recordquery.Double(acc.sums[alias])
	case AggAvg:
		if acc.nums[alias] == 0 {
			return recordquery.Double(0)
		}
		return recordquery.Double(acc.sums[alias] / float64(acc.nums[alias]))
	case AggMin:
		return acc.mins[alias]
	case AggMax:
		return acc.maxs[alias]
	default:
		return recordquery.Null
	}
}

func numeric(v recordquery.TupleElement) float64 {
	switch v.Kind {
	case recordquery.KindInt64:
		return float64(v.Int64)
	case recordquery.KindDouble:
		return v.Double
	default:
		return 0
	}
}

// groupToken builds a map key for a TupleElement, since TupleElement
// itself (with a []byte field) isn't comparable.
func groupToken(v recordquery.TupleElement) string {
	return fmt.Sprintf("%d:%v:%d:%g:%s:%x", v.Kind, v.Bool, v.Int64, v.Double, v.Str, v.Bytes)
}

func satisfiesHaving(values map[string]recordquery.TupleElement, h Having) bool {
	v, ok := values[h.Aggregation]
	if !ok {
		return false
	}
	cmp := recordquery.Tuple{v}.Compare(recordquery.Tuple{h.Value})
	switch h.Op {
	case predicate.OpEq:
		return cmp == 0
	case predicate.OpNeq:
		return cmp != 0
	case predicate.OpLt:
		return cmp < 0
	case predicate.OpLe:
		return cmp <= 0
	case predicate.OpGt:
		return cmp > 0
	case predicate.OpGe:
		return cmp >= 0
	default:
		return false
	}
}
