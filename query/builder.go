// Package query is the fluent builder/DSL façade over the planner and
// aggregate evaluator (spec.md §4.J). Grounded on the teacher's
// AdvancedQueryRequest/QueryRequest request shapes (types.go) and its
// CompositeCondition tree, retargeted from a JSON request payload onto a
// method-chaining builder that accumulates the same ANDed-leaves, sort
// keys, and limit before handing off to the engine.
package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/brindledata/recordquery"
	"github.com/brindledata/recordquery/aggregate"
	"github.com/brindledata/recordquery/plan"
	"github.com/brindledata/recordquery/planner"
	"github.com/brindledata/recordquery/predicate"
)

type rankRequest struct {
	indexName string
	n         int
	top       bool
}

// Builder fluently accumulates a query spec: ANDed equality/comparison
// leaves, sort orders, a limit, and optional top-N/bottom-N rank
// retrieval or GroupBy aggregation, then invokes the engine.
type Builder struct {
	engine     *recordquery.Engine
	recordType string
	leaves     []predicate.Predicate
	sortKeys   []planner.SortKey
	limit      int
	rank       *rankRequest
	group      *aggregate.GroupBySpec
}

// For starts a builder for queries against recordType.
func For(engine *recordquery.Engine, recordType string) *Builder {
	return &Builder{engine: engine, recordType: recordType}
}

// Where adds an ANDed comparison leaf.
func (b *Builder) Where(field string, op predicate.Op, value recordquery.TupleElement) *Builder {
	b.leaves = append(b.leaves, predicate.FieldCmp(field, op, value))
	return b
}

// WhereIn adds an ANDed IN leaf.
func (b *Builder) WhereIn(field string, values []recordquery.TupleElement) *Builder {
	b.leaves = append(b.leaves, predicate.In(field, values))
	return b
}

// OrderBy appends a sort key. Multiple calls compose a multi-key sort,
// most significant first.
func (b *Builder) OrderBy(field string, ascending bool) *Builder {
	b.sortKeys = append(b.sortKeys, planner.SortKey{Field: field, Ascending: ascending})
	return b
}

// Limit caps the number of records the query returns.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// TopN requests the n records with the largest values of a Rank index's
// sort field. indexName may be empty to auto-detect (spec.md §4.I).
func (b *Builder) TopN(n int, indexName string) *Builder {
	b.rank = &rankRequest{indexName: indexName, n: n, top: true}
	return b
}

// BottomN requests the n records with the smallest values of a Rank
// index's sort field.
func (b *Builder) BottomN(n int, indexName string) *Builder {
	b.rank = &rankRequest{indexName: indexName, n: n, top: false}
	return b
}

// GroupBy switches this builder to GroupBy evaluation: spec.Field groups
// the scanned records and spec.Aggregations/Having compute and filter
// per-group results, consumed via GroupByResults instead of Execute.
func (b *Builder) GroupBy(spec aggregate.GroupBySpec) *Builder {
	b.group = &spec
	return b
}

func (b *Builder) predicate() *predicate.Predicate {
	switch len(b.leaves) {
	case 0:
		return nil
	case 1:
		p := b.leaves[0]
		return &p
	default:
		p := predicate.And(b.leaves...)
		return &p
	}
}

func (b *Builder) sortField() string {
	if len(b.sortKeys) == 0 {
		return ""
	}
	return b.sortKeys[0].Field
}

// Execute runs the accumulated query and returns its matching records.
// A TopN/BottomN request bypasses the planner entirely, per spec.md
// §4.I; otherwise it plans and executes through the engine, applying
// the builder's OrderBy/Limit to the result since the planner's
// candidates never sort their own output (planner.Query's doc comment).
// When both OrderBy and Limit are set, the plan is requested unlimited
// so the full match set is sorted before truncation — handing Limit to
// the plan would truncate in physical-scan order first, ahead of the
// sort, and return an arbitrary N-record prefix instead of the true
// top-N by sort key.
func (b *Builder) Execute(ctx context.Context) ([]recordquery.Record, plan.Explain, error) {
	if b.group != nil {
		return nil, plan.Explain{}, fmt.Errorf("query: GroupBy is consumed via GroupByResults, not Execute")
	}

	if b.rank != nil {
		records, err := b.executeRank(ctx)
		return records, plan.Explain{Description: "RankScan"}, err
	}

	planLimit := b.limit
	if len(b.sortKeys) > 0 {
		planLimit = 0
	}
	q := planner.Query{Filter: b.predicate(), SortKeys: b.sortKeys, Limit: planLimit}
	records, explain, err := b.engine.Query(ctx, b.recordType, q)
	if err != nil {
		return nil, explain, err
	}

	if len(b.sortKeys) > 0 {
		sortRecords(records, b.engine.Accessor(), b.sortKeys)
	}
	if b.limit > 0 && len(records) > b.limit {
		records = records[:b.limit]
	}
	return records, explain, nil
}

func (b *Builder) executeRank(ctx context.Context) ([]recordquery.Record, error) {
	rt, ok := b.engine.RecordTypeByName(b.recordType)
	if !ok {
		return nil, recordquery.NewIndexNotFoundError(b.recordType).WithDetail("reason", "unknown record type")
	}
	idx, err := aggregate.ResolveRankIndex(rt, b.rank.indexName, b.sortField())
	if err != nil {
		return nil, err
	}
	where := b.predicate()
	if b.rank.top {
		return aggregate.TopN(ctx, b.engine.Store(), b.engine.Accessor(), b.engine.Snapshot(), rt, idx, b.rank.n, where)
	}
	return aggregate.BottomN(ctx, b.engine.Store(), b.engine.Accessor(), b.engine.Snapshot(), rt, idx, b.rank.n, where)
}

// GroupByResults executes a GroupBy request configured via GroupBy,
// scanning the builder's filtered records as the group source.
func (b *Builder) GroupByResults(ctx context.Context) ([]aggregate.GroupResult, error) {
	if b.group == nil {
		return nil, fmt.Errorf("query: GroupByResults requires a GroupBy spec")
	}
	q := planner.Query{Filter: b.predicate()}
	c, _, err := b.engine.OpenCursor(ctx, b.recordType, q)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return aggregate.EvaluateGroupBy(ctx, c, b.engine.Accessor(), *b.group)
}

// Count returns the number of matching records. When every accumulated
// predicate is an equality comparison whose fields form an exact prefix
// of some COUNT index on recordType, it delegates to the aggregate
// evaluator instead of scanning (spec.md §4.J).
func (b *Builder) Count(ctx context.Context) (int64, error) {
	rt, ok := b.engine.RecordTypeByName(b.recordType)
	if !ok {
		return 0, recordquery.NewIndexNotFoundError(b.recordType).WithDetail("reason", "unknown record type")
	}

	if groupingValues, idx, ok := matchCountIndex(rt, b.leaves); ok {
		return aggregate.EvaluateAggregate(ctx, b.engine.Store(), b.engine.Snapshot(), idx, groupingValues)
	}

	records, _, err := b.Execute(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(records)), nil
}

// matchCountIndex looks for a COUNT index on rt whose key fields are an
// exact, fully-covered prefix of leaves' equality predicates.
func matchCountIndex(rt recordquery.RecordType, leaves []predicate.Predicate) (recordquery.Tuple, recordquery.Index, bool) {
	if len(leaves) == 0 {
		return nil, recordquery.Index{}, false
	}
	eq := make(map[string]recordquery.TupleElement, len(leaves))
	for _, leaf := range leaves {
		if leaf.Kind != predicate.KindFieldCmp || leaf.Op != predicate.OpEq {
			return nil, recordquery.Index{}, false
		}
		eq[leaf.Field] = leaf.Value
	}

	for _, idx := range rt.Indexes {
		if idx.Kind != recordquery.IndexKindCount {
			continue
		}
		fields := indexFieldNames(idx.Root)
		if len(fields) != len(eq) {
			continue
		}
		values := make(recordquery.Tuple, 0, len(fields))
		match := true
		for _, field := range fields {
			v, ok := eq[field]
			if !ok {
				match = false
				break
			}
			values = append(values, v)
		}
		if match {
			return values, idx, true
		}
	}
	return nil, recordquery.Index{}, false
}

// indexFieldNames returns every Field-leaf name of a COUNT index's root
// expression, in order: unlike Index.GroupingFields, a COUNT index's key
// is the grouping tuple in full, with no trailing rank/value component.
func indexFieldNames(k recordquery.KeyExpression) []string {
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

// sortRecords orders records in place by sortKeys, most significant
// first, since the planner's candidates never sort their own output.
func sortRecords(records []recordquery.Record, accessor recordquery.RecordAccessor, sortKeys []planner.SortKey) {
	sort.SliceStable(records, func(i, j int) bool {
		for _, key := range sortKeys {
			vi := fieldOrNull(records[i], accessor, key.Field)
			vj := fieldOrNull(records[j], accessor, key.Field)
			cmp := vi.Compare(vj)
			if cmp == 0 {
				continue
			}
			if key.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
}

func fieldOrNull(r recordquery.Record, accessor recordquery.RecordAccessor, field string) recordquery.TupleElement {
	values, err := accessor.ExtractField(r, field)
	if err != nil || len(values) == 0 {
		return recordquery.Null
	}
	return values[0]
}
