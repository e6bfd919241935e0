package query

import (
	"context"

	"github.com/brindledata/recordquery"
	"github.com/brindledata/recordquery/aggregate"
	"github.com/brindledata/recordquery/plan"
	"github.com/brindledata/recordquery/predicate"
)

// WhereClause is one declarative equality/comparison leaf, the DSL
// equivalent of the teacher's map[string]Filter query-request fields
// (types.go's QueryRequest.Filters), flattened into a slice since the
// predicate algebra ANDs leaves positionally rather than by field name.
type WhereClause struct {
	Field string
	Op    predicate.Op
	Value recordquery.TupleElement
}

// SortClause is one declarative sort order, applied most-significant
// entry first.
type SortClause struct {
	Field     string
	Ascending bool
}

// RankClause requests top-N/bottom-N retrieval in place of a plan scan.
// Exactly one of Top/Bottom should be set; Index may be empty to
// auto-detect.
type RankClause struct {
	Index  string
	Top    int
	Bottom int
}

// Spec is the declarative struct-literal form of a query, the DSL layer
// spec.md §4.J describes sitting "on the same builder" as the fluent
// API. Run builds a Builder from Spec and executes it.
type Spec struct {
	RecordType string
	Where      []WhereClause
	OrderBy    []SortClause
	Limit      int
	Rank       *RankClause
	GroupBy    *aggregate.GroupBySpec
}

// Run executes spec against engine and returns matching records. Use
// RunGroupBy instead when Spec.GroupBy is set.
func (spec Spec) Run(ctx context.Context, engine *recordquery.Engine) ([]recordquery.Record, plan.Explain, error) {
	return spec.build(engine).Execute(ctx)
}

// RunCount executes spec and returns a count, delegating to an
// aggregate COUNT index when the where clauses permit it.
func (spec Spec) RunCount(ctx context.Context, engine *recordquery.Engine) (int64, error) {
	return spec.build(engine).Count(ctx)
}

// RunGroupBy executes spec's GroupBy aggregation.
func (spec Spec) RunGroupBy(ctx context.Context, engine *recordquery.Engine) ([]aggregate.GroupResult, error) {
	return spec.build(engine).GroupByResults(ctx)
}

func (spec Spec) build(engine *recordquery.Engine) *Builder {
	b := For(engine, spec.RecordType)
	for _, w := range spec.Where {
		b.Where(w.Field, w.Op, w.Value)
	}
	for _, o := range spec.OrderBy {
		b.OrderBy(o.Field, o.Ascending)
	}
	if spec.Limit > 0 {
		b.Limit(spec.Limit)
	}
	if spec.Rank != nil {
		if spec.Rank.Top > 0 {
			b.TopN(spec.Rank.Top, spec.Rank.Index)
		} else if spec.Rank.Bottom > 0 {
			b.BottomN(spec.Rank.Bottom, spec.Rank.Index)
		}
	}
	if spec.GroupBy != nil {
		b.GroupBy(*spec.GroupBy)
	}
	return b
}
