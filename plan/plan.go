// Package plan describes immutable physical plan node descriptors. The
// planner builds these; the cursor package knows how to execute them.
// Grounded on the teacher's Plan/PlanExplain shape in
// internal/queryoptimizer/optimizer.go, retargeted from a SQL-string
// builder to a KV-range physical plan tree.
package plan

import (
	"github.com/brindledata/recordquery"
	"github.com/brindledata/recordquery/engine/window"
	"github.com/brindledata/recordquery/predicate"
)

// Kind discriminates the Node sum type.
type Kind int

const (
	KindFullScan Kind = iota
	KindIndexScan
	KindCoveringIndexScan
	KindIntersection
	KindUnion
	KindInJoin
	KindFilter
	KindLimit
	KindEmpty
)

// Node is an immutable physical plan node. Which fields are meaningful
// depends on Kind; see the per-kind constructors below.
type Node struct {
	Kind Kind

	// FullScan
	Filter       *predicate.Predicate
	ExpectedType string

	// IndexScan / CoveringIndexScan
	Index        recordquery.Index
	BeginValues  recordquery.Tuple
	EndValues    recordquery.Tuple
	PKLen        int
	RecordName   string
	Window       *window.Window
	PrimaryKey   recordquery.KeyExpression // CoveringIndexScan only

	// Intersection / Union
	Children []Node
	PKExpr   recordquery.KeyExpression

	// InJoin
	Field  string
	Values []recordquery.TupleElement

	// Filter / Limit
	Child *Node
	N     int
}

// FullScan builds a range-scan-over-R node.
func FullScan(filter *predicate.Predicate, expectedType string) Node {
	return Node{Kind: KindFullScan, Filter: filter, ExpectedType: expectedType}
}

// IndexScan builds an index range-scan node recovering records by
// point read.
func IndexScan(index recordquery.Index, begin, end recordquery.Tuple, filter *predicate.Predicate, pkLen int, recordName string, w *window.Window) Node {
	return Node{
		Kind:        KindIndexScan,
		Index:       index,
		BeginValues: begin,
		EndValues:   end,
		Filter:      filter,
		PKLen:       pkLen,
		RecordName:  recordName,
		Window:      w,
	}
}

// CoveringIndexScan builds an index range-scan node that reconstructs
// records from the index tuple itself, avoiding the point read; the
// cursor falls back to a point read for any entry the RecordAccessor
// cannot reconstruct.
func CoveringIndexScan(index recordquery.Index, begin, end recordquery.Tuple, filter *predicate.Predicate, pkLen int, recordName string, pk recordquery.KeyExpression, w *window.Window) Node {
	return Node{
		Kind:        KindCoveringIndexScan,
		Index:       index,
		BeginValues: begin,
		EndValues:   end,
		Filter:      filter,
		PKLen:       pkLen,
		RecordName:  recordName,
		PrimaryKey:  pk,
		Window:      w,
	}
}

// Intersection builds a streaming sort-merge intersection over children
// ordered by primary key.
func Intersection(pkExpr recordquery.KeyExpression, children ...Node) Node {
	return Node{Kind: KindIntersection, Children: children, PKExpr: pkExpr}
}

// Union builds a streaming k-way merge union with pk deduplication.
func Union(pkExpr recordquery.KeyExpression, children ...Node) Node {
	return Node{Kind: KindUnion, Children: children, PKExpr: pkExpr}
}

// InJoin builds one range-scan-per-value plan with record-key
// deduplication across values.
func InJoin(field string, values []recordquery.TupleElement, index recordquery.Index, pkLen int, recordName string) Node {
	return Node{
		Kind:       KindInJoin,
		Field:      field,
		Values:     values,
		Index:      index,
		PKLen:      pkLen,
		RecordName: recordName,
	}
}

// Filter builds a post-filter over child.
func Filter(child Node, pred predicate.Predicate) Node {
	return Node{Kind: KindFilter, Child: &child, Filter: &pred}
}

// Limit builds a node that stops after emitting n records.
func Limit(child Node, n int) Node {
	return Node{Kind: KindLimit, Child: &child, N: n}
}

// Empty builds a node that yields no records.
func Empty() Node {
	return Node{Kind: KindEmpty}
}

// Explain is a diagnostic summary of a chosen plan, returned alongside
// query results for observability.
type Explain struct {
	Description          string
	Children             []Explain
	EstimatedCost        float64
	EstimatedSelectivity float64
}
