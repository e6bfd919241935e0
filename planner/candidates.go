package planner

import (
	"math"

	"github.com/brindledata/recordquery"
	"github.com/brindledata/recordquery/engine/window"
	"github.com/brindledata/recordquery/plan"
	"github.com/brindledata/recordquery/predicate"
)

// generateCandidates builds every candidate plan.Node for rt/filter per
// spec.md §4.H step 4, always including a FullScan first. filter is
// already DNF-normalized (or nil for an unfiltered query); fullFilter is
// the pre-normalization predicate, attached to the FullScan candidate.
// Index-narrowed candidates instead carry the other leaves of their own
// conjunction as a post-filter, since the index range only enforces the
// leaf it was built from. Grounded on the
// teacher's buildFilterSQL/buildPredicateSQL recursive-descent shape in
// internal/queryoptimizer/optimizer.go, repurposed from SQL-string
// building to plan-node building.
func generateCandidates(rt recordquery.RecordType, fullFilter *predicate.Predicate, normalized *predicate.Predicate, pkExpr recordquery.KeyExpression, maxInValues int) []plan.Node {
	pkLen := pkLength(rt.PrimaryKey)
	candidates := []plan.Node{plan.FullScan(fullFilter, rt.Name)}

	if normalized == nil {
		return candidates
	}

	windows, emptyFields := dateWindowsByField(normalized)
	if len(emptyFields) > 0 {
		return []plan.Node{plan.Empty()}
	}

	// normalized is always OR(AND(leaf...), ...); a single disjunct is the
	// common case of "no top-level OR" after dnf.Normalize always wraps.
	disjuncts := conjunctsOf(*normalized)

	if len(disjuncts) == 1 {
		candidates = append(candidates, conjunctCandidates(rt, fullFilter, disjuncts[0], pkLen, pkExpr, windows, maxInValues)...)
		return candidates
	}

	// Top-level OR: emit a Union of each disjunct's best index-usable
	// scan, but only when every disjunct has at least one.
	var branches []plan.Node
	allUsable := true
	for _, conj := range disjuncts {
		scans := indexScansForConjunct(rt, conj, pkLen, windows, maxInValues)
		if len(scans) == 0 {
			allUsable = false
			break
		}
		branches = append(branches, scans[0])
	}
	if allUsable && len(branches) > 1 {
		candidates = append(candidates, plan.Union(pkExpr, branches...))
	}

	return candidates
}

// conjunctCandidates builds every candidate for a single AND-of-leaves
// conjunction: per-leaf IndexScans, an InJoin for IN leaves, an
// Intersection across ≥2 index-usable leaves, and a CoveringIndexScan
// when a covering index exists.
func conjunctCandidates(rt recordquery.RecordType, fullFilter *predicate.Predicate, conj []predicate.Predicate, pkLen int, pkExpr recordquery.KeyExpression, windows map[string]window.Window, maxInValues int) []plan.Node {
	var out []plan.Node

	scans := indexScansForConjunct(rt, conj, pkLen, windows, maxInValues)
	out = append(out, scans...)

	if len(scans) >= 2 {
		out = append(out, plan.Intersection(pkExpr, scans...))
	}

	if covering, ok := coveringCandidate(rt, fullFilter, conj, pkLen, windows); ok {
		out = append(out, covering)
	}

	return out
}

// indexScansForConjunct emits one IndexScan or InJoin per index-usable
// leaf of conj. Each candidate only narrows the scan range by its own
// leaf, so every other leaf of conj still needs checking: the remaining
// leaves are attached as a post-filter (IndexScan's own filter field, or
// a wrapping plan.Filter for InJoin, which has none), otherwise a
// single-leaf scan that's individually cheaper than the correct
// Intersection would let unrelated-leaf mismatches through. An IN leaf
// whose value count exceeds maxInValues is skipped, degrading to the
// FullScan-with-filter candidate that's already always present (spec.md
// §4.H step 4).
func indexScansForConjunct(rt recordquery.RecordType, conj []predicate.Predicate, pkLen int, windows map[string]window.Window, maxInValues int) []plan.Node {
	var out []plan.Node
	for i, leaf := range conj {
		switch leaf.Kind {
		case predicate.KindFieldCmp:
			idx, ok := findValueIndex(rt, leaf.Field)
			if !ok || !indexUsableOp(leaf.Op) {
				continue
			}
			begin, end := rangeForOp(leaf.Op, leaf.Value)
			var w *window.Window
			if win, ok := windows[leaf.Field]; ok {
				w = &win
			}
			out = append(out, plan.IndexScan(idx, begin, end, remainingLeaves(conj, i), pkLen, rt.Name, w))

		case predicate.KindIn:
			idx, ok := findValueIndex(rt, leaf.Field)
			if ok && len(leaf.Values) > 0 && len(leaf.Values) <= maxInValues {
				node := plan.InJoin(leaf.Field, leaf.Values, idx, pkLen, rt.Name)
				if rest := remainingLeaves(conj, i); rest != nil {
					node = plan.Filter(node, *rest)
				}
				out = append(out, node)
			}
		}
	}
	return out
}

// remainingLeaves builds the AND of every leaf of conj except the one at
// skip, for attaching to a single-leaf candidate as its post-filter. Nil
// when skip is conj's only leaf.
func remainingLeaves(conj []predicate.Predicate, skip int) *predicate.Predicate {
	var rest []predicate.Predicate
	for i, leaf := range conj {
		if i == skip {
			continue
		}
		rest = append(rest, leaf)
	}
	switch len(rest) {
	case 0:
		return nil
	case 1:
		return &rest[0]
	default:
		p := predicate.And(rest...)
		return &p
	}
}

// coveringCandidate emits a CoveringIndexScan when some covering-capable
// index's field set is a superset of every field this conjunction
// references (minus the primary-key fields), and at least one leaf of
// the conjunction is index-usable against that same index's leading
// field.
func coveringCandidate(rt recordquery.RecordType, fullFilter *predicate.Predicate, conj []predicate.Predicate, pkLen int, windows map[string]window.Window) (plan.Node, bool) {
	required := map[string]bool{}
	for _, leaf := range conj {
		required[leaf.Field] = true
	}

	for _, idx := range rt.Indexes {
		if !idx.CoveringCapable || idx.Kind != recordquery.IndexKindValue {
			continue
		}
		covered := map[string]bool{}
		for _, f := range idx.Covering {
			covered[f] = true
		}
		satisfiesAll := true
		for f := range required {
			if !covered[f] {
				satisfiesAll = false
				break
			}
		}
		if !satisfiesAll {
			continue
		}
		leading, ok := idx.LeadingField()
		if !ok {
			continue
		}
		for i, leaf := range conj {
			if leaf.Kind != predicate.KindFieldCmp || leaf.Field != leading || !indexUsableOp(leaf.Op) {
				continue
			}
			begin, end := rangeForOp(leaf.Op, leaf.Value)
			var w *window.Window
			if win, ok := windows[leaf.Field]; ok {
				w = &win
			}
			return plan.CoveringIndexScan(idx, begin, end, remainingLeaves(conj, i), pkLen, rt.Name, rt.PrimaryKey, w), true
		}
	}
	return plan.Node{}, false
}

// conjunctsOf reads the disjuncts back out of a DNF-normalized predicate
// (always OR(AND(leaf...), ...), even for a single disjunct).
func conjunctsOf(p predicate.Predicate) [][]predicate.Predicate {
	if p.Kind != predicate.KindOr {
		return [][]predicate.Predicate{{p}}
	}
	out := make([][]predicate.Predicate, 0, len(p.Children))
	for _, child := range p.Children {
		if child.Kind == predicate.KindAnd {
			out = append(out, child.Children)
		} else {
			out = append(out, []predicate.Predicate{child})
		}
	}
	return out
}

func findValueIndex(rt recordquery.RecordType, field string) (recordquery.Index, bool) {
	for _, idx := range rt.Indexes {
		if idx.Kind != recordquery.IndexKindValue {
			continue
		}
		if leading, ok := idx.LeadingField(); ok && leading == field {
			return idx, true
		}
	}
	return recordquery.Index{}, false
}

func indexUsableOp(op predicate.Op) bool {
	switch op {
	case predicate.OpEq, predicate.OpLt, predicate.OpLe, predicate.OpGt, predicate.OpGe, predicate.OpStartsWith:
		return true
	default:
		return false
	}
}

// rangeForOp builds the [begin, end) value tuple for an index-usable
// comparison, per spec.md §4.H step 4's per-operator range rules.
func rangeForOp(op predicate.Op, v recordquery.TupleElement) (begin, end recordquery.Tuple) {
	switch op {
	case predicate.OpEq:
		return recordquery.Tuple{v}, recordquery.Tuple{v}
	case predicate.OpLt:
		return nil, recordquery.Tuple{v}
	case predicate.OpLe:
		return nil, recordquery.Tuple{elementSuccessor(v)}
	case predicate.OpGt:
		return recordquery.Tuple{elementSuccessor(v)}, nil
	case predicate.OpGe:
		return recordquery.Tuple{v}, nil
	case predicate.OpStartsWith:
		if v.Kind != recordquery.KindString {
			return recordquery.Tuple{v}, recordquery.Tuple{v}
		}
		if succ, ok := prefixSuccessor(v.Str); ok {
			return recordquery.Tuple{v}, recordquery.Tuple{recordquery.Str(succ)}
		}
		return recordquery.Tuple{v}, nil
	default:
		return nil, nil
	}
}

// elementSuccessor returns the smallest TupleElement that sorts strictly
// greater than v under Compare, used to turn an exclusive comparison
// (Gt) into an inclusive range begin and an inclusive comparison (Le)
// into an exclusive range end.
func elementSuccessor(v recordquery.TupleElement) recordquery.TupleElement {
	switch v.Kind {
	case recordquery.KindInt64:
		return recordquery.Int64(v.Int64 + 1)
	case recordquery.KindDouble:
		return recordquery.Double(math.Nextafter(v.Double, math.Inf(1)))
	case recordquery.KindString:
		return recordquery.Str(v.Str + "\x00")
	case recordquery.KindBytes:
		b := make([]byte, len(v.Bytes)+1)
		copy(b, v.Bytes)
		return recordquery.Bytes(b)
	case recordquery.KindBool:
		return recordquery.Bool(true)
	default:
		return v
	}
}

// prefixSuccessor computes the smallest string that is not prefixed by s,
// by incrementing the last byte of s that isn't already 0xFF (dropping
// any trailing 0xFF bytes first). Ok is false when s is all 0xFF bytes,
// meaning no finite successor exists and the scan should be open-ended.
func prefixSuccessor(s string) (string, bool) {
	b := []byte(s)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xFF {
			b[i]++
			return string(b[:i+1]), true
		}
	}
	return "", false
}

// dateWindowsByField computes the range-window intersection (spec.md
// §4.H step 4's Date-window rule) for every field with ≥2 range
// predicates (Lt/Le/Gt/Ge) across all conjuncts of normalized. emptyFields
// names every field whose intersection is empty; the caller collapses
// the whole plan to plan.Empty() when any are present.
func dateWindowsByField(normalized *predicate.Predicate) (windows map[string]window.Window, emptyFields []string) {
	byField := map[string][]window.Window{}
	var walk func(predicate.Predicate)
	walk = func(p predicate.Predicate) {
		switch p.Kind {
		case predicate.KindAnd, predicate.KindOr:
			for _, c := range p.Children {
				walk(c)
			}
		case predicate.KindFieldCmp:
			w, ok := windowForLeaf(p)
			if ok {
				byField[p.Field] = append(byField[p.Field], w)
			}
		}
	}
	walk(*normalized)

	windows = map[string]window.Window{}
	for field, ws := range byField {
		if len(ws) < 2 {
			continue
		}
		merged, isEmpty := window.Intersect(ws...)
		if isEmpty {
			emptyFields = append(emptyFields, field)
			continue
		}
		windows[field] = merged
	}
	return windows, emptyFields
}

func windowForLeaf(p predicate.Predicate) (window.Window, bool) {
	v := p.Value
	switch p.Op {
	case predicate.OpLt, predicate.OpLe:
		upper := v
		if p.Op == predicate.OpLt {
			return window.Window{Upper: &upper}, true
		}
		succ := elementSuccessor(v)
		return window.Window{Upper: &succ}, true
	case predicate.OpGt:
		succ := elementSuccessor(v)
		return window.Window{Lower: &succ}, true
	case predicate.OpGe:
		lower := v
		return window.Window{Lower: &lower}, true
	default:
		return window.Window{}, false
	}
}

func pkLength(pk recordquery.KeyExpression) int {
	if pk.Kind == recordquery.KeyExprConcatenate {
		return len(pk.Children)
	}
	return 1
}
