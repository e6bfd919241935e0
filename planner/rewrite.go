package planner

import "github.com/brindledata/recordquery/predicate"

// rewrite applies the safe, semantics-preserving algebraic rewrites from
// spec.md §4.H step 2: constant-fold a single-child And/Or down to that
// child, and strip double negation. Pure, no I/O, mirrored on the
// teacher's normalizer.go walk (here the simplification pass that
// precedes DNF rather than the DNF pass itself).
func rewrite(p predicate.Predicate) predicate.Predicate {
	switch p.Kind {
	case predicate.KindNot:
		child := rewrite(p.Children[0])
		if child.Kind == predicate.KindNot {
			return rewrite(child.Children[0])
		}
		return predicate.Not(child)

	case predicate.KindAnd:
		children := rewriteChildren(p.Children)
		if len(children) == 1 {
			return children[0]
		}
		return predicate.And(children...)

	case predicate.KindOr:
		children := rewriteChildren(p.Children)
		if len(children) == 1 {
			return children[0]
		}
		return predicate.Or(children...)

	default:
		return p
	}
}

func rewriteChildren(children []predicate.Predicate) []predicate.Predicate {
	out := make([]predicate.Predicate, len(children))
	for i, c := range children {
		out[i] = rewrite(c)
	}
	return out
}

// containsIn reports whether p has an In leaf anywhere in its tree. Plan
// does not call it and records no IN flag: InJoin candidates come only
// from the In leaves that candidate generation finds, and are costed like
// any other candidate.
func containsIn(p predicate.Predicate) bool {
	switch p.Kind {
	case predicate.KindIn:
		return true
	case predicate.KindAnd, predicate.KindOr:
		for _, c := range p.Children {
			if containsIn(c) {
				return true
			}
		}
		return false
	case predicate.KindNot:
		return containsIn(p.Children[0])
	default:
		return false
	}
}
