// Package dnf rewrites a predicate tree into disjunctive normal form
// (OR(AND(leaf…), …)), the shape the planner's candidate generation
// pattern-matches against. Pure, no I/O. Grounded on the teacher's
// recursive condition-tree walk in
// internal/queryoptimizer/normalizer.go, retargeted from a SQL-clause
// folder to an algebraic DNF rewriter.
package dnf

import (
	"github.com/brindledata/recordquery/predicate"
)

// Normalize rewrites p into OR(AND(leaf…), …) form. If the resulting
// top-level OR would have more than maxBranches disjuncts, the DNF is
// discarded and the original predicate p is returned unchanged.
func Normalize(p predicate.Predicate, maxBranches int) predicate.Predicate {
	pushed := pushNot(p, false)
	disjuncts := toDisjuncts(pushed)
	if len(disjuncts) > maxBranches {
		return p
	}
	children := make([]predicate.Predicate, 0, len(disjuncts))
	for _, conj := range disjuncts {
		children = append(children, predicate.And(conj...))
	}
	return predicate.Or(children...)
}

// pushNot recursively pushes negation down to leaves by De Morgan's
// laws. negate tracks whether the current subtree is under an odd
// number of enclosing Not nodes.
func pushNot(p predicate.Predicate, negate bool) predicate.Predicate {
	switch p.Kind {
	case predicate.KindNot:
		return pushNot(p.Children[0], !negate)

	case predicate.KindAnd:
		children := make([]predicate.Predicate, len(p.Children))
		for i, c := range p.Children {
			children[i] = pushNot(c, negate)
		}
		if negate {
			return predicate.Or(children...)
		}
		return predicate.And(children...)

	case predicate.KindOr:
		children := make([]predicate.Predicate, len(p.Children))
		for i, c := range p.Children {
			children[i] = pushNot(c, negate)
		}
		if negate {
			return predicate.And(children...)
		}
		return predicate.Or(children...)

	case predicate.KindFieldCmp, predicate.KindIn:
		if negate {
			return predicate.Not(p)
		}
		return p

	default:
		return p
	}
}

// toDisjuncts flattens a NOT-pushed predicate into its disjunctive
// normal form, represented as a slice of conjunctions (each a slice of
// leaves). AND distributes over OR via cross product, folded left to
// right, with nested ANDs flattened at each step.
func toDisjuncts(p predicate.Predicate) [][]predicate.Predicate {
	switch p.Kind {
	case predicate.KindFieldCmp, predicate.KindIn, predicate.KindNot:
		return [][]predicate.Predicate{{p}}

	case predicate.KindOr:
		var result [][]predicate.Predicate
		for _, child := range p.Children {
			result = append(result, toDisjuncts(child)...)
		}
		return result

	case predicate.KindAnd:
		acc := [][]predicate.Predicate{{}}
		for _, child := range p.Children {
			childDisjuncts := toDisjuncts(child)
			acc = crossProduct(acc, childDisjuncts)
		}
		return acc

	default:
		return [][]predicate.Predicate{{p}}
	}
}

// crossProduct computes (A1∨…∨Am) ∧ (B1∨…∨Bn) = OR(Ai∧Bj), flattening
// each Ai∧Bj conjunction into a single leaf slice.
func crossProduct(left, right [][]predicate.Predicate) [][]predicate.Predicate {
	result := make([][]predicate.Predicate, 0, len(left)*len(right))
	for _, a := range left {
		for _, b := range right {
			conj := make([]predicate.Predicate, 0, len(a)+len(b))
			conj = append(conj, a...)
			conj = append(conj, b...)
			result = append(result, conj)
		}
	}
	return result
}
