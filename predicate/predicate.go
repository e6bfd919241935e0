// Package predicate implements the filter tree the query engine matches
// records against: a tagged variant (sum type) rather than an open
// interface hierarchy, so DNF rewriting and cost analysis can pattern
// match it exhaustively. Grounded on the teacher's Condition /
// CompositeCondition / KvCondition split (condition.go), generalized
// from a SQL-emitting tree to a locally-evaluated one.
package predicate

import (
	"github.com/brindledata/recordquery"
)

// Op is a field comparison operator.
type Op string

const (
	OpEq         Op = "eq"
	OpNeq        Op = "neq"
	OpLt         Op = "lt"
	OpLe         Op = "le"
	OpGt         Op = "gt"
	OpGe         Op = "ge"
	OpStartsWith Op = "starts_with"
	OpContains   Op = "contains"
)

// Kind discriminates the Predicate sum type.
type Kind int

const (
	KindFieldCmp Kind = iota
	KindIn
	KindAnd
	KindOr
	KindNot
)

// Predicate is a filter tree node. Exactly one set of fields is
// meaningful per Kind:
//   - FieldCmp: Field, Op, Value
//   - In: Field, Values
//   - And, Or: Children
//   - Not: Children[0]
type Predicate struct {
	Kind     Kind
	Field    string
	Op       Op
	Value    recordquery.TupleElement
	Values   []recordquery.TupleElement
	Children []Predicate
}

// FieldCmp builds a leaf comparison predicate.
func FieldCmp(field string, op Op, value recordquery.TupleElement) Predicate {
	return Predicate{Kind: KindFieldCmp, Field: field, Op: op, Value: value}
}

// In builds a leaf membership predicate. Neither this constructor nor
// the query façade rejects an empty values slice; an In leaf with no
// values matches no record.
func In(field string, values []recordquery.TupleElement) Predicate {
	return Predicate{Kind: KindIn, Field: field, Values: values}
}

// And combines children conjunctively. This constructor does not
// validate; an And with no children matches every record. The query
// façade never builds one: a builder with no leaves passes a nil filter.
func And(children ...Predicate) Predicate {
	return Predicate{Kind: KindAnd, Children: children}
}

// Or combines children disjunctively.
func Or(children ...Predicate) Predicate {
	return Predicate{Kind: KindOr, Children: children}
}

// Not negates a single child. Negation is a leaf property for FieldCmp
// and In nodes once DNF-normalized (dnf.Normalize never leaves a bare
// Not wrapping And/Or), but Not(FieldCmp) is valid input at any stage.
func Not(child Predicate) Predicate {
	return Predicate{Kind: KindNot, Children: []Predicate{child}}
}

// Match evaluates the predicate against a record via accessor. Multi-
// valued fields are matched under any semantics: a FieldCmp or In leaf
// is true if any extracted value satisfies it.
func Match(p Predicate, r recordquery.Record, accessor recordquery.RecordAccessor) (bool, error) {
	switch p.Kind {
	case KindFieldCmp:
		values, err := accessor.ExtractField(r, p.Field)
		if err != nil {
			return false, err
		}
		for _, v := range values {
			if compareOp(p.Op, v, p.Value) {
				return true, nil
			}
		}
		return false, nil

	case KindIn:
		values, err := accessor.ExtractField(r, p.Field)
		if err != nil {
			return false, err
		}
		for _, v := range values {
			for _, target := range p.Values {
				if v.Equal(target) {
					return true, nil
				}
			}
		}
		return false, nil

	case KindAnd:
		for _, child := range p.Children {
			ok, err := Match(child, r, accessor)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case KindOr:
		for _, child := range p.Children {
			ok, err := Match(child, r, accessor)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case KindNot:
		ok, err := Match(p.Children[0], r, accessor)
		if err != nil {
			return false, err
		}
		return !ok, nil

	default:
		return false, recordquery.NewInternalError("predicate: unknown kind", nil)
	}
}

// compareOp evaluates a single comparison of an extracted value against
// the predicate's operand. StartsWith/Contains are defined only when
// both sides are strings; otherwise they are false. Eq across differing
// tuple-element variants is false; Lt/Gt fall back to the type order
// (mirrors index ordering), matching Compare's cross-kind behavior.
func compareOp(op Op, extracted, operand recordquery.TupleElement) bool {
	switch op {
	case OpEq:
		return extracted.Equal(operand)
	case OpNeq:
		return !extracted.Equal(operand)
	case OpLt:
		return extracted.Compare(operand) < 0
	case OpLe:
		return extracted.Compare(operand) <= 0
	case OpGt:
		return extracted.Compare(operand) > 0
	case OpGe:
		return extracted.Compare(operand) >= 0
	case OpStartsWith:
		if extracted.Kind != recordquery.KindString || operand.Kind != recordquery.KindString {
			return false
		}
		return len(extracted.Str) >= len(operand.Str) && extracted.Str[:len(operand.Str)] == operand.Str
	case OpContains:
		if extracted.Kind != recordquery.KindString || operand.Kind != recordquery.KindString {
			return false
		}
		return stringContains(extracted.Str, operand.Str)
	default:
		return false
	}
}

func stringContains(s, substr string) bool {
	if len(substr) == 0 {
		return true
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
