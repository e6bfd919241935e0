package recordquery

import "fmt"

// KeyExpressionKind discriminates the KeyExpression sum type.
type KeyExpressionKind int

const (
	KeyExprField KeyExpressionKind = iota
	KeyExprConcatenate
	KeyExprLiteral
)

// KeyExpression is the recursive Field/Concatenate/Literal sum from
// spec.md §3. Evaluating it against a record yields one or more tuples:
// multi-valued fields fan out, and a Concatenate's fan-out is the cross
// product of its children's fan-outs in child order.
type KeyExpression struct {
	Kind     KeyExpressionKind
	Field    string          // valid when Kind == KeyExprField
	Children []KeyExpression // valid when Kind == KeyExprConcatenate
	Literal  TupleElement    // valid when Kind == KeyExprLiteral
}

func Field(name string) KeyExpression {
	return KeyExpression{Kind: KeyExprField, Field: name}
}

func Concatenate(children ...KeyExpression) KeyExpression {
	return KeyExpression{Kind: KeyExprConcatenate, Children: children}
}

func Literal(v TupleElement) KeyExpression {
	return KeyExpression{Kind: KeyExprLiteral, Literal: v}
}

// Evaluate walks the expression against r using accessor's field
// extraction, returning every tuple produced by the fan-out of
// multi-valued fields.
func (k KeyExpression) Evaluate(r Record, accessor RecordAccessor) ([]Tuple, error) {
	switch k.Kind {
	case KeyExprField:
		values, err := accessor.ExtractField(r, k.Field)
		if err != nil {
			return nil, fmt.Errorf("evaluate field %q: %w", k.Field, err)
		}
		tuples := make([]Tuple, 0, len(values))
		for _, v := range values {
			tuples = append(tuples, Tuple{v})
		}
		return tuples, nil

	case KeyExprLiteral:
		return []Tuple{{k.Literal}}, nil

	case KeyExprConcatenate:
		combined := []Tuple{{}}
		for _, child := range k.Children {
			childTuples, err := child.Evaluate(r, accessor)
			if err != nil {
				return nil, err
			}
			combined = crossProduct(combined, childTuples)
		}
		return combined, nil

	default:
		return nil, fmt.Errorf("unknown key expression kind %d", k.Kind)
	}
}

func crossProduct(left []Tuple, right []Tuple) []Tuple {
	out := make([]Tuple, 0, len(left)*len(right))
	for _, l := range left {
		for _, r := range right {
			out = append(out, l.Concat(r))
		}
	}
	return out
}
