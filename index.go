package recordquery

// IndexKind enumerates the index kinds from spec.md §3.
type IndexKind string

const (
	IndexKindValue IndexKind = "value"
	IndexKindCount IndexKind = "count"
	IndexKindSum   IndexKind = "sum"
	IndexKindMin   IndexKind = "min"
	IndexKindMax   IndexKind = "max"
	IndexKindRank  IndexKind = "rank"
)

// IsAggregate reports whether the index kind stores a maintained
// aggregate value rather than a value/rank entry.
func (k IndexKind) IsAggregate() bool {
	switch k {
	case IndexKindCount, IndexKindSum, IndexKindMin, IndexKindMax:
		return true
	default:
		return false
	}
}

// Index describes one secondary index of a RecordType, per spec.md §3.
// The root key expression's leading Concatenate children (if any) form
// the grouping prefix; the tail is the indexed/aggregated value. This
// shape is implicit rather than declared separately, matching the spec.
type Index struct {
	Name    string
	Kind    IndexKind
	Root    KeyExpression
	// Covering lists the record fields this index's stored tuple can
	// answer without a point-read, when CoveringCapable is true.
	Covering []string
	// CoveringCapable surfaces the capability flag from the covering
	// reconstruction Open Question (spec.md §9): the planner emits
	// CoveringIndexScan candidates only for Value indexes with it set.
	// The cursor still point-reads any entry the RecordAccessor cannot
	// reconstruct.
	CoveringCapable bool
}

// GroupingFields returns the field names of the grouping prefix: every
// child of a top-level Concatenate except the last. A non-Concatenate
// root, or a root with fewer than two children, has no grouping prefix.
func (idx Index) GroupingFields() []string {
	if idx.Root.Kind != KeyExprConcatenate || len(idx.Root.Children) < 2 {
		return nil
	}
	fields := make([]string, 0, len(idx.Root.Children)-1)
	for _, child := range idx.Root.Children[:len(idx.Root.Children)-1] {
		if child.Kind == KeyExprField {
			fields = append(fields, child.Field)
		}
	}
	return fields
}

// LeadingField returns the name of the first field this index scans on,
// i.e. the first component of its root expression (the first grouping
// field for aggregate/rank indexes, or the first indexed field for a
// Value index). Ok is false when the leading component isn't a field.
func (idx Index) LeadingField() (string, bool) {
	switch idx.Root.Kind {
	case KeyExprField:
		return idx.Root.Field, true
	case KeyExprConcatenate:
		if len(idx.Root.Children) == 0 {
			return "", false
		}
		first := idx.Root.Children[0]
		if first.Kind == KeyExprField {
			return first.Field, true
		}
		return "", false
	default:
		return "", false
	}
}

// IsComposite reports whether a Rank index has a non-empty grouping
// prefix (used to lift the topN/bottomN + where restriction, spec.md §4.I).
func (idx Index) IsComposite() bool {
	return len(idx.GroupingFields()) > 0
}
