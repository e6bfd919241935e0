package planner

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/brindledata/recordquery/predicate"
)

// Fingerprint is a stable, parameterized cache key: the record type name,
// the sorted canonical form of the filter's leaves (field, op, a type tag
// but NOT the concrete value bytes), the limit, and the sort keys. Two
// queries that differ only in the literal values compared against yield
// the same fingerprint, matching spec.md §4.H's "parameterized caching"
// requirement — grounded on the teacher's base32.go canonical-encoding-
// for-a-key helper style.
type Fingerprint string

func BuildFingerprint(recordType string, q Query) Fingerprint {
	var b strings.Builder
	b.WriteString(recordType)
	b.WriteByte('|')

	leaves := canonicalLeaves(q.Filter)
	sort.Strings(leaves)
	b.WriteString(strings.Join(leaves, ","))
	b.WriteByte('|')

	b.WriteString(strconv.Itoa(q.Limit))
	b.WriteByte('|')

	sortParts := make([]string, 0, len(q.SortKeys))
	for _, sk := range q.SortKeys {
		dir := "asc"
		if !sk.Ascending {
			dir = "desc"
		}
		sortParts = append(sortParts, fmt.Sprintf("%s:%s", sk.Field, dir))
	}
	b.WriteString(strings.Join(sortParts, ","))

	return Fingerprint(b.String())
}

// canonicalLeaves walks p and returns one canonical token per leaf,
// naming the field, operator, and the *kind* (not value) of its operand
// so literal values don't fragment the cache.
func canonicalLeaves(p *predicate.Predicate) []string {
	if p == nil {
		return nil
	}
	var out []string
	var walk func(predicate.Predicate)
	walk = func(n predicate.Predicate) {
		switch n.Kind {
		case predicate.KindFieldCmp:
			out = append(out, fmt.Sprintf("cmp(%s,%s,%d)", n.Field, n.Op, n.Value.Kind))
		case predicate.KindIn:
			kind := -1
			if len(n.Values) > 0 {
				kind = int(n.Values[0].Kind)
			}
			out = append(out, fmt.Sprintf("in(%s,%d,%d)", n.Field, len(n.Values), kind))
		case predicate.KindNot:
			out = append(out, "not("+strings.Join(canonicalLeaves(&n.Children[0]), ",")+")")
		case predicate.KindAnd:
			for _, c := range n.Children {
				walk(c)
			}
		case predicate.KindOr:
			parts := make([]string, 0, len(n.Children))
			for _, c := range n.Children {
				parts = append(parts, canonicalLeaves(&c)...)
			}
			sort.Strings(parts)
			out = append(out, "or("+strings.Join(parts, ",")+")")
		}
	}
	walk(*p)
	return out
}
