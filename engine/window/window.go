// Package window intersects range windows over a totally ordered
// domain — used when the planner finds multiple range predicates on
// the same indexed field and must combine them before choosing a scan.
package window

import "github.com/brindledata/recordquery"

// Window is a half-open or one-sided range [Lower, Upper). A nil bound
// means unbounded on that side.
type Window struct {
	Lower *recordquery.TupleElement
	Upper *recordquery.TupleElement
}

// Intersect combines windows: the result's lower bound is the max of
// all lower bounds, its upper bound is the min of all upper bounds.
// Empty returns true when the intersection is empty (lower >= upper).
func Intersect(windows ...Window) (result Window, empty bool) {
	for _, w := range windows {
		if w.Lower != nil {
			if result.Lower == nil || w.Lower.Compare(*result.Lower) > 0 {
				result.Lower = w.Lower
			}
		}
		if w.Upper != nil {
			if result.Upper == nil || w.Upper.Compare(*result.Upper) < 0 {
				result.Upper = w.Upper
			}
		}
	}
	if result.Lower != nil && result.Upper != nil && result.Lower.Compare(*result.Upper) >= 0 {
		return result, true
	}
	return result, false
}
