package planner

import (
	"github.com/brindledata/recordquery"
	"github.com/brindledata/recordquery/plan"
	"github.com/brindledata/recordquery/predicate"
	"github.com/brindledata/recordquery/stats"
)

// Cost constants from spec.md §4.H's cost function. Relative, not
// absolute: an IndexScan's per-row constant is cheaper than a FullScan's
// since it skips deserializing and type-checking every row in R/, and a
// point read costs more than an index-entry read since it crosses the KV
// layer a second time.
const (
	costFullScan  = 1.0 // cFs
	costIndexScan = 0.3 // cIs
	costPointRead = 0.8 // cPt
	costMerge     = 0.1 // cMerge

	defaultSelectivity = 0.1
)

// costed pairs a candidate plan with its estimated cost and selectivity,
// carried together so selection and explain-building don't re-derive
// either.
type costed struct {
	node        plan.Node
	explain     plan.Explain
	cost        float64
	selectivity float64
}

// costCandidate estimates the cost of node against rt's row count,
// per spec.md §4.H's per-shape cost formulas.
func costCandidate(node plan.Node, rowCount float64, registry *stats.Registry, limit int) costed {
	var c costed
	switch node.Kind {
	case plan.KindFullScan:
		c = costFullScanNode(node, rowCount)
	case plan.KindIndexScan:
		c = costIndexScanNode(node, rowCount, registry)
	case plan.KindCoveringIndexScan:
		c = costCoveringIndexScanNode(node, rowCount, registry)
	case plan.KindIntersection:
		c = costIntersectionNode(node, rowCount, registry)
	case plan.KindUnion:
		c = costUnionNode(node, rowCount, registry)
	case plan.KindInJoin:
		c = costInJoinNode(node, rowCount, registry)
	case plan.KindEmpty:
		c = costed{node: node, cost: 0, selectivity: 0}
	default:
		c = costed{node: node, cost: rowCount * costFullScan, selectivity: 1}
	}

	if limit > 0 && c.selectivity > 0 {
		estimatedRows := c.selectivity * rowCount
		if estimatedRows > 0 {
			attenuation := float64(limit) / estimatedRows
			if attenuation > 1 {
				attenuation = 1
			}
			c.cost *= attenuation
		}
	}
	return c
}

func costFullScanNode(node plan.Node, n float64) costed {
	sel := estimateFilterSelectivity(node.Filter)
	return costed{node: node, cost: costFullScan * n, selectivity: sel}
}

func costIndexScanNode(node plan.Node, n float64, registry *stats.Registry) costed {
	s := estimateIndexSelectivity(node, registry)
	cost := costIndexScan*s*n + costPointRead*s*n
	return costed{node: node, cost: cost, selectivity: s}
}

func costCoveringIndexScanNode(node plan.Node, n float64, registry *stats.Registry) costed {
	s := estimateIndexSelectivity(node, registry)
	return costed{node: node, cost: costIndexScan * s * n, selectivity: s}
}

func costIntersectionNode(node plan.Node, n float64, registry *stats.Registry) costed {
	var total float64
	minSel := 1.0
	for _, child := range node.Children {
		s := estimateIndexSelectivity(child, registry)
		total += costIndexScan * s * n
		if s < minSel {
			minSel = s
		}
	}
	total += costMerge * minSel * n
	return costed{node: node, cost: total, selectivity: minSel}
}

func costUnionNode(node plan.Node, n float64, registry *stats.Registry) costed {
	var total, combinedSel float64
	for _, child := range node.Children {
		s := estimateIndexSelectivity(child, registry)
		total += (costIndexScan + costPointRead) * s * n
		// Union selectivity approximates inclusion-exclusion as a sum
		// capped at 1, since branch selectivities are assumed independent.
		combinedSel += s
	}
	if combinedSel > 1 {
		combinedSel = 1
	}
	return costed{node: node, cost: total, selectivity: combinedSel}
}

func costInJoinNode(node plan.Node, n float64, registry *stats.Registry) costed {
	m := float64(len(node.Values))
	sv := estimateIndexValueSelectivity(node.Index, registry)
	cost := m*costIndexScan*sv*n + m*costPointRead*sv*n
	sel := m * sv
	if sel > 1 {
		sel = 1
	}
	return costed{node: node, cost: cost, selectivity: sel}
}

// estimateIndexSelectivity reads the comparison this IndexScan/
// CoveringIndexScan candidate encodes back off its begin/end tuple and
// consults the index's histogram.
func estimateIndexSelectivity(node plan.Node, registry *stats.Registry) float64 {
	if registry == nil {
		return defaultSelectivity
	}
	idxStats, ok := registry.IndexStats(node.Index.Name)
	if !ok || idxStats.Histogram == nil {
		return defaultSelectivity
	}
	if len(node.BeginValues) == 0 && len(node.EndValues) == 0 {
		return 1
	}
	if len(node.BeginValues) > 0 && len(node.EndValues) > 0 && node.BeginValues.Equal(node.EndValues) {
		return stats.EstimateEq(idxStats.Histogram, tupleHeadValue(node.BeginValues[0]))
	}
	var lo, hi any
	if len(node.BeginValues) > 0 {
		lo = tupleHeadValue(node.BeginValues[0])
	}
	if len(node.EndValues) > 0 {
		hi = tupleHeadValue(node.EndValues[0])
	}
	return stats.EstimateRange(idxStats.Histogram, lo, hi)
}

func estimateIndexValueSelectivity(index recordquery.Index, registry *stats.Registry) float64 {
	if registry == nil {
		return defaultSelectivity
	}
	idxStats, ok := registry.IndexStats(index.Name)
	if !ok || idxStats.DistinctValues == 0 {
		return defaultSelectivity
	}
	return 1.0 / float64(idxStats.DistinctValues)
}

// estimateFilterSelectivity is FullScan's best-effort estimate: without
// a single index to consult it defaults to spec.md §4.H's "unknown
// selectivity defaults to 0.1", or 1 when there's no filter at all.
func estimateFilterSelectivity(filter *predicate.Predicate) float64 {
	if filter == nil {
		return 1
	}
	return defaultSelectivity
}

func tupleHeadValue(el recordquery.TupleElement) any {
	switch el.Kind {
	case recordquery.KindInt64:
		return el.Int64
	case recordquery.KindDouble:
		return el.Double
	case recordquery.KindString:
		return el.Str
	case recordquery.KindBool:
		return el.Bool
	case recordquery.KindBytes:
		return el.Bytes
	default:
		return nil
	}
}
