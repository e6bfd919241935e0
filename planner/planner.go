// Package planner implements the cost-based physical planner: cache
// lookup, algebraic rewrite, DNF normalization, candidate generation,
// costing, and selection (spec.md §4.H). Grounded on the teacher's
// Optimizer.GeneratePlan pipeline shape in
// internal/queryoptimizer/optimizer.go (validate → build filter → build
// sort → build plan → explain), retargeted from SQL generation to
// physical KV plan selection.
package planner

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/brindledata/recordquery"
	"github.com/brindledata/recordquery/plan"
	"github.com/brindledata/recordquery/predicate"
	"github.com/brindledata/recordquery/predicate/dnf"
	"github.com/brindledata/recordquery/stats"
)

// SortKey names a field and direction the caller wants results ordered
// by. The planner records it on Query for fingerprinting; in-memory
// sorting of plan output is the aggregate/query façade's job, not the
// physical planner's (spec.md's §4.H candidate rules never branch on
// sort order).
type SortKey struct {
	Field     string
	Ascending bool
}

// Query is the planner's input, built by the query façade: an optional
// filter, sort keys for cache fingerprinting, and an optional result
// limit. The record type is passed to Plan separately.
type Query struct {
	Filter   *predicate.Predicate
	SortKeys []SortKey
	Limit    int
}

// Planner costs and selects physical plans for queries against any record
// type passed to Plan, backed by a shared plan cache and statistics
// registry.
type Planner struct {
	cfg      recordquery.PlannerConfig
	registry *stats.Registry
	cache    *Cache
}

func New(cfg recordquery.PlannerConfig, registry *stats.Registry, cache *Cache) *Planner {
	return &Planner{cfg: cfg, registry: registry, cache: cache}
}

// Plan runs the full pipeline from spec.md §4.H and returns the chosen
// physical plan plus its explain diagnostics.
func (p *Planner) Plan(ctx context.Context, rt recordquery.RecordType, q Query) (plan.Node, plan.Explain, error) {
	fp := BuildFingerprint(rt.Name, q)
	if cached, ok := p.cache.Get(fp); ok {
		return cached.Node, cached.Explain, nil
	}

	fullFilter := q.Filter
	var rewritten *predicate.Predicate
	if fullFilter != nil {
		r := rewrite(*fullFilter)
		rewritten = &r
	}

	var normalized *predicate.Predicate
	if rewritten != nil {
		n := dnf.Normalize(*rewritten, p.cfg.MaxDNFBranches)
		normalized = &n
	}

	pkExpr := rt.PrimaryKey
	candidates := generateCandidates(rt, fullFilter, normalized, pkExpr, p.cfg.MaxInValues)
	if len(candidates) > p.cfg.MaxCandidatePlans {
		candidates = candidates[:p.cfg.MaxCandidatePlans]
	}

	rowCount := p.estimateRowCount(rt.Name)

	costedCandidates, err := p.costAll(ctx, candidates, rowCount, q.Limit)
	if err != nil {
		return plan.Node{}, plan.Explain{}, err
	}

	best := selectBest(costedCandidates, p.cfg.EnableHeuristicPruning, rt, p.registry)

	chosen := best.node
	if q.Limit > 0 && chosen.Kind != plan.KindEmpty {
		chosen = plan.Limit(chosen, q.Limit)
	}

	explain := buildExplain(best, chosen)
	p.cache.Put(fp, CachedPlan{Node: chosen, Explain: explain})
	return chosen, explain, nil
}

// costAll costs every candidate concurrently, bounded by len(candidates),
// matching the spec's cooperative-suspension execution model (§5): a
// cost function that consults remote statistics should not serialize
// unrelated candidates behind it. Grounded on the teacher's concurrent
// collaborator fan-out pattern, using golang.org/x/sync/errgroup the way
// the rest of the pack reaches for it over raw sync.WaitGroup.
func (p *Planner) costAll(ctx context.Context, candidates []plan.Node, rowCount float64, limit int) ([]costed, error) {
	out := make([]costed, len(candidates))
	g, ctx := errgroup.WithContext(ctx)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			out[i] = costCandidate(c, rowCount, p.registry, limit)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("planner: costing candidates: %w", err)
	}
	return out, nil
}

func (p *Planner) estimateRowCount(recordType string) float64 {
	if p.registry == nil {
		return 1000
	}
	ts, ok := p.registry.TableStats(recordType)
	if !ok || ts.RowCount == 0 {
		return 1000
	}
	return float64(ts.RowCount)
}

// selectBest picks the minimum-cost candidate, applying heuristic
// pruning shortcuts first when enabled (spec.md §4.H step 5): a unique
// Value-index equality scan is chosen immediately, and any candidate
// whose estimated selectivity exceeds 0.5 is skipped as long as a
// cheaper alternative survives.
func selectBest(candidates []costed, heuristicPruning bool, rt recordquery.RecordType, registry *stats.Registry) costed {
	if heuristicPruning {
		if unique, ok := findUniqueEqualityScan(candidates, rt, registry); ok {
			return unique
		}
		pruned := prunePoorSelectivity(candidates)
		if len(pruned) > 0 {
			candidates = pruned
		}
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.cost < best.cost {
			best = c
		}
	}
	return best
}

func findUniqueEqualityScan(candidates []costed, rt recordquery.RecordType, registry *stats.Registry) (costed, bool) {
	if registry == nil {
		return costed{}, false
	}
	for _, c := range candidates {
		if c.node.Kind != plan.KindIndexScan {
			continue
		}
		if len(c.node.BeginValues) == 0 || !c.node.BeginValues.Equal(c.node.EndValues) {
			continue
		}
		idxStats, ok := registry.IndexStats(c.node.Index.Name)
		if !ok {
			continue
		}
		ts, ok := registry.TableStats(rt.Name)
		if !ok || ts.RowCount == 0 {
			continue
		}
		if idxStats.DistinctValues == ts.RowCount {
			return c, true
		}
	}
	return costed{}, false
}

// prunePoorSelectivity drops candidates whose estimated selectivity
// exceeds 0.5, unless doing so would empty the candidate set (a
// low-selectivity plan is still better than none).
func prunePoorSelectivity(candidates []costed) []costed {
	var out []costed
	for _, c := range candidates {
		if c.selectivity <= 0.5 {
			out = append(out, c)
		}
	}
	return out
}

func buildExplain(best costed, chosen plan.Node) plan.Explain {
	desc := describeNode(best.node)
	if chosen.Kind == plan.KindLimit {
		return plan.Explain{
			Description:          fmt.Sprintf("Limit(%d)", chosen.N),
			Children:             []plan.Explain{{Description: desc, EstimatedCost: best.cost, EstimatedSelectivity: best.selectivity}},
			EstimatedCost:        best.cost,
			EstimatedSelectivity: best.selectivity,
		}
	}
	return plan.Explain{Description: desc, EstimatedCost: best.cost, EstimatedSelectivity: best.selectivity}
}

func describeNode(n plan.Node) string {
	switch n.Kind {
	case plan.KindFullScan:
		return fmt.Sprintf("FullScan(%s)", n.ExpectedType)
	case plan.KindIndexScan:
		return fmt.Sprintf("IndexScan(%s)", n.Index.Name)
	case plan.KindCoveringIndexScan:
		return fmt.Sprintf("CoveringIndexScan(%s)", n.Index.Name)
	case plan.KindIntersection:
		parts := describeChildren(n.Children)
		return "Intersection(" + parts + ")"
	case plan.KindUnion:
		parts := describeChildren(n.Children)
		return "Union(" + parts + ")"
	case plan.KindInJoin:
		return fmt.Sprintf("InJoin(%s, %d values)", n.Index.Name, len(n.Values))
	case plan.KindEmpty:
		return "Empty"
	default:
		return "Unknown"
	}
}

func describeChildren(children []plan.Node) string {
	names := make([]string, 0, len(children))
	for _, c := range children {
		names = append(names, describeNode(c))
	}
	sort.Strings(names)
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}
