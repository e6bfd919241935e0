// Package stats estimates predicate selectivity from table/index
// statistics for the planner's cost function. Grounded on the teacher's
// metadata cache shape (internal/metadata_loader.go, RWMutex-guarded
// lookup maps; internal/schema_metadata_cache.go, lazy
// load-then-cache), retargeted from schema metadata to row/histogram
// statistics.
package stats

import (
	"sync"
	"time"
)

// TableStats describes a record type's overall shape.
type TableStats struct {
	RowCount    int64
	AvgRowSize  float64
	SampleRate  float64
	CollectedAt time.Time
}

// IndexStats describes one index's value distribution.
type IndexStats struct {
	DistinctValues int64
	NullCount      int64
	MinValue       any
	MaxValue       any
	Histogram      *Histogram
}

// Bucket is one contiguous histogram bucket. The last bucket of a
// Histogram is upper-inclusive; all others are upper-exclusive.
type Bucket struct {
	LowerBound    any
	UpperBound    any
	Count         int64
	DistinctCount int64
}

// Histogram is a sequence of contiguous buckets covering an index's
// observed value range.
type Histogram struct {
	Buckets    []Bucket
	TotalCount int64
}

// Registry holds statistics for record types and indexes, refreshed out
// of band (e.g. by a periodic ANALYZE-style job) and read by the
// planner's cost function.
type Registry struct {
	mu         sync.RWMutex
	tableStats map[string]TableStats
	indexStats map[string]IndexStats
}

// NewRegistry returns an empty statistics registry.
func NewRegistry() *Registry {
	return &Registry{
		tableStats: make(map[string]TableStats),
		indexStats: make(map[string]IndexStats),
	}
}

// SetTableStats records statistics for a record type.
func (r *Registry) SetTableStats(recordType string, s TableStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tableStats[recordType] = s
}

// TableStats returns statistics for a record type, if present.
func (r *Registry) TableStats(recordType string) (TableStats, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.tableStats[recordType]
	return s, ok
}

// SetIndexStats records statistics for an index.
func (r *Registry) SetIndexStats(indexName string, s IndexStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexStats[indexName] = s
}

// IndexStats returns statistics for an index, if present.
func (r *Registry) IndexStats(indexName string) (IndexStats, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.indexStats[indexName]
	return s, ok
}

// EstimateEq estimates the selectivity of an equality predicate against
// value v using the index's histogram. Returns 0 when v falls outside
// every bucket.
func EstimateEq(h *Histogram, v any) float64 {
	if h == nil || h.TotalCount == 0 {
		return 0
	}
	for i, b := range h.Buckets {
		isLast := i == len(h.Buckets)-1
		if !bucketContains(b, v, isLast) {
			continue
		}
		if b.DistinctCount == 0 {
			return 0
		}
		return float64(b.Count) / (float64(b.DistinctCount) * float64(h.TotalCount))
	}
	return 0
}

// EstimateNeq estimates the selectivity of a not-equal predicate.
func EstimateNeq(h *Histogram, v any) float64 {
	return 1 - EstimateEq(h, v)
}

// EstimateRange estimates the selectivity of a range predicate
// [lo, hi]; either bound may be nil to mean unbounded on that side.
func EstimateRange(h *Histogram, lo, hi any) float64 {
	if h == nil || h.TotalCount == 0 {
		return 0
	}
	var sum float64
	for i, b := range h.Buckets {
		isLast := i == len(h.Buckets)-1
		frac := bucketOverlapFraction(b, lo, hi, isLast)
		sum += float64(b.Count) * frac
	}
	return sum / float64(h.TotalCount)
}

// EstimatePrefixOrSubstring returns the fixed conservative estimate
// spec'd for StartsWith/Contains predicates, which histograms cannot
// usefully bound.
func EstimatePrefixOrSubstring() float64 {
	return 0.1
}

func bucketContains(b Bucket, v any, isLast bool) bool {
	lowCmp, ok := compareAny(v, b.LowerBound)
	if !ok {
		return false
	}
	highCmp, ok := compareAny(v, b.UpperBound)
	if !ok {
		return false
	}
	if isLast {
		return lowCmp >= 0 && highCmp <= 0
	}
	return lowCmp >= 0 && highCmp < 0
}

// bucketOverlapFraction computes the fraction of bucket b's count that
// falls within [lo, hi]. Numeric buckets use linear interpolation;
// zero-width buckets return 0 or 1 by point containment; non-numeric
// buckets return 0.5 for a partial overlap and 1 for full containment.
func bucketOverlapFraction(b Bucket, lo, hi any, isLast bool) float64 {
	bLow, lowIsNum := asFloat(b.LowerBound)
	bHigh, highIsNum := asFloat(b.UpperBound)

	if !lowIsNum || !highIsNum {
		if cmp, ok := compareAny(b.LowerBound, b.UpperBound); ok && cmp == 0 {
			return pointOverlapFraction(b, lo, hi)
		}
		return nonNumericOverlapFraction(b, lo, hi, isLast)
	}

	if bLow == bHigh {
		return pointOverlapFraction(b, lo, hi)
	}

	loBound := bLow
	if lo != nil {
		if v, ok := asFloat(lo); ok && v > loBound {
			loBound = v
		}
	}
	hiBound := bHigh
	if hi != nil {
		if v, ok := asFloat(hi); ok && v < hiBound {
			hiBound = v
		}
	}
	if hiBound <= loBound {
		if hiBound == loBound && (lo == nil || hi == nil) {
			return 0
		}
		return 0
	}
	total := bHigh - bLow
	if total <= 0 {
		return 0
	}
	return (hiBound - loBound) / total
}

func pointOverlapFraction(b Bucket, lo, hi any) float64 {
	lowCmp, lowOK := true, true
	if lo != nil {
		cmp, ok := compareAny(b.LowerBound, lo)
		lowOK = ok
		lowCmp = ok && cmp >= 0
	}
	highCmp, highOK := true, true
	if hi != nil {
		cmp, ok := compareAny(b.LowerBound, hi)
		highOK = ok
		highCmp = ok && cmp <= 0
	}
	if lowOK && highOK && lowCmp && highCmp {
		return 1
	}
	return 0
}

func nonNumericOverlapFraction(b Bucket, lo, hi any, isLast bool) float64 {
	lowContained := lo == nil
	if !lowContained {
		if cmp, ok := compareAny(b.LowerBound, lo); ok {
			lowContained = cmp >= 0
		}
	}
	highContained := hi == nil
	if !highContained {
		if cmp, ok := compareAny(b.UpperBound, hi); ok {
			highContained = isLastOrLess(cmp, isLast)
		}
	}
	if lowContained && highContained {
		return 1
	}

	overlaps := true
	if hi != nil {
		if cmp, ok := compareAny(b.LowerBound, hi); ok && cmp > 0 {
			overlaps = false
		}
	}
	if lo != nil {
		if cmp, ok := compareAny(b.UpperBound, lo); ok && cmp < 0 {
			overlaps = false
		}
	}
	if !overlaps {
		return 0
	}
	return 0.5
}

func isLastOrLess(cmp int, isLast bool) bool {
	if isLast {
		return cmp <= 0
	}
	return cmp < 0
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func compareAny(a, b any) (int, bool) {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch {
		case as < bs:
			return -1, true
		case as > bs:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}
