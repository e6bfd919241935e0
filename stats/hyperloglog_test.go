package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brindledata/recordquery"
)

func TestHyperLogLog_EstimateWithinTolerance(t *testing.T) {
	h := NewHyperLogLog()
	const n = 100000
	for i := 0; i < n; i++ {
		h.Add(recordquery.Int64(int64(i)))
	}
	est := h.Estimate()
	errFraction := math.Abs(est-float64(n)) / float64(n)
	assert.Less(t, errFraction, 0.05, "estimate %f too far from true count %d", est, n)
}

func TestHyperLogLog_DuplicatesDoNotInflateEstimate(t *testing.T) {
	h := NewHyperLogLog()
	for i := 0; i < 1000; i++ {
		h.Add(recordquery.Int64(42))
	}
	est := h.Estimate()
	assert.Less(t, est, 10.0)
}

func TestHyperLogLog_MergeIsCommutative(t *testing.T) {
	a := NewHyperLogLog()
	b := NewHyperLogLog()
	for i := 0; i < 500; i++ {
		a.Add(recordquery.Int64(int64(i)))
	}
	for i := 300; i < 800; i++ {
		b.Add(recordquery.Int64(int64(i)))
	}

	ab := NewHyperLogLog()
	*ab = *a
	ab.Merge(b)

	ba := NewHyperLogLog()
	*ba = *b
	ba.Merge(a)

	assert.Equal(t, ab.registers, ba.registers)
}

func TestHyperLogLog_MergeIsIdempotent(t *testing.T) {
	a := NewHyperLogLog()
	for i := 0; i < 500; i++ {
		a.Add(recordquery.Int64(int64(i)))
	}
	merged := NewHyperLogLog()
	*merged = *a
	merged.Merge(a)
	assert.Equal(t, a.registers, merged.registers)
}

func TestHashElement_DeterministicAcrossCalls(t *testing.T) {
	v := recordquery.Str("hello")
	h1 := hashElement(v)
	h2 := hashElement(v)
	assert.Equal(t, h1, h2)
}

func TestHashElement_DifferentKindsDifferentHashes(t *testing.T) {
	intHash := hashElement(recordquery.Int64(0))
	strHash := hashElement(recordquery.Str(""))
	assert.NotEqual(t, intHash, strHash)
}
