// Package kvstore defines the minimal ordered key-value contract the
// query engine consumes (spec.md §6), plus concrete backends.
package kvstore

import "context"

// KV is one key-value pair returned from a range scan.
type KV struct {
	Key   []byte
	Value []byte
}

// RangeIter is a forward-only, single-consumer iterator over a key range.
// Implementations must release their underlying resources when Close is
// called, and on any exit path of a for-range style consumer.
type RangeIter interface {
	// Next advances the iterator. It returns false when the range is
	// exhausted or an error occurred; callers must check Err after a
	// false return.
	Next(ctx context.Context) bool
	KV() KV
	Err() error
	Close() error
}

// Txn is a transaction handle. Snapshot reads skip conflict detection;
// serializable reads (the default) participate in it. The isolation
// choice is fixed for the lifetime of the transaction (spec.md §5).
type Txn interface {
	Range(ctx context.Context, begin, end []byte, snapshot bool) (RangeIter, error)
	Get(ctx context.Context, key []byte, snapshot bool) ([]byte, bool, error)
	Commit(ctx context.Context) error
	Cancel(ctx context.Context) error
}

// Store opens transactions against an ordered key-value keyspace.
type Store interface {
	Begin(ctx context.Context) (Txn, error)

	// Range and Get are convenience one-shot operations that open and
	// commit/cancel their own transaction; the planner and cursors use
	// them when not already inside a caller-supplied transaction.
	Range(ctx context.Context, begin, end []byte, snapshot bool) (RangeIter, error)
	Get(ctx context.Context, key []byte, snapshot bool) ([]byte, bool, error)

	Close() error
}
