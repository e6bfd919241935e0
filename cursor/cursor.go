// Package cursor executes physical plan nodes as lazy, forward-only,
// single-consumer record streams. Grounded on the teacher's
// rows.Close()-deferred iteration idiom (internal/postgres_repository.go)
// for the single-consumer contract, and on internal/federated_merge.go's
// current-per-source merge pattern for the streaming union/intersection
// cursors.
package cursor

import (
	"context"
	"fmt"

	"github.com/brindledata/recordquery"
	"github.com/brindledata/recordquery/keyspace"
	"github.com/brindledata/recordquery/kvstore"
	"github.com/brindledata/recordquery/plan"
	"github.com/brindledata/recordquery/predicate"
	"github.com/brindledata/recordquery/tuplecodec"
)

// Cursor is a lazy, forward-only, single-consumer record stream.
type Cursor interface {
	// Next advances the cursor. Returns false at end of stream or on
	// error; callers must check Err after a false return.
	Next(ctx context.Context) bool
	Record() recordquery.Record
	Err() error
	Close() error
}

// Env bundles the dependencies cursors need to read from the store.
type Env struct {
	Store    kvstore.Store
	Accessor recordquery.RecordAccessor
	Snapshot bool
}

// Open builds the cursor tree for a plan node.
func Open(ctx context.Context, env Env, node plan.Node) (Cursor, error) {
	switch node.Kind {
	case plan.KindEmpty:
		return &emptyCursor{}, nil
	case plan.KindFullScan:
		return openFullScan(ctx, env, node)
	case plan.KindIndexScan:
		return openIndexScan(ctx, env, node)
	case plan.KindCoveringIndexScan:
		return openCoveringIndexScan(ctx, env, node)
	case plan.KindIntersection:
		return openIntersection(ctx, env, node)
	case plan.KindUnion:
		return openUnion(ctx, env, node)
	case plan.KindInJoin:
		return openInJoin(ctx, env, node)
	case plan.KindFilter:
		return openFilter(ctx, env, node)
	case plan.KindLimit:
		return openLimit(ctx, env, node)
	default:
		return nil, recordquery.NewInternalError(fmt.Sprintf("cursor: unknown plan kind %d", node.Kind), nil)
	}
}

func matches(env Env, filter *predicate.Predicate, r recordquery.Record) (bool, error) {
	if filter == nil {
		return true, nil
	}
	return predicate.Match(*filter, r, env.Accessor)
}

func pointReadRecord(ctx context.Context, env Env, recordType string, pk recordquery.Tuple) (recordquery.Record, bool, error) {
	key := keyspace.RecordKey(recordType, pk)
	raw, ok, err := env.Store.Get(ctx, key, env.Snapshot)
	if err != nil {
		return nil, false, fmt.Errorf("cursor: point read: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	rec, err := env.Accessor.Deserialize(recordType, raw)
	if err != nil {
		return nil, false, fmt.Errorf("cursor: deserialize: %w", err)
	}
	return rec, true, nil
}

func extractPKFromIndexTuple(indexTuple recordquery.Tuple, pkLen int) recordquery.Tuple {
	return indexTuple[len(indexTuple)-pkLen:]
}

func unpackSuffix(sub tuplecodec.Subspace, key []byte) (recordquery.Tuple, error) {
	stripped, ok := sub.Strip(key)
	if !ok {
		return nil, fmt.Errorf("cursor: key %x not in expected subspace", key)
	}
	return tuplecodec.Unpack(stripped)
}

type emptyCursor struct{}

func (c *emptyCursor) Next(context.Context) bool  { return false }
func (c *emptyCursor) Record() recordquery.Record { return nil }
func (c *emptyCursor) Err() error                 { return nil }
func (c *emptyCursor) Close() error               { return nil }
