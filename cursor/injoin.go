package cursor

import (
	"context"
	"fmt"

	"github.com/brindledata/recordquery"
	"github.com/brindledata/recordquery/keyspace"
	"github.com/brindledata/recordquery/kvstore"
	"github.com/brindledata/recordquery/plan"
)

// inJoinCursor runs one index range-scan per IN value, deduplicating
// emitted records by the canonical byte form of their record key.
type inJoinCursor struct {
	env    Env
	node   plan.Node
	values []recordquery.TupleElement
	valIdx int
	iter   kvstore.RangeIter
	seen   map[string]struct{}
	cur    recordquery.Record
	err    error
}

func openInJoin(ctx context.Context, env Env, node plan.Node) (Cursor, error) {
	return &inJoinCursor{
		env:    env,
		node:   node,
		values: node.Values,
		valIdx: -1,
		seen:   make(map[string]struct{}),
	}, nil
}

func (c *inJoinCursor) openNextValueScan(ctx context.Context) bool {
	c.valIdx++
	if c.valIdx >= len(c.values) {
		return false
	}
	if c.iter != nil {
		c.iter.Close()
	}
	value := c.values[c.valIdx]
	begin, end := keyspace.IndexRange(c.node.Index.Name, recordquery.Tuple{value}, recordquery.Tuple{value})
	iter, err := c.env.Store.Range(ctx, begin, end, c.env.Snapshot)
	if err != nil {
		c.err = fmt.Errorf("cursor: injoin scan for value: %w", err)
		return false
	}
	c.iter = iter
	return true
}

func (c *inJoinCursor) Next(ctx context.Context) bool {
	sub := keyspace.IndexSubspace(c.node.Index.Name)
	for {
		if c.iter == nil {
			if !c.openNextValueScan(ctx) {
				return false
			}
			continue
		}
		if !c.iter.Next(ctx) {
			if err := c.iter.Err(); err != nil {
				c.err = err
				return false
			}
			if !c.openNextValueScan(ctx) {
				return false
			}
			continue
		}

		indexTuple, err := unpackSuffix(sub, c.iter.KV().Key)
		if err != nil {
			c.err = err
			return false
		}
		pk := extractPKFromIndexTuple(indexTuple, c.node.PKLen)
		recordKey := string(keyspace.RecordKey(c.node.RecordName, pk))
		if _, dup := c.seen[recordKey]; dup {
			continue
		}

		rec, found, err := pointReadRecord(ctx, c.env, c.node.RecordName, pk)
		if err != nil {
			c.err = err
			return false
		}
		if !found {
			continue
		}
		c.seen[recordKey] = struct{}{}
		c.cur = rec
		return true
	}
}

func (c *inJoinCursor) Record() recordquery.Record { return c.cur }
func (c *inJoinCursor) Err() error                 { return c.err }
func (c *inJoinCursor) Close() error {
	if c.iter != nil {
		return c.iter.Close()
	}
	return nil
}
