package cursor

import (
	"context"
	"fmt"

	"github.com/brindledata/recordquery"
	"github.com/brindledata/recordquery/keyspace"
	"github.com/brindledata/recordquery/kvstore"
	"github.com/brindledata/recordquery/plan"
)

// basicCursor range-scans R/<type>/, deserializes, drops records whose
// type tag doesn't match expectedType, and applies an optional filter.
type basicCursor struct {
	env  Env
	node plan.Node
	iter kvstore.RangeIter
	cur  recordquery.Record
	err  error
}

func openFullScan(ctx context.Context, env Env, node plan.Node) (Cursor, error) {
	sub := keyspace.RecordsSubspace(node.ExpectedType)
	begin, end := sub.Range()
	iter, err := env.Store.Range(ctx, begin, end, env.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("cursor: full scan: %w", err)
	}
	return &basicCursor{env: env, node: node, iter: iter}, nil
}

func (c *basicCursor) Next(ctx context.Context) bool {
	for c.iter.Next(ctx) {
		rec, err := c.env.Accessor.Deserialize(c.node.ExpectedType, c.iter.KV().Value)
		if err != nil {
			c.err = fmt.Errorf("cursor: deserialize: %w", err)
			return false
		}
		if c.env.Accessor.RecordTypeOf(rec) != c.node.ExpectedType {
			continue
		}
		ok, err := matches(c.env, c.node.Filter, rec)
		if err != nil {
			c.err = err
			return false
		}
		if !ok {
			continue
		}
		c.cur = rec
		return true
	}
	c.err = c.iter.Err()
	return false
}

func (c *basicCursor) Record() recordquery.Record { return c.cur }
func (c *basicCursor) Err() error                 { return c.err }
func (c *basicCursor) Close() error               { return c.iter.Close() }
