package cursor

import (
	"context"
	"fmt"

	"github.com/brindledata/recordquery"
	"github.com/brindledata/recordquery/keyspace"
	"github.com/brindledata/recordquery/kvstore"
	"github.com/brindledata/recordquery/plan"
	"github.com/brindledata/recordquery/tuplecodec"
)

// coveringIndexScanCursor reads index tuples only, reconstructing
// records directly from them. If the record accessor cannot
// reconstruct from this index, it falls back to a point read by
// primary key, same as indexScanCursor.
type coveringIndexScanCursor struct {
	env  Env
	node plan.Node
	sub  tuplecodec.Subspace
	iter kvstore.RangeIter
	cur  recordquery.Record
	err  error
}

func openCoveringIndexScan(ctx context.Context, env Env, node plan.Node) (Cursor, error) {
	begin, end := resolveIndexRange(node)
	iter, err := env.Store.Range(ctx, begin, end, env.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("cursor: covering index scan: %w", err)
	}
	return &coveringIndexScanCursor{
		env:  env,
		node: node,
		sub:  keyspace.IndexSubspace(node.Index.Name),
		iter: iter,
	}, nil
}

func (c *coveringIndexScanCursor) Next(ctx context.Context) bool {
	for c.iter.Next(ctx) {
		indexTuple, err := unpackSuffix(c.sub, c.iter.KV().Key)
		if err != nil {
			c.err = err
			return false
		}

		rec, ok := c.env.Accessor.ReconstructFromIndexTuple(c.node.Index, indexTuple)
		if !ok {
			pk := extractPKFromIndexTuple(indexTuple, c.node.PKLen)
			var found bool
			rec, found, err = pointReadRecord(ctx, c.env, c.node.RecordName, pk)
			if err != nil {
				c.err = err
				return false
			}
			if !found {
				continue
			}
		}

		matched, err := matches(c.env, c.node.Filter, rec)
		if err != nil {
			c.err = err
			return false
		}
		if !matched {
			continue
		}
		c.cur = rec
		return true
	}
	c.err = c.iter.Err()
	return false
}

func (c *coveringIndexScanCursor) Record() recordquery.Record { return c.cur }
func (c *coveringIndexScanCursor) Err() error                 { return c.err }
func (c *coveringIndexScanCursor) Close() error               { return c.iter.Close() }
