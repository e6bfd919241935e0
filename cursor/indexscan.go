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

// indexScanCursor decodes each index key relative to the index
// subspace, extracts the trailing pkLen tuple elements as the primary
// key, point-reads the record, and applies the optional filter.
type indexScanCursor struct {
	env  Env
	node plan.Node
	sub  tuplecodec.Subspace
	iter kvstore.RangeIter
	cur  recordquery.Record
	err  error
}

func openIndexScan(ctx context.Context, env Env, node plan.Node) (Cursor, error) {
	begin, end := resolveIndexRange(node)
	iter, err := env.Store.Range(ctx, begin, end, env.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("cursor: index scan: %w", err)
	}
	return &indexScanCursor{
		env:  env,
		node: node,
		sub:  keyspace.IndexSubspace(node.Index.Name),
		iter: iter,
	}, nil
}

// resolveIndexRange takes the scan's first-component bounds from the
// plan's intersection window only when a window is attached and the plan
// carries neither begin nor end values. A plan with begin/end values of
// its own is scanned over those values unmodified; the window does not
// narrow them further.
func resolveIndexRange(node plan.Node) (begin, end []byte) {
	beginValues := node.BeginValues
	endValues := node.EndValues
	if node.Window != nil && len(beginValues) == 0 && len(endValues) == 0 {
		if node.Window.Lower != nil {
			beginValues = recordquery.Tuple{*node.Window.Lower}
		}
		if node.Window.Upper != nil {
			endValues = recordquery.Tuple{*node.Window.Upper}
		}
	}
	return keyspace.IndexRange(node.Index.Name, beginValues, endValues)
}

func (c *indexScanCursor) Next(ctx context.Context) bool {
	for c.iter.Next(ctx) {
		indexTuple, err := unpackSuffix(c.sub, c.iter.KV().Key)
		if err != nil {
			c.err = err
			return false
		}
		pk := extractPKFromIndexTuple(indexTuple, c.node.PKLen)

		rec, found, err := pointReadRecord(ctx, c.env, c.node.RecordName, pk)
		if err != nil {
			c.err = err
			return false
		}
		if !found {
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

func (c *indexScanCursor) Record() recordquery.Record { return c.cur }
func (c *indexScanCursor) Err() error                 { return c.err }
func (c *indexScanCursor) Close() error               { return c.iter.Close() }
