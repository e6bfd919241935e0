package cursor

import (
	"context"

	"github.com/brindledata/recordquery"
	"github.com/brindledata/recordquery/plan"
)

// unionCursor streams a k-way merge union over children ordered by
// primary key, deduplicating by key. Adapted from the teacher's
// multi-source merge-by-key pattern in federated_merge.go
// (MergePersistentRecordsByTier), retargeted from a batch LWW merge
// across storage tiers to a streaming min-key-advance merge across
// plan children.
type unionCursor struct {
	env      Env
	pkExpr   recordquery.KeyExpression
	children []Cursor
	current  []recordquery.Record // nil entry means that child is exhausted or not yet pulled
	started  bool
	cur      recordquery.Record
	err      error
}

func openUnion(ctx context.Context, env Env, node plan.Node) (Cursor, error) {
	children := make([]Cursor, len(node.Children))
	for i, childNode := range node.Children {
		c, err := Open(ctx, env, childNode)
		if err != nil {
			for _, opened := range children[:i] {
				if opened != nil {
					opened.Close()
				}
			}
			return nil, err
		}
		children[i] = c
	}
	return &unionCursor{env: env, pkExpr: node.PKExpr, children: children, current: make([]recordquery.Record, len(children))}, nil
}

func (c *unionCursor) ensureStarted(ctx context.Context) bool {
	if c.started {
		return true
	}
	c.started = true
	for i, child := range c.children {
		if child.Next(ctx) {
			c.current[i] = child.Record()
		} else if err := child.Err(); err != nil {
			c.err = err
			return false
		}
	}
	return true
}

func (c *unionCursor) Next(ctx context.Context) bool {
	if !c.ensureStarted(ctx) {
		return false
	}

	minIdx := -1
	var minKey recordquery.Tuple
	for i, rec := range c.current {
		if rec == nil {
			continue
		}
		key, err := c.env.Accessor.ExtractPrimaryKey(rec, c.pkExpr)
		if err != nil {
			c.err = err
			return false
		}
		if minIdx == -1 || key.Compare(minKey) < 0 {
			minIdx = i
			minKey = key
		}
	}
	if minIdx == -1 {
		return false
	}

	c.cur = c.current[minIdx]

	for i, rec := range c.current {
		if rec == nil {
			continue
		}
		key, err := c.env.Accessor.ExtractPrimaryKey(rec, c.pkExpr)
		if err != nil {
			c.err = err
			return false
		}
		if key.Compare(minKey) != 0 {
			continue
		}
		if c.children[i].Next(ctx) {
			c.current[i] = c.children[i].Record()
		} else {
			if err := c.children[i].Err(); err != nil {
				c.err = err
				return false
			}
			c.current[i] = nil
		}
	}
	return true
}

func (c *unionCursor) Record() recordquery.Record { return c.cur }
func (c *unionCursor) Err() error                 { return c.err }
func (c *unionCursor) Close() error {
	var firstErr error
	for _, child := range c.children {
		if err := child.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
