package cursor

import (
	"context"

	"github.com/brindledata/recordquery"
	"github.com/brindledata/recordquery/plan"
)

// intersectionCursor streams a sort-merge intersection over k children,
// each producing pk-ordered records. Advances the child with the
// smallest current key until all k children share the same key, or any
// child is exhausted. Adapted from the same federated_merge.go
// merge-by-key idiom as unionCursor, narrowed from "any match" to
// "all match".
type intersectionCursor struct {
	env      Env
	pkExpr   recordquery.KeyExpression
	children []Cursor
	current  []recordquery.Record
	keys     []recordquery.Tuple
	started  bool
	cur      recordquery.Record
	err      error
}

func openIntersection(ctx context.Context, env Env, node plan.Node) (Cursor, error) {
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
	return &intersectionCursor{
		env:      env,
		pkExpr:   node.PKExpr,
		children: children,
		current:  make([]recordquery.Record, len(children)),
		keys:     make([]recordquery.Tuple, len(children)),
	}, nil
}

func (c *intersectionCursor) pull(ctx context.Context, i int) bool {
	if !c.children[i].Next(ctx) {
		if err := c.children[i].Err(); err != nil {
			c.err = err
		}
		c.current[i] = nil
		c.keys[i] = nil
		return false
	}
	rec := c.children[i].Record()
	key, err := c.env.Accessor.ExtractPrimaryKey(rec, c.pkExpr)
	if err != nil {
		c.err = err
		return false
	}
	c.current[i] = rec
	c.keys[i] = key
	return true
}

func (c *intersectionCursor) ensureStarted(ctx context.Context) bool {
	if c.started {
		return true
	}
	c.started = true
	for i := range c.children {
		if !c.pull(ctx, i) && c.err != nil {
			return false
		}
	}
	return true
}

func (c *intersectionCursor) Next(ctx context.Context) bool {
	if !c.ensureStarted(ctx) {
		return false
	}

	for {
		for _, rec := range c.current {
			if rec == nil {
				return false
			}
		}

		maxKey := c.keys[0]
		for _, k := range c.keys[1:] {
			if k.Compare(maxKey) > 0 {
				maxKey = k
			}
		}

		allMatch := true
		for i, k := range c.keys {
			if k.Compare(maxKey) < 0 {
				allMatch = false
				if !c.pull(ctx, i) {
					return false
				}
			}
		}

		if allMatch {
			c.cur = c.current[0]
			for i := range c.children {
				c.pull(ctx, i)
			}
			return true
		}
	}
}

func (c *intersectionCursor) Record() recordquery.Record { return c.cur }
func (c *intersectionCursor) Err() error                 { return c.err }
func (c *intersectionCursor) Close() error {
	var firstErr error
	for _, child := range c.children {
		if err := child.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
