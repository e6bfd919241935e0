package cursor

import (
	"context"

	"github.com/brindledata/recordquery"
	"github.com/brindledata/recordquery/plan"
)

type filterCursor struct {
	env   Env
	child Cursor
	node  plan.Node
	cur   recordquery.Record
	err   error
}

func openFilter(ctx context.Context, env Env, node plan.Node) (Cursor, error) {
	child, err := Open(ctx, env, *node.Child)
	if err != nil {
		return nil, err
	}
	return &filterCursor{env: env, child: child, node: node}, nil
}

func (c *filterCursor) Next(ctx context.Context) bool {
	for c.child.Next(ctx) {
		rec := c.child.Record()
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
	c.err = c.child.Err()
	return false
}

func (c *filterCursor) Record() recordquery.Record { return c.cur }
func (c *filterCursor) Err() error                 { return c.err }
func (c *filterCursor) Close() error               { return c.child.Close() }
