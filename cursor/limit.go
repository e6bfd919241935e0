package cursor

import (
	"context"

	"github.com/brindledata/recordquery"
	"github.com/brindledata/recordquery/plan"
)

type limitCursor struct {
	child   Cursor
	n       int
	emitted int
}

func openLimit(ctx context.Context, env Env, node plan.Node) (Cursor, error) {
	child, err := Open(ctx, env, *node.Child)
	if err != nil {
		return nil, err
	}
	return &limitCursor{child: child, n: node.N}, nil
}

func (c *limitCursor) Next(ctx context.Context) bool {
	if c.emitted >= c.n {
		return false
	}
	if !c.child.Next(ctx) {
		return false
	}
	c.emitted++
	return true
}

func (c *limitCursor) Record() recordquery.Record { return c.child.Record() }
func (c *limitCursor) Err() error                 { return c.child.Err() }
func (c *limitCursor) Close() error               { return c.child.Close() }
