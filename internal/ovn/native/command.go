package native

import (
	"context"

	"github.com/danmuck/ovsfront/internal/ovsdb"
	"github.com/danmuck/ovsfront/internal/ovsdb/idl"
)

// Command stages its changes through run. A command that inserts a row
// reports the committed uuid string as its result.
type Command struct {
	api      *API
	run      func(txn *idl.Txn, cmd *Command) error
	inserted *idl.Row
	result   any
}

func (a *API) newCommand(run func(txn *idl.Txn, cmd *Command) error) *Command {
	return &Command{api: a, run: run}
}

func (c *Command) reset() {
	c.inserted = nil
	c.result = nil
}

func (c *Command) committed(res *idl.TxnResult) {
	if c.inserted == nil {
		return
	}
	if id, ok := res.UUID(c.inserted); ok {
		c.result = id.String()
	}
}

func (c *Command) Result() any {
	return c.result
}

func (c *Command) Execute(ctx context.Context) (any, error) {
	txn := c.api.Transaction(ovsdb.DefaultTxnOptions())
	txn.Add(c)
	if err := txn.Commit(ctx); err != nil {
		return nil, err
	}
	return c.result, nil
}
