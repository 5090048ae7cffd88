package vsctl

import (
	"context"
	"fmt"
	"strings"

	"github.com/danmuck/ovsfront/internal/logging"
	"github.com/danmuck/ovsfront/internal/ovsdb"
)

type command interface {
	ovsdb.Command
	vsctlArgs() []string
	setResult(raw string) error
}

// BaseCommand is one ovs-vsctl sub-command whose result is its raw output
// line.
type BaseCommand struct {
	cfg    Config
	cmd    string
	opts   []string
	args   []string
	result any
	self   command
}

func newBase(cfg Config, cmd string, opts, args []string) *BaseCommand {
	c := &BaseCommand{cfg: cfg, cmd: cmd, opts: opts, args: args}
	c.self = c
	return c
}

func (c *BaseCommand) vsctlArgs() []string {
	out := make([]string, 0, 2+len(c.opts)+len(c.args))
	out = append(out, "--")
	out = append(out, c.opts...)
	out = append(out, c.cmd)
	return append(out, c.args...)
}

func (c *BaseCommand) setResult(raw string) error {
	c.result = raw
	return nil
}

func (c *BaseCommand) Result() any {
	return c.result
}

func (c *BaseCommand) Execute(ctx context.Context) (any, error) {
	return executeOne(ctx, c.cfg, ovsdb.DefaultTxnOptions(), c.self)
}

func executeOne(ctx context.Context, cfg Config, opts ovsdb.TxnOptions, cmd command) (any, error) {
	txn := newTransaction(cfg, opts)
	txn.Add(cmd)
	if err := txn.Commit(ctx); err != nil {
		return nil, err
	}
	return cmd.Result(), nil
}

// MultiLineCommand splits its output on the escaped newlines --oneline
// produces.
type MultiLineCommand struct {
	*BaseCommand
	lines []string
}

func newMultiLine(cfg Config, cmd string, args []string) *MultiLineCommand {
	c := &MultiLineCommand{BaseCommand: newBase(cfg, cmd, nil, args)}
	c.self = c
	return c
}

func (c *MultiLineCommand) setResult(raw string) error {
	c.lines = []string{}
	if raw != "" {
		c.lines = strings.Split(raw, `\n`)
	}
	return nil
}

func (c *MultiLineCommand) Result() any {
	return c.lines
}

// DbCommand decodes the JSON table output of list/find.
type DbCommand struct {
	*BaseCommand
	rows []map[string]any
}

func newDb(cfg Config, cmd string, opts, args, columns []string) *DbCommand {
	if len(columns) > 0 {
		opts = append(opts, "--columns="+strings.Join(columns, ","))
	}
	c := &DbCommand{BaseCommand: newBase(cfg, cmd, opts, args)}
	c.self = c
	return c
}

type tableOutput struct {
	Headings []string `json:"headings"`
	Data     [][]any  `json:"data"`
}

func (c *DbCommand) setResult(raw string) error {
	c.rows = nil
	if raw == "" {
		return nil
	}
	var table tableOutput
	if err := ovsdb.UnmarshalJSON([]byte(raw), &table); err != nil {
		logging.Errorf("vsctl.DbCommand.setResult could not parse raw=%q err=%v", raw, err)
		return fmt.Errorf("vsctl: parse %s output: %w", c.cmd, err)
	}
	rows := make([]map[string]any, 0, len(table.Data))
	for _, record := range table.Data {
		row := make(map[string]any, len(table.Headings))
		for pos, heading := range table.Headings {
			if pos >= len(record) {
				break
			}
			v, err := ovsdb.DecodeValue(record[pos])
			if err != nil {
				return fmt.Errorf("vsctl: column %s: %w", heading, err)
			}
			row[heading] = v
		}
		rows = append(rows, row)
	}
	c.rows = rows
	return nil
}

func (c *DbCommand) Result() any {
	if c.rows == nil {
		return nil
	}
	return c.rows
}

// DbGetCommand narrows a single-column list to the bare value.
type DbGetCommand struct {
	*DbCommand
	column string
	value  any
}

func newDbGet(cfg Config, table, record, column string) *DbGetCommand {
	c := &DbGetCommand{DbCommand: newDb(cfg, "list", nil, []string{table, record}, []string{column}), column: column}
	c.self = c
	return c
}

func (c *DbGetCommand) setResult(raw string) error {
	c.value = nil
	if err := c.DbCommand.setResult(raw); err != nil {
		return err
	}
	if len(c.rows) > 0 {
		c.value = c.rows[0][c.column]
	}
	return nil
}

func (c *DbGetCommand) Result() any {
	return c.value
}

// BrExistsCommand reports whether listing the bridge produced any output.
// It never surfaces errors, since a missing bridge makes list fail.
type BrExistsCommand struct {
	*DbCommand
	exists bool
}

func newBrExists(cfg Config, name string) *BrExistsCommand {
	c := &BrExistsCommand{DbCommand: newDb(cfg, "list", nil, []string{"Bridge", name}, nil)}
	c.self = c
	return c
}

func (c *BrExistsCommand) setResult(raw string) error {
	c.exists = raw != ""
	return nil
}

func (c *BrExistsCommand) Result() any {
	return c.exists
}

func (c *BrExistsCommand) Execute(ctx context.Context) (any, error) {
	c.exists = false
	return executeOne(ctx, c.cfg, ovsdb.TxnOptions{}, c)
}
