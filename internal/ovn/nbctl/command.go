package nbctl

import (
	"context"
	"strconv"
	"strings"

	"github.com/danmuck/ovsfront/internal/ovsdb"
)

// Command is a list of ovn-nbctl sub-commands. Each segment is written
// after its own "--" separator.
type Command struct {
	cfg      Config
	segments [][]string
	// ids are the row symbols ("@name") the command declares with --id.
	ids    []string
	result any
}

func newCommand(cfg Config, segments ...[]string) *Command {
	return &Command{cfg: cfg, segments: segments}
}

// declares records row symbols so a transaction can keep them unique.
func (c *Command) declares(ids ...string) *Command {
	c.ids = append(c.ids, ids...)
	return c
}

func (c *Command) Args() []string {
	return c.renderArgs(nil)
}

// renderArgs writes the segments with row symbols replaced per rename.
func (c *Command) renderArgs(rename map[string]string) []string {
	var out []string
	for _, seg := range c.segments {
		out = append(out, "--")
		for _, arg := range seg {
			if to, ok := rename[arg]; ok {
				arg = to
			} else if sym, ok := strings.CutPrefix(arg, "--id="); ok && rename[sym] != "" {
				arg = "--id=" + rename[sym]
			}
			out = append(out, arg)
		}
	}
	return out
}

// Result is the trimmed stdout of the transaction the command ran in.
func (c *Command) Result() any {
	return c.result
}

func (c *Command) Execute(ctx context.Context) (any, error) {
	txn := newTransaction(c.cfg, ovsdb.DefaultTxnOptions())
	txn.Add(c)
	if err := txn.Commit(ctx); err != nil {
		return nil, err
	}
	return c.result, nil
}

func seg(parts ...string) []string {
	return parts
}

// quote writes s as an OVSDB string literal when the ctl value parser
// would otherwise split or misread it.
func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t:=,[]{}\"\\@") {
		return strconv.Quote(s)
	}
	return s
}

// columnArgs renders cols with string values and map entries quoted.
func columnArgs(cols ovsdb.Columns) []string {
	values := ovsdb.ColumnsFromMap(cols)
	for i, cv := range values {
		switch v := cv.Value.(type) {
		case string:
			values[i].Value = quote(v)
		case map[string]string:
			quoted := make(map[string]string, len(v))
			for k, val := range v {
				quoted[quote(k)] = quote(val)
			}
			values[i].Value = quoted
		}
	}
	return ovsdb.ColumnArgs(values...)
}
