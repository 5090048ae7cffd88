package ovsdb

import (
	"fmt"
	"sort"
	"strings"
)

// ColumnValue is one column argument for set/find style ctl commands.
type ColumnValue struct {
	Column string
	Op     string
	Value  any
}

// Col builds an equality column argument.
func Col(column string, value any) ColumnValue {
	return ColumnValue{Column: column, Op: "=", Value: value}
}

// ColOp builds a column argument with an explicit comparison operator.
func ColOp(column, op string, value any) ColumnValue {
	return ColumnValue{Column: column, Op: op, Value: value}
}

// ColumnsFromMap turns a Columns map into equality arguments in column order.
func ColumnsFromMap(cols Columns) []ColumnValue {
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]ColumnValue, 0, len(names))
	for _, name := range names {
		out = append(out, Col(name, cols[name]))
	}
	return out
}

// ColumnArgs renders column arguments the way ovs-vsctl and ovn-nbctl
// expect them: maps expand to one col:key=value per key, lists are comma
// joined and an empty list is written as [].
func ColumnArgs(cols ...ColumnValue) []string {
	args := make([]string, 0, len(cols))
	for _, c := range cols {
		op := c.Op
		if op == "" {
			op = "="
		}
		switch val := c.Value.(type) {
		case map[string]string:
			keys := make([]string, 0, len(val))
			for k := range val {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				args = append(args, fmt.Sprintf("%s:%s%s%s", c.Column, k, op, FormatValue(val[k])))
			}
		case Map:
			m := StringMap(val)
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				args = append(args, fmt.Sprintf("%s:%s%s%s", c.Column, k, op, m[k]))
			}
		case []string:
			args = append(args, listArg(c.Column, op, AsSet(val)))
		case Set:
			args = append(args, listArg(c.Column, op, val))
		default:
			args = append(args, fmt.Sprintf("%s%s%s", c.Column, op, FormatValue(val)))
		}
	}
	return args
}

func listArg(column, op string, items Set) string {
	if len(items) == 0 {
		return column + op + "[]"
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, FormatValue(item))
	}
	return column + op + strings.Join(parts, ",")
}
