package idl

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"

	"github.com/danmuck/ovsfront/internal/ovsdb"
)

// Condition is a (column, op, value) row predicate. Supported ops are
// = == != < <= > >=.
type Condition struct {
	Column string
	Op     string
	Value  any
}

func Cond(column, op string, value any) Condition {
	return Condition{Column: column, Op: op, Value: value}
}

// Match evaluates the condition. A missing column is an error so callers
// can tell partial rows apart from non-matching ones.
func (c Condition) Match(row *Row) (bool, error) {
	if row == nil {
		return false, fmt.Errorf("idl: condition on nil row")
	}
	got, ok := row.Fields[c.Column]
	if !ok {
		return false, fmt.Errorf("idl: column %q not present in %s row", c.Column, row.Table)
	}
	switch c.Op {
	case "=", "==":
		return ValuesEqual(got, c.Value), nil
	case "!=":
		return !ValuesEqual(got, c.Value), nil
	case "<", "<=", ">", ">=":
		cmp, ok := compareOrdered(atom(got), c.Value)
		if !ok {
			return false, nil
		}
		switch c.Op {
		case "<":
			return cmp < 0, nil
		case "<=":
			return cmp <= 0, nil
		case ">":
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	default:
		return false, fmt.Errorf("idl: unsupported condition op %q", c.Op)
	}
}

// MatchAll reports whether every condition matches.
func MatchAll(row *Row, conds []Condition) (bool, error) {
	for _, c := range conds {
		ok, err := c.Match(row)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// ValuesEqual compares decoded OVSDB values, treating a one-element set as
// its atom and all integer kinds alike.
func ValuesEqual(a, b any) bool {
	a, b = normalize(a), normalize(b)
	if as, ok := a.(ovsdb.Set); ok {
		bs, ok := b.(ovsdb.Set)
		if !ok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !ValuesEqual(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	if isRef(a) || isRef(b) {
		ar, aok := refString(a)
		br, bok := refString(b)
		return aok && bok && strings.EqualFold(ar, br)
	}
	return reflect.DeepEqual(a, b)
}

func isRef(v any) bool {
	switch v.(type) {
	case uuid.UUID, ovsdb.NamedUUID:
		return true
	default:
		return false
	}
}

func normalize(v any) any {
	switch val := v.(type) {
	case ovsdb.Set:
		if len(val) == 1 {
			return normalize(val[0])
		}
		return val
	case []string:
		return normalize(ovsdb.AsSet(val))
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case map[string]string:
		out := make(ovsdb.Map, len(val))
		for k, v := range val {
			out[k] = v
		}
		return out
	default:
		return v
	}
}

func compareOrdered(a, b any) (int, bool) {
	a, b = normalize(a), normalize(b)
	switch av := a.(type) {
	case int64:
		switch bv := b.(type) {
		case int64:
			return cmpInt(av, bv), true
		case float64:
			return cmpFloat(float64(av), bv), true
		}
	case float64:
		switch bv := b.(type) {
		case int64:
			return cmpFloat(av, float64(bv)), true
		case float64:
			return cmpFloat(av, bv), true
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), true
		}
	}
	return 0, false
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
