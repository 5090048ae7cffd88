package idl

import (
	"maps"

	"github.com/google/uuid"

	"github.com/danmuck/ovsfront/internal/ovsdb"
)

// Row is one database row. UUID is the row's uuid string, or the
// uuid-name of a row inserted by an uncommitted Txn.
type Row struct {
	Table  string
	UUID   string
	Fields map[string]any
}

func newRow(table, id string) *Row {
	return &Row{Table: table, UUID: id, Fields: make(map[string]any)}
}

// Clone returns a copy whose field map can be changed independently.
func (r *Row) Clone() *Row {
	if r == nil {
		return nil
	}
	out := &Row{Table: r.Table, UUID: r.UUID, Fields: make(map[string]any, len(r.Fields))}
	maps.Copy(out.Fields, r.Fields)
	return out
}

func (r *Row) Has(column string) bool {
	_, ok := r.Fields[column]
	return ok
}

func (r *Row) Get(column string) any {
	return r.Fields[column]
}

// String returns a string column, or "" when it is unset or not a string.
func (r *Row) String(column string) string {
	switch v := atom(r.Fields[column]).(type) {
	case string:
		return v
	default:
		return ""
	}
}

// Bool returns an optional boolean column; ok is false when unset.
func (r *Row) Bool(column string) (value bool, ok bool) {
	v, ok := atom(r.Fields[column]).(bool)
	return v, ok
}

func (r *Row) StringMap(column string) map[string]string {
	return ovsdb.StringMap(r.Fields[column])
}

// Refs returns the uuid strings held by a reference set column.
func (r *Row) Refs(column string) []string {
	set := ovsdb.AsSet(r.Fields[column])
	out := make([]string, 0, len(set))
	for _, v := range set {
		if id, ok := refString(v); ok {
			out = append(out, id)
		}
	}
	return out
}

// Ref converts a row into the value used to reference it from another row.
func (r *Row) Ref() any {
	if id, err := uuid.Parse(r.UUID); err == nil {
		return id
	}
	return ovsdb.NamedUUID(r.UUID)
}

func refString(v any) (string, bool) {
	switch id := v.(type) {
	case uuid.UUID:
		return id.String(), true
	case ovsdb.NamedUUID:
		return string(id), true
	case string:
		return id, true
	default:
		return "", false
	}
}

// atom unwraps a set holding exactly one element; OVSDB uses that shape
// for optional columns.
func atom(v any) any {
	if s, ok := v.(ovsdb.Set); ok {
		if len(s) == 1 {
			return s[0]
		}
		return nil
	}
	return v
}
