package idl

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/danmuck/ovsfront/internal/ovsdb"
)

type verify struct {
	table  string
	id     string
	column string
	value  any
}

// Txn stages row changes against a replica. Reads through a Txn see its
// own pending writes. Nothing touches the replica until the server echoes
// the committed changes back through the monitor.
type Txn struct {
	replica  *Replica
	inserted []*Row
	views    map[string]map[string]*Row
	dirty    map[string]map[string]sets.Set[string]
	deleted  map[string]sets.Set[string]
	verifies []verify
}

func NewTxn(replica *Replica) *Txn {
	return &Txn{
		replica: replica,
		views:   make(map[string]map[string]*Row),
		dirty:   make(map[string]map[string]sets.Set[string]),
		deleted: make(map[string]sets.Set[string]),
	}
}

func (t *Txn) Replica() *Replica {
	return t.replica
}

// Insert stages a new empty row in table and returns it. The row is
// addressed by its uuid-name until the transaction commits.
func (t *Txn) Insert(table string) *Row {
	name := "row" + strings.ReplaceAll(uuid.NewString(), "-", "_")
	row := newRow(table, name)
	t.inserted = append(t.inserted, row)
	t.view(table)[name] = row
	return row
}

func (t *Txn) view(table string) map[string]*Row {
	v, ok := t.views[table]
	if !ok {
		v = make(map[string]*Row)
		t.views[table] = v
	}
	return v
}

func (t *Txn) isDeleted(table, id string) bool {
	d, ok := t.deleted[table]
	return ok && d.Has(id)
}

// Get returns the staged view of a row. Mutate it through Set.
func (t *Txn) Get(table, id string) (*Row, bool) {
	if t.isDeleted(table, id) {
		return nil, false
	}
	if row, ok := t.view(table)[id]; ok {
		return row, true
	}
	row, ok := t.replica.Row(table, id)
	if !ok {
		return nil, false
	}
	t.view(table)[id] = row
	return row, true
}

// Rows returns the staged view of table: replica rows in uuid order
// followed by rows inserted in this transaction.
func (t *Txn) Rows(table string) []*Row {
	var out []*Row
	for _, row := range t.replica.Rows(table) {
		if staged, ok := t.Get(table, row.UUID); ok {
			out = append(out, staged)
		}
	}
	for _, row := range t.inserted {
		if row.Table == table && !t.isDeleted(table, row.UUID) {
			out = append(out, row)
		}
	}
	return out
}

// RowByValue is Replica.RowByValue over the staged view.
func (t *Txn) RowByValue(table, column string, value any) (*Row, error) {
	for _, row := range t.Rows(table) {
		if ValuesEqual(row.Fields[column], value) {
			return row, nil
		}
	}
	return nil, ovsdb.RowNotFound(table, column, value)
}

// Set writes one column of a staged row.
func (t *Txn) Set(row *Row, column string, value any) {
	staged, ok := t.Get(row.Table, row.UUID)
	if !ok {
		return
	}
	staged.Fields[column] = value
	if staged != row {
		row.Fields[column] = value
	}
	byID, ok := t.dirty[row.Table]
	if !ok {
		byID = make(map[string]sets.Set[string])
		t.dirty[row.Table] = byID
	}
	cols, ok := byID[row.UUID]
	if !ok {
		cols = sets.New[string]()
		byID[row.UUID] = cols
	}
	cols.Insert(column)
}

// Verify makes the commit fail with ErrTryAgain if column has changed in
// the database since the replica last saw it.
func (t *Txn) Verify(row *Row, column string) {
	if t.isInserted(row.UUID) {
		return
	}
	current, ok := t.replica.Row(row.Table, row.UUID)
	if !ok {
		return
	}
	t.verifies = append(t.verifies, verify{
		table:  row.Table,
		id:     row.UUID,
		column: column,
		value:  current.Fields[column],
	})
}

// Delete stages removal of a row. Deleting a row inserted by this
// transaction simply drops the insert.
func (t *Txn) Delete(row *Row) {
	d, ok := t.deleted[row.Table]
	if !ok {
		d = sets.New[string]()
		t.deleted[row.Table] = d
	}
	d.Insert(row.UUID)
}

func (t *Txn) isInserted(id string) bool {
	for _, row := range t.inserted {
		if row.UUID == id {
			return true
		}
	}
	return false
}

// Empty reports whether the transaction has nothing to send.
func (t *Txn) Empty() bool {
	return len(t.Operations()) == 0
}

// Operations renders the staged changes as OVSDB transact operations:
// waits first, then inserts, updates and deletes.
func (t *Txn) Operations() []Operation {
	var ops []Operation
	for _, v := range t.verifies {
		if t.isDeleted(v.table, v.id) {
			continue
		}
		timeout := 0
		ops = append(ops, Operation{
			Op:      "wait",
			Table:   v.table,
			Where:   whereUUID(v.id),
			Columns: []string{v.column},
			Until:   "==",
			Rows:    []map[string]any{{v.column: encodeColumn(v.value)}},
			Timeout: &timeout,
		})
	}
	for _, row := range t.inserted {
		if t.isDeleted(row.Table, row.UUID) {
			continue
		}
		ops = append(ops, Operation{
			Op:       "insert",
			Table:    row.Table,
			Row:      encodeRow(row.Fields, nil),
			UUIDName: row.UUID,
		})
	}
	for _, table := range sortedKeys(t.dirty) {
		for _, id := range sortedKeys(t.dirty[table]) {
			if t.isInserted(id) || t.isDeleted(table, id) {
				continue
			}
			row := t.views[table][id]
			ops = append(ops, Operation{
				Op:    "update",
				Table: table,
				Where: whereUUID(id),
				Row:   encodeRow(row.Fields, t.dirty[table][id]),
			})
		}
	}
	for _, table := range sortedKeys(t.deleted) {
		for _, id := range sets.List(t.deleted[table]) {
			if t.isInserted(id) {
				continue
			}
			ops = append(ops, Operation{
				Op:    "delete",
				Table: table,
				Where: whereUUID(id),
			})
		}
	}
	return ops
}

func whereUUID(id string) [][]any {
	return [][]any{{"_uuid", "==", []any{"uuid", id}}}
}

func encodeRow(fields map[string]any, only sets.Set[string]) map[string]any {
	out := make(map[string]any, len(fields))
	for col, v := range fields {
		if only != nil && !only.Has(col) {
			continue
		}
		out[col] = encodeColumn(v)
	}
	return out
}

// encodeColumn writes plain string sets and maps in OVSDB notation and
// leaves atoms alone.
func encodeColumn(v any) any {
	switch val := v.(type) {
	case nil:
		return []any{"set", []any{}}
	case []uuid.UUID:
		set := make(ovsdb.Set, 0, len(val))
		for _, id := range val {
			set = append(set, id)
		}
		return ovsdb.EncodeValue(set)
	default:
		return ovsdb.EncodeValue(v)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
