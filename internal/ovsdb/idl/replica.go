package idl

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/danmuck/ovsfront/internal/ovsdb"
)

// Event is the kind of change a monitor update made to a row.
type Event string

const (
	EventCreate Event = "create"
	EventUpdate Event = "update"
	EventDelete Event = "delete"
)

// RowChange is one row-level change produced by applying an update.
// For updates Old holds only the columns that changed, with their previous
// values. For deletes Old is the full removed row and Row is nil.
type RowChange struct {
	Event Event
	Table string
	Row   *Row
	Old   *Row
}

// RowUpdate is the per-row payload of an update notification.
type RowUpdate struct {
	Old map[string]json.RawMessage `json:"old,omitempty"`
	New map[string]json.RawMessage `json:"new,omitempty"`
}

// TableUpdates is the table-updates object of an update notification.
type TableUpdates map[string]map[string]RowUpdate

// Replica holds the rows of the registered tables.
type Replica struct {
	mu      sync.RWMutex
	schema  *Schema
	tables  map[string]map[string]*Row
	seq     uint64
	changed chan struct{}
}

// NewReplica registers the given tables, or every schema table when none
// are named.
func NewReplica(schema *Schema, tables ...string) (*Replica, error) {
	registered := sets.New[string](tables...)
	if registered.Len() == 0 {
		registered.Insert(schema.TableNames()...)
	}
	r := &Replica{
		schema:  schema,
		tables:  make(map[string]map[string]*Row, registered.Len()),
		changed: make(chan struct{}),
	}
	for _, name := range sets.List(registered) {
		if _, ok := schema.Tables[name]; !ok {
			return nil, fmt.Errorf("%w: unknown table %q", ErrInvalidSchema, name)
		}
		r.tables[name] = make(map[string]*Row)
	}
	return r, nil
}

func (r *Replica) Schema() *Schema {
	return r.schema
}

// Tables lists the registered tables in sorted order.
func (r *Replica) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MonitorRequests builds the monitor request object covering every
// registered column.
func (r *Replica) MonitorRequests() map[string]any {
	out := make(map[string]any)
	for _, table := range r.Tables() {
		out[table] = map[string]any{"columns": r.schema.ColumnNames(table)}
	}
	return out
}

// ApplyJSON applies a raw table-updates object.
func (r *Replica) ApplyJSON(data json.RawMessage) ([]RowChange, error) {
	var updates TableUpdates
	if err := json.Unmarshal(data, &updates); err != nil {
		return nil, fmt.Errorf("idl: decode table updates: %w", err)
	}
	return r.Apply(updates)
}

// Apply folds updates into the replica and returns the resulting changes
// in table, then uuid order.
func (r *Replica) Apply(updates TableUpdates) ([]RowChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tableNames := make([]string, 0, len(updates))
	for name := range updates {
		tableNames = append(tableNames, name)
	}
	sort.Strings(tableNames)

	var changes []RowChange
	for _, table := range tableNames {
		rows, ok := r.tables[table]
		if !ok {
			continue
		}
		ids := make([]string, 0, len(updates[table]))
		for id := range updates[table] {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			upd := updates[table][id]
			change, err := applyRow(rows, table, id, upd)
			if err != nil {
				return changes, err
			}
			if change != nil {
				changes = append(changes, *change)
			}
		}
	}
	if len(changes) > 0 {
		r.bumpLocked()
	}
	return changes, nil
}

func applyRow(rows map[string]*Row, table, id string, upd RowUpdate) (*RowChange, error) {
	oldFields, err := decodeFields(upd.Old)
	if err != nil {
		return nil, fmt.Errorf("idl: %s %s old: %w", table, id, err)
	}
	newFields, err := decodeFields(upd.New)
	if err != nil {
		return nil, fmt.Errorf("idl: %s %s new: %w", table, id, err)
	}

	switch {
	case upd.New == nil && upd.Old == nil:
		return nil, nil
	case upd.New == nil:
		existing, ok := rows[id]
		if !ok {
			existing = &Row{Table: table, UUID: id, Fields: oldFields}
		}
		delete(rows, id)
		return &RowChange{Event: EventDelete, Table: table, Old: existing.Clone()}, nil
	case upd.Old == nil:
		if _, ok := rows[id]; ok {
			// A create for a row we already hold is a full refresh.
			row := &Row{Table: table, UUID: id, Fields: newFields}
			rows[id] = row
			return &RowChange{Event: EventUpdate, Table: table, Row: row.Clone(), Old: &Row{Table: table, UUID: id, Fields: map[string]any{}}}, nil
		}
		row := &Row{Table: table, UUID: id, Fields: newFields}
		rows[id] = row
		return &RowChange{Event: EventCreate, Table: table, Row: row.Clone()}, nil
	default:
		row, ok := rows[id]
		if !ok {
			row = newRow(table, id)
			rows[id] = row
		}
		for col, v := range newFields {
			row.Fields[col] = v
		}
		return &RowChange{Event: EventUpdate, Table: table, Row: row.Clone(), Old: &Row{Table: table, UUID: id, Fields: oldFields}}, nil
	}
}

func decodeFields(raw map[string]json.RawMessage) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for col, data := range raw {
		v, err := ovsdb.DecodeJSON(data)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		out[col] = v
	}
	return out, nil
}

// ResyncJSON replaces the replica content with a full monitor dump taken
// after a reconnect and returns the difference as changes: rows new to the
// replica are creates, rows missing from the dump are deletes, and rows
// whose columns differ are updates whose Old holds the previous values of
// those columns.
func (r *Replica) ResyncJSON(data json.RawMessage) ([]RowChange, error) {
	var dump TableUpdates
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("idl: decode table updates: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tableNames := make([]string, 0, len(r.tables))
	for name := range r.tables {
		tableNames = append(tableNames, name)
	}
	sort.Strings(tableNames)

	var changes []RowChange
	for _, table := range tableNames {
		rows := r.tables[table]
		fresh := make(map[string]*Row, len(dump[table]))
		for id, upd := range dump[table] {
			if upd.New == nil {
				continue
			}
			fields, err := decodeFields(upd.New)
			if err != nil {
				return nil, fmt.Errorf("idl: %s %s new: %w", table, id, err)
			}
			fresh[id] = &Row{Table: table, UUID: id, Fields: fields}
		}

		ids := sets.KeySet(rows).Union(sets.KeySet(fresh))
		for _, id := range sets.List(ids) {
			prev, had := rows[id]
			next, has := fresh[id]
			switch {
			case had && !has:
				changes = append(changes, RowChange{Event: EventDelete, Table: table, Old: prev.Clone()})
			case !had && has:
				changes = append(changes, RowChange{Event: EventCreate, Table: table, Row: next.Clone()})
			default:
				old := &Row{Table: table, UUID: id, Fields: map[string]any{}}
				for col, v := range prev.Fields {
					if nv, ok := next.Fields[col]; !ok || !ValuesEqual(v, nv) {
						old.Fields[col] = v
					}
				}
				if len(old.Fields) == 0 && len(next.Fields) == len(prev.Fields) {
					continue
				}
				changes = append(changes, RowChange{Event: EventUpdate, Table: table, Row: next.Clone(), Old: old})
			}
		}
		r.tables[table] = fresh
	}
	r.bumpLocked()
	return changes, nil
}

// Clear drops every row, as needed before a fresh monitor dump.
func (r *Replica) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.tables {
		r.tables[name] = make(map[string]*Row)
	}
	r.bumpLocked()
}

func (r *Replica) bumpLocked() {
	r.seq++
	close(r.changed)
	r.changed = make(chan struct{})
}

// Seqno increases every time the replica content changes.
func (r *Replica) Seqno() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seq
}

// WaitForChange blocks until the sequence number moves past seq.
func (r *Replica) WaitForChange(ctx context.Context, seq uint64) error {
	for {
		r.mu.RLock()
		cur, ch := r.seq, r.changed
		r.mu.RUnlock()
		if cur != seq {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Row returns a copy of one row.
func (r *Replica) Row(table, id string) (*Row, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.tables[table][id]
	if !ok {
		return nil, false
	}
	return row.Clone(), true
}

// Rows returns copies of a table's rows in uuid order.
func (r *Replica) Rows(table string) []*Row {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rows := r.tables[table]
	ids := make([]string, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Row, 0, len(ids))
	for _, id := range ids {
		out = append(out, rows[id].Clone())
	}
	return out
}

// RowByValue returns the first row, in uuid order, whose column equals
// value.
func (r *Replica) RowByValue(table, column string, value any) (*Row, error) {
	for _, row := range r.Rows(table) {
		if ValuesEqual(row.Fields[column], value) {
			return row, nil
		}
	}
	return nil, ovsdb.RowNotFound(table, column, value)
}
