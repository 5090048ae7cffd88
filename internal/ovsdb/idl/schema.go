package idl

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Unlimited is the Max of an unbounded set or map column.
const Unlimited = -1

var ErrInvalidSchema = errors.New("idl: invalid schema")

type Schema struct {
	Name    string                 `json:"name"`
	Version string                 `json:"version"`
	Tables  map[string]TableSchema `json:"tables"`
}

type TableSchema struct {
	Columns map[string]ColumnSchema `json:"columns"`
	Indexes [][]string              `json:"indexes,omitempty"`
	IsRoot  bool                    `json:"isRoot,omitempty"`
}

type ColumnSchema struct {
	Type      ColumnType `json:"type"`
	Ephemeral bool       `json:"ephemeral,omitempty"`
	Mutable   *bool      `json:"mutable,omitempty"`
}

// BaseType is the key or value type of a column.
type BaseType struct {
	Type     string `json:"type"`
	RefTable string `json:"refTable,omitempty"`
	RefType  string `json:"refType,omitempty"`
}

func (b *BaseType) UnmarshalJSON(data []byte) error {
	var atomic string
	if err := json.Unmarshal(data, &atomic); err == nil {
		*b = BaseType{Type: atomic}
		return nil
	}
	type plain BaseType
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: base type %s", ErrInvalidSchema, data)
	}
	*b = BaseType(p)
	return nil
}

type ColumnType struct {
	Key   BaseType
	Value *BaseType
	Min   int
	Max   int
}

// IsMap reports whether the column holds key/value pairs.
func (c ColumnType) IsMap() bool {
	return c.Value != nil
}

// IsSet reports whether the column can hold anything other than exactly
// one atom.
func (c ColumnType) IsSet() bool {
	return c.Value == nil && !(c.Min == 1 && c.Max == 1)
}

func (c *ColumnType) UnmarshalJSON(data []byte) error {
	var atomic string
	if err := json.Unmarshal(data, &atomic); err == nil {
		*c = ColumnType{Key: BaseType{Type: atomic}, Min: 1, Max: 1}
		return nil
	}

	var raw struct {
		Key   BaseType        `json:"key"`
		Value *BaseType       `json:"value"`
		Min   *int            `json:"min"`
		Max   json.RawMessage `json:"max"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: column type %s", ErrInvalidSchema, data)
	}
	out := ColumnType{Key: raw.Key, Value: raw.Value, Min: 1, Max: 1}
	if raw.Min != nil {
		out.Min = *raw.Min
	}
	if len(raw.Max) > 0 {
		var s string
		if err := json.Unmarshal(raw.Max, &s); err == nil {
			if s != "unlimited" {
				return fmt.Errorf("%w: max %q", ErrInvalidSchema, s)
			}
			out.Max = Unlimited
		} else if err := json.Unmarshal(raw.Max, &out.Max); err != nil {
			return fmt.Errorf("%w: max %s", ErrInvalidSchema, raw.Max)
		}
	}
	*c = out
	return nil
}

// ParseSchema decodes a get_schema reply.
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	if s.Name == "" || len(s.Tables) == 0 {
		return nil, fmt.Errorf("%w: missing name or tables", ErrInvalidSchema)
	}
	return &s, nil
}

// TableNames returns the schema tables in sorted order.
func (s *Schema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ColumnNames returns a table's columns in sorted order.
func (s *Schema) ColumnNames(table string) []string {
	ts, ok := s.Tables[table]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(ts.Columns))
	for name := range ts.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
