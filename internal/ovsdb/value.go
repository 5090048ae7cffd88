package ovsdb

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
)

// Set is an OVSDB set value.
type Set []any

// Map is an OVSDB map value.
type Map map[any]any

// NamedUUID references a row inserted earlier in the same transaction.
type NamedUUID string

// DecodeValue converts an OVSDB JSON value into its Go form: uuid.UUID for
// ["uuid",s], Set for ["set",[...]] and Map for ["map",[[k,v],...]]. Any
// other value is returned with json.Number narrowed to int64 or float64.
func DecodeValue(raw any) (any, error) {
	switch v := raw.(type) {
	case []any:
		if len(v) != 2 {
			return nil, fmt.Errorf("%w: array of length %d", ErrInvalidValue, len(v))
		}
		tag, ok := v[0].(string)
		if !ok {
			return nil, fmt.Errorf("%w: non-string tag %v", ErrInvalidValue, v[0])
		}
		switch tag {
		case "uuid":
			s, ok := v[1].(string)
			if !ok {
				return nil, fmt.Errorf("%w: uuid payload %v", ErrInvalidValue, v[1])
			}
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
			}
			return id, nil
		case "named-uuid":
			s, ok := v[1].(string)
			if !ok {
				return nil, fmt.Errorf("%w: named-uuid payload %v", ErrInvalidValue, v[1])
			}
			return NamedUUID(s), nil
		case "set":
			items, ok := v[1].([]any)
			if !ok {
				return nil, fmt.Errorf("%w: set payload %v", ErrInvalidValue, v[1])
			}
			out := make(Set, 0, len(items))
			for _, item := range items {
				d, err := DecodeValue(item)
				if err != nil {
					return nil, err
				}
				out = append(out, d)
			}
			return out, nil
		case "map":
			pairs, ok := v[1].([]any)
			if !ok {
				return nil, fmt.Errorf("%w: map payload %v", ErrInvalidValue, v[1])
			}
			out := make(Map, len(pairs))
			for _, p := range pairs {
				pair, ok := p.([]any)
				if !ok || len(pair) != 2 {
					return nil, fmt.Errorf("%w: map pair %v", ErrInvalidValue, p)
				}
				key, err := DecodeValue(pair[0])
				if err != nil {
					return nil, err
				}
				val, err := DecodeValue(pair[1])
				if err != nil {
					return nil, err
				}
				out[key] = val
			}
			return out, nil
		default:
			return nil, fmt.Errorf("%w: unknown tag %q", ErrInvalidValue, tag)
		}
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return f, nil
	default:
		return raw, nil
	}
}

// DecodeJSON decodes a raw OVSDB JSON value, preserving integer precision.
func DecodeJSON(data []byte) (any, error) {
	var raw any
	if err := UnmarshalJSON(data, &raw); err != nil {
		return nil, err
	}
	return DecodeValue(raw)
}

// EncodeValue converts a Go value into OVSDB JSON notation.
func EncodeValue(v any) any {
	switch val := v.(type) {
	case uuid.UUID:
		return []any{"uuid", val.String()}
	case NamedUUID:
		return []any{"named-uuid", string(val)}
	case Set:
		items := make([]any, 0, len(val))
		for _, item := range val {
			items = append(items, EncodeValue(item))
		}
		return []any{"set", items}
	case []string:
		items := make([]any, 0, len(val))
		for _, item := range val {
			items = append(items, item)
		}
		return []any{"set", items}
	case Map:
		keys := make([]any, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			return FormatValue(keys[i]) < FormatValue(keys[j])
		})
		pairs := make([]any, 0, len(val))
		for _, k := range keys {
			pairs = append(pairs, []any{EncodeValue(k), EncodeValue(val[k])})
		}
		return []any{"map", pairs}
	case map[string]string:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]any, 0, len(val))
		for _, k := range keys {
			pairs = append(pairs, []any{k, val[k]})
		}
		return []any{"map", pairs}
	case int:
		return int64(val)
	default:
		return v
	}
}

// FormatValue renders a value as a ctl command argument.
func FormatValue(v any) string {
	switch val := v.(type) {
	case bool:
		if val {
			return "true"
		}
		return "false"
	case string:
		if val == "" {
			return `""`
		}
		return val
	case NamedUUID:
		return "@" + string(val)
	case uuid.UUID:
		return val.String()
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(v)
	}
}

// StringMap narrows a decoded Map (or map[string]string) to string keys and
// values. Non-string entries are formatted.
func StringMap(v any) map[string]string {
	switch m := v.(type) {
	case map[string]string:
		out := make(map[string]string, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out
	case Map:
		out := make(map[string]string, len(m))
		for k, val := range m {
			out[FormatValue(k)] = FormatValue(val)
		}
		return out
	default:
		return map[string]string{}
	}
}

// AsSet normalizes a decoded value into a Set. OVSDB sends single-element
// sets as the bare atom.
func AsSet(v any) Set {
	switch s := v.(type) {
	case nil:
		return Set{}
	case Set:
		return s
	case []string:
		out := make(Set, 0, len(s))
		for _, item := range s {
			out = append(out, item)
		}
		return out
	default:
		return Set{v}
	}
}
