package field

import (
	"fmt"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the types a record field may hold.
// Only String, Int, Bool, and List implement it. There is intentionally no
// float and no null variant: both break deterministic comparison.
type Value interface {
	fieldValue() // sealed
}

// String is a text field value.
type String string

func (String) fieldValue() {}

// Int is an integer field value. Always int64, never float64.
type Int int64

func (Int) fieldValue() {}

// Bool is a boolean field value.
type Bool bool

func (Bool) fieldValue() {}

// List is a list-valued field such as a tag collection.
// Lists compare as sets: element order is not significant.
type List []Value

func (List) fieldValue() {}

// Map holds a record's editable fields keyed by field name.
type Map map[string]Value

// Clone returns a deep copy of the map. The engine clones the working copy
// before handing it to a persistence call so in-flight requests never
// observe later edits.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v Value) Value {
	list, ok := v.(List)
	if !ok {
		return v // String, Int, Bool are immutable
	}
	out := make(List, len(list))
	for i, elem := range list {
		out[i] = cloneValue(elem)
	}
	return out
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's default string ordering compares UTF-8 bytes, which produces a
// DIFFERENT order for strings outside the BMP.
func (m Map) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units as required by
// RFC 8785 canonical JSON. utf16.Encode handles surrogate pairs correctly.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}

// FromAny converts a YAML- or JSON-decoded value into a Value.
// Floats that carry an exact integer value are accepted as Int (YAML parses
// all numbers via interface{}); fractional floats and nulls are rejected.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null field values are not supported")
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case int:
		return Int(int64(val)), nil
	case int64:
		return Int(val), nil
	case bool:
		return Bool(val), nil
	case float64:
		if val == float64(int64(val)) {
			return Int(int64(val)), nil
		}
		return nil, fmt.Errorf("float field values are not supported: %v", val)
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			fv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			list[i] = fv
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unsupported field value type %T", v)
	}
}

// MapFromAny converts a decoded map into a field Map.
func MapFromAny(in map[string]any) (Map, error) {
	if in == nil {
		return Map{}, nil
	}
	out := make(Map, len(in))
	for name, v := range in {
		fv, err := FromAny(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out[name] = fv
	}
	return out, nil
}

// ToAny converts a Value back into plain Go types for JSON/YAML output.
func ToAny(v Value) any {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Bool:
		return bool(val)
	case List:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToAny(elem)
		}
		return out
	default:
		return nil
	}
}

// MapToAny converts a field Map into a plain map for JSON/YAML output.
func MapToAny(m Map) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = ToAny(v)
	}
	return out
}
