package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/inkwell/internal/field"
)

// marshalFields converts a field map to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization, so the
// stored text (and the etag over it) is independent of map iteration
// order and Unicode representation.
func marshalFields(m field.Map) (string, error) {
	data, err := field.MarshalCanonical(m)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return string(data), nil
}

// unmarshalFields parses canonical JSON TEXT back into a field map.
// Decodes numbers via json.Number to avoid float64 precision loss for
// values beyond 2^53.
func unmarshalFields(data string) (field.Map, error) {
	if data == "" || data == "{}" {
		return field.Map{}, nil
	}

	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}

	out := make(field.Map, len(raw))
	for name, v := range raw {
		fv, err := valueFromJSON(v)
		if err != nil {
			return nil, fmt.Errorf("unmarshal field %q: %w", name, err)
		}
		out[name] = fv
	}
	return out, nil
}

// valueFromJSON converts a json.Number-aware decoded value.
func valueFromJSON(v any) (field.Value, error) {
	switch val := v.(type) {
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer number %q", val.String())
		}
		return field.Int(n), nil
	case []any:
		list := make(field.List, len(val))
		for i, elem := range val {
			fv, err := valueFromJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			list[i] = fv
		}
		return list, nil
	default:
		return field.FromAny(v)
	}
}
