package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAny_Conversions(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"string", "hello", String("hello")},
		{"int", 42, Int(42)},
		{"int64", int64(42), Int(42)},
		{"bool", true, Bool(true)},
		{"whole float", float64(7), Int(7)},
		{"list", []any{"a", 1}, List{String("a"), Int(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromAny_Rejects(t *testing.T) {
	_, err := FromAny(nil)
	assert.Error(t, err, "null")

	_, err = FromAny(3.5)
	assert.Error(t, err, "fractional float")

	_, err = FromAny([]any{"ok", nil})
	assert.Error(t, err, "null inside list")

	_, err = FromAny(map[string]any{"nested": "object"})
	assert.Error(t, err, "nested objects are not field values")
}

func TestMapFromAny_RoundTrip(t *testing.T) {
	in := map[string]any{
		"title": "note",
		"count": 3,
		"done":  false,
		"tags":  []any{"work", "home"},
	}

	m, err := MapFromAny(in)
	require.NoError(t, err)

	out := MapToAny(m)
	assert.Equal(t, "note", out["title"])
	assert.Equal(t, int64(3), out["count"])
	assert.Equal(t, false, out["done"])
	assert.Equal(t, []any{"work", "home"}, out["tags"])
}

func TestMapFromAny_NilInput(t *testing.T) {
	m, err := MapFromAny(nil)
	require.NoError(t, err)
	assert.NotNil(t, m)
	assert.Empty(t, m)
}

func TestClone_Independence(t *testing.T) {
	orig := Map{"tags": List{String("a"), String("b")}}
	clone := orig.Clone()

	clone["tags"].(List)[0] = String("mutated")

	assert.Equal(t, String("a"), orig["tags"].(List)[0],
		"mutating the clone must not affect the original")
}

func TestClone_Nil(t *testing.T) {
	var m Map
	assert.Nil(t, m.Clone())
}

func TestSortedKeys_UTF16Order(t *testing.T) {
	// U+1D306 (non-BMP, leading surrogate 0xD834) sorts before U+FF01 in
	// UTF-16 code units, but after it in UTF-8 byte order.
	m := Map{"\U0001D306": Int(1), "！": Int(2)}
	keys := m.SortedKeys()
	assert.Equal(t, []string{"\U0001D306", "！"}, keys)
}
