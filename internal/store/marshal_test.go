package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/inkwell/internal/field"
)

func TestMarshalFields_Empty(t *testing.T) {
	text, err := marshalFields(field.Map{})
	require.NoError(t, err)
	assert.Equal(t, "{}", text)
}

func TestMarshalFields_SortedKeys(t *testing.T) {
	text, err := marshalFields(field.Map{
		"title": field.String("First"),
		"done":  field.Bool(false),
		"count": field.Int(3),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"count":3,"done":false,"title":"First"}`, text)
}

func TestMarshalFields_List(t *testing.T) {
	text, err := marshalFields(field.Map{
		"tags": field.List{field.String("b"), field.String("a")},
	})
	require.NoError(t, err)
	// Stored order is preserved; ordering is a comparison concern, not a
	// storage concern.
	assert.Equal(t, `{"tags":["b","a"]}`, text)
}

func TestUnmarshalFields_RoundTrip(t *testing.T) {
	original := field.Map{
		"title": field.String("First"),
		"count": field.Int(3),
		"done":  field.Bool(true),
		"tags":  field.List{field.String("a"), field.String("b")},
	}

	text, err := marshalFields(original)
	require.NoError(t, err)

	decoded, err := unmarshalFields(text)
	require.NoError(t, err)
	assert.False(t, field.Dirty(decoded, original))
	assert.IsType(t, field.Int(0), decoded["count"])
	assert.IsType(t, field.List{}, decoded["tags"])
}

func TestUnmarshalFields_Empty(t *testing.T) {
	for _, text := range []string{"", "{}"} {
		decoded, err := unmarshalFields(text)
		require.NoError(t, err)
		assert.Empty(t, decoded)
	}
}

func TestUnmarshalFields_Invalid(t *testing.T) {
	_, err := unmarshalFields("{not json")
	require.Error(t, err)
}
