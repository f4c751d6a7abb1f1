package structured

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	doc := Map(map[string]Value{
		"business_name": String("Acme Imports"),
		"employees":     Int(12),
		"rating":        Float(4.5),
		"verified":      Bool(false),
		"categories":    List(String("food"), String("beverage")),
		"bank":          Map(map[string]Value{"iban": String("DE89 3704")}),
		"note":          Null,
	})

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var back Value
	require.NoError(t, json.Unmarshal(data, &back))

	name, ok := back.Get("business_name")
	require.True(t, ok)
	assert.Equal(t, "Acme Imports", name.Str())

	employees, _ := back.Get("employees")
	assert.Equal(t, KindInt, employees.Kind())
	assert.Equal(t, int64(12), employees.IntVal())

	rating, _ := back.Get("rating")
	assert.Equal(t, KindFloat, rating.Kind())
	assert.InDelta(t, 4.5, rating.FloatVal(), 1e-9)

	cats, _ := back.Get("categories")
	require.Equal(t, 2, cats.Len())
	assert.Equal(t, "food", cats.Items()[0].Str())

	note, ok := back.Get("note")
	require.True(t, ok)
	assert.True(t, note.IsNull())
}

func TestZeroValueIsNull(t *testing.T) {
	var v Value
	assert.True(t, v.IsNull())
	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestGetOnNonMap(t *testing.T) {
	_, ok := String("x").Get("key")
	assert.False(t, ok)
	assert.Nil(t, Int(1).Items())
	assert.Equal(t, 0, Bool(true).Len())
}

func TestFromAnyRejectsUnsupported(t *testing.T) {
	_, err := FromAny(struct{}{})
	require.Error(t, err)
}

func TestIntFloatDistinction(t *testing.T) {
	var v Value
	require.NoError(t, json.Unmarshal([]byte(`{"a": 3, "b": 3.25}`), &v))
	a, _ := v.Get("a")
	b, _ := v.Get("b")
	assert.Equal(t, KindInt, a.Kind())
	assert.Equal(t, KindFloat, b.Kind())
	assert.Equal(t, float64(3), a.FloatVal())
}

func TestKeysSorted(t *testing.T) {
	v := Map(map[string]Value{"b": Int(1), "a": Int(2), "c": Int(3)})
	assert.Equal(t, []string{"a", "b", "c"}, v.Keys())
}
