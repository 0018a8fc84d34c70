package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_PreservesInsertionOrder(t *testing.T) {
	rec := NewRecord()
	rec.Set("ProductName", String("Chai"))
	rec.Set("ProductID", Int(1))
	rec.Set("UnitPrice", Float(18))

	assert.Equal(t, []string{"ProductName", "ProductID", "UnitPrice"}, rec.Keys())
}

func TestRecord_SetExistingKeepsPosition(t *testing.T) {
	rec := RecordOf(P("a", Int(1)), P("b", Int(2)), P("c", Int(3)))

	rec.Set("a", Int(10))

	assert.Equal(t, []string{"a", "b", "c"}, rec.Keys())
	v, ok := rec.Get("a")
	require.True(t, ok)
	assert.Equal(t, Int(10), v)
}

func TestRecord_Delete(t *testing.T) {
	rec := RecordOf(P("a", Int(1)), P("b", Int(2)), P("c", Int(3)))

	assert.True(t, rec.Delete("b"))
	assert.False(t, rec.Delete("b"))
	assert.Equal(t, []string{"a", "c"}, rec.Keys())
	assert.Equal(t, 2, rec.Len())
}

func TestRecord_NilIsEmpty(t *testing.T) {
	var rec *Record

	assert.Equal(t, 0, rec.Len())
	assert.False(t, rec.Has("x"))
	assert.Nil(t, rec.Keys())
	assert.Nil(t, rec.Clone())

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestRecord_SetNilStoresNull(t *testing.T) {
	rec := NewRecord()
	rec.Set("x", nil)

	v, ok := rec.Get("x")
	require.True(t, ok)
	assert.Equal(t, Null{}, v)
}

func TestRecord_CloneIsIndependent(t *testing.T) {
	nested := RecordOf(P("City", String("Berlin")))
	rec := RecordOf(P("CustomerID", String("ALFKI")), P("Address", nested))

	clone := rec.Clone()
	clone.Set("CustomerID", String("ANATR"))
	clonedNested, _ := clone.Get("Address")
	clonedNested.(*Record).Set("City", String("Madrid"))

	v, _ := rec.Get("CustomerID")
	assert.Equal(t, String("ALFKI"), v)
	city, _ := nested.Get("City")
	assert.Equal(t, String("Berlin"), city)
}

func TestRecord_Range(t *testing.T) {
	rec := RecordOf(P("a", Int(1)), P("b", Int(2)), P("c", Int(3)))

	var seen []string
	rec.Range(func(key string, _ Value) bool {
		seen = append(seen, key)
		return key != "b"
	})

	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestRecord_JSONRoundTripKeepsOrder(t *testing.T) {
	input := `{"OrderID":10248,"ProductID":11,"UnitPrice":14.5,"Note":null,"Tags":["x",true],"Ship":{"City":"Reims"}}`

	rec, err := ParseRecord([]byte(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"OrderID", "ProductID", "UnitPrice", "Note", "Tags", "Ship"}, rec.Keys())
	v, _ := rec.Get("OrderID")
	assert.Equal(t, Int(10248), v)
	v, _ = rec.Get("UnitPrice")
	assert.Equal(t, Float(14.5), v)

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, input, string(out))
}

func TestRecord_UnmarshalRejectsNonObject(t *testing.T) {
	_, err := ParseRecord([]byte(`[1,2]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a JSON object")
}

func TestRecord_String(t *testing.T) {
	rec := RecordOf(P("ProductName", String("Chai")))
	assert.Equal(t, `{"ProductName":"Chai"}`, rec.String())
}
