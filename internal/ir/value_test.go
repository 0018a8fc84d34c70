package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	// Compile-time check via assignment
	var _ Value = Null{}
	var _ Value = String("test")
	var _ Value = Int(42)
	var _ Value = Float(1.5)
	var _ Value = Bool(true)
	var _ Value = Array{String("a"), Int(1)}
	var _ Value = NewRecord()
}

func TestFromGo(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected Value
	}{
		{"nil", nil, Null{}},
		{"string", "Chai", String("Chai")},
		{"int", 42, Int(42)},
		{"int64", int64(-1), Int(-1)},
		{"uint8", uint8(7), Int(7)},
		{"float", 18.5, Float(18.5)},
		{"bool", true, Bool(true)},
		{"bytes", []byte("x"), String("x")},
		{"json number int", json.Number("10248"), Int(10248)},
		{"json number float", json.Number("2.5"), Float(2.5)},
		{"value passthrough", String("ALFKI"), String("ALFKI")},
		{"array", []any{1, "a"}, Array{Int(1), String("a")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromGo(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFromGo_MapSortsKeys(t *testing.T) {
	got, err := FromGo(map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)

	rec, ok := got.(*Record)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, rec.Keys())
}

func TestFromGo_Unsupported(t *testing.T) {
	_, err := FromGo(struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")

	_, err = FromGo(uint64(1 << 63))
	require.Error(t, err)
}

func TestToGo(t *testing.T) {
	rec := RecordOf(P("id", Int(1)), P("tags", Array{String("a")}), P("gone", Null{}))

	got := ToGo(rec)

	assert.Equal(t, map[string]any{
		"id":   int64(1),
		"tags": []any{"a"},
		"gone": nil,
	}, got)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Int(1), Float(1.0)))
	assert.True(t, Equal(String("a"), String("a")))
	assert.True(t, Equal(Null{}, nil))
	assert.True(t, Equal(Array{Int(1)}, Array{Int(1)}))
	assert.True(t, Equal(RecordOf(P("a", Int(1))), RecordOf(P("a", Int(1)))))

	assert.False(t, Equal(Int(1), String("1")))
	assert.False(t, Equal(Bool(true), Int(1)))
	assert.False(t, Equal(Null{}, Int(0)))
	assert.False(t, Equal(RecordOf(P("a", Int(1))), RecordOf(P("b", Int(1)))))
}

func TestMarshalValue(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		expected string
	}{
		{"null", Null{}, "null"},
		{"string", String(`say "hi"`), `"say \"hi\""`},
		{"int", Int(-7), "-7"},
		{"float", Float(18.25), "18.25"},
		{"bool", Bool(false), "false"},
		{"array", Array{Int(1), Null{}}, "[1,null]"},
		{"record", RecordOf(P("z", Int(1)), P("a", Int(2))), `{"z":1,"a":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalValue(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(data))
		})
	}
}
