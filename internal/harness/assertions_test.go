package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/odapt/internal/client"
	"github.com/roach88/odapt/internal/ir"
)

func intPtr(n int) *int { return &n }

func TestMatchSubset(t *testing.T) {
	rec := ir.RecordOf(
		ir.P("ProductID", ir.Int(1)),
		ir.P("ProductName", ir.String("Chai")),
		ir.P("UnitPrice", ir.Float(18)),
		ir.P("Discontinued", ir.Bool(false)),
	)

	tests := []struct {
		name     string
		expected map[string]any
		want     string
	}{
		{"empty", map[string]any{}, ""},
		{"match", map[string]any{"ProductName": "Chai", "UnitPrice": 18}, ""},
		{"numeric", map[string]any{"UnitPrice": 18.0, "ProductID": 1.0}, ""},
		{"mismatch", map[string]any{"ProductName": "Chang"}, `ProductName: expected "Chang", got "Chai"`},
		{"missing", map[string]any{"Color": "red"}, "Color: missing"},
		{"type", map[string]any{"Discontinued": "false"}, `Discontinued: expected "false", got false`},
		{
			"sorted",
			map[string]any{"ProductName": "x", "Color": "red"},
			`Color: missing; ProductName: expected "x", got "Chai"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchSubset(rec, tt.expected))
		})
	}
}

func TestCheckExpect(t *testing.T) {
	chai := ir.RecordOf(ir.P("ProductName", ir.String("Chai")))
	total := int64(5)
	wrongTotal := int64(4)

	tests := []struct {
		name   string
		expect *Expect
		out    outcome
		want   []string
	}{
		{"success without expect", nil, outcome{count: 1}, nil},
		{"error without expect", nil, outcome{err: client.NotFound("x")}, []string{"unexpected error: remote request failed (404 Not Found): x"}},
		{"expected error", &Expect{Error: "NOT_FOUND"}, outcome{err: client.NotFound("x")}, nil},
		{"wrong error", &Expect{Error: "CONFLICT"}, outcome{err: client.BadRequest("y")}, []string{"expected error CONFLICT, got BAD_REQUEST (remote request failed (400 Bad Request): y)"}},
		{"count", &Expect{Count: intPtr(2)}, outcome{count: 2}, nil},
		{"wrong count", &Expect{Count: intPtr(2)}, outcome{count: 1}, []string{"expected count 2, got 1"}},
		{"total", &Expect{Total: &total}, outcome{total: &total}, nil},
		{"missing total", &Expect{Total: &total}, outcome{}, []string{"expected a total count, got none"}},
		{"wrong total", &Expect{Total: &total}, outcome{total: &wrongTotal}, []string{"expected total 5, got 4"}},
		{"record", &Expect{Record: map[string]any{"ProductName": "Chai"}}, outcome{rows: []*ir.Record{chai}}, nil},
		{"record without rows", &Expect{Record: map[string]any{"ProductName": "Chai"}}, outcome{}, []string{"expected record map[ProductName:Chai], got no rows"}},
		{"rows length", &Expect{Rows: []map[string]any{{}, {}}}, outcome{rows: []*ir.Record{chai}}, []string{"expected 2 rows, got 1"}},
		{"rows", &Expect{Rows: []map[string]any{{"ProductName": "Chang"}}}, outcome{rows: []*ir.Record{chai}}, []string{`rows[0]: ProductName: expected "Chang", got "Chai"`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checkExpect(Step{Expect: tt.expect}, tt.out))
		})
	}
}

func TestAssertionError_Message(t *testing.T) {
	err := &AssertionError{Type: AssertRowCount, Table: "Products", Expected: "2 rows", Actual: "3 rows"}
	assert.Equal(t, "assertion failed: row_count on Products: expected 2 rows, got 3 rows", err.Error())
}
