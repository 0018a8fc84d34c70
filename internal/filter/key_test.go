package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/odapt/internal/expr"
	"github.com/roach88/odapt/internal/ir"
	"github.com/roach88/odapt/internal/schema"
)

func testSchema() *schema.Schema {
	return schema.MustBuild(
		schema.TableDef{
			Name: "Products",
			Key:  []string{"ProductID"},
			Columns: []schema.Column{
				{Name: "ProductID", Type: schema.TypeInt},
				{Name: "ProductName", Type: schema.TypeString},
			},
		},
		schema.TableDef{
			Name: "OrderDetails",
			Key:  []string{"OrderID", "ProductID"},
			Columns: []schema.Column{
				{Name: "OrderID", Type: schema.TypeInt},
				{Name: "ProductID", Type: schema.TypeInt},
				{Name: "Quantity", Type: schema.TypeInt},
			},
		},
	)
}

func TestAsKey(t *testing.T) {
	s := testSchema()
	details, _ := s.FindTable("OrderDetails")
	products, _ := s.FindTable("Products")
	col, lit := expr.Col, expr.Lit

	t.Run("single key", func(t *testing.T) {
		key, ok := Converter{}.AsKey(expr.Eq(col("ProductID"), lit(1)), products)
		require.True(t, ok)
		assert.Equal(t, []ir.Value{ir.Int(1)}, key.Values())
	})

	t.Run("compound key in key order", func(t *testing.T) {
		e := expr.And(expr.Eq(col("ProductID"), lit(11)), expr.Eq(lit(10248), col("orderid")))

		key, ok := Converter{}.AsKey(e, details)

		require.True(t, ok)
		assert.Equal(t, []string{"OrderID", "ProductID"}, key.Named.Keys())
		assert.Equal(t, []ir.Value{ir.Int(10248), ir.Int(11)}, key.Values())
	})

	notKeys := []struct {
		name  string
		table *schema.Table
		input expr.Expression
	}{
		{"nil", products, nil},
		{"partial compound", details, expr.Eq(col("OrderID"), lit(10248))},
		{"extra predicate", products, expr.And(expr.Eq(col("ProductID"), lit(1)), expr.Eq(col("ProductName"), lit("Chai")))},
		{"non key column", products, expr.Eq(col("ProductName"), lit("Chai"))},
		{"repeated key column", details, expr.And(expr.Eq(col("OrderID"), lit(1)), expr.Eq(col("OrderID"), lit(2)))},
		{"not eq", products, expr.Gt(col("ProductID"), lit(1))},
		{"or", products, expr.Or(expr.Eq(col("ProductID"), lit(1)), expr.Eq(col("ProductID"), lit(2)))},
		{"negated", products, expr.Negate(expr.Eq(col("ProductID"), lit(1)))},
		{"null literal", products, expr.Eq(col("ProductID"), lit(nil))},
		{"column to column", products, expr.Eq(col("ProductID"), col("ProductID"))},
	}

	for _, tt := range notKeys {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Converter{}.AsKey(tt.input, tt.table)
			assert.False(t, ok)
		})
	}
}

func TestResourceType(t *testing.T) {
	col, lit := expr.Col, expr.Lit
	e := expr.And(
		expr.Eq(col(ResourceTypeField), lit("Ships")),
		expr.Eq(col("ShipName"), lit("Titanic")),
	)

	t.Run("disabled", func(t *testing.T) {
		c := Converter{}
		assert.Equal(t, "", c.ExtractResourceType(e))
		assert.Equal(t, e, c.StripResourceType(e))
	})

	t.Run("enabled", func(t *testing.T) {
		c := Converter{IncludeResourceType: true}
		assert.Equal(t, "Ships", c.ExtractResourceType(e))
		assert.Equal(t, expr.Eq(col("ShipName"), lit("Titanic")), c.StripResourceType(e))
	})

	t.Run("only discriminator", func(t *testing.T) {
		c := Converter{IncludeResourceType: true}
		only := expr.Eq(lit("Trucks"), col(ResourceTypeField))
		assert.Equal(t, "Trucks", c.ExtractResourceType(only))
		assert.Nil(t, c.StripResourceType(only))
	})

	t.Run("nested under or is kept", func(t *testing.T) {
		c := Converter{IncludeResourceType: true}
		or := expr.Or(expr.Eq(col(ResourceTypeField), lit("Ships")), expr.Eq(col("TransportID"), lit(1)))
		assert.Equal(t, "", c.ExtractResourceType(or))
		assert.Equal(t, or, c.StripResourceType(or))
	})
}
