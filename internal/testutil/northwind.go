package testutil

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/roach88/odapt/internal/ir"
	"github.com/roach88/odapt/internal/schema"
)

// NorthwindCUE is the Northwind fixture schema in CUE form.
//
//go:embed northwind.cue
var NorthwindCUE string

// Northwind returns the Northwind fixture schema.
// Panics if the embedded schema does not compile (programming error).
func Northwind() *schema.Schema {
	s, err := schema.LoadString(NorthwindCUE, "northwind.cue")
	if err != nil {
		panic(fmt.Sprintf("northwind fixture: %v", err))
	}
	return s
}

// Rows is a set of rows for one table.
type Rows struct {
	Table   string
	Records []*ir.Record
}

// Loader accepts fixture rows. Implemented by store.Store.
type Loader interface {
	Load(ctx context.Context, table string, rows ...*ir.Record) error
}

// NorthwindRows returns the fixture rows, in load order.
func NorthwindRows() []Rows {
	r := ir.RecordOf
	p := ir.P
	s := func(v string) ir.Value { return ir.String(v) }
	i := func(v int64) ir.Value { return ir.Int(v) }
	f := func(v float64) ir.Value { return ir.Float(v) }
	b := func(v bool) ir.Value { return ir.Bool(v) }

	return []Rows{
		{Table: "Categories", Records: []*ir.Record{
			r(p("CategoryID", i(1)), p("CategoryName", s("Beverages")), p("Description", s("Soft drinks, coffees, teas, beers, and ales"))),
			r(p("CategoryID", i(2)), p("CategoryName", s("Condiments")), p("Description", s("Sweet and savory sauces, relishes, spreads, and seasonings"))),
			r(p("CategoryID", i(4)), p("CategoryName", s("Dairy Products")), p("Description", s("Cheeses"))),
			r(p("CategoryID", i(5)), p("CategoryName", s("Grains/Cereals")), p("Description", s("Breads, crackers, pasta, and cereal"))),
		}},
		{Table: "Products", Records: []*ir.Record{
			r(p("ProductID", i(1)), p("ProductName", s("Chai")), p("CategoryID", i(1)), p("UnitPrice", f(18)), p("UnitsInStock", i(39)), p("Discontinued", b(false))),
			r(p("ProductID", i(2)), p("ProductName", s("Chang")), p("CategoryID", i(1)), p("UnitPrice", f(19)), p("UnitsInStock", i(17)), p("Discontinued", b(false))),
			r(p("ProductID", i(3)), p("ProductName", s("Aniseed Syrup")), p("CategoryID", i(2)), p("UnitPrice", f(10)), p("UnitsInStock", i(13)), p("Discontinued", b(false))),
			r(p("ProductID", i(4)), p("ProductName", s("Chef Anton's Cajun Seasoning")), p("CategoryID", i(2)), p("UnitPrice", f(22)), p("UnitsInStock", i(53)), p("Discontinued", b(false))),
			r(p("ProductID", i(5)), p("ProductName", s("Chef Anton's Gumbo Mix")), p("CategoryID", i(2)), p("UnitPrice", f(21.35)), p("UnitsInStock", i(0)), p("Discontinued", b(true))),
			r(p("ProductID", i(11)), p("ProductName", s("Queso Cabrales")), p("CategoryID", i(4)), p("UnitPrice", f(21)), p("UnitsInStock", i(22)), p("Discontinued", b(false))),
			r(p("ProductID", i(42)), p("ProductName", s("Singaporean Hokkien Fried Mee")), p("CategoryID", i(5)), p("UnitPrice", f(14)), p("UnitsInStock", i(26)), p("Discontinued", b(true))),
		}},
		{Table: "Customers", Records: []*ir.Record{
			r(p("CustomerID", s("ALFKI")), p("CompanyName", s("Alfreds Futterkiste")), p("City", s("Berlin")), p("Country", s("Germany"))),
			r(p("CustomerID", s("ANATR")), p("CompanyName", s("Ana Trujillo Emparedados y helados")), p("City", s("México D.F.")), p("Country", s("Mexico"))),
			r(p("CustomerID", s("VINET")), p("CompanyName", s("Vins et alcools Chevalier")), p("City", s("Reims")), p("Country", s("France"))),
		}},
		{Table: "Orders", Records: []*ir.Record{
			r(p("OrderID", i(10248)), p("CustomerID", s("VINET")), p("ShipCity", s("Reims"))),
			r(p("OrderID", i(10643)), p("CustomerID", s("ALFKI")), p("ShipCity", s("Berlin"))),
		}},
		{Table: "OrderDetails", Records: []*ir.Record{
			r(p("OrderID", i(10248)), p("ProductID", i(11)), p("UnitPrice", f(14)), p("Quantity", i(12)), p("Discount", f(0))),
			r(p("OrderID", i(10248)), p("ProductID", i(42)), p("UnitPrice", f(9.8)), p("Quantity", i(10)), p("Discount", f(0))),
			r(p("OrderID", i(10643)), p("ProductID", i(2)), p("UnitPrice", f(19)), p("Quantity", i(15)), p("Discount", f(0.25))),
		}},
		{Table: "Ships", Records: []*ir.Record{
			r(p("TransportID", i(1)), p("ShipName", s("Titanic"))),
		}},
		{Table: "Trucks", Records: []*ir.Record{
			r(p("TransportID", i(2)), p("TruckNumber", s("123456"))),
		}},
	}
}

// SeedNorthwind loads every fixture row.
func SeedNorthwind(ctx context.Context, l Loader) error {
	for _, rows := range NorthwindRows() {
		if err := l.Load(ctx, rows.Table, rows.Records...); err != nil {
			return fmt.Errorf("seed %s: %w", rows.Table, err)
		}
	}
	return nil
}
