package command

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/odapt/internal/client"
	"github.com/roach88/odapt/internal/expr"
	"github.com/roach88/odapt/internal/filter"
	"github.com/roach88/odapt/internal/ir"
	"github.com/roach88/odapt/internal/schema"
	"github.com/roach88/odapt/internal/testutil"
)

func newBuilder() *Builder {
	return NewBuilder(testutil.Northwind(), filter.Converter{IncludeResourceType: true})
}

var (
	col = expr.Col
	lit = expr.Lit
)

func TestCommands_Golden(t *testing.T) {
	b := newBuilder()

	cases := []struct {
		name  string
		build func() (*QueryCommand, error)
	}{
		{"get_product", func() (*QueryCommand, error) {
			return b.FromKey("Products", ir.Int(1))
		}},
		{"get_customer", func() (*QueryCommand, error) {
			return b.FromKey("Customers", ir.String("ALFKI"))
		}},
		{"get_order_detail", func() (*QueryCommand, error) {
			return b.FromKey("OrderDetails", ir.Int(10248), ir.Int(11))
		}},
		{"find_by_key_criteria", func() (*QueryCommand, error) {
			return b.FromCriteria("OrderDetails", expr.And(expr.Eq(col("ProductID"), lit(11)), expr.Eq(col("OrderID"), lit(10248))))
		}},
		{"find_by_filter", func() (*QueryCommand, error) {
			return b.FromCriteria("Products", expr.And(expr.Eq(col("CategoryID"), lit(1)), expr.Gt(col("UnitPrice"), lit(18.5))))
		}},
		{"find_all", func() (*QueryCommand, error) {
			return b.FromCriteria("Customers", nil)
		}},
		{"derived_path", func() (*QueryCommand, error) {
			return b.FromCriteria("Ships", expr.Eq(col("ShipName"), lit("Titanic")))
		}},
		{"resource_type_override", func() (*QueryCommand, error) {
			return b.FromCriteria("Transport", expr.And(expr.Eq(col(filter.ResourceTypeField), lit("Ships")), expr.Eq(col("TransportID"), lit(1))))
		}},
		{"navigation", func() (*QueryCommand, error) {
			return b.FromQuery(expr.From("Categories.Products").
				Where(expr.Eq(col("CategoryID"), lit(1))).
				OrderBy("ProductName", expr.Descending).
				Skip(1).
				Take(2))
		}},
		{"navigation_filter", func() (*QueryCommand, error) {
			return b.FromQuery(expr.From("Customers.Orders").Where(expr.Ne(col("ShipCity"), lit("Reims"))))
		}},
		{"count", func() (*QueryCommand, error) {
			return b.FromQuery(expr.From("Products").Where(expr.Eq(col("Discontinued"), lit(true))).Select(expr.Count()))
		}},
		{"projection_expand_total", func() (*QueryCommand, error) {
			return b.FromQuery(expr.From("Orders").
				Select(expr.Ref("OrderID"), expr.Ref("ShipCity").As("City")).
				Expand("Customer").
				WithTotalCount(func(int64) {}))
		}},
	}

	var lines []string
	for _, c := range cases {
		cmd, err := c.build()
		require.NoError(t, err, c.name)
		lines = append(lines, fmt.Sprintf("%s: %s", c.name, cmd))
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "commands", []byte(strings.Join(lines, "\n")+"\n"))
}

func TestFromKey_ArityViolations(t *testing.T) {
	b := newBuilder()

	tests := []struct {
		name   string
		table  string
		values []ir.Value
	}{
		{"too few compound", "OrderDetails", []ir.Value{ir.Int(10248)}},
		{"too many compound", "OrderDetails", []ir.Value{ir.Int(10248), ir.Int(11), ir.Int(1)}},
		{"too many single", "Products", []ir.Value{ir.Int(1), ir.Int(2)}},
		{"none", "Products", nil},
		{"null value", "Products", []ir.Value{ir.Null{}}},
		{"named missing column", "OrderDetails", []ir.Value{ir.RecordOf(ir.P("OrderID", ir.Int(10248)), ir.P("Quantity", ir.Int(1)))}},
		{"named too short", "OrderDetails", []ir.Value{ir.RecordOf(ir.P("OrderID", ir.Int(10248)))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.FromKey(tt.table, tt.values...)
			require.Error(t, err)
			assert.True(t, IsKeyMismatch(err))
		})
	}
}

func TestFromKey_NamedKeyIsReordered(t *testing.T) {
	b := newBuilder()

	cmd, err := b.FromKey("OrderDetails", ir.RecordOf(ir.P("ProductID", ir.Int(11)), ir.P("OrderID", ir.Int(10248))))

	require.NoError(t, err)
	assert.Equal(t, []string{"OrderID", "ProductID"}, cmd.Key.Named.Keys())
	assert.Equal(t, "Order_Details(OrderID=10248,ProductID=11)", cmd.String())
}

func TestFromCriteria_KeyAndFilterExclusive(t *testing.T) {
	b := newBuilder()

	key, err := b.FromCriteria("Products", expr.Eq(col("ProductID"), lit(1)))
	require.NoError(t, err)
	assert.True(t, key.HasKey())
	assert.Empty(t, key.FilterText)
	assert.Nil(t, key.Filter)

	// Key plus another predicate falls back to filter text.
	mixed, err := b.FromCriteria("Products", expr.And(expr.Eq(col("ProductID"), lit(1)), expr.Eq(col("ProductName"), lit("Chai"))))
	require.NoError(t, err)
	assert.False(t, mixed.HasKey())
	assert.Equal(t, "ProductID eq 1 and ProductName eq 'Chai'", mixed.FilterText)
}

func TestFromCriteria_Errors(t *testing.T) {
	b := newBuilder()

	_, err := b.FromCriteria("Planes", nil)
	assert.True(t, schema.IsUnresolvedTable(err))

	_, err = b.FromCriteria("Categories.Suppliers", nil)
	assert.True(t, schema.IsUnresolvedTable(err))

	_, err = b.FromCriteria("Products", expr.Fn("soundex", col("ProductName")))
	var ue *filter.UnsupportedError
	assert.ErrorAs(t, err, &ue)

	// Resource type from another hierarchy.
	_, err = b.FromCriteria("Transport", expr.Eq(col(filter.ResourceTypeField), lit("Products")))
	assert.True(t, schema.IsUnresolvedTable(err))
}

func TestFromCriteria_ResourceTypeOnly(t *testing.T) {
	b := newBuilder()

	cmd, err := b.FromCriteria("Transport", expr.Eq(col(filter.ResourceTypeField), lit("Trucks")))

	require.NoError(t, err)
	assert.Empty(t, cmd.TargetType)
	assert.Equal(t, "Transport/Trucks", cmd.TablePath)
	assert.Equal(t, "Transport", cmd.EntitySet())
	assert.Equal(t, "Trucks", cmd.DerivedType())
	assert.False(t, cmd.HasKey())
	assert.Empty(t, cmd.FilterText)
}

func TestFromCriteria_ResourceTypeNarrowsNavigationTarget(t *testing.T) {
	b := NewBuilder(testutil.Fleet(), filter.Converter{IncludeResourceType: true})

	cmd, err := b.FromCriteria("Depots.Vehicles", expr.And(
		expr.Eq(col("DepotID"), lit(1)),
		expr.Eq(col(filter.ResourceTypeField), lit("Trucks")),
	))
	require.NoError(t, err)
	assert.Equal(t, "Depots", cmd.Table.Name)
	assert.Equal(t, "Trucks", cmd.Target.Name)
	assert.Equal(t, "Trucks", cmd.TargetType)
	assert.Empty(t, cmd.DerivedType())
	assert.Equal(t, "Depots(1)/Vehicles/Trucks", cmd.String())

	rec := &recordingCommand{}
	cmd.Apply(rec)
	assert.Equal(t, []string{"Key(1)", "NavigateTo(Vehicles)", "As(Trucks)"}, rec.calls)

	cmd, err = b.FromQuery(expr.From("Depots.Vehicles").Where(expr.And(
		expr.Eq(col(filter.ResourceTypeField), lit("Ships")),
		expr.Ne(col("ShipName"), lit("Bremen")),
	)))
	require.NoError(t, err)
	assert.Equal(t, "Depots/Vehicles/Ships?$filter=ShipName ne 'Bremen'", cmd.String())

	// Naming the target itself narrows nothing.
	cmd, err = b.FromCriteria("Depots.Vehicles", expr.Eq(col(filter.ResourceTypeField), lit("Transport")))
	require.NoError(t, err)
	assert.Empty(t, cmd.TargetType)
	assert.Equal(t, "Depots/Vehicles", cmd.String())
}

func TestFromCriteria_ResourceTypeOutsideNavigationTarget(t *testing.T) {
	b := newBuilder()
	criteria := expr.And(
		expr.Eq(col("CategoryID"), lit(1)),
		expr.Eq(col(filter.ResourceTypeField), lit("Ships")),
	)

	_, err := b.FromCriteria("Categories.Products", criteria)
	assert.True(t, schema.IsUnresolvedTable(err))

	_, err = b.FromQuery(expr.From("Categories.Products").Where(criteria))
	assert.True(t, schema.IsUnresolvedTable(err))

	_, err = b.FromCriteria("Categories.Products", expr.Eq(col(filter.ResourceTypeField), lit("Planes")))
	assert.True(t, schema.IsUnresolvedTable(err))
}

func TestFromQuery_OrderByUsesAlias(t *testing.T) {
	b := newBuilder()

	cmd, err := b.FromQuery(expr.From("Products").
		Add(expr.OrderBy{Column: expr.Ref("UnitPrice").As("Price"), Direction: expr.Descending}).
		OrderBy("ProductName", expr.Ascending))

	require.NoError(t, err)
	assert.Equal(t, []client.OrderColumn{
		{Name: "Price", Descending: true},
		{Name: "ProductName"},
	}, cmd.Order)
}

func TestFromQuery_PagingAndOrderRoundTrip(t *testing.T) {
	b := newBuilder()

	cmd, err := b.FromQuery(expr.From("Products").
		OrderBy("CategoryID", expr.Ascending).
		OrderBy("UnitPrice", expr.Descending).
		Skip(3).
		Take(4))

	require.NoError(t, err)
	require.NotNil(t, cmd.Skip)
	require.NotNil(t, cmd.Take)
	assert.Equal(t, 3, *cmd.Skip)
	assert.Equal(t, 4, *cmd.Take)
	assert.Equal(t, []client.OrderColumn{
		{Name: "CategoryID"},
		{Name: "UnitPrice", Descending: true},
	}, cmd.Order)
	assert.Empty(t, cmd.UnprocessedClauses)
}

func TestFromQuery_UnprocessedClauses(t *testing.T) {
	b := newBuilder()

	badWhere := expr.Where{Criteria: expr.Fn("soundex", col("ProductName"))}
	groupBy := expr.GroupBy{Columns: []expr.ColumnRef{expr.Ref("CategoryID")}}
	having := expr.Having{Criteria: expr.Gt(col("count"), lit(1))}
	unknownLink := expr.Expand{Link: "Supplier"}
	mixedSelect := expr.Select{Columns: []expr.Reference{expr.Ref("ProductName"), expr.Count()}}

	q := expr.From("Products").
		Where(expr.Gt(col("UnitPrice"), lit(10))).
		Add(badWhere).
		Add(expr.Distinct{}).
		Add(groupBy).
		Add(having).
		Add(unknownLink).
		Add(mixedSelect).
		Expand("Category")

	cmd, err := b.FromQuery(q)

	require.NoError(t, err)
	assert.Equal(t, []expr.Clause{badWhere, expr.Distinct{}, groupBy, having, unknownLink, mixedSelect}, cmd.UnprocessedClauses)
	assert.Equal(t, "UnitPrice gt 10", cmd.FilterText)
	assert.Equal(t, []string{"Category"}, cmd.Expand)
}

func TestFromQuery_WhereClausesIntersect(t *testing.T) {
	b := newBuilder()

	cmd, err := b.FromQuery(expr.From("OrderDetails").
		Where(expr.Eq(col("OrderID"), lit(10248))).
		Where(expr.Eq(col("ProductID"), lit(11))))

	require.NoError(t, err)
	assert.Equal(t, "Order_Details(OrderID=10248,ProductID=11)", cmd.String())
}

func TestFromQuery_CountAfterColumnsIsUnprocessed(t *testing.T) {
	b := newBuilder()
	count := expr.Select{Columns: []expr.Reference{expr.Count()}}

	cmd, err := b.FromQuery(expr.From("Products").Select(expr.Ref("ProductName")).Add(count))

	require.NoError(t, err)
	assert.False(t, cmd.IsScalarResult)
	assert.Equal(t, []expr.Clause{count}, cmd.UnprocessedClauses)
}

func TestFromQuery_TotalCountCallbackKept(t *testing.T) {
	b := newBuilder()
	var got int64

	cmd, err := b.FromQuery(expr.From("Products").WithTotalCount(func(n int64) { got = n }))

	require.NoError(t, err)
	require.NotNil(t, cmd.SetTotalCount)
	cmd.SetTotalCount(7)
	assert.Equal(t, int64(7), got)
}

// recordingCommand records fluent calls.
type recordingCommand struct {
	calls []string
}

func (r *recordingCommand) record(format string, args ...any) client.Command {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
	return r
}

func (r *recordingCommand) As(derived string) client.Command      { return r.record("As(%s)", derived) }
func (r *recordingCommand) Key(k client.Key) client.Command       { return r.record("Key(%d)", k.Len()) }
func (r *recordingCommand) Filter(text string) client.Command     { return r.record("Filter(%s)", text) }
func (r *recordingCommand) Expand(l ...string) client.Command     { return r.record("Expand(%s)", strings.Join(l, ",")) }
func (r *recordingCommand) Skip(n int) client.Command             { return r.record("Skip(%d)", n) }
func (r *recordingCommand) Top(n int) client.Command              { return r.record("Top(%d)", n) }
func (r *recordingCommand) Select(c ...string) client.Command     { return r.record("Select(%s)", strings.Join(c, ",")) }
func (r *recordingCommand) Count() client.Command                 { return r.record("Count()") }
func (r *recordingCommand) NavigateTo(link string) client.Command { return r.record("NavigateTo(%s)", link) }
func (r *recordingCommand) OrderBy(c ...client.OrderColumn) client.Command {
	return r.record("OrderBy(%d)", len(c))
}
func (r *recordingCommand) FindEntries(context.Context) ([]*ir.Record, error) { return nil, nil }
func (r *recordingCommand) FindEntriesWithCount(context.Context) ([]*ir.Record, int64, error) {
	return nil, 0, nil
}
func (r *recordingCommand) FindScalar(context.Context) (ir.Value, error) { return nil, nil }

func TestApply_Order(t *testing.T) {
	b := newBuilder()
	cmd, err := b.FromQuery(expr.From("Categories.Products").
		Where(expr.Eq(col("CategoryID"), lit(1))).
		Select(expr.Ref("ProductName")).
		OrderBy("ProductName", expr.Ascending).
		Expand("Category").
		Skip(1).
		Take(2))
	require.NoError(t, err)

	rec := &recordingCommand{}
	cmd.Apply(rec)

	assert.Equal(t, []string{
		"Key(1)",
		"Expand(Category)",
		"Skip(1)",
		"Top(2)",
		"OrderBy(1)",
		"Select(ProductName)",
		"NavigateTo(Products)",
	}, rec.calls)
}

func TestApply_DerivedScalar(t *testing.T) {
	b := newBuilder()
	cmd, err := b.FromQuery(expr.From("Ships").Where(expr.Eq(col("ShipName"), lit("Titanic"))).Select(expr.Count()))
	require.NoError(t, err)

	rec := &recordingCommand{}
	cmd.Apply(rec)

	assert.Equal(t, []string{"As(Ships)", "Filter(ShipName eq 'Titanic')", "Count()"}, rec.calls)
}
