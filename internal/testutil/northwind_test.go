package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/odapt/internal/ir"
)

func TestNorthwind_Compiles(t *testing.T) {
	s := Northwind()

	names := make([]string, 0)
	for _, tbl := range s.Tables() {
		names = append(names, tbl.Name)
	}
	assert.Equal(t, []string{"Categories", "Products", "Customers", "Orders", "OrderDetails", "Transport"}, names)
}

func TestNorthwindRows_MatchSchema(t *testing.T) {
	s := Northwind()

	for _, rows := range NorthwindRows() {
		tbl, err := s.FindTable(rows.Table)
		require.NoError(t, err, rows.Table)
		for _, rec := range rows.Records {
			for _, key := range rec.Keys() {
				assert.True(t, tbl.HasColumn(key), "%s.%s", rows.Table, key)
			}
			_, ok := tbl.KeyOf(rec)
			assert.True(t, ok, "%s row without key", rows.Table)
		}
	}
}

type recordingLoader struct {
	tables []string
	rows   int
}

func (l *recordingLoader) Load(_ context.Context, table string, rows ...*ir.Record) error {
	l.tables = append(l.tables, table)
	l.rows += len(rows)
	return nil
}

func TestSeedNorthwind(t *testing.T) {
	l := &recordingLoader{}

	require.NoError(t, SeedNorthwind(context.Background(), l))

	assert.Equal(t, []string{"Categories", "Products", "Customers", "Orders", "OrderDetails", "Ships", "Trucks"}, l.tables)
	assert.Equal(t, 21, l.rows)
}

func TestFixedIDGenerator(t *testing.T) {
	g := NewFixedIDGenerator("b-1", "b-2")
	assert.Equal(t, "b-1", g.Generate())
	assert.Equal(t, "b-2", g.Generate())
	assert.Equal(t, "b-2", g.Generate())

	assert.Equal(t, "test-batch", NewFixedIDGenerator().Generate())
}

func TestFleet_LinksIntoDerivedHierarchy(t *testing.T) {
	s := Fleet()

	depots, err := s.FindTable("Depots")
	require.NoError(t, err)
	link, ok := depots.Link("Vehicles")
	require.True(t, ok)
	assert.Equal(t, "Transport", link.Target)

	trucks, err := s.FindTable("Trucks")
	require.NoError(t, err)
	assert.True(t, trucks.HasColumn("DepotID"))

	l := &recordingLoader{}
	require.NoError(t, SeedFleet(context.Background(), l))
	assert.Equal(t, []string{"Depots", "Ships", "Trucks"}, l.tables)
	assert.Equal(t, 6, l.rows)
}
