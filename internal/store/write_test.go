package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/odapt/internal/client"
	"github.com/roach88/odapt/internal/ir"
)

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	var re *client.RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, status, re.Status)
}

func TestInsertEntry_ResultRequired(t *testing.T) {
	c := createTestClient(t, client.Settings{})
	ctx := context.Background()

	got, err := c.InsertEntry(ctx, "Categories", ir.RecordOf(
		ir.P("CategoryID", ir.Int(9)),
		ir.P("CategoryName", ir.String("Seafood")),
	), true)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, `{"CategoryID":9,"CategoryName":"Seafood","Description":null}`, got.String())

	got, err = c.InsertEntry(ctx, "Categories", ir.RecordOf(
		ir.P("CategoryID", ir.Int(10)),
		ir.P("CategoryName", ir.String("Meat")),
	), false)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInsertEntry_Derived(t *testing.T) {
	c := createTestClient(t, client.Settings{IncludeResourceType: true})
	ctx := context.Background()

	got, err := c.InsertEntry(ctx, "Transport/Trucks", ir.RecordOf(
		ir.P("TransportID", ir.Int(3)),
		ir.P("TruckNumber", ir.String("A-1")),
	), true)
	require.NoError(t, err)
	assert.Equal(t, `{"TransportID":3,"TruckNumber":"A-1","__resourcetype":"Trucks"}`, got.String())

	// Columns of a sibling type are rejected.
	_, err = c.InsertEntry(ctx, "Transport/Trucks", ir.RecordOf(
		ir.P("TransportID", ir.Int(4)),
		ir.P("ShipName", ir.String("Nope")),
	), false)
	requireStatus(t, err, 400)
}

func TestInsertEntry_Rejections(t *testing.T) {
	c := createTestClient(t, client.Settings{})
	ctx := context.Background()

	_, err := c.InsertEntry(ctx, "Categories", ir.RecordOf(ir.P("CategoryName", ir.String("No key"))), false)
	requireStatus(t, err, 400)

	_, err = c.InsertEntry(ctx, "Categories", ir.RecordOf(ir.P("CategoryID", ir.Int(20)), ir.P("Color", ir.String("red"))), false)
	requireStatus(t, err, 400)

	_, err = c.InsertEntry(ctx, "Categories", ir.RecordOf(ir.P("CategoryID", ir.Int(1))), false)
	requireStatus(t, err, 409)

	_, err = c.InsertEntry(ctx, "Categories", ir.RecordOf(ir.P("CategoryID", ir.Int(21)), ir.P("CategoryName", ir.Array{ir.Int(1)})), false)
	requireStatus(t, err, 400)
}

func TestUpdateEntry(t *testing.T) {
	c := createTestClient(t, client.Settings{})
	ctx := context.Background()

	n, err := c.UpdateEntry(ctx, "Products", intKey("ProductID", 1), ir.RecordOf(
		ir.P("ProductID", ir.Int(1)),
		ir.P("UnitPrice", ir.Float(20.5)),
	))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := c.For("Products").Key(intKey("ProductID", 1)).Select("UnitPrice").FindEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"UnitPrice":20.5}`, entries[0].String())

	// Nothing but the key still reports the match.
	n, err = c.UpdateEntry(ctx, "Products", intKey("ProductID", 2), ir.NewRecord())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpdateEntry_Rejections(t *testing.T) {
	c := createTestClient(t, client.Settings{})
	ctx := context.Background()

	_, err := c.UpdateEntry(ctx, "Products", intKey("ProductID", -1), ir.RecordOf(ir.P("UnitPrice", ir.Float(1))))
	requireStatus(t, err, 404)
	assert.ErrorIs(t, err, client.ErrNotFound)

	_, err = c.UpdateEntry(ctx, "Products", intKey("ProductID", 1), ir.RecordOf(ir.P("ProductID", ir.Int(100))))
	requireStatus(t, err, 400)

	_, err = c.UpdateEntry(ctx, "Products", intKey("ProductID", 1), ir.RecordOf(ir.P("Weight", ir.Int(3))))
	requireStatus(t, err, 400)
}

func TestUpdateEntries_ByFilter(t *testing.T) {
	c := createTestClient(t, client.Settings{})
	ctx := context.Background()

	n, err := c.UpdateEntries(ctx, "Products", "CategoryID eq 2", ir.RecordOf(ir.P("UnitsInStock", ir.Int(0))))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	v, err := c.For("Products").Filter("UnitsInStock eq 0").Count().FindScalar(ctx)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(3), v)

	_, err = c.UpdateEntries(ctx, "Products", "CategoryID eq 2", ir.RecordOf(ir.P("ProductID", ir.Int(7))))
	requireStatus(t, err, 400)
}

func TestDeleteEntry(t *testing.T) {
	c := createTestClient(t, client.Settings{})
	ctx := context.Background()

	n, err := c.DeleteEntry(ctx, "Order_Details", client.Key{Positional: []ir.Value{ir.Int(10248), ir.Int(42)}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = c.DeleteEntry(ctx, "Order_Details", client.Key{Positional: []ir.Value{ir.Int(10248), ir.Int(42)}})
	assert.ErrorIs(t, err, client.ErrNotFound)

	// A derived entity set only deletes rows of its type.
	_, err = c.DeleteEntry(ctx, "Transport/Ships", intKey("TransportID", 2))
	assert.ErrorIs(t, err, client.ErrNotFound)
}

func TestDeleteEntries_ByFilter(t *testing.T) {
	c := createTestClient(t, client.Settings{})
	ctx := context.Background()

	n, err := c.DeleteEntries(ctx, "Products", "Discontinued eq true")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = c.DeleteEntries(ctx, "Transport/Trucks", "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v, err := c.For("Transport").Count().FindScalar(ctx)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(1), v)
}
