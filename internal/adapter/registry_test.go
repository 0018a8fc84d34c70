package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/odapt/internal/ir"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("SQLite", ProviderFactory(createTestStore(t))))
	require.NoError(t, r.Register("odata", func(context.Context, Options) (*TableAdapter, error) {
		t.Fatal("unexpected open")
		return nil, nil
	}))

	assert.Equal(t, []string{"odata", "sqlite"}, r.Names())

	err := r.Register("sqlite", ProviderFactory(createTestStore(t)))
	assert.ErrorContains(t, err, "already registered")
	assert.Error(t, r.Register("", nil))

	a, err := r.Open(context.Background(), "sqlite", Options{})
	require.NoError(t, err)
	chai, err := a.Get(context.Background(), "Products", ir.Int(1))
	require.NoError(t, err)
	assert.Equal(t, ir.String("Chai"), field(t, chai, "ProductName"))

	_, err = r.Open(context.Background(), "mongo", Options{})
	assert.ErrorContains(t, err, `unknown protocol "mongo" (registered: odata, sqlite)`)
}
