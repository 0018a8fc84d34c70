package harness

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/odapt/internal/adapter"
	"github.com/roach88/odapt/internal/store"
	"github.com/roach88/odapt/internal/testutil"
)

// createTestAdapter opens an adapter over a seeded Northwind sandbox.
func createTestAdapter(t *testing.T) *adapter.TableAdapter {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), testutil.Northwind())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, testutil.SeedNorthwind(context.Background(), st))

	a, err := adapter.Open(context.Background(), adapter.Options{}, st)
	require.NoError(t, err)
	return a
}

func TestRun_NorthwindReads(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/northwind_reads.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), createTestAdapter(t), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Len(t, result.Trace, len(s.Steps))
}

func TestRunSandbox_CatalogWrites(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/catalog_writes.yaml")
	require.NoError(t, err)

	result, err := RunSandbox(context.Background(), testutil.Northwind(), adapter.Options{}, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 6)
	assert.Equal(t, "PATCH Products(1)", result.Trace[1].Command)
	assert.Equal(t, "PATCH Products?$filter=UnitPrice gt 19", result.Trace[2].Command)
	assert.Equal(t, "DELETE Products(99)", result.Trace[4].Command)
	assert.Equal(t, "CONFLICT", result.Trace[5].Error)
}

func TestRunSandbox_IsolatedPerRun(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: isolated
description: "Each run starts empty"
setup:
  - op: insert
    table: Categories
    data: { CategoryID: 1, CategoryName: Beverages }
steps:
  - op: find
    table: Categories
    expect:
      count: 1
`))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		result, err := RunSandbox(context.Background(), testutil.Northwind(), adapter.Options{}, s)
		require.NoError(t, err)
		assert.True(t, result.Pass, "run %d: %v", i, result.Errors)
	}
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: failing
description: "Every expectation is wrong"
steps:
  - op: get
    table: Products
    key: [1]
    expect:
      record: { ProductName: Chang }
  - op: get
    table: Products
    key: [-1]
  - op: find
    table: Products
    where: "CategoryID eq 2"
    expect:
      count: 1
  - op: get
    table: Products
    key: [1]
    expect:
      error: NOT_FOUND
assertions:
  - type: row_count
    table: Customers
    count: 4
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), createTestAdapter(t), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], `ProductName: expected "Chang", got "Chai"`)
	assert.Contains(t, result.Errors[1], "unexpected error")
	assert.Contains(t, result.Errors[2], "expected count 1, got 3")
	assert.Contains(t, result.Errors[3], "expected error NOT_FOUND, got success")
	assert.Contains(t, result.Errors[4], "expected 4 rows, got 3 rows")
}

func TestRun_SetupFailureAborts(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: bad_setup
description: "Setup inserts a duplicate"
setup:
  - op: insert
    table: Products
    data: { ProductID: 1, ProductName: Again }
steps:
  - op: find
    table: Products
`))
	require.NoError(t, err)

	_, err = Run(context.Background(), createTestAdapter(t), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup step 0 (insert Products)")
}

func TestRun_LogsSteps(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	s, err := ParseScenario([]byte(`
name: logged
description: "One step"
steps:
  - op: get
    table: Products
    key: [-1]
    expect:
      error: NOT_FOUND
`))
	require.NoError(t, err)

	_, err = Run(context.Background(), createTestAdapter(t), s, WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "step completed")
	assert.Contains(t, buf.String(), "error=NOT_FOUND")
}
