package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productsCUE = `
table: Categories: {
	key: ["CategoryID"]
	columns: {CategoryID: "int", CategoryName: "string"}
	links: Products: {target: "Products", local: "CategoryID", remote: "CategoryID", many: true}
}

table: Products: {
	key: ["ProductID"]
	columns: {
		ProductID:   "int"
		ProductName: "string"
		CategoryID:  "int"
		UnitPrice:   "float"
	}
	links: Category: {target: "Categories", local: "CategoryID", remote: "CategoryID"}
}

table: Transport: {
	key: ["TransportID"]
	columns: TransportID: "int"
	derived: Ships: {
		entity_set: "Ships"
		columns: ShipName: "string"
	}
}
`

func TestLoadString(t *testing.T) {
	s, err := LoadString(productsCUE, "products.cue")
	require.NoError(t, err)

	products, err := s.FindTable("Products")
	require.NoError(t, err)
	assert.Equal(t, []string{"ProductID"}, products.Key)
	assert.Equal(t, []Column{
		{Name: "ProductID", Type: TypeInt},
		{Name: "ProductName", Type: TypeString},
		{Name: "CategoryID", Type: TypeInt},
		{Name: "UnitPrice", Type: TypeFloat},
	}, products.Columns)

	link, ok := products.Link("Category")
	require.True(t, ok)
	assert.Equal(t, Link{Name: "Category", Target: "Categories", Local: "CategoryID", Remote: "CategoryID"}, link)

	categories, _ := s.FindTable("Categories")
	link, ok = categories.Link("Products")
	require.True(t, ok)
	assert.True(t, link.Many)

	path, err := s.ResolvePath("Ships")
	require.NoError(t, err)
	assert.Equal(t, "Transport/Ships", path)
}

func TestLoadString_RejectsUnknownField(t *testing.T) {
	src := `
table: Products: {
	key: ["ProductID"]
	columns: ProductID: "int"
	primary: true
}
`
	_, err := LoadString(src, "bad.cue")

	require.Error(t, err)
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.True(t, le.Pos.IsValid())
}

func TestLoadString_RejectsUnknownType(t *testing.T) {
	src := `
table: Products: {
	key: ["ProductID"]
	columns: ProductID: "decimal"
}
`
	_, err := LoadString(src, "bad.cue")
	require.Error(t, err)
}

func TestLoadString_RequiresKey(t *testing.T) {
	src := `
table: Products: {
	key: []
	columns: ProductID: "int"
}
`
	_, err := LoadString(src, "bad.cue")
	require.Error(t, err)
}

func TestLoadString_SchemaErrorsSurface(t *testing.T) {
	src := `
table: Products: {
	key: ["Missing"]
	columns: ProductID: "int"
}
`
	_, err := LoadString(src, "bad.cue")

	require.Error(t, err)
	assert.True(t, IsInvalidSchema(err))
}

func TestLoadString_NoTables(t *testing.T) {
	_, err := LoadString(`other: 1`, "empty.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tables defined")
}

func TestLoadDir(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "products.cue"), []byte("package test\n"+productsCUE), 0644)
	require.NoError(t, err)

	s, err := LoadDir(tmpDir)
	require.NoError(t, err)

	assert.Len(t, s.Tables(), 3)
	path, err := s.ResolvePath("Ships")
	require.NoError(t, err)
	assert.Equal(t, "Transport/Ships", path)
}

func TestLoadDir_NotFound(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
