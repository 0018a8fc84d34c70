// Package schema resolves logical table names to resource paths.
//
// A Schema is built once from table definitions (usually loaded from CUE
// files, see LoadDir) and is read-only afterwards, so it can be shared freely
// between goroutines.
//
// Tables form a two-level hierarchy: root tables and the derived tables of a
// root. A derived table is addressed on the remote side as a sub-resource of
// its base, "Transport/Ships", and inherits the base key, columns and links.
package schema

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/roach88/odapt/internal/ir"
)

// ColumnType is the declared type of a column.
type ColumnType string

const (
	TypeString ColumnType = "string"
	TypeInt    ColumnType = "int"
	TypeFloat  ColumnType = "float"
	TypeBool   ColumnType = "bool"
)

// Valid reports whether t is a known column type.
func (t ColumnType) Valid() bool {
	switch t {
	case TypeString, TypeInt, TypeFloat, TypeBool:
		return true
	}
	return false
}

// Column is a named, typed column.
type Column struct {
	Name string
	Type ColumnType
}

// Link is a navigation property from one table to another.
//
// Rows are related when the Local column of the source equals the Remote
// column of the target. Many marks a one-to-many link.
type Link struct {
	Name   string
	Target string
	Local  string
	Remote string
	Many   bool
}

// TableDef is the input form of a table.
type TableDef struct {
	Name      string
	EntitySet string // defaults to Name
	Key       []string
	Columns   []Column
	Links     []Link
	Derived   []TableDef
}

// Table is a resolved table. Fields must not be modified.
type Table struct {
	Name       string
	ActualName string
	Columns    []Column
	Key        []string
	Links      []Link
	Derived    []*Table
	Base       *Table
}

// IsDerived reports whether the table is a derived table.
func (t *Table) IsDerived() bool {
	return t.Base != nil
}

// Root returns the base table for derived tables and t itself otherwise.
func (t *Table) Root() *Table {
	if t.Base != nil {
		return t.Base
	}
	return t
}

// KeyNames returns the key column names in order.
func (t *Table) KeyNames() []string {
	out := make([]string, len(t.Key))
	copy(out, t.Key)
	return out
}

// Column finds a column by name, exact match first, then case-folded.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	folded := fold(name)
	for _, c := range t.Columns {
		if fold(c.Name) == folded {
			return c, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether the table has the column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// Link finds a navigation link by name, exact match first, then case-folded.
func (t *Table) Link(name string) (Link, bool) {
	for _, l := range t.Links {
		if l.Name == name {
			return l, true
		}
	}
	folded := fold(name)
	for _, l := range t.Links {
		if fold(l.Name) == folded {
			return l, true
		}
	}
	return Link{}, false
}

// KeyOf extracts the named key of a record, in key column order.
// Returns false when the record lacks a key column.
func (t *Table) KeyOf(rec *ir.Record) (*ir.Record, bool) {
	key := ir.NewRecord()
	for _, name := range t.Key {
		v, ok := rec.Get(name)
		if !ok {
			return nil, false
		}
		key.Set(name, v)
	}
	return key, true
}

// Schema is an immutable set of tables.
type Schema struct {
	roots  []*Table
	byName map[string]*Table
	folded map[string]*Table // nil value marks an ambiguous folded name
}

// Build validates definitions and builds a schema.
//
// Validation:
//   - table names are unique across root and derived tables
//   - every table has a key and every key column is a column
//   - derived tables are not nested
//   - link targets exist and link columns exist on both sides
func Build(defs ...TableDef) (*Schema, error) {
	s := &Schema{
		byName: make(map[string]*Table),
		folded: make(map[string]*Table),
	}

	for _, def := range defs {
		root, err := newTable(def, nil)
		if err != nil {
			return nil, err
		}
		if err := s.add(root); err != nil {
			return nil, err
		}
		for _, d := range def.Derived {
			if len(d.Derived) > 0 {
				return nil, invalidSchema(d.Name, "derived tables cannot declare derived tables")
			}
			derived, err := newTable(d, root)
			if err != nil {
				return nil, err
			}
			if err := s.add(derived); err != nil {
				return nil, err
			}
			root.Derived = append(root.Derived, derived)
		}
		s.roots = append(s.roots, root)
	}

	for _, t := range s.byName {
		for _, l := range t.Links {
			target, ok := s.byName[l.Target]
			if !ok {
				return nil, invalidSchema(t.Name, fmt.Sprintf("link %q targets unknown table %q", l.Name, l.Target))
			}
			if !t.HasColumn(l.Local) {
				return nil, invalidSchema(t.Name, fmt.Sprintf("link %q: unknown column %q", l.Name, l.Local))
			}
			if !target.HasColumn(l.Remote) {
				return nil, invalidSchema(t.Name, fmt.Sprintf("link %q: unknown column %q on %s", l.Name, l.Remote, target.Name))
			}
		}
	}

	return s, nil
}

// MustBuild is like Build but panics on error. For fixtures.
func MustBuild(defs ...TableDef) *Schema {
	s, err := Build(defs...)
	if err != nil {
		panic(err)
	}
	return s
}

func newTable(def TableDef, base *Table) (*Table, error) {
	if def.Name == "" {
		return nil, invalidSchema("", "table name is required")
	}
	if strings.ContainsAny(def.Name, "./") {
		return nil, invalidSchema(def.Name, "table name cannot contain '.' or '/'")
	}

	t := &Table{
		Name:       def.Name,
		ActualName: def.EntitySet,
		Base:       base,
	}
	if t.ActualName == "" {
		t.ActualName = def.Name
	}

	if base != nil {
		if len(def.Key) > 0 {
			return nil, invalidSchema(def.Name, "derived tables inherit the key of their base")
		}
		t.Key = base.Key
		t.Columns = append(t.Columns, base.Columns...)
		t.Links = append(t.Links, base.Links...)
	} else {
		t.Key = append([]string(nil), def.Key...)
	}

	for _, c := range def.Columns {
		if !c.Type.Valid() {
			return nil, invalidSchema(def.Name, fmt.Sprintf("column %q has unknown type %q", c.Name, c.Type))
		}
		if t.HasColumn(c.Name) {
			return nil, invalidSchema(def.Name, fmt.Sprintf("duplicate column %q", c.Name))
		}
		t.Columns = append(t.Columns, c)
	}
	t.Links = append(t.Links, def.Links...)

	if len(t.Key) == 0 {
		return nil, invalidSchema(def.Name, "table has no key")
	}
	for _, k := range t.Key {
		if !t.HasColumn(k) {
			return nil, invalidSchema(def.Name, fmt.Sprintf("key column %q is not a column", k))
		}
	}
	return t, nil
}

func (s *Schema) add(t *Table) error {
	if _, exists := s.byName[t.Name]; exists {
		return invalidSchema(t.Name, "duplicate table name")
	}
	s.byName[t.Name] = t

	f := fold(t.Name)
	if _, exists := s.folded[f]; exists {
		s.folded[f] = nil
	} else {
		s.folded[f] = t
	}
	return nil
}

// Tables returns the root tables in definition order.
func (s *Schema) Tables() []*Table {
	out := make([]*Table, len(s.roots))
	copy(out, s.roots)
	return out
}

func (s *Schema) lookup(name string) *Table {
	if t, ok := s.byName[name]; ok {
		return t
	}
	return s.folded[fold(name)]
}

// FindTable finds a root or derived table by name.
// Names match exactly first, then Unicode case-insensitively.
func (s *Schema) FindTable(name string) (*Table, error) {
	t := s.lookup(name)
	if t == nil {
		return nil, unresolved(name)
	}
	return t, nil
}

// FindBaseTable returns the table whose derived set contains name, or nil
// when name is not a derived table.
func (s *Schema) FindBaseTable(name string) *Table {
	t := s.lookup(name)
	if t == nil {
		return nil
	}
	return t.Base
}

// FindDerivedTable returns the derived table named name, or nil when name is
// not a derived table.
func (s *Schema) FindDerivedTable(name string) *Table {
	t := s.lookup(name)
	if t == nil || t.Base == nil {
		return nil
	}
	return t
}

// ResolvePath returns the resource path of a table: the entity set of a root
// table, or "Base/Derived" for a derived table.
func (s *Schema) ResolvePath(name string) (string, error) {
	t, err := s.FindTable(name)
	if err != nil {
		return "", err
	}
	return PathOf(t), nil
}

// PathOf returns the resource path of a resolved table.
func PathOf(t *Table) string {
	if t.Base != nil {
		return t.Base.ActualName + "/" + t.ActualName
	}
	return t.ActualName
}

// fold case-folds a name. Casers are stateful, so one is made per call.
func fold(s string) string {
	return cases.Fold().String(s)
}
