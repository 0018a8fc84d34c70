package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/odapt/internal/client"
	"github.com/roach88/odapt/internal/filter"
	"github.com/roach88/odapt/internal/ir"
	"github.com/roach88/odapt/internal/schema"
)

// sqlClient is a client.Client over a database or a transaction.
type sqlClient struct {
	store    *Store
	q        queryer
	settings client.Settings
}

var _ client.Client = (*sqlClient)(nil)

// resolve maps an entity set path ("Transport" or "Transport/Ships") to a
// table. Entity sets match by name, then case-insensitively, then through
// the pluralizer.
func (c *sqlClient) resolve(path string) (*schema.Table, error) {
	segments := strings.Split(path, "/")
	root := c.findEntitySet(segments[0])
	if root == nil {
		return nil, client.NotFound("entity set %q does not exist", segments[0])
	}
	switch len(segments) {
	case 1:
		return root, nil
	case 2:
		return derivedOf(root, segments[1])
	default:
		return nil, client.BadRequest("invalid entity set path %q", path)
	}
}

func (c *sqlClient) findEntitySet(name string) *schema.Table {
	tables := c.store.schema.Tables()
	candidates := []string{name}
	if p := c.settings.Pluralizer; p != nil {
		candidates = append(candidates, p.Pluralize(name), p.Singularize(name))
	}
	for _, candidate := range candidates {
		for _, t := range tables {
			if t.ActualName == candidate {
				return t
			}
		}
		for _, t := range tables {
			if strings.EqualFold(t.ActualName, candidate) {
				return t
			}
		}
	}
	return nil
}

func derivedOf(root *schema.Table, name string) (*schema.Table, error) {
	for _, d := range root.Derived {
		if d.ActualName == name || strings.EqualFold(d.ActualName, name) {
			return d, nil
		}
	}
	return nil, client.NotFound("%s has no derived type %q", root.ActualName, name)
}

// For implements client.Client.
func (c *sqlClient) For(entitySet string) client.Command {
	return &sqlCommand{client: c, entitySet: entitySet}
}

// sqlCommand accumulates a read. Methods mutate and return the receiver.
type sqlCommand struct {
	client     *sqlClient
	entitySet  string
	derived    string
	key        client.Key
	filter     string
	expand     []string
	skip       *int
	top        *int
	order      []client.OrderColumn
	columns    []string
	count      bool
	nav        []string
	navDerived string
}

var _ client.Command = (*sqlCommand)(nil)

func (c *sqlCommand) Key(key client.Key) client.Command { c.key = key; return c }
func (c *sqlCommand) Filter(text string) client.Command { c.filter = text; return c }
func (c *sqlCommand) Skip(n int) client.Command         { c.skip = &n; return c }
func (c *sqlCommand) Top(n int) client.Command          { c.top = &n; return c }
func (c *sqlCommand) Count() client.Command             { c.count = true; return c }

// As narrows the entity set, or the navigation target once a link has been
// followed.
func (c *sqlCommand) As(derived string) client.Command {
	if len(c.nav) > 0 {
		c.navDerived = derived
	} else {
		c.derived = derived
	}
	return c
}

func (c *sqlCommand) Expand(links ...string) client.Command {
	c.expand = append(c.expand, links...)
	return c
}

func (c *sqlCommand) OrderBy(columns ...client.OrderColumn) client.Command {
	c.order = append(c.order, columns...)
	return c
}

func (c *sqlCommand) Select(columns ...string) client.Command {
	c.columns = append(c.columns, columns...)
	return c
}

func (c *sqlCommand) NavigateTo(link string) client.Command {
	c.nav = append(c.nav, link)
	return c
}

// plan is a resolved read: the chain of tables from the entity set through
// each navigation link.
type plan struct {
	tables []*schema.Table
	links  []schema.Link
}

func (p plan) source() *schema.Table { return p.tables[0] }
func (p plan) target() *schema.Table { return p.tables[len(p.tables)-1] }

func (c *sqlCommand) plan() (plan, error) {
	path := c.entitySet
	if c.derived != "" {
		path += "/" + c.derived
	}
	t, err := c.client.resolve(path)
	if err != nil {
		return plan{}, err
	}
	p := plan{tables: []*schema.Table{t}}
	for _, name := range c.nav {
		link, ok := p.target().Link(name)
		if !ok {
			return plan{}, client.BadRequest("%s has no link %q", p.target().Name, name)
		}
		next, err := c.client.store.schema.FindTable(link.Target)
		if err != nil {
			return plan{}, err
		}
		p.links = append(p.links, link)
		p.tables = append(p.tables, next)
	}
	if c.navDerived != "" {
		d, err := derivedOf(p.target().Root(), c.navDerived)
		if err != nil {
			return plan{}, err
		}
		p.tables[len(p.tables)-1] = d
	}
	return p, nil
}

// where compiles the conditions selecting target rows, aliased t0.
func (c *sqlCommand) where(comp *compiler, p plan) (string, error) {
	var parts []string
	if cond := comp.typeCond(p.target(), "t0"); cond != "" {
		parts = append(parts, cond)
	}
	if len(p.links) == 0 {
		if !c.key.IsZero() {
			cond, err := comp.keyCond(p.source(), "t0", c.key)
			if err != nil {
				return "", err
			}
			parts = append(parts, cond)
		}
	} else {
		cond, err := c.sourceExists(comp, p, len(p.links)-1, "t0")
		if err != nil {
			return "", err
		}
		parts = append(parts, cond)
	}
	if c.filter != "" {
		cond, err := comp.filterText(p.target(), "t0", c.filter)
		if err != nil {
			return "", err
		}
		parts = append(parts, cond)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

// sourceExists correlates rows of table i+1 (aliased child) with the rows of
// table i they were reached from. The key applies to table 0.
func (c *sqlCommand) sourceExists(comp *compiler, p plan, i int, child string) (string, error) {
	t, link := p.tables[i], p.links[i]
	a := comp.alias()
	parts := []string{fmt.Sprintf("%s.%s = %s.%s", a, quote(link.Local), child, quote(link.Remote))}
	if cond := comp.typeCond(t, a); cond != "" {
		parts = append(parts, cond)
	}
	if i == 0 {
		if !c.key.IsZero() {
			cond, err := comp.keyCond(t, a, c.key)
			if err != nil {
				return "", err
			}
			parts = append(parts, cond)
		}
	} else {
		cond, err := c.sourceExists(comp, p, i-1, a)
		if err != nil {
			return "", err
		}
		parts = append(parts, cond)
	}
	return fmt.Sprintf("EXISTS (SELECT 1 FROM %s AS %s WHERE %s)",
		quote(t.Root().ActualName), a, strings.Join(parts, " AND ")), nil
}

// orderBy renders ORDER BY with the key columns appended as tiebreaker.
// MANDATORY: every entry query orders deterministically.
func (c *sqlCommand) orderBy(comp *compiler, t *schema.Table) (string, error) {
	var terms []string
	for _, o := range c.order {
		col, err := comp.column(t, "t0", strings.Split(o.Name, "."))
		if err != nil {
			return "", err
		}
		dir := " ASC"
		if o.Descending {
			dir = " DESC"
		}
		terms = append(terms, col+dir)
	}
	for _, k := range t.Key {
		terms = append(terms, "t0."+quote(k)+" ASC")
	}
	return " ORDER BY " + strings.Join(terms, ", "), nil
}

func (c *sqlCommand) paging(comp *compiler) string {
	if c.skip == nil && c.top == nil {
		return ""
	}
	limit := -1
	if c.top != nil {
		limit = *c.top
	}
	offset := 0
	if c.skip != nil {
		offset = *c.skip
	}
	comp.params = append(comp.params, limit, offset)
	return " LIMIT ? OFFSET ?"
}

// checkSource fails with 404 when a keyed command selects no row.
func (c *sqlCommand) checkSource(ctx context.Context, p plan) error {
	if c.key.IsZero() {
		return nil
	}
	comp := newCompiler(c.client.store.schema)
	t := p.source()
	parts := []string{}
	if cond := comp.typeCond(t, "t0"); cond != "" {
		parts = append(parts, cond)
	}
	cond, err := comp.keyCond(t, "t0", c.key)
	if err != nil {
		return err
	}
	parts = append(parts, cond)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s AS t0 WHERE %s", quote(t.Root().ActualName), strings.Join(parts, " AND "))
	n, err := c.client.scalarInt(ctx, query, comp.params)
	if err != nil {
		return err
	}
	if n == 0 {
		return client.NotFound("%s has no entry with the given key", t.Name)
	}
	return nil
}

// FindEntries implements client.Command.
func (c *sqlCommand) FindEntries(ctx context.Context) ([]*ir.Record, error) {
	p, err := c.plan()
	if err != nil {
		return nil, err
	}
	if err := c.checkSource(ctx, p); err != nil {
		return nil, err
	}
	projection, err := c.projection(p.target())
	if err != nil {
		return nil, err
	}

	comp := newCompiler(c.client.store.schema)
	root := p.target().Root()
	where, err := c.where(comp, p)
	if err != nil {
		return nil, err
	}
	order, err := c.orderBy(comp, p.target())
	if err != nil {
		return nil, err
	}
	paging := c.paging(comp)

	query := fmt.Sprintf("SELECT %s FROM %s AS t0%s%s%s",
		selectList(root), quote(root.ActualName), where, order, paging)

	rows, err := c.client.readRows(ctx, root, query, comp.params)
	if err != nil {
		return nil, err
	}

	out := make([]*ir.Record, 0, len(rows))
	for _, row := range rows {
		entry, err := c.client.entry(row, projection)
		if err != nil {
			return nil, err
		}
		if err := c.expandEntry(ctx, p.target(), row, entry); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// FindEntriesWithCount implements client.Command. The count ignores paging.
func (c *sqlCommand) FindEntriesWithCount(ctx context.Context) ([]*ir.Record, int64, error) {
	entries, err := c.FindEntries(ctx)
	if err != nil {
		return nil, 0, err
	}
	total, err := c.countAll(ctx)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// FindScalar implements client.Command. Count commands return the number of
// matching entries; others return the first column of the first entry.
func (c *sqlCommand) FindScalar(ctx context.Context) (ir.Value, error) {
	if c.count {
		n, err := c.countAll(ctx)
		if err != nil {
			return nil, err
		}
		return ir.Int(n), nil
	}
	entries, err := c.FindEntries(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 || entries[0].Len() == 0 {
		return ir.Null{}, nil
	}
	v, _ := entries[0].Get(entries[0].Keys()[0])
	return v, nil
}

func (c *sqlCommand) countAll(ctx context.Context) (int64, error) {
	p, err := c.plan()
	if err != nil {
		return 0, err
	}
	if err := c.checkSource(ctx, p); err != nil {
		return 0, err
	}
	comp := newCompiler(c.client.store.schema)
	where, err := c.where(comp, p)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s AS t0%s", quote(p.target().Root().ActualName), where)
	return c.client.scalarInt(ctx, query, comp.params)
}

// projection validates selected columns against the target table and
// returns their canonical names. Nil selects every column of each row's type.
func (c *sqlCommand) projection(t *schema.Table) ([]string, error) {
	if len(c.columns) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(c.columns))
	for _, name := range c.columns {
		col, ok := t.Column(name)
		if !ok {
			return nil, client.BadRequest("%s has no column %q", t.Name, name)
		}
		out = append(out, col.Name)
	}
	return out, nil
}

// expandEntry attaches linked entries: an array for many-valued links, a
// record or null otherwise.
func (c *sqlCommand) expandEntry(ctx context.Context, t *schema.Table, row storedRow, entry *ir.Record) error {
	for _, name := range c.expand {
		link, ok := t.Link(name)
		if !ok {
			return client.BadRequest("%s has no link %q", t.Name, name)
		}
		target, err := c.client.store.schema.FindTable(link.Target)
		if err != nil {
			return err
		}
		local, _ := row.values.Get(link.Local)

		comp := newCompiler(c.client.store.schema)
		root := target.Root()
		parts := []string{}
		if cond := comp.typeCond(target, "t0"); cond != "" {
			parts = append(parts, cond)
		}
		p, err := param(local)
		if err != nil {
			return err
		}
		comp.params = append(comp.params, p)
		parts = append(parts, fmt.Sprintf("t0.%s = ?", quote(link.Remote)))

		keys := make([]string, len(target.Key))
		for i, k := range target.Key {
			keys[i] = "t0." + quote(k) + " ASC"
		}
		query := fmt.Sprintf("SELECT %s FROM %s AS t0 WHERE %s ORDER BY %s",
			selectList(root), quote(root.ActualName), strings.Join(parts, " AND "), strings.Join(keys, ", "))

		linked, err := c.client.readRows(ctx, root, query, comp.params)
		if err != nil {
			return err
		}
		related := make(ir.Array, 0, len(linked))
		for _, r := range linked {
			e, err := c.client.entry(r, nil)
			if err != nil {
				return err
			}
			related = append(related, e)
		}

		switch {
		case link.Many:
			entry.Set(link.Name, related)
		case len(related) == 0:
			entry.Set(link.Name, ir.Null{})
		default:
			entry.Set(link.Name, related[0])
		}
	}
	return nil
}

// storedColumns returns the SQL columns of a root table: its own and its
// derived tables' columns, without the type column.
func storedColumns(root *schema.Table) []schema.Column {
	var out []schema.Column
	seen := make(map[string]bool)
	add := func(cols []schema.Column) {
		for _, c := range cols {
			if !seen[c.Name] {
				seen[c.Name] = true
				out = append(out, c)
			}
		}
	}
	add(root.Columns)
	for _, d := range root.Derived {
		add(d.Columns)
	}
	return out
}

// storedRow is one row read back with its concrete table.
type storedRow struct {
	table  *schema.Table
	values *ir.Record
}

// selectList selects the stored columns of a root table aliased t0, then
// the type column.
func selectList(root *schema.Table) string {
	cols := storedColumns(root)
	out := make([]string, 0, len(cols)+1)
	for _, col := range cols {
		out = append(out, "t0."+quote(col.Name))
	}
	out = append(out, "t0."+quote(typeColumn))
	return strings.Join(out, ", ")
}

// readRows runs a query built on selectList(root) and decodes each row by
// the type recorded in the type column.
func (c *sqlClient) readRows(ctx context.Context, root *schema.Table, query string, args []any) ([]storedRow, error) {
	cols := storedColumns(root)

	rows, err := c.store.query(ctx, c.q, query, args)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", root.ActualName, err)
	}
	defer rows.Close()

	var out []storedRow
	for rows.Next() {
		raw := make([]any, len(cols)+1)
		ptrs := make([]any, len(raw))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", root.ActualName, err)
		}

		typeName, _ := raw[len(cols)].(string)
		if b, ok := raw[len(cols)].([]byte); ok {
			typeName = string(b)
		}
		t, err := c.store.schema.FindTable(typeName)
		if err != nil {
			return nil, fmt.Errorf("row of %s has unknown type %q: %w", root.ActualName, typeName, err)
		}

		values := ir.NewRecord()
		for i, col := range cols {
			v, err := decode(col.Type, raw[i])
			if err != nil {
				return nil, fmt.Errorf("decode %s.%s: %w", root.ActualName, col.Name, err)
			}
			values.Set(col.Name, v)
		}
		out = append(out, storedRow{table: t, values: values})
	}
	return out, rows.Err()
}

// entry builds the record returned for a row: the projected columns, or
// every column of the row's type.
func (c *sqlClient) entry(row storedRow, projection []string) (*ir.Record, error) {
	out := ir.NewRecord()
	if projection != nil {
		for _, name := range projection {
			v, _ := row.values.Get(name)
			out.Set(name, v)
		}
		return out, nil
	}
	for _, col := range row.table.Columns {
		v, _ := row.values.Get(col.Name)
		out.Set(col.Name, v)
	}
	if c.settings.IncludeResourceType {
		out.Set(filter.ResourceTypeField, ir.String(row.table.Name))
	}
	return out, nil
}

func (c *sqlClient) scalarInt(ctx context.Context, query string, args []any) (int64, error) {
	rows, err := c.store.query(ctx, c.q, query, args)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

// decode converts a driver value to an ir.Value of the column type.
func decode(t schema.ColumnType, raw any) (ir.Value, error) {
	if raw == nil {
		return ir.Null{}, nil
	}
	switch t {
	case schema.TypeInt:
		switch v := raw.(type) {
		case int64:
			return ir.Int(v), nil
		case float64:
			return ir.Int(int64(v)), nil
		}
	case schema.TypeFloat:
		switch v := raw.(type) {
		case float64:
			return ir.Float(v), nil
		case int64:
			return ir.Float(float64(v)), nil
		}
	case schema.TypeBool:
		switch v := raw.(type) {
		case bool:
			return ir.Bool(v), nil
		case int64:
			return ir.Bool(v != 0), nil
		}
	default:
		switch v := raw.(type) {
		case string:
			return ir.String(v), nil
		case []byte:
			return ir.String(string(v)), nil
		}
	}
	return nil, fmt.Errorf("unexpected %T for %s column", raw, t)
}
