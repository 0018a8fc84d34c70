package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/odapt/internal/client"
	"github.com/roach88/odapt/internal/ir"
	"github.com/roach88/odapt/internal/schema"
)

// statement is a prepared write. Statements are built before execution so a
// batch can reject bad writes when they are queued.
type statement struct {
	sql  string
	args []any

	// notFound, when set, is the 404 message for a statement that changes
	// no row.
	notFound string
}

func (s *Store) run(ctx context.Context, q queryer, st statement) (int, error) {
	n, err := s.exec(ctx, q, st.sql, st.args)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && (se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique) {
			return 0, &client.RequestError{Status: http.StatusConflict, Message: "entry with the same key already exists"}
		}
		return 0, err
	}
	if n == 0 && st.notFound != "" {
		return 0, client.NotFound("%s", st.notFound)
	}
	return int(n), nil
}

// assignments validates the columns of a write and returns canonical column
// names with their driver parameters.
func assignments(t *schema.Table, data *ir.Record) ([]string, []any, error) {
	var cols []string
	var args []any
	var err error
	data.Range(func(name string, v ir.Value) bool {
		col, ok := t.Column(name)
		if !ok {
			err = client.BadRequest("%s has no column %q", t.Name, name)
			return false
		}
		var p any
		p, err = param(v)
		if err != nil {
			return false
		}
		cols = append(cols, col.Name)
		args = append(args, p)
		return true
	})
	return cols, args, err
}

func isKeyColumn(t *schema.Table, name string) bool {
	for _, k := range t.Key {
		if k == name {
			return true
		}
	}
	return false
}

func prepareInsert(t *schema.Table, data *ir.Record) (statement, error) {
	cols, args, err := assignments(t, data)
	if err != nil {
		return statement{}, err
	}
	for _, k := range t.Key {
		v, ok := lookupFolded(data, k)
		if !ok || ir.IsNull(v) {
			return statement{}, client.BadRequest("%s requires key column %s", t.Name, k)
		}
	}

	quoted := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		quoted = append(quoted, quote(c))
	}
	quoted = append(quoted, quote(typeColumn))
	args = append(args, t.Name)

	return statement{
		sql: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quote(t.Root().ActualName), strings.Join(quoted, ", "), placeholders(len(quoted))),
		args: args,
	}, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// setClause renders SET for an update. Key columns may only be repeated with
// their current value; keyed updates with nothing else to set assign the
// first key column to itself so the row count still reports a match.
func setClause(t *schema.Table, key client.Key, data *ir.Record) (string, []any, error) {
	cols, args, err := assignments(t, data)
	if err != nil {
		return "", nil, err
	}
	var sets []string
	var setArgs []any
	for i, c := range cols {
		if isKeyColumn(t, c) {
			if key.IsZero() {
				return "", nil, client.BadRequest("cannot update key column %s of %s", c, t.Name)
			}
			current, _ := keyValue(t, key, c)
			if !ir.Equal(ir.MustFromGo(args[i]), current) {
				return "", nil, client.BadRequest("cannot change key column %s of %s", c, t.Name)
			}
			continue
		}
		sets = append(sets, quote(c)+" = ?")
		setArgs = append(setArgs, args[i])
	}
	if len(sets) == 0 {
		sets = append(sets, quote(t.Key[0])+" = "+quote(t.Key[0]))
	}
	return strings.Join(sets, ", "), setArgs, nil
}

func keyValue(t *schema.Table, key client.Key, column string) (ir.Value, bool) {
	if key.Named != nil {
		return lookupFolded(key.Named, column)
	}
	for i, k := range t.Key {
		if k == column && i < len(key.Positional) {
			return key.Positional[i], true
		}
	}
	return nil, false
}

func (s *Store) prepareUpdate(t *schema.Table, key client.Key, data *ir.Record) (statement, error) {
	set, args, err := setClause(t, key, data)
	if err != nil {
		return statement{}, err
	}
	comp := newCompiler(s.schema)
	comp.params = args
	where, err := rowCond(comp, t, key)
	if err != nil {
		return statement{}, err
	}
	return statement{
		sql:      fmt.Sprintf("UPDATE %s AS t0 SET %s WHERE %s", quote(t.Root().ActualName), set, where),
		args:     comp.params,
		notFound: t.Name + " has no entry with the given key",
	}, nil
}

func (s *Store) prepareUpdateWhere(t *schema.Table, filterText string, data *ir.Record) (statement, error) {
	set, args, err := setClause(t, client.Key{}, data)
	if err != nil {
		return statement{}, err
	}
	comp := newCompiler(s.schema)
	comp.params = args
	where, err := filterCond(comp, t, filterText)
	if err != nil {
		return statement{}, err
	}
	return statement{
		sql:  fmt.Sprintf("UPDATE %s AS t0 SET %s%s", quote(t.Root().ActualName), set, where),
		args: comp.params,
	}, nil
}

func (s *Store) prepareDelete(t *schema.Table, key client.Key) (statement, error) {
	comp := newCompiler(s.schema)
	where, err := rowCond(comp, t, key)
	if err != nil {
		return statement{}, err
	}
	return statement{
		sql:      fmt.Sprintf("DELETE FROM %s AS t0 WHERE %s", quote(t.Root().ActualName), where),
		args:     comp.params,
		notFound: t.Name + " has no entry with the given key",
	}, nil
}

func (s *Store) prepareDeleteWhere(t *schema.Table, filterText string) (statement, error) {
	comp := newCompiler(s.schema)
	where, err := filterCond(comp, t, filterText)
	if err != nil {
		return statement{}, err
	}
	return statement{
		sql:  fmt.Sprintf("DELETE FROM %s AS t0%s", quote(t.Root().ActualName), where),
		args: comp.params,
	}, nil
}

func rowCond(comp *compiler, t *schema.Table, key client.Key) (string, error) {
	var parts []string
	if cond := comp.typeCond(t, "t0"); cond != "" {
		parts = append(parts, cond)
	}
	cond, err := comp.keyCond(t, "t0", key)
	if err != nil {
		return "", err
	}
	parts = append(parts, cond)
	return strings.Join(parts, " AND "), nil
}

func filterCond(comp *compiler, t *schema.Table, filterText string) (string, error) {
	var parts []string
	if cond := comp.typeCond(t, "t0"); cond != "" {
		parts = append(parts, cond)
	}
	if filterText != "" {
		cond, err := comp.filterText(t, "t0", filterText)
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

// insert writes one row and returns its key.
func (s *Store) insert(ctx context.Context, q queryer, t *schema.Table, data *ir.Record) (*ir.Record, error) {
	st, err := prepareInsert(t, data)
	if err != nil {
		return nil, err
	}
	if _, err := s.run(ctx, q, st); err != nil {
		return nil, fmt.Errorf("insert into %s: %w", t.Name, err)
	}
	key := ir.NewRecord()
	for _, k := range t.Key {
		v, _ := lookupFolded(data, k)
		key.Set(k, v)
	}
	return key, nil
}

// InsertEntry implements client.Client. With resultRequired the stored
// entry is read back.
func (c *sqlClient) InsertEntry(ctx context.Context, entitySet string, data *ir.Record, resultRequired bool) (*ir.Record, error) {
	t, err := c.resolve(entitySet)
	if err != nil {
		return nil, err
	}
	key, err := c.store.insert(ctx, c.q, t, data)
	if err != nil {
		return nil, err
	}
	if !resultRequired {
		return nil, nil
	}
	cmd := c.For(t.Root().ActualName)
	if t.IsDerived() {
		cmd = cmd.As(t.ActualName)
	}
	entries, err := cmd.Key(client.Key{Named: key}).FindEntries(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, client.NotFound("inserted %s entry was not found", t.Name)
	}
	return entries[0], nil
}

// UpdateEntry implements client.Client.
func (c *sqlClient) UpdateEntry(ctx context.Context, entitySet string, key client.Key, data *ir.Record) (int, error) {
	t, err := c.resolve(entitySet)
	if err != nil {
		return 0, err
	}
	st, err := c.store.prepareUpdate(t, key, data)
	if err != nil {
		return 0, err
	}
	return c.store.run(ctx, c.q, st)
}

// UpdateEntries implements client.Client.
func (c *sqlClient) UpdateEntries(ctx context.Context, entitySet, filterText string, data *ir.Record) (int, error) {
	t, err := c.resolve(entitySet)
	if err != nil {
		return 0, err
	}
	st, err := c.store.prepareUpdateWhere(t, filterText, data)
	if err != nil {
		return 0, err
	}
	return c.store.run(ctx, c.q, st)
}

// DeleteEntry implements client.Client.
func (c *sqlClient) DeleteEntry(ctx context.Context, entitySet string, key client.Key) (int, error) {
	t, err := c.resolve(entitySet)
	if err != nil {
		return 0, err
	}
	st, err := c.store.prepareDelete(t, key)
	if err != nil {
		return 0, err
	}
	return c.store.run(ctx, c.q, st)
}

// DeleteEntries implements client.Client.
func (c *sqlClient) DeleteEntries(ctx context.Context, entitySet, filterText string) (int, error) {
	t, err := c.resolve(entitySet)
	if err != nil {
		return 0, err
	}
	st, err := c.store.prepareDeleteWhere(t, filterText)
	if err != nil {
		return 0, err
	}
	return c.store.run(ctx, c.q, st)
}
