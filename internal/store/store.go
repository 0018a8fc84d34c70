package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/odapt/internal/client"
	"github.com/roach88/odapt/internal/ir"
	"github.com/roach88/odapt/internal/schema"
)

// typeColumn holds the logical table name of each row.
const typeColumn = "__type"

// Store is a SQLite-backed client.Provider.
type Store struct {
	db     *sql.DB
	schema *schema.Schema
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger logs every SQL statement at Debug level.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Open creates or opens a SQLite database at the given path and creates the
// tables of the schema.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string, sch *schema.Schema, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	s := &Store{
		db:     db,
		schema: sch,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.applySchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates one table per root table. Columns of derived tables
// are added to the table of their base.
func (s *Store) applySchema() error {
	for _, t := range s.schema.Tables() {
		if _, err := s.db.Exec(createTableSQL(t)); err != nil {
			return fmt.Errorf("create %s: %w", t.ActualName, err)
		}
	}
	return nil
}

func createTableSQL(t *schema.Table) string {
	var defs []string
	seen := make(map[string]bool)
	add := func(c schema.Column) {
		if seen[c.Name] {
			return
		}
		seen[c.Name] = true
		defs = append(defs, quote(c.Name)+" "+sqlType(c.Type))
	}
	for _, c := range t.Columns {
		add(c)
	}
	for _, d := range t.Derived {
		for _, c := range d.Columns {
			add(c)
		}
	}
	defs = append(defs, quote(typeColumn)+" TEXT NOT NULL")

	keys := make([]string, len(t.Key))
	for i, k := range t.Key {
		keys[i] = quote(k)
	}
	defs = append(defs, "PRIMARY KEY ("+strings.Join(keys, ", ")+")")

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(t.ActualName), strings.Join(defs, ", "))
}

func sqlType(t schema.ColumnType) string {
	switch t {
	case schema.TypeInt:
		return "INTEGER"
	case schema.TypeFloat:
		return "REAL"
	case schema.TypeBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// quote quotes an SQL identifier.
func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Load inserts fixture rows into a table (root or derived, by logical name).
func (s *Store) Load(ctx context.Context, table string, rows ...*ir.Record) error {
	t, err := s.schema.FindTable(table)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := s.insert(ctx, s.db, t, row); err != nil {
			return err
		}
	}
	return nil
}

// Schema implements client.Provider.
func (s *Store) Schema(_ context.Context, _ client.Settings) (*schema.Schema, error) {
	return s.schema, nil
}

// NewClient implements client.Provider.
func (s *Store) NewClient(settings client.Settings) (client.Client, error) {
	return &sqlClient{store: s, q: s.db, settings: settings}, nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) query(ctx context.Context, q queryer, query string, args []any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := q.QueryContext(ctx, query, args...)
	s.logger.Debug("sql query",
		"sql", query,
		"args", args,
		"duration", time.Since(start),
		"error", err)
	return rows, err
}

func (s *Store) exec(ctx context.Context, q queryer, query string, args []any) (int64, error) {
	start := time.Now()
	res, err := q.ExecContext(ctx, query, args...)
	var affected int64 = -1
	if err == nil {
		affected, err = res.RowsAffected()
	}
	s.logger.Debug("sql exec",
		"sql", query,
		"args", args,
		"duration", time.Since(start),
		"rows", affected,
		"error", err)
	return affected, err
}
