// Package store provides read-only access to the analytics SQLite
// database: query execution with structured results, a compact schema
// description used as prompt material, and table-reference extraction.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"askdb/internal/logging"
)

// ExecutionResult is the outcome of one query execution attempt.
// A fresh result is produced for every attempt; failures carry the
// engine error text instead of raising.
type ExecutionResult struct {
	Success bool
	Rows    [][]any
	Columns []string
	Err     string
	Tables  []string // canonical names of tables referenced by the query
}

// Store wraps the SQLite database. Safe for concurrent use; the
// workload is read-only analytics so a single pooled connection per
// query is sufficient.
type Store struct {
	db   *sql.DB
	path string

	schemaOnce sync.Once
	schema     string
	schemaErr  error
}

// Open opens the database at path. A missing database file is a
// configuration error and fails immediately. In-memory paths are
// allowed for tests.
func Open(path string) (*Store, error) {
	if !isMemoryPath(path) {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("database not found: %s", path)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Store{db: db, path: path}, nil
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for seeding in tests.
func (s *Store) DB() *sql.DB { return s.db }

// Execute runs a query and returns a structured result. Execution
// failure is reported in the result, never as an error: the caller's
// repair loop decides what to do with it.
func (s *Store) Execute(ctx context.Context, query string) ExecutionResult {
	log := logging.For(logging.CategoryStore)
	res := ExecutionResult{}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		res.Err = err.Error()
		log.Debugf("query failed: %v", err)
		return res
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		res.Err = err.Error()
		return res
	}
	res.Columns = cols

	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			res.Err = err.Error()
			return res
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		res.Err = err.Error()
		return res
	}

	res.Success = true
	res.Tables = ExtractTables(query)
	log.Debugf("query succeeded: %d rows, tables=%v", len(res.Rows), res.Tables)
	return res
}

// Validate checks a query with EXPLAIN without executing it.
func (s *Store) Validate(ctx context.Context, query string) (bool, string) {
	rows, err := s.db.QueryContext(ctx, "EXPLAIN "+query)
	if err != nil {
		return false, err.Error()
	}
	rows.Close()
	return true, ""
}

// TableSample returns up to limit rows from a table.
func (s *Store) TableSample(ctx context.Context, table string, limit int) ExecutionResult {
	if limit <= 0 {
		limit = 5
	}
	return s.Execute(ctx, fmt.Sprintf("SELECT * FROM %q LIMIT %d", table, limit))
}

// keyTables are the tables surfaced in the schema description.
var keyTables = []string{"Categories", "Products", "Order Details", "Orders", "Customers"}

// Schema returns a compact textual schema: key tables with their
// leading columns, foreign-key join hints, and worked micro-examples
// for date filtering and the common KPI formulas. The text is consumed
// verbatim as a prompt field, so it stays deliberately short.
func (s *Store) Schema(ctx context.Context) (string, error) {
	s.schemaOnce.Do(func() {
		s.schema, s.schemaErr = s.buildSchema(ctx)
	})
	return s.schema, s.schemaErr
}

func (s *Store) buildSchema(ctx context.Context) (string, error) {
	lines := []string{
		`Tables: Categories, Products, "Order Details" (MUST quote!), Orders, Customers`,
		`Date: strftime('%Y-%m', Orders.OrderDate) = '1997-06'. Revenue: SUM(UnitPrice*Quantity*(1-Discount))`,
		`AOV: Revenue/COUNT(DISTINCT OrderID). CostOfGoods: 0.7*UnitPrice`,
	}

	present := make(map[string]bool)
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return "", fmt.Errorf("introspect tables: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return "", err
		}
		present[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", err
	}

	for _, table := range keyTables {
		if !present[table] {
			continue
		}

		cols, err := s.tableColumns(ctx, table, 3)
		if err != nil {
			return "", err
		}
		name := table
		if strings.Contains(table, " ") {
			name = fmt.Sprintf("%q", table)
		}
		lines = append(lines, fmt.Sprintf("%s(%s...)", name, strings.Join(cols, ", ")))

		hints, err := s.joinHints(ctx, table)
		if err != nil {
			return "", err
		}
		lines = append(lines, hints...)
	}

	return strings.Join(lines, "\n"), nil
}

func (s *Store) tableColumns(ctx context.Context, table string, max int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, colType    string
			dflt             any
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		if len(cols) < max {
			cols = append(cols, name)
		}
	}
	return cols, rows.Err()
}

func (s *Store) joinHints(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("foreign_key_list %s: %w", table, err)
	}
	defer rows.Close()

	key := make(map[string]bool, len(keyTables))
	for _, t := range keyTables {
		key[t] = true
	}

	var hints []string
	for rows.Next() {
		var (
			id, seq            int
			refTable, from, to string
			onUpdate, onDelete string
			match              string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		if !key[refTable] {
			continue
		}
		ref := refTable
		if strings.Contains(refTable, " ") {
			ref = fmt.Sprintf("%q", refTable)
		}
		hints = append(hints, fmt.Sprintf("  %s->%s.%s", from, ref, to))
	}
	return hints, rows.Err()
}

// knownTables is the canonical citation order for table references.
var knownTables = []string{
	"Orders", "Order Details", "Products", "Customers",
	"Employees", "Categories", "Suppliers", "Shippers",
}

// orderDetailVariants are the spellings models use for the multi-word table.
var orderDetailVariants = []string{"ORDER DETAILS", "ORDER_DETAILS", "ORDERDETAILS", "ORDER_ITEMS"}

// ExtractTables scans query text for known table name tokens and
// returns their canonical names, de-duplicated, in a fixed order. The
// multi-word "Order Details" table is matched across its common
// unquoted misspellings.
func ExtractTables(query string) []string {
	upper := strings.ToUpper(query)

	var out []string
	for _, table := range knownTables {
		if table == "Order Details" {
			for _, v := range orderDetailVariants {
				if strings.Contains(upper, v) {
					out = append(out, table)
					break
				}
			}
			continue
		}
		if strings.Contains(upper, strings.ToUpper(table)) {
			out = append(out, table)
		}
	}
	return out
}
