/*
Package sqlstore maps the table.Store operations onto SQL.

PURPOSE:
  Builder renders Select / Insert / Update / Delete statements for the two tables with
  RETURNING, so every write reports the rows it touched. Store executes them over
  database/sql (SQLite); the Postgres backend executes the same statements over pgx.

SAFETY:
  Table and column names are never taken from input verbatim: every name is checked
  against table.Columns before it is interpolated. Values are always bound parameters.

NULL FILTERS:
  A nil filter value renders as "col IS NULL".

SEE ALSO:
  - store/sqlite: schema + database/sql wiring
  - store/postgres: schema + pgx wiring
*/
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/warp/parcelas/table"
)

// =============================================================================
// BUILDER
// =============================================================================

// Placeholder renders the n-th (1-based) bind parameter.
type Placeholder func(n int) string

// Question is the "?" style used by SQLite.
func Question(int) string { return "?" }

// Dollar is the "$n" style used by Postgres.
func Dollar(n int) string { return fmt.Sprintf("$%d", n) }

// Builder renders statements for one placeholder style.
type Builder struct {
	Placeholder Placeholder
}

// Query is a rendered statement and its arguments.
type Query struct {
	SQL  string
	Args []any
}

func (b Builder) columnList(t table.Name) string {
	return strings.Join(table.Columns[t], ", ")
}

// Select pages through t ordered by id.
func (b Builder) Select(t table.Name, offset, limit int) (Query, error) {
	if err := table.ValidateColumns(t, nil); err != nil {
		return Query{}, err
	}
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY id LIMIT %s OFFSET %s",
		b.columnList(t), t, b.Placeholder(1), b.Placeholder(2))
	return Query{SQL: q, Args: []any{limit, offset}}, nil
}

// Insert renders a multi-row insert. Every row must set the same columns; columns absent
// from a row are sent as NULL.
func (b Builder) Insert(t table.Name, rows []table.Row) (Query, error) {
	if len(rows) == 0 {
		return Query{}, fmt.Errorf("insert %s: no rows", t)
	}
	for _, r := range rows {
		if err := table.ValidateColumns(t, r); err != nil {
			return Query{}, err
		}
	}

	// Union of the columns set by any row, in schema order.
	var cols []string
	for _, c := range table.Columns[t] {
		for _, r := range rows {
			if _, ok := r[c]; ok {
				cols = append(cols, c)
				break
			}
		}
	}
	if len(cols) == 0 {
		return Query{}, fmt.Errorf("insert %s: rows have no columns", t)
	}

	var args []any
	tuples := make([]string, len(rows))
	for i, r := range rows {
		ph := make([]string, len(cols))
		for j, c := range cols {
			args = append(args, table.Normalize(r[c]))
			ph[j] = b.Placeholder(len(args))
		}
		tuples[i] = "(" + strings.Join(ph, ", ") + ")"
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s RETURNING %s",
		t, strings.Join(cols, ", "), strings.Join(tuples, ", "), b.columnList(t))
	return Query{SQL: q, Args: args}, nil
}

// Update renders "UPDATE t SET ... WHERE ... RETURNING ...". The id column is never patched.
func (b Builder) Update(t table.Name, patch table.Row, filter table.Filter) (Query, error) {
	if err := table.ValidateColumns(t, patch); err != nil {
		return Query{}, err
	}
	if err := table.ValidateColumns(t, filter); err != nil {
		return Query{}, err
	}

	var args []any
	var sets []string
	for _, c := range table.Columns[t] {
		v, ok := patch[c]
		if !ok || c == "id" {
			continue
		}
		args = append(args, table.Normalize(v))
		sets = append(sets, fmt.Sprintf("%s = %s", c, b.Placeholder(len(args))))
	}
	if len(sets) == 0 {
		return Query{}, fmt.Errorf("update %s: empty patch", t)
	}
	where, args := b.where(t, filter, args)
	q := fmt.Sprintf("UPDATE %s SET %s%s RETURNING %s", t, strings.Join(sets, ", "), where, b.columnList(t))
	return Query{SQL: q, Args: args}, nil
}

// Delete renders "DELETE FROM t WHERE ... RETURNING ...".
func (b Builder) Delete(t table.Name, filter table.Filter) (Query, error) {
	if err := table.ValidateColumns(t, filter); err != nil {
		return Query{}, err
	}
	where, args := b.where(t, filter, nil)
	q := fmt.Sprintf("DELETE FROM %s%s RETURNING %s", t, where, b.columnList(t))
	return Query{SQL: q, Args: args}, nil
}

func (b Builder) where(t table.Name, filter table.Filter, args []any) (string, []any) {
	var conds []string
	for _, c := range table.Columns[t] {
		v, ok := filter[c]
		if !ok {
			continue
		}
		if v == nil {
			conds = append(conds, c+" IS NULL")
			continue
		}
		args = append(args, table.Normalize(v))
		conds = append(conds, fmt.Sprintf("%s = %s", c, b.Placeholder(len(args))))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// =============================================================================
// DATABASE/SQL STORE
// =============================================================================

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Store implements table.TxStore over database/sql.
// Writes are serialized with a mutex; SQLite allows a single writer anyway.
type Store struct {
	db      *sql.DB
	builder Builder
	mu      sync.RWMutex
}

func New(db *sql.DB, b Builder) *Store {
	return &Store{db: db, builder: b}
}

// DB exposes the handle for schema setup.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Select(ctx context.Context, t table.Name, offset, limit int) ([]table.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return selectRows(ctx, s.db, s.builder, t, offset, limit)
}

func (s *Store) Insert(ctx context.Context, t table.Name, rows []table.Row) ([]table.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertRows(ctx, s.db, s.builder, t, rows)
}

func (s *Store) Update(ctx context.Context, t table.Name, patch table.Row, filter table.Filter) ([]table.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateRows(ctx, s.db, s.builder, t, patch, filter)
}

func (s *Store) Delete(ctx context.Context, t table.Name, filter table.Filter) ([]table.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteRows(ctx, s.db, s.builder, t, filter)
}

// WithTx executes fn within a database transaction.
// Every operation of the view runs on the transaction, reads included.
func (s *Store) WithTx(ctx context.Context, fn func(table.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, builder: s.builder}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type txStore struct {
	tx      *sql.Tx
	builder Builder
}

func (ts *txStore) Select(ctx context.Context, t table.Name, offset, limit int) ([]table.Row, error) {
	return selectRows(ctx, ts.tx, ts.builder, t, offset, limit)
}

func (ts *txStore) Insert(ctx context.Context, t table.Name, rows []table.Row) ([]table.Row, error) {
	return insertRows(ctx, ts.tx, ts.builder, t, rows)
}

func (ts *txStore) Update(ctx context.Context, t table.Name, patch table.Row, filter table.Filter) ([]table.Row, error) {
	return updateRows(ctx, ts.tx, ts.builder, t, patch, filter)
}

func (ts *txStore) Delete(ctx context.Context, t table.Name, filter table.Filter) ([]table.Row, error) {
	return deleteRows(ctx, ts.tx, ts.builder, t, filter)
}

func selectRows(ctx context.Context, q querier, b Builder, t table.Name, offset, limit int) ([]table.Row, error) {
	stmt, err := b.Select(t, offset, limit)
	if err != nil {
		return nil, err
	}
	return run(ctx, q, "select", t, stmt)
}

func insertRows(ctx context.Context, q querier, b Builder, t table.Name, rows []table.Row) ([]table.Row, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	stmt, err := b.Insert(t, rows)
	if err != nil {
		return nil, err
	}
	return run(ctx, q, "insert", t, stmt)
}

func updateRows(ctx context.Context, q querier, b Builder, t table.Name, patch table.Row, filter table.Filter) ([]table.Row, error) {
	stmt, err := b.Update(t, patch, filter)
	if err != nil {
		return nil, err
	}
	return run(ctx, q, "update", t, stmt)
}

func deleteRows(ctx context.Context, q querier, b Builder, t table.Name, filter table.Filter) ([]table.Row, error) {
	stmt, err := b.Delete(t, filter)
	if err != nil {
		return nil, err
	}
	return run(ctx, q, "delete", t, stmt)
}

func run(ctx context.Context, q querier, op string, t table.Name, stmt Query) ([]table.Row, error) {
	rows, err := q.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, &table.StoreError{Op: op, Table: t, Err: err}
	}
	defer rows.Close()

	out, err := ScanRows(rows)
	if err != nil {
		return nil, &table.StoreError{Op: op, Table: t, Err: err}
	}
	return out, nil
}

// ScanRows reads every result row into a table.Row keyed by column name.
func ScanRows(rows *sql.Rows) ([]table.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []table.Row{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		r := make(table.Row, len(cols))
		for i, c := range cols {
			r[c] = table.Normalize(values[i])
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
