/*
Package postgres provides a PostgreSQL-backed table.TxStore over a pgx connection pool.

PURPOSE:
  The shared backend for multi-user deployments. Statements are the ones sqlstore.Builder
  renders for SQLite, with "$n" placeholders; this package owns the pool, the schema and
  the pgx row decoding.

CONNECTING:
  Open parses the URL, applies the pool limits and pings until the database answers
  (ConnectAttempts × RetryDelay), so the server can start alongside a database container.

TRANSACTIONS:
  WithTx runs fn on a pgx.Tx. Every statement of the view runs on the transaction.

SEE ALSO:
  - store/sqlstore: statement builder
  - store/sqlite: the single-file backend with the same schema
*/
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/warp/parcelas/store/sqlstore"
	"github.com/warp/parcelas/table"
	"go.uber.org/zap"
)

// Config holds the pool settings.
type Config struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectAttempts int
	RetryDelay      time.Duration
}

// DefaultConfig returns the pool settings used by cmd/server.
func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		ConnectAttempts: 30,
		RetryDelay:      time.Second,
	}
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store implements table.TxStore on a pgx pool.
type Store struct {
	pool    *pgxpool.Pool
	builder sqlstore.Builder
}

// Open connects, waits for the database and migrates the schema.
func Open(ctx context.Context, cfg Config, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	attempts := max(cfg.ConnectAttempts, 1)
	for i := 0; ; i++ {
		err = pool.Ping(ctx)
		if err == nil {
			break
		}
		if i+1 >= attempts {
			pool.Close()
			return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, err)
		}
		log.Info("waiting for database", zap.Int("attempt", i+1), zap.Int("of", attempts), zap.Error(err))
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(cfg.RetryDelay):
		}
	}

	s := New(pool)
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Info("connected to postgres", zap.Int32("max_conns", poolCfg.MaxConns))
	return s, nil
}

// New wraps an existing pool without migrating.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, builder: sqlstore.Builder{Placeholder: sqlstore.Dollar}}
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Select(ctx context.Context, t table.Name, offset, limit int) ([]table.Row, error) {
	return exec(ctx, s.pool, "select", t, func() (sqlstore.Query, error) { return s.builder.Select(t, offset, limit) })
}

func (s *Store) Insert(ctx context.Context, t table.Name, rows []table.Row) ([]table.Row, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	return exec(ctx, s.pool, "insert", t, func() (sqlstore.Query, error) { return s.builder.Insert(t, rows) })
}

func (s *Store) Update(ctx context.Context, t table.Name, patch table.Row, filter table.Filter) ([]table.Row, error) {
	return exec(ctx, s.pool, "update", t, func() (sqlstore.Query, error) { return s.builder.Update(t, patch, filter) })
}

func (s *Store) Delete(ctx context.Context, t table.Name, filter table.Filter) ([]table.Row, error) {
	return exec(ctx, s.pool, "delete", t, func() (sqlstore.Query, error) { return s.builder.Delete(t, filter) })
}

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(table.Store) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&txStore{tx: tx, builder: s.builder}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type txStore struct {
	tx      pgx.Tx
	builder sqlstore.Builder
}

func (ts *txStore) Select(ctx context.Context, t table.Name, offset, limit int) ([]table.Row, error) {
	return exec(ctx, ts.tx, "select", t, func() (sqlstore.Query, error) { return ts.builder.Select(t, offset, limit) })
}

func (ts *txStore) Insert(ctx context.Context, t table.Name, rows []table.Row) ([]table.Row, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	return exec(ctx, ts.tx, "insert", t, func() (sqlstore.Query, error) { return ts.builder.Insert(t, rows) })
}

func (ts *txStore) Update(ctx context.Context, t table.Name, patch table.Row, filter table.Filter) ([]table.Row, error) {
	return exec(ctx, ts.tx, "update", t, func() (sqlstore.Query, error) { return ts.builder.Update(t, patch, filter) })
}

func (ts *txStore) Delete(ctx context.Context, t table.Name, filter table.Filter) ([]table.Row, error) {
	return exec(ctx, ts.tx, "delete", t, func() (sqlstore.Query, error) { return ts.builder.Delete(t, filter) })
}

func exec(ctx context.Context, q querier, op string, t table.Name, build func() (sqlstore.Query, error)) ([]table.Row, error) {
	stmt, err := build()
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, &table.StoreError{Op: op, Table: t, Err: err}
	}
	defer rows.Close()

	out, err := scan(rows)
	if err != nil {
		return nil, &table.StoreError{Op: op, Table: t, Err: err}
	}
	return out, nil
}

func scan(rows pgx.Rows) ([]table.Row, error) {
	fields := rows.FieldDescriptions()
	out := []table.Row{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		r := make(table.Row, len(fields))
		for i, f := range fields {
			r[f.Name] = table.Normalize(values[i])
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS contratos (
		id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		numero TEXT,
		contrato TEXT NOT NULL,
		cnpj TEXT,
		descricao TEXT,
		anexos TEXT,
		estabelecimento TEXT,
		classificacao TEXT,
		conta TEXT,
		centro_custo TEXT,
		valor_contrato DOUBLE PRECISION,
		inicio TEXT,
		termino TEXT,
		situacao TEXT NOT NULL DEFAULT 'ATIVO'
	);

	CREATE INDEX IF NOT EXISTS idx_contratos_contrato ON contratos(contrato);

	CREATE TABLE IF NOT EXISTS parcelas (
		id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		contrato_id BIGINT,
		contrato TEXT,
		ano INTEGER,
		mes INTEGER,
		data_emissao TEXT,
		data_vencimento TEXT,
		tipo TEXT,
		referente TEXT,
		classificacao TEXT,
		estabelecimento TEXT,
		status TEXT NOT NULL DEFAULT 'ABERTO',
		valor DOUBLE PRECISION,
		documento TEXT,
		data_lancamento TEXT,
		situacao TEXT NOT NULL DEFAULT 'ATIVO'
	);

	CREATE INDEX IF NOT EXISTS idx_parcelas_contrato ON parcelas(contrato);
	CREATE INDEX IF NOT EXISTS idx_parcelas_ano_mes ON parcelas(ano, mes);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}
