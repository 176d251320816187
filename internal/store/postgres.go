package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dvloznov/wechat-ledger/internal/artifact"
)

// PostgresStore keeps a report's tables in a schema named after the report.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPostgres connects to dsn and ensures the report schema exists.
func NewPostgres(ctx context.Context, dsn, schema string) (*PostgresStore, error) {
	pgConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pgConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: create schema %s: %w", schema, err)
	}
	return &PostgresStore{pool: pool, schema: schema}, nil
}

// ReplaceTable drops, recreates and copies the table in one transaction.
func (s *PostgresStore) ReplaceTable(ctx context.Context, name string, t *artifact.Table) error {
	cols := Schema(t)
	ident := pgx.Identifier{s.schema, name}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+ident.Sanitize()); err != nil {
		return fmt.Errorf("postgres: drop %s: %w", name, err)
	}

	defs := make([]string, len(cols))
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
		defs[i] = pgx.Identifier{c.Name}.Sanitize() + " " + postgresType(c.Type)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", ident.Sanitize(), strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("postgres: create %s: %w", name, err)
	}

	src := pgx.CopyFromSlice(len(t.Rows), func(i int) ([]any, error) {
		return Values(t.Rows[i], cols), nil
	})
	if _, err := tx.CopyFrom(ctx, ident, names, src); err != nil {
		return fmt.Errorf("postgres: copy into %s: %w", name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit %s: %w", name, err)
	}
	return nil
}

// RowCount returns the number of rows in the named table.
func (s *PostgresStore) RowCount(ctx context.Context, name string) (int64, error) {
	var n int64
	q := "SELECT COUNT(*) FROM " + pgx.Identifier{s.schema, name}.Sanitize()
	if err := s.pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count %s: %w", name, err)
	}
	return n, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func postgresType(t ColumnType) string {
	switch t {
	case TypeInteger:
		return "BIGINT"
	case TypeReal:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}
