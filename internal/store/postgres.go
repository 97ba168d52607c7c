package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS kv (
		tree       TEXT NOT NULL,
		item_key   BYTEA NOT NULL,
		item_value BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (tree, item_key)
	)
`

// PostgresBackend stores trees in a single PostgreSQL table.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend creates the kv table if needed and returns the backend.
func NewPostgresBackend(ctx context.Context, pool *pgxpool.Pool) (*PostgresBackend, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, storageErr("migrate", "kv", err)
	}
	return &PostgresBackend{pool: pool}, nil
}

func (p *PostgresBackend) Get(ctx context.Context, tree string, key []byte) ([]byte, bool, error) {
	const query = `SELECT item_value FROM kv WHERE tree = $1 AND item_key = $2`

	var value []byte
	err := p.pool.QueryRow(ctx, query, tree, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, storageErr("get", tree, err)
	}
	return value, true, nil
}

func (p *PostgresBackend) Put(ctx context.Context, tree string, key, value []byte) error {
	const query = `
		INSERT INTO kv (tree, item_key, item_value, updated_at) VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tree, item_key) DO UPDATE SET item_value = EXCLUDED.item_value, updated_at = NOW()
	`
	if _, err := p.pool.Exec(ctx, query, tree, key, value); err != nil {
		return storageErr("put", tree, err)
	}
	return nil
}

func (p *PostgresBackend) Remove(ctx context.Context, tree string, key []byte) ([]byte, bool, error) {
	const query = `DELETE FROM kv WHERE tree = $1 AND item_key = $2 RETURNING item_value`

	var value []byte
	err := p.pool.QueryRow(ctx, query, tree, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, storageErr("remove", tree, err)
	}
	return value, true, nil
}

func (p *PostgresBackend) Clear(ctx context.Context, tree string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM kv WHERE tree = $1`, tree); err != nil {
		return storageErr("clear", tree, err)
	}
	return nil
}
