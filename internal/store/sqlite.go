package store

import (
	"context"
	"database/sql"
	"errors"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS kv (
		tree       TEXT NOT NULL,
		item_key   BLOB NOT NULL,
		item_value BLOB NOT NULL,
		PRIMARY KEY (tree, item_key)
	) WITHOUT ROWID
`

// SQLiteBackend stores trees in a single table of an embedded SQLite database.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend creates the kv table if needed and returns the backend.
func NewSQLiteBackend(ctx context.Context, db *sql.DB) (*SQLiteBackend, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, storageErr("migrate", "kv", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (s *SQLiteBackend) Get(ctx context.Context, tree string, key []byte) ([]byte, bool, error) {
	const query = `SELECT item_value FROM kv WHERE tree = ? AND item_key = ?`

	var value []byte
	err := s.db.QueryRowContext(ctx, query, tree, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, storageErr("get", tree, err)
	}
	return value, true, nil
}

func (s *SQLiteBackend) Put(ctx context.Context, tree string, key, value []byte) error {
	const query = `
		INSERT INTO kv (tree, item_key, item_value) VALUES (?, ?, ?)
		ON CONFLICT (tree, item_key) DO UPDATE SET item_value = excluded.item_value
	`
	if _, err := s.db.ExecContext(ctx, query, tree, key, value); err != nil {
		return storageErr("put", tree, err)
	}
	return nil
}

func (s *SQLiteBackend) Remove(ctx context.Context, tree string, key []byte) ([]byte, bool, error) {
	const query = `DELETE FROM kv WHERE tree = ? AND item_key = ? RETURNING item_value`

	var value []byte
	err := s.db.QueryRowContext(ctx, query, tree, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, storageErr("remove", tree, err)
	}
	return value, true, nil
}

func (s *SQLiteBackend) Clear(ctx context.Context, tree string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE tree = ?`, tree); err != nil {
		return storageErr("clear", tree, err)
	}
	return nil
}
