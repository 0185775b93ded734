package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"schoolhub/internal/apperr"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// KVStore keeps JSON values under string keys. It is the single persistence
// backend for the app; collections and the session live here.
type KVStore struct {
	db *DB
}

func NewKVStore(db *DB) *KVStore {
	return &KVStore{db: db}
}

// Get decodes the value under key into dst. It reports false when the key is
// absent. A value that cannot be decoded is a storage error.
func (s *KVStore) Get(ctx context.Context, key string, dst any) (bool, error) {
	return getJSON(ctx, s.db, key, dst)
}

func (s *KVStore) GetRaw(ctx context.Context, key string) ([]byte, bool, error) {
	return getRaw(ctx, s.db, key)
}

func (s *KVStore) Set(ctx context.Context, key string, value any) error {
	return setJSON(ctx, s.db, key, value)
}

func (s *KVStore) SetRaw(ctx context.Context, key string, value []byte) error {
	return setRaw(ctx, s.db, key, value)
}

func (s *KVStore) Remove(ctx context.Context, key string) error {
	return remove(ctx, s.db, key)
}

// WithTx runs fn inside one database transaction. Every write made through
// the KVTx commits together, or none does when fn returns an error.
func (s *KVStore) WithTx(ctx context.Context, fn func(tx *KVTx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Storage("starting transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&KVTx{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return apperr.Storage("committing transaction", err)
	}
	return nil
}

type KVTx struct {
	tx *sql.Tx
}

func (t *KVTx) Get(ctx context.Context, key string, dst any) (bool, error) {
	return getJSON(ctx, t.tx, key, dst)
}

func (t *KVTx) GetRaw(ctx context.Context, key string) ([]byte, bool, error) {
	return getRaw(ctx, t.tx, key)
}

func (t *KVTx) Set(ctx context.Context, key string, value any) error {
	return setJSON(ctx, t.tx, key, value)
}

func (t *KVTx) SetRaw(ctx context.Context, key string, value []byte) error {
	return setRaw(ctx, t.tx, key, value)
}

func (t *KVTx) Remove(ctx context.Context, key string) error {
	return remove(ctx, t.tx, key)
}

func getRaw(ctx context.Context, q querier, key string) ([]byte, bool, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperr.Storage(fmt.Sprintf("reading %q", key), err)
	}
	return []byte(value), true, nil
}

func getJSON(ctx context.Context, q querier, key string, dst any) (bool, error) {
	raw, ok, err := getRaw(ctx, q, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, apperr.Storage(fmt.Sprintf("decoding %q", key), err)
	}
	return true, nil
}

func setRaw(ctx context.Context, q querier, key string, value []byte) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(value), time.Now().UTC(),
	)
	if err != nil {
		return apperr.Storage(fmt.Sprintf("writing %q", key), err)
	}
	return nil
}

func setJSON(ctx context.Context, q querier, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return apperr.Storage(fmt.Sprintf("encoding %q", key), err)
	}
	return setRaw(ctx, q, key, data)
}

func remove(ctx context.Context, q querier, key string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key); err != nil {
		return apperr.Storage(fmt.Sprintf("removing %q", key), err)
	}
	return nil
}
