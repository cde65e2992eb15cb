package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/TemirB/freight-portal/internal/config"
	"github.com/TemirB/freight-portal/internal/kv"
)

// KVStore is the postgres kv.Store backend, shared by every portal instance.
type KVStore struct {
	base
}

func NewKVStore(db DB, t config.Tables) *KVStore { return &KVStore{base{db: db, tables: t}} }

func (s *KVStore) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRow(ctx, fmt.Sprintf(`SELECT value FROM %s WHERE key=$1`, s.qt(s.tables.KV)), key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", kv.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kv get %s: %w", key, err)
	}
	return v, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (key, value, updated_at) VALUES ($1,$2,now())
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at
	`, s.qt(s.tables.KV)), key, value)
	if err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key=$1`, s.qt(s.tables.KV)), key); err != nil {
		return fmt.Errorf("kv remove %s: %w", key, err)
	}
	return nil
}
