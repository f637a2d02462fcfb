package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tesouraria/internal/localstore"
)

// LocalKV is the local_kv table seen as a localstore.KV. It shares the
// repository connection.
type LocalKV struct {
	db  *sql.DB
	now func() time.Time
}

// KV returns the key/value view of the repository.
func (r *SQLiteRepository) KV() *LocalKV {
	return &LocalKV{db: r.db, now: r.now}
}

func (k *LocalKV) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var value []byte
	err := k.db.QueryRowContext(ctx,
		`SELECT value FROM local_kv WHERE namespace = ? AND key = ?`, namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, localstore.ErrNoValue
	}
	if err != nil {
		return nil, fmt.Errorf("get local value %s/%s: %w", namespace, key, err)
	}
	return value, nil
}

func (k *LocalKV) Put(ctx context.Context, namespace, key string, value []byte) error {
	_, err := k.db.ExecContext(ctx, `
INSERT INTO local_kv (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		namespace, key, value, k.now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("put local value %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (k *LocalKV) Delete(ctx context.Context, namespace, key string) error {
	_, err := k.db.ExecContext(ctx, `DELETE FROM local_kv WHERE namespace = ? AND key = ?`, namespace, key)
	if err != nil {
		return fmt.Errorf("delete local value %s/%s: %w", namespace, key, err)
	}
	return nil
}

var _ localstore.KV = (*LocalKV)(nil)
