package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"github.com/openucp/ucp-go/vault"
)

// SQLite is a durable vault.Store backed by a single SQLite database.
// Compare-and-swap is a single UPDATE statement, so the consume transition
// is one atomic round trip even with multiple processes on the same file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens (and if needed migrates) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0
	)`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db, now: time.Now}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Get implements vault.Store. Expired rows are deleted on read so they are
// indistinguishable from rows that never existed.
func (s *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx, "SELECT value, expires_at FROM kv WHERE key = ?", key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vault.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	if expired(expiresAt, s.now()) {
		_, _ = s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key)
		return nil, vault.ErrKeyNotFound
	}
	return value, nil
}

// SetWithTTL implements vault.Store. A non-positive ttl stores without
// expiry.
func (s *SQLite) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.now().Add(ttl).UnixMilli()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at",
		key, value, expiresAt,
	)
	return err
}

// Delete implements vault.Store.
func (s *SQLite) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ? AND (expires_at = 0 OR expires_at > ?)", key, s.now().UnixMilli())
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CompareAndSwap implements vault.Store as one conditional UPDATE: the row
// is replaced only when the current value matches and the row is still
// live. SQLite serializes writers, so at most one concurrent caller wins.
func (s *SQLite) CompareAndSwap(ctx context.Context, key string, expected, replacement []byte) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE kv SET value = ? WHERE key = ? AND value = ? AND (expires_at = 0 OR expires_at > ?)",
		replacement, key, expected, s.now().UnixMilli(),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func expired(expiresAt int64, now time.Time) bool {
	return expiresAt != 0 && expiresAt <= now.UnixMilli()
}
