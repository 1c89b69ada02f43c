package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// ReadSettings returns every stored key with its raw value, together with
// the store-wide revision, read in one transaction.
//
// Returns an empty map (not nil) when nothing is stored.
func (s *Store) ReadSettings(ctx context.Context) (map[string][]byte, int64, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("read settings: begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT key, value FROM settings
		ORDER BY key COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, 0, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, 0, fmt.Errorf("scan setting: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate settings: %w", err)
	}

	rev, err := revision(ctx, tx)
	if err != nil {
		return nil, 0, err
	}
	return values, rev, nil
}

// WriteSettings upserts every given key and bumps the revision atomically.
// Returns the new revision.
func (s *Store) WriteSettings(ctx context.Context, values map[string][]byte) (int64, error) {
	return s.mutate(ctx, func(tx *sql.Tx, rev int64) error {
		// Sorted for a deterministic statement order.
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO settings (key, value, revision)
				VALUES (?, ?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value, revision = excluded.revision
			`, k, values[k], rev); err != nil {
				return fmt.Errorf("write setting %s: %w", k, err)
			}
		}
		return nil
	})
}

// DeleteSettings removes the given keys and bumps the revision atomically.
// Deleting absent keys is not an error. Returns the new revision.
func (s *Store) DeleteSettings(ctx context.Context, keys ...string) (int64, error) {
	return s.mutate(ctx, func(tx *sql.Tx, _ int64) error {
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, k); err != nil {
				return fmt.Errorf("delete setting %s: %w", k, err)
			}
		}
		return nil
	})
}

// Revision returns the store-wide revision.
func (s *Store) Revision(ctx context.Context) (int64, error) {
	var rev int64
	if err := s.db.QueryRowContext(ctx, `SELECT revision FROM meta WHERE id = 1`).Scan(&rev); err != nil {
		return 0, fmt.Errorf("read revision: %w", err)
	}
	return rev, nil
}

// mutate runs fn in a transaction after bumping the revision.
func (s *Store) mutate(ctx context.Context, fn func(tx *sql.Tx, rev int64) error) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `UPDATE meta SET revision = revision + 1 WHERE id = 1`); err != nil {
		return 0, fmt.Errorf("bump revision: %w", err)
	}
	rev, err := revision(ctx, tx)
	if err != nil {
		return 0, err
	}

	if err := fn(tx, rev); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return rev, nil
}

func revision(ctx context.Context, tx *sql.Tx) (int64, error) {
	var rev int64
	if err := tx.QueryRowContext(ctx, `SELECT revision FROM meta WHERE id = 1`).Scan(&rev); err != nil {
		return 0, fmt.Errorf("read revision: %w", err)
	}
	return rev, nil
}
