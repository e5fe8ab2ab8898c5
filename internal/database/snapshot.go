package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Get returns the stored values for keys. Missing keys are absent from the map.
func (sdb *DB) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	query := `SELECT key, value, checksum FROM snapshots WHERE key IN (?` +
		strings.Repeat(", ?", len(keys)-1) + `)`
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := sdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key      string
			blob     []byte
			checksum string
		)
		if err := rows.Scan(&key, &blob, &checksum); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		value, err := sdb.codec.decode(key, blob, checksum)
		if err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, rows.Err()
}

// Set upserts every entry in a single transaction.
func (sdb *DB) Set(ctx context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := sdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO snapshots (key, value, checksum, size)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		checksum = excluded.checksum,
		size = excluded.size,
		updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot upsert: %w", err)
	}
	defer stmt.Close()

	for key, value := range entries {
		compressed, checksum := sdb.codec.encode(value)
		if _, err := stmt.ExecContext(ctx, key, compressed, checksum, len(value)); err != nil {
			return fmt.Errorf("failed to store snapshot %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshots: %w", err)
	}
	return nil
}

// Delete removes the given keys.
func (sdb *DB) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if _, err := sdb.db.ExecContext(ctx, `DELETE FROM snapshots WHERE key = ?`, key); err != nil {
			return fmt.Errorf("failed to delete snapshot %q: %w", key, err)
		}
	}
	return nil
}

// SnapshotInfo describes a stored snapshot without loading it.
type SnapshotInfo struct {
	Key       string
	Size      int
	Stored    int
	UpdatedAt time.Time
}

// Snapshots lists every stored snapshot ordered by key.
func (sdb *DB) Snapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := sdb.db.QueryContext(ctx, `
	SELECT key, size, length(value), updated_at FROM snapshots ORDER BY key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var infos []SnapshotInfo
	for rows.Next() {
		var (
			info      SnapshotInfo
			updatedAt sql.NullString
		)
		if err := rows.Scan(&info.Key, &info.Size, &info.Stored, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot info: %w", err)
		}
		if updatedAt.Valid {
			info.UpdatedAt = parseTimestamp(updatedAt.String)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// ClearSnapshots removes every stored snapshot. Saved reports are kept.
func (sdb *DB) ClearSnapshots(ctx context.Context) error {
	if _, err := sdb.db.ExecContext(ctx, `DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("failed to clear snapshots: %w", err)
	}
	return nil
}
