// Package storage persists tracker snapshots in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"saldo/internal/log"
	"saldo/internal/snapshot"

	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02T15:04:05.000Z"

// SQLiteRepository implements snapshot.Persister on a single-file database.
type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{db: db, logger: logger.WithComponent(log.ComponentStorage)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Load implements snapshot.Persister.
func (r *SQLiteRepository) Load(ctx context.Context, key snapshot.Key) ([]byte, bool, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE key = ?`, string(key)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot %s: %w", key, err)
	}
	return payload, true, nil
}

// Save implements snapshot.Persister. It replaces the payload and bumps the version.
func (r *SQLiteRepository) Save(ctx context.Context, key snapshot.Key, data []byte) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO snapshots (key, payload, version, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload,
			version = snapshots.version + 1,
			updated_at = excluded.updated_at`,
		string(key), data, now)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", key, err)
	}

	r.logger.DebugContext(ctx, "Snapshot stored", log.FieldSnapshotKey, key, "bytes", len(data))
	return nil
}

// Version returns how many times key was saved, or 0 if never.
func (r *SQLiteRepository) Version(ctx context.Context, key snapshot.Key) (int64, error) {
	var v int64
	err := r.db.QueryRowContext(ctx,
		`SELECT version FROM snapshots WHERE key = ?`, string(key)).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("snapshot version %s: %w", key, err)
	}
	return v, nil
}

// MarkDelivered records that the alert was forwarded. It returns false when
// the alert had already been recorded, so redelivered messages can be skipped.
func (r *SQLiteRepository) MarkDelivered(ctx context.Context, alertID, kind string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO alert_deliveries (alert_id, kind, delivered_at) VALUES (?, ?, ?)
		 ON CONFLICT(alert_id) DO NOTHING`,
		alertID, kind, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return false, fmt.Errorf("mark alert %s delivered: %w", alertID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark alert %s delivered: %w", alertID, err)
	}
	return n == 1, nil
}

// Delivered reports whether the alert was already recorded by MarkDelivered.
func (r *SQLiteRepository) Delivered(ctx context.Context, alertID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM alert_deliveries WHERE alert_id = ?`, alertID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check alert %s delivery: %w", alertID, err)
	}
	return n > 0, nil
}
