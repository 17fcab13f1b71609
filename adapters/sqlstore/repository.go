// Package sqlstore persists snapshots in PostgreSQL or SQLite through sqlx.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"lraide/domain/core"
	"lraide/domain/snapshot"
	"lraide/internal/errors"
	"lraide/internal/migration"
)

// Open connects to driver ("postgres" or "sqlite") and runs migrations.
func Open(ctx context.Context, driver, url string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, url)
	if err != nil {
		return nil, errors.DatabaseError("failed to open database", err)
	}
	if driver == "sqlite" {
		// One connection keeps ":memory:" databases shared and serializes
		// writers.
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{"PRAGMA busy_timeout=5000", "PRAGMA journal_mode=WAL"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, errors.DatabaseError("failed to configure sqlite", err)
			}
		}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.DatabaseError("failed to ping database", err)
	}
	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.WithCode(errors.CodeDatabaseError, err)
	}
	return db, nil
}

// SnapshotRepository implements ports.SnapshotRepository.
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save inserts or replaces the record under rec.Key.
func (r *SnapshotRepository) Save(ctx context.Context, rec *snapshot.Record) error {
	if rec.Key == "" {
		return errors.InvalidInput("snapshot key is required")
	}
	query := r.db.Rebind(`
		INSERT INTO snapshots (snapshot_key, session_id, name, fingerprint, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (snapshot_key) DO UPDATE SET
			session_id = excluded.session_id,
			name = excluded.name,
			fingerprint = excluded.fingerprint,
			payload = excluded.payload,
			created_at = excluded.created_at`)

	_, err := r.db.ExecContext(ctx, query,
		rec.Key,
		string(rec.SessionID),
		rec.Name,
		string(rec.Fingerprint),
		rec.Payload,
		rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", rec.Key, err)
	}
	return nil
}

// Get retrieves a snapshot with its payload.
func (r *SnapshotRepository) Get(ctx context.Context, key string) (*snapshot.Record, error) {
	query := r.db.Rebind(`
		SELECT snapshot_key, session_id, name, fingerprint, payload, created_at
		FROM snapshots
		WHERE snapshot_key = ?`)

	var rec snapshot.Record
	if err := r.db.GetContext(ctx, &rec, query, key); err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewNotFoundError("snapshot", key)
		}
		return nil, fmt.Errorf("failed to get snapshot %s: %w", key, err)
	}
	return &rec, nil
}

// List returns metadata of the newest snapshots without payloads.
func (r *SnapshotRepository) List(ctx context.Context, limit int) ([]*snapshot.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	query := r.db.Rebind(`
		SELECT snapshot_key, session_id, name, fingerprint, created_at
		FROM snapshots
		ORDER BY created_at DESC, snapshot_key ASC
		LIMIT ?`)

	var recs []*snapshot.Record
	if err := r.db.SelectContext(ctx, &recs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return recs, nil
}

// Delete removes a snapshot. Missing keys are ignored.
func (r *SnapshotRepository) Delete(ctx context.Context, key string) error {
	query := r.db.Rebind(`DELETE FROM snapshots WHERE snapshot_key = ?`)
	if _, err := r.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", key, err)
	}
	return nil
}
