package ports

import (
	"context"

	"lraide/domain/snapshot"
)

// SnapshotRepository stores exported session snapshots.
type SnapshotRepository interface {
	// Save stores rec, replacing any record with the same key.
	Save(ctx context.Context, rec *snapshot.Record) error

	// Get returns the record stored under key, or an error wrapping
	// core.ErrNotFound.
	Get(ctx context.Context, key string) (*snapshot.Record, error)

	// List returns record metadata, newest first. Payloads may be omitted.
	List(ctx context.Context, limit int) ([]*snapshot.Record, error)

	// Delete removes the record under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
