package blobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"lraide/domain/core"
	"lraide/domain/snapshot"
)

const snapshotPrefix = "snapshots/"

// envelope is the on-disk form of a snapshot record. The payload is embedded
// verbatim so listings can read metadata without decoding it.
type envelope struct {
	Key         string          `json:"key"`
	SessionID   core.SessionID  `json:"session_id"`
	Name        string          `json:"name"`
	Fingerprint core.Hash       `json:"fingerprint"`
	CreatedAt   time.Time       `json:"created_at"`
	Payload     json.RawMessage `json:"payload"`
}

// SnapshotStore implements ports.SnapshotRepository on a LocalBlobStore.
type SnapshotStore struct {
	blobs *LocalBlobStore
}

// NewSnapshotStore opens (creating if needed) a snapshot directory.
func NewSnapshotStore(dir string) (*SnapshotStore, error) {
	blobs, err := NewLocalBlobStore(dir)
	if err != nil {
		return nil, err
	}
	return &SnapshotStore{blobs: blobs}, nil
}

func blobKey(key string) string {
	return snapshotPrefix + key + ".json"
}

func (s *SnapshotStore) Save(ctx context.Context, rec *snapshot.Record) error {
	if rec.Key == "" || strings.ContainsAny(rec.Key, `/\`) {
		return fmt.Errorf("invalid snapshot key %q", rec.Key)
	}
	if !json.Valid(rec.Payload) {
		return core.NewSnapshotError("payload is not valid JSON")
	}
	data, err := json.Marshal(envelope{
		Key:         rec.Key,
		SessionID:   rec.SessionID,
		Name:        rec.Name,
		Fingerprint: rec.Fingerprint,
		CreatedAt:   rec.CreatedAt.UTC(),
		Payload:     rec.Payload,
	})
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %s: %w", rec.Key, err)
	}
	return s.blobs.StoreBlob(ctx, blobKey(rec.Key), data)
}

func (s *SnapshotStore) Get(ctx context.Context, key string) (*snapshot.Record, error) {
	rc, err := s.blobs.GetBlob(ctx, blobKey(key))
	if err != nil {
		if core.IsNotFoundError(err) {
			return nil, core.NewNotFoundError("snapshot", key)
		}
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", key, err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", key, err)
	}
	return &snapshot.Record{
		Key:         env.Key,
		SessionID:   env.SessionID,
		Name:        env.Name,
		Fingerprint: env.Fingerprint,
		Payload:     []byte(env.Payload),
		CreatedAt:   env.CreatedAt,
	}, nil
}

// List reads only the metadata fields of each envelope.
func (s *SnapshotStore) List(ctx context.Context, limit int) ([]*snapshot.Record, error) {
	keys, err := s.blobs.ListBlobs(ctx, snapshotPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]*snapshot.Record, 0, len(keys))
	for _, k := range keys {
		rc, err := s.blobs.GetBlob(ctx, k)
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", k, err)
		}
		meta := gjson.GetManyBytes(data, "key", "session_id", "name", "fingerprint", "created_at")
		out = append(out, &snapshot.Record{
			Key:         meta[0].String(),
			SessionID:   core.SessionID(meta[1].String()),
			Name:        meta[2].String(),
			Fingerprint: core.Hash(meta[3].String()),
			CreatedAt:   meta[4].Time(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Key < out[j].Key
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *SnapshotStore) Delete(ctx context.Context, key string) error {
	return s.blobs.DeleteBlob(ctx, blobKey(key))
}
