// Command migrate copies snapshots into a SQL snapshot repository. Sources
// are a file snapshot store directory (SNAPSHOT_DIR layout) and any loose
// exported snapshot files found under the extra paths.
package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"lraide/adapters/blobstore"
	"lraide/adapters/sqlstore"
	"lraide/domain/core"
	"lraide/domain/snapshot"
	"lraide/internal/session"
	"lraide/ports"
)

func main() {
	if len(os.Args) < 4 {
		log.Fatal("Usage: migrate <sqlite|postgres> <database_url> <snapshot_dir> [export_dir...]")
	}

	driver, databaseURL, snapshotDir := os.Args[1], os.Args[2], os.Args[3]
	ctx := context.Background()

	db, err := sqlstore.Open(ctx, driver, databaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	target := sqlstore.NewSnapshotRepository(db)

	source, err := blobstore.NewSnapshotStore(snapshotDir)
	if err != nil {
		log.Fatalf("Failed to open snapshot store %s: %v", snapshotDir, err)
	}

	migrated, skipped := copyStore(ctx, source, target)
	for _, dir := range os.Args[4:] {
		m, s := copyExports(ctx, dir, target)
		migrated += m
		skipped += s
	}
	log.Printf("Migration complete: %d migrated, %d skipped", migrated, skipped)
}

// copyStore copies every record of source into target.
func copyStore(ctx context.Context, source, target ports.SnapshotRepository) (migrated, skipped int) {
	recs, err := source.List(ctx, 0)
	if err != nil {
		log.Printf("Failed to list snapshot store: %v", err)
		return 0, 0
	}
	for _, meta := range recs {
		rec, err := source.Get(ctx, meta.Key)
		if err != nil {
			log.Printf("Failed to read snapshot %s: %v", meta.Key, err)
			skipped++
			continue
		}
		if err := target.Save(ctx, rec); err != nil {
			log.Printf("Failed to save snapshot %s: %v", rec.Key, err)
			skipped++
			continue
		}
		migrated++
		log.Printf("Migrated snapshot %s", rec.Key)
	}
	return migrated, skipped
}

// copyExports stores every valid snapshot file under dir, keyed by file name.
func copyExports(ctx context.Context, dir string, target ports.SnapshotRepository) (migrated, skipped int) {
	files, err := findSnapshotFiles(dir)
	if err != nil {
		log.Printf("Failed to scan %s: %v", dir, err)
		return 0, 0
	}
	for _, file := range files {
		rec, err := loadExport(file)
		if err != nil {
			log.Printf("Skipping %s: %v", file, err)
			skipped++
			continue
		}
		if err := target.Save(ctx, rec); err != nil {
			log.Printf("Failed to save %s: %v", file, err)
			skipped++
			continue
		}
		migrated++
		log.Printf("Migrated %s as %s", filepath.Base(file), rec.Key)
	}
	return migrated, skipped
}

func findSnapshotFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".json") {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

func loadExport(path string) (*snapshot.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	snap, err := session.DecodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	if snap.ID == "" {
		// Deterministic so re-running the migration replaces, not duplicates.
		snap.ID = core.SessionID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(path)).String())
	}
	key := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return session.NewRecord(key, snap)
}
