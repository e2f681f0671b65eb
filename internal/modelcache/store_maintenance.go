package modelcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// Clear removes all cached paths and entries. It reports the number of rows
// removed across both tables.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin clear tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var removed int64
	for _, table := range []string{"model_paths", "model_entries"} {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+table)
		if err != nil {
			return 0, fmt.Errorf("clear %s: %w", table, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		removed += affected
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit clear: %w", err)
	}
	return removed, nil
}

// PruneMissingPaths removes path rows whose file no longer exists on disk.
// Entries are left untouched so orphaned enrichment records stay visible.
func (s *Store) PruneMissingPaths(ctx context.Context) (int64, error) {
	records, err := s.ListPaths(ctx)
	if err != nil {
		return 0, err
	}
	var removed int64
	for _, rec := range records {
		if _, statErr := os.Stat(rec.Path); statErr == nil {
			continue
		} else if !errors.Is(statErr, os.ErrNotExist) {
			continue
		}
		ok, err := s.RemovePath(ctx, rec.Path)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// CheckHealth returns diagnostic information about the cache database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{
		DBPath:        s.path,
		SchemaVersion: schemaVersion,
	}

	if s.path == "" {
		return health, errors.New("cache database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat cache database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("cache database path %q is a directory", s.path)
	}
	health.DatabaseExists = true
	health.DatabaseBytes = info.Size()

	var stat unix.Statfs_t
	if err := unix.Statfs(filepath.Dir(s.path), &stat); err == nil {
		health.FreeDiskBytes = stat.Bavail * uint64(stat.Bsize)
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping cache database: %w", err)
	}
	health.DatabaseReadable = true

	var integrity string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = integrity == "ok"

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(1) FROM model_paths", &health.PathCount},
		{"SELECT COUNT(1) FROM model_entries", &health.EntryCount},
		{"SELECT COUNT(1) FROM model_entries WHERE blacklisted = 1", &health.BlacklistedCount},
		{`SELECT COUNT(1) FROM model_entries e
          WHERE NOT EXISTS (SELECT 1 FROM model_paths p WHERE p.fingerprint = e.fingerprint)`, &health.OrphanCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(connCtx, c.query).Scan(c.dest); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count query: %w", err)
		}
	}

	return health, nil
}
