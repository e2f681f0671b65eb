package modelcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modelshelf/internal/classify"
)

// UpsertPath inserts or replaces the record for a file path. The write is a
// single statement, so concurrent readers never observe a partial record.
func (s *Store) UpsertPath(ctx context.Context, rec PathRecord) error {
	path := strings.TrimSpace(rec.Path)
	if path == "" {
		return errors.New("path cannot be empty")
	}
	scannedAt := rec.ScannedAt
	if scannedAt.IsZero() {
		scannedAt = time.Now().UTC()
	}
	category := rec.FolderCategory
	if category == "" {
		category = classify.CategoryUnknown
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO model_paths (path, fingerprint, folder_category, file_size, scanned_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(path) DO UPDATE SET
             fingerprint = excluded.fingerprint,
             folder_category = excluded.folder_category,
             file_size = excluded.file_size,
             scanned_at = excluded.scanned_at`,
		path,
		nullableString(rec.Fingerprint),
		string(category),
		rec.FileSize,
		scannedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert path: %w", err)
	}
	return nil
}

// LookupByPath returns the stored record for path, if present.
func (s *Store) LookupByPath(ctx context.Context, path string) (PathRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT path, fingerprint, folder_category, file_size, scanned_at
         FROM model_paths WHERE path = ?`, strings.TrimSpace(path))

	rec, err := scanPathRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PathRecord{}, false, nil
		}
		return PathRecord{}, false, fmt.Errorf("lookup path: %w", err)
	}
	return rec, true, nil
}

// RemovePath deletes the record for path. It reports whether a row existed.
func (s *Store) RemovePath(ctx context.Context, path string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM model_paths WHERE path = ?`, strings.TrimSpace(path))
	if err != nil {
		return false, fmt.Errorf("remove path: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListPaths returns all path records ordered lexicographically.
func (s *Store) ListPaths(ctx context.Context) ([]PathRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, fingerprint, folder_category, file_size, scanned_at
         FROM model_paths ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list paths: %w", err)
	}
	defer rows.Close()

	var records []PathRecord
	for rows.Next() {
		rec, err := scanPathRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan path record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPathRecord(row rowScanner) (PathRecord, error) {
	var rec PathRecord
	var fingerprint sql.NullString
	var category string
	var scannedAt string
	if err := row.Scan(&rec.Path, &fingerprint, &category, &rec.FileSize, &scannedAt); err != nil {
		return PathRecord{}, err
	}
	rec.Fingerprint = fingerprint.String
	rec.FolderCategory = categoryFromString(category)
	rec.ScannedAt = parseTimestamp(scannedAt)
	return rec, nil
}

func categoryFromString(value string) classify.Category {
	if strings.TrimSpace(value) == "" {
		return classify.CategoryUnknown
	}
	return classify.Category(value)
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	return time.Time{}
}
