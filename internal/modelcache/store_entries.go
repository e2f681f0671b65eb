package modelcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// UpsertEntry inserts or replaces the enrichment record for a fingerprint.
// NotFoundCount and LastUsedAt are preserved on conflict so a refresh does
// not erase usage history.
func (s *Store) UpsertEntry(ctx context.Context, entry Entry) error {
	fingerprint := strings.TrimSpace(entry.Fingerprint)
	if fingerprint == "" {
		return errors.New("fingerprint cannot be empty")
	}
	refreshedAt := entry.RefreshedAt
	if refreshedAt.IsZero() {
		refreshedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO model_entries (
             fingerprint, enrichment_json, model_name, model_type,
             version_id, version_name, update_available, blacklisted,
             not_found_count, refreshed_at
         ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
         ON CONFLICT(fingerprint) DO UPDATE SET
             enrichment_json = excluded.enrichment_json,
             model_name = excluded.model_name,
             model_type = excluded.model_type,
             version_id = excluded.version_id,
             version_name = excluded.version_name,
             update_available = excluded.update_available,
             blacklisted = excluded.blacklisted,
             refreshed_at = excluded.refreshed_at`,
		fingerprint,
		nullableString(string(entry.Enrichment)),
		entry.ModelName,
		entry.ModelType,
		entry.VersionID,
		entry.VersionName,
		boolToInt(entry.UpdateAvailable),
		boolToInt(entry.Blacklisted),
		refreshedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert entry: %w", err)
	}
	return nil
}

// LookupByFingerprint returns the enrichment record for a fingerprint, if
// present.
func (s *Store) LookupByFingerprint(ctx context.Context, fingerprint string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		entrySelectColumns+` FROM model_entries e WHERE e.fingerprint = ?`,
		strings.TrimSpace(fingerprint))

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("lookup entry: %w", err)
	}
	return entry, true, nil
}

// Touch updates the last-used timestamp for a fingerprint. Consumers outside
// the scan path call this when a model is used by the host application.
func (s *Store) Touch(ctx context.Context, fingerprint string, usedAt time.Time) error {
	if usedAt.IsZero() {
		usedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE model_entries SET last_used_at = ? WHERE fingerprint = ?`,
		usedAt.Format(time.RFC3339Nano), strings.TrimSpace(fingerprint))
	if err != nil {
		return fmt.Errorf("touch entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("fingerprint %q: %w", fingerprint, ErrEntryNotFound)
	}
	return nil
}

// SetBlacklisted flips the blacklist flag for a fingerprint, creating a bare
// entry when none exists yet.
func (s *Store) SetBlacklisted(ctx context.Context, fingerprint string, blacklisted bool) error {
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" {
		return errors.New("fingerprint cannot be empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO model_entries (fingerprint, blacklisted, refreshed_at)
         VALUES (?, ?, ?)
         ON CONFLICT(fingerprint) DO UPDATE SET blacklisted = excluded.blacklisted`,
		fingerprint, boolToInt(blacklisted), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("set blacklisted: %w", err)
	}
	return nil
}

// RecordNotFound increments the not-found counter for a fingerprint and
// blacklists the entry once the counter reaches blacklistAfter. It reports
// whether the entry is now blacklisted.
func (s *Store) RecordNotFound(ctx context.Context, fingerprint string, blacklistAfter int) (bool, error) {
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" {
		return false, errors.New("fingerprint cannot be empty")
	}
	if blacklistAfter < 1 {
		blacklistAfter = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO model_entries (fingerprint, not_found_count, blacklisted, refreshed_at)
         VALUES (?, 1, CASE WHEN 1 >= ?2 THEN 1 ELSE 0 END, ?3)
         ON CONFLICT(fingerprint) DO UPDATE SET
             not_found_count = not_found_count + 1,
             blacklisted = CASE WHEN not_found_count + 1 >= ?2 THEN 1 ELSE blacklisted END,
             refreshed_at = ?3`,
		fingerprint, blacklistAfter, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return false, fmt.Errorf("record not found: %w", err)
	}

	var blacklisted int
	err = s.db.QueryRowContext(ctx,
		`SELECT blacklisted FROM model_entries WHERE fingerprint = ?`, fingerprint).Scan(&blacklisted)
	if err != nil {
		return false, fmt.Errorf("read blacklist flag: %w", err)
	}
	return blacklisted != 0, nil
}

// ListAll returns every path record joined with its entry, plus orphan
// entries whose fingerprint no longer maps to any stored path. Orphans are
// reported with an empty Path so callers can surface stale cache data.
func (s *Store) ListAll(ctx context.Context) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.path, p.fingerprint, p.folder_category, p.file_size, p.scanned_at,
                e.fingerprint, e.enrichment_json, e.model_name, e.model_type,
                e.version_id, e.version_name, e.update_available, e.blacklisted,
                e.not_found_count, e.last_used_at, e.refreshed_at
         FROM model_paths p
         LEFT JOIN model_entries e ON e.fingerprint = p.fingerprint
         ORDER BY p.path`)
	if err != nil {
		return nil, fmt.Errorf("list all: %w", err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var rec PathRecord
		var pathFingerprint sql.NullString
		var category, scannedAt string
		var entryFingerprint sql.NullString
		var enrichment, modelName, modelType, versionName sql.NullString
		var versionID sql.NullInt64
		var updateAvailable, blacklisted, notFoundCount sql.NullInt64
		var lastUsedAt, refreshedAt sql.NullString

		if err := rows.Scan(
			&rec.Path, &pathFingerprint, &category, &rec.FileSize, &scannedAt,
			&entryFingerprint, &enrichment, &modelName, &modelType,
			&versionID, &versionName, &updateAvailable, &blacklisted,
			&notFoundCount, &lastUsedAt, &refreshedAt,
		); err != nil {
			return nil, fmt.Errorf("scan joined row: %w", err)
		}

		rec.Fingerprint = pathFingerprint.String
		rec.FolderCategory = categoryFromString(category)
		rec.ScannedAt = parseTimestamp(scannedAt)

		row := Row{Path: rec}
		if entryFingerprint.Valid {
			row.Entry = &Entry{
				Fingerprint:     entryFingerprint.String,
				ModelName:       modelName.String,
				ModelType:       modelType.String,
				VersionID:       versionID.Int64,
				VersionName:     versionName.String,
				UpdateAvailable: updateAvailable.Int64 != 0,
				Blacklisted:     blacklisted.Int64 != 0,
				NotFoundCount:   int(notFoundCount.Int64),
				LastUsedAt:      parseTimestamp(lastUsedAt.String),
				RefreshedAt:     parseTimestamp(refreshedAt.String),
			}
			if enrichment.Valid {
				row.Entry.Enrichment = []byte(enrichment.String)
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	orphans, err := s.listOrphanEntries(ctx)
	if err != nil {
		return nil, err
	}
	result = append(result, orphans...)
	return result, nil
}

func (s *Store) listOrphanEntries(ctx context.Context) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx,
		entrySelectColumns+` FROM model_entries e
         WHERE NOT EXISTS (
             SELECT 1 FROM model_paths p WHERE p.fingerprint = e.fingerprint
         )
         ORDER BY e.fingerprint`)
	if err != nil {
		return nil, fmt.Errorf("list orphan entries: %w", err)
	}
	defer rows.Close()

	var orphans []Row
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan orphan entry: %w", err)
		}
		e := entry
		orphans = append(orphans, Row{Entry: &e})
	}
	return orphans, rows.Err()
}

const entrySelectColumns = `SELECT e.fingerprint, e.enrichment_json, e.model_name, e.model_type,
    e.version_id, e.version_name, e.update_available, e.blacklisted,
    e.not_found_count, e.last_used_at, e.refreshed_at`

func scanEntry(row rowScanner) (Entry, error) {
	var entry Entry
	var enrichment sql.NullString
	var updateAvailable, blacklisted int
	var lastUsedAt, refreshedAt sql.NullString
	if err := row.Scan(
		&entry.Fingerprint, &enrichment, &entry.ModelName, &entry.ModelType,
		&entry.VersionID, &entry.VersionName, &updateAvailable, &blacklisted,
		&entry.NotFoundCount, &lastUsedAt, &refreshedAt,
	); err != nil {
		return Entry{}, err
	}
	if enrichment.Valid {
		entry.Enrichment = []byte(enrichment.String)
	}
	entry.UpdateAvailable = updateAvailable != 0
	entry.Blacklisted = blacklisted != 0
	entry.LastUsedAt = parseTimestamp(lastUsedAt.String)
	entry.RefreshedAt = parseTimestamp(refreshedAt.String)
	return entry, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
