package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"modelshelf/internal/catalog"
	"modelshelf/internal/classify"
	"modelshelf/internal/fingerprint"
	"modelshelf/internal/logging"
	"modelshelf/internal/modelcache"
	"modelshelf/internal/walker"
)

// run processes the discovered files sequentially. Files are never handled
// concurrently: the catalog rate limit is a session-wide resource, and
// serialized processing keeps progress ordering trivial.
func (s *Scanner) run(ctx context.Context, sess *session, files []walker.File, opts Options) {
	log := s.logger.With(logging.String(logging.FieldSessionID, sess.id))
	consecutiveNetFailures := 0
	threshold := s.cfg.Scanner.NetworkFailureThreshold
	blacklistAfter := s.cfg.Scanner.BlacklistAfterNotFound

	for index, file := range files {
		if sess.cancelRequested.Load() {
			s.finishCancelled(sess, log)
			return
		}

		sess.beginFile(file.Path, StatusScanning)
		category := classify.Path(file.Path)

		fp, ok := s.resolveFingerprint(ctx, sess, log, file, category, opts.Force)
		if !ok {
			if sess.cancelRequested.Load() || ctx.Err() != nil {
				s.finishCancelled(sess, log)
				return
			}
			sess.finishFile(index + 1)
			continue
		}

		if err := s.store.UpsertPath(ctx, modelcache.PathRecord{
			Path:           file.Path,
			Fingerprint:    fp,
			FolderCategory: category,
			FileSize:       file.Size,
			ScannedAt:      time.Now().UTC(),
		}); err != nil {
			sess.recordError()
			log.Warn("cache write failed",
				logging.String(logging.FieldPath, file.Path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "scan_cache_write_failed"))
			sess.finishFile(index + 1)
			continue
		}

		entry, entryFound, err := s.store.LookupByFingerprint(ctx, fp)
		if err != nil {
			sess.recordError()
			log.Warn("cache read failed",
				logging.String(logging.FieldFingerprint, fp),
				logging.Error(err),
				logging.String(logging.FieldEventType, "scan_cache_read_failed"))
			sess.finishFile(index + 1)
			continue
		}

		if s.fetcher != nil && needsFetch(entry, entryFound, opts) {
			sess.beginFile(file.Path, StatusFetchingMetadata)
			version, err := s.fetcher.Lookup(ctx, fp)
			switch {
			case err == nil:
				consecutiveNetFailures = 0
				s.storeEnrichment(ctx, sess, log, fp, version, entry, entryFound)
			case errors.Is(err, catalog.ErrNotFound):
				consecutiveNetFailures = 0
				s.recordNotFound(ctx, log, fp, blacklistAfter)
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				s.finishCancelled(sess, log)
				return
			default:
				sess.recordError()
				consecutiveNetFailures++
				log.Warn("catalog lookup failed",
					logging.String(logging.FieldFingerprint, fp),
					logging.Error(err),
					logging.Int("consecutive_failures", consecutiveNetFailures),
					logging.String(logging.FieldEventType, "scan_catalog_failed"))
				if consecutiveNetFailures >= threshold {
					message := fmt.Sprintf("catalog unreachable: %d consecutive failures (last: %v)",
						consecutiveNetFailures, err)
					sess.fail(message)
					log.Error("scan session aborted",
						logging.String("fatal_error", message),
						logging.String(logging.FieldEventType, "scan_session_failed"),
						logging.String(logging.FieldErrorHint, "check network connectivity and catalog.base_url"))
					return
				}
			}
		}

		sess.finishFile(index + 1)
	}

	if sess.cancelRequested.Load() {
		s.finishCancelled(sess, log)
		return
	}

	sess.setStatus(StatusCompleted)
	snap := sess.snapshot()
	log.Info("scan session completed",
		logging.Int("processed", snap.Current),
		logging.Int("total", snap.Total),
		logging.Int("errors", snap.ErrorCount))
}

// resolveFingerprint reuses the cached fingerprint when allowed, otherwise
// hashes the file. ok=false means the file could not be fingerprinted and
// the per-file loop should move on.
func (s *Scanner) resolveFingerprint(ctx context.Context, sess *session, log *slog.Logger, file walker.File, category classify.Category, force bool) (string, bool) {
	if !force {
		existing, found, err := s.store.LookupByPath(ctx, file.Path)
		if err != nil {
			sess.recordError()
			log.Warn("cache read failed",
				logging.String(logging.FieldPath, file.Path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "scan_cache_read_failed"))
		} else if found && existing.Fingerprint != "" {
			return existing.Fingerprint, true
		}
	}

	sess.beginFile(file.Path, StatusHashing)
	fp, err := fingerprint.File(ctx, file.Path)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", false
		}
		sess.recordError()
		log.Warn("fingerprint failed",
			logging.String(logging.FieldPath, file.Path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "scan_fingerprint_failed"),
			logging.String(logging.FieldImpact, "file stays uncached until the next scan"))
		// The path is still recorded so the browse view can show the file.
		_ = s.store.UpsertPath(ctx, modelcache.PathRecord{
			Path:           file.Path,
			FolderCategory: category,
			FileSize:       file.Size,
			ScannedAt:      time.Now().UTC(),
		})
		return "", false
	}
	return fp, true
}

func (s *Scanner) storeEnrichment(ctx context.Context, sess *session, log *slog.Logger, fp string, version *catalog.ModelVersion, previous modelcache.Entry, hadPrevious bool) {
	entry := modelcache.Entry{
		Fingerprint: fp,
		Enrichment:  version.Raw,
		ModelName:   version.Model.Name,
		ModelType:   version.Model.Type,
		VersionID:   version.ID,
		VersionName: version.Name,
		// A successful lookup clears any earlier blacklist.
		Blacklisted:     false,
		UpdateAvailable: hadPrevious && previous.VersionID > 0 && previous.VersionID != version.ID,
		RefreshedAt:     time.Now().UTC(),
	}
	if err := s.store.UpsertEntry(ctx, entry); err != nil {
		sess.recordError()
		log.Warn("cache write failed",
			logging.String(logging.FieldFingerprint, fp),
			logging.Error(err),
			logging.String(logging.FieldEventType, "scan_cache_write_failed"))
		return
	}
	log.Debug("enrichment cached",
		logging.String(logging.FieldFingerprint, fp),
		logging.String("model_name", entry.ModelName),
		logging.String("model_type", entry.ModelType))
}

func (s *Scanner) recordNotFound(ctx context.Context, log *slog.Logger, fp string, blacklistAfter int) {
	blacklisted, err := s.store.RecordNotFound(ctx, fp, blacklistAfter)
	if err != nil {
		log.Warn("record not-found failed",
			logging.String(logging.FieldFingerprint, fp),
			logging.Error(err),
			logging.String(logging.FieldEventType, "scan_cache_write_failed"))
		return
	}
	if blacklisted {
		log.Info("fingerprint blacklisted after repeated not-found responses",
			logging.String(logging.FieldFingerprint, fp))
	}
}

func (s *Scanner) finishCancelled(sess *session, log *slog.Logger) {
	sess.setStatus(StatusCancelled)
	snap := sess.snapshot()
	log.Info("scan session cancelled",
		logging.Int("processed", snap.Current),
		logging.Int("total", snap.Total))
}

// needsFetch decides whether the catalog is consulted for a fingerprint.
// Blacklisted entries are skipped unless the scan was forced; entries
// without enrichment are always refreshed; entries with enrichment are only
// refreshed on a forced scan that includes cached files.
func needsFetch(entry modelcache.Entry, found bool, opts Options) bool {
	switch {
	case !found:
		return true
	case entry.Blacklisted:
		return opts.Force
	case len(entry.Enrichment) == 0:
		return true
	case opts.Force && opts.IncludeCached:
		return true
	default:
		return false
	}
}
