// Package walker discovers candidate model files beneath configured root
// folders. Discovery completes before any per-file processing so callers
// know the total count up front, and results are sorted by path so repeated
// scans visit files in the same order.
package walker

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"modelshelf/internal/logging"
)

// modelExtensions is the fixed set of recognized model file extensions.
var modelExtensions = map[string]struct{}{
	".safetensors": {},
	".sft":         {},
	".ckpt":        {},
	".pt":          {},
	".pth":         {},
	".bin":         {},
	".gguf":        {},
}

// File is one discovered candidate model file.
type File struct {
	Path string
	Size int64
}

// Result is the outcome of walking a root set.
type Result struct {
	Files []File
	// SkippedRoots lists roots that could not be opened. Skipping a root is
	// recoverable: remaining roots are still walked.
	SkippedRoots []string
}

// IsModelFile reports whether path carries a recognized model extension.
func IsModelFile(path string) bool {
	_, ok := modelExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Discover walks roots and returns all candidate model files sorted
// lexicographically by path. Unreadable roots are recorded in SkippedRoots
// and logged; they never fail the walk. An empty result is not an error.
func Discover(ctx context.Context, roots []string, logger *slog.Logger) (Result, error) {
	log := logging.NewComponentLogger(logger, "walker")

	var result Result
	seen := make(map[string]struct{})

	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}

		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			result.SkippedRoots = append(result.SkippedRoots, root)
			log.Warn("skipping unreadable model root",
				logging.String(logging.FieldPath, root),
				logging.Error(err),
				logging.String(logging.FieldEventType, "walker_root_skipped"),
				logging.String(logging.FieldImpact, "models under this root will be missing from the scan"))
			continue
		}

		walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				// Unreadable subdirectory: skip it, keep walking siblings.
				log.Debug("skipping unreadable path",
					logging.String(logging.FieldPath, path),
					logging.Error(err))
				if entry != nil && entry.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if entry.IsDir() || !IsModelFile(path) {
				return nil
			}
			if _, dup := seen[path]; dup {
				return nil
			}
			seen[path] = struct{}{}

			size := int64(0)
			if fi, infoErr := entry.Info(); infoErr == nil {
				size = fi.Size()
			}
			result.Files = append(result.Files, File{Path: path, Size: size})
			return nil
		})
		if walkErr != nil {
			if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
				return Result{}, walkErr
			}
			result.SkippedRoots = append(result.SkippedRoots, root)
			log.Warn("walk aborted for root",
				logging.String(logging.FieldPath, root),
				logging.Error(walkErr),
				logging.String(logging.FieldEventType, "walker_root_failed"))
		}
	}

	sort.Slice(result.Files, func(i, j int) bool {
		return result.Files[i].Path < result.Files[j].Path
	})
	return result, nil
}
