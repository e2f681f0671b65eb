// Package browse builds the read-only model library view: it reconciles the
// current filesystem contents with the cache store so every distinct path
// appears exactly once, then applies user filters and sort order. It never
// writes to the cache.
package browse

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"modelshelf/internal/classify"
	"modelshelf/internal/logging"
	"modelshelf/internal/modelcache"
	"modelshelf/internal/walker"
)

// Model is one merged library record.
type Model struct {
	Path        string
	Name        string
	Fingerprint string
	Category    classify.Category
	SizeBytes   int64

	// OnDisk reports whether the path exists in the current filesystem scan.
	// Cache entries for vanished files stay visible with OnDisk=false so
	// users can spot moved or deleted models.
	OnDisk bool
	// Cached reports whether the fingerprint has an enrichment entry.
	Cached bool

	ModelName       string
	ModelType       string
	VersionName     string
	UpdateAvailable bool
	Blacklisted     bool
	LastUsedAt      time.Time
	ScannedAt       time.Time
}

// SortKey selects the sort order for List results.
type SortKey string

const (
	SortByName     SortKey = "name"
	SortByRecency  SortKey = "recency"
	SortBySize     SortKey = "size"
	SortByCategory SortKey = "category"
)

// Filter narrows List results. Zero values disable each criterion.
type Filter struct {
	// Search matches case-folded substrings of the file name, model name,
	// and path.
	Search string
	// UsedWithin keeps models whose last-used timestamp falls inside the
	// window.
	UsedWithin time.Duration
	// UpdateAvailable keeps only models with a pending provider update.
	UpdateAvailable bool
	// Category keeps only models of one folder category.
	Category classify.Category
	// IncludeBlacklisted also shows blacklisted entries, hidden by default.
	IncludeBlacklisted bool
}

// Query combines filtering and sorting.
type Query struct {
	Filter     Filter
	Sort       SortKey
	Descending bool
}

// View reads the cache store and filesystem to produce merged listings.
type View struct {
	store  *modelcache.Store
	logger *slog.Logger
}

// New constructs a browse view over the given store.
func New(store *modelcache.Store, logger *slog.Logger) *View {
	return &View{
		store:  store,
		logger: logging.NewComponentLogger(logger, "browse"),
	}
}

// List walks roots, merges the result with cache contents, and returns the
// filtered, sorted records.
func (v *View) List(ctx context.Context, roots []string, query Query) ([]Model, error) {
	discovered, err := walker.Discover(ctx, roots, v.logger)
	if err != nil {
		return nil, err
	}
	rows, err := v.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	models := Merge(discovered.Files, rows)
	models = ApplyFilter(models, query.Filter)
	Sort(models, query.Sort, query.Descending)
	return models, nil
}

// Merge produces exactly one record per distinct path across the union of
// filesystem files and cached paths. Cache entries whose fingerprint maps to
// no stored path at all are appended as path-less orphans, keyed by
// fingerprint.
func Merge(files []walker.File, rows []modelcache.Row) []Model {
	byPath := make(map[string]*Model, len(files))
	order := make([]string, 0, len(files))

	for _, file := range files {
		if _, dup := byPath[file.Path]; dup {
			continue
		}
		byPath[file.Path] = &Model{
			Path:      file.Path,
			Name:      filepath.Base(file.Path),
			Category:  classify.Path(file.Path),
			SizeBytes: file.Size,
			OnDisk:    true,
		}
		order = append(order, file.Path)
	}

	var orphanEntries []Model
	for _, row := range rows {
		if row.Path.Path == "" {
			if row.Entry == nil {
				continue
			}
			orphanEntries = append(orphanEntries, Model{
				Name:        row.Entry.ModelName,
				Fingerprint: row.Entry.Fingerprint,
				Category:    classify.CategoryUnknown,
				Cached:      true,
				ModelName:   row.Entry.ModelName,
				ModelType:   row.Entry.ModelType,
				VersionName: row.Entry.VersionName,

				UpdateAvailable: row.Entry.UpdateAvailable,
				Blacklisted:     row.Entry.Blacklisted,
				LastUsedAt:      row.Entry.LastUsedAt,
			})
			continue
		}

		model, exists := byPath[row.Path.Path]
		if !exists {
			// Cached path absent from the current filesystem scan: keep it
			// visible as an orphan.
			model = &Model{
				Path:     row.Path.Path,
				Name:     filepath.Base(row.Path.Path),
				Category: row.Path.FolderCategory,
			}
			byPath[row.Path.Path] = model
			order = append(order, row.Path.Path)
		}

		model.Fingerprint = row.Path.Fingerprint
		model.ScannedAt = row.Path.ScannedAt
		if model.SizeBytes == 0 {
			model.SizeBytes = row.Path.FileSize
		}
		if model.Category == classify.CategoryUnknown && row.Path.FolderCategory != "" {
			model.Category = row.Path.FolderCategory
		}
		if row.Entry != nil {
			model.Cached = true
			model.ModelName = row.Entry.ModelName
			model.ModelType = row.Entry.ModelType
			model.VersionName = row.Entry.VersionName
			model.UpdateAvailable = row.Entry.UpdateAvailable
			model.Blacklisted = row.Entry.Blacklisted
			model.LastUsedAt = row.Entry.LastUsedAt
		}
	}

	result := make([]Model, 0, len(order)+len(orphanEntries))
	for _, path := range order {
		result = append(result, *byPath[path])
	}
	result = append(result, orphanEntries...)
	return result
}

var searchFolder = cases.Fold()

// ApplyFilter returns the records matching every enabled criterion.
func ApplyFilter(models []Model, filter Filter) []Model {
	search := ""
	if strings.TrimSpace(filter.Search) != "" {
		search = searchFolder.String(strings.TrimSpace(filter.Search))
	}
	cutoff := time.Time{}
	if filter.UsedWithin > 0 {
		cutoff = time.Now().Add(-filter.UsedWithin)
	}

	out := make([]Model, 0, len(models))
	for _, model := range models {
		if model.Blacklisted && !filter.IncludeBlacklisted {
			continue
		}
		if filter.UpdateAvailable && !model.UpdateAvailable {
			continue
		}
		if filter.Category != "" && model.Category != filter.Category {
			continue
		}
		if !cutoff.IsZero() && (model.LastUsedAt.IsZero() || model.LastUsedAt.Before(cutoff)) {
			continue
		}
		if search != "" && !matchesSearch(model, search) {
			continue
		}
		out = append(out, model)
	}
	return out
}

func matchesSearch(model Model, foldedNeedle string) bool {
	for _, haystack := range []string{model.Name, model.ModelName, model.Path} {
		if haystack == "" {
			continue
		}
		if strings.Contains(searchFolder.String(haystack), foldedNeedle) {
			return true
		}
	}
	return false
}

// Sort orders models by the given key. Ties are always broken by path
// ascending so the order is stable across runs regardless of direction.
func Sort(models []Model, key SortKey, descending bool) {
	less := lessFunc(key)
	sort.SliceStable(models, func(i, j int) bool {
		a, b := models[i], models[j]
		if cmp := less(a, b); cmp != 0 {
			if descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return a.Path < b.Path
	})
}

func lessFunc(key SortKey) func(a, b Model) int {
	switch key {
	case SortByRecency:
		return func(a, b Model) int {
			at, bt := recencyTime(a), recencyTime(b)
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			}
			return 0
		}
	case SortBySize:
		return func(a, b Model) int {
			switch {
			case a.SizeBytes < b.SizeBytes:
				return -1
			case a.SizeBytes > b.SizeBytes:
				return 1
			}
			return 0
		}
	case SortByCategory:
		return func(a, b Model) int {
			return strings.Compare(string(a.Category), string(b.Category))
		}
	default: // SortByName
		return func(a, b Model) int {
			return strings.Compare(displayName(a), displayName(b))
		}
	}
}

func recencyTime(model Model) time.Time {
	if !model.LastUsedAt.IsZero() {
		return model.LastUsedAt
	}
	return model.ScannedAt
}

func displayName(model Model) string {
	if model.Name != "" {
		return strings.ToLower(model.Name)
	}
	return strings.ToLower(model.ModelName)
}
