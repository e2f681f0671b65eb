// Package classify maps model file paths to folder categories by matching
// path segments against known directory names. Classification is pure: no
// I/O, no errors, unmatched paths collapse to CategoryUnknown.
package classify

import (
	"path/filepath"
	"strings"
)

// Category is the coarse model classification derived from directory names.
type Category string

const (
	CategoryCheckpoint     Category = "checkpoint"
	CategoryLoRA           Category = "lora"
	CategoryVAE            Category = "vae"
	CategoryTextEncoder    Category = "text-encoder"
	CategoryDiffusionModel Category = "diffusion-model"
	CategoryUnknown        Category = "unknown"
)

// categoryDirs maps directory names (lowercased) to categories. Aliases such
// as "lycoris" and "unet" follow the folder layouts common to ComfyUI-style
// model libraries.
var categoryDirs = map[string]Category{
	"checkpoints":      CategoryCheckpoint,
	"checkpoint":       CategoryCheckpoint,
	"loras":            CategoryLoRA,
	"lora":             CategoryLoRA,
	"lycoris":          CategoryLoRA,
	"vae":              CategoryVAE,
	"text_encoders":    CategoryTextEncoder,
	"text_encoder":     CategoryTextEncoder,
	"clip":             CategoryTextEncoder,
	"diffusion_models": CategoryDiffusionModel,
	"unet":             CategoryDiffusionModel,
}

// categoryOrder fixes match priority when a path contains directories from
// more than one category; the segment closest to the file wins, and within a
// single segment the listed order applies.
var categoryOrder = []Category{
	CategoryCheckpoint,
	CategoryLoRA,
	CategoryVAE,
	CategoryTextEncoder,
	CategoryDiffusionModel,
}

// Path returns the folder category for the given model file path. The final
// path element is treated as a file name and never matched.
func Path(path string) Category {
	normalized := strings.ReplaceAll(filepath.ToSlash(path), "\\", "/")
	segments := strings.Split(normalized, "/")
	if len(segments) > 0 {
		segments = segments[:len(segments)-1]
	}
	for i := len(segments) - 1; i >= 0; i-- {
		segment := strings.ToLower(strings.TrimSpace(segments[i]))
		if segment == "" {
			continue
		}
		if category, ok := categoryDirs[segment]; ok {
			return category
		}
	}
	return CategoryUnknown
}

// Known reports whether category is one of the recognized (non-unknown)
// categories.
func Known(category Category) bool {
	for _, c := range categoryOrder {
		if c == category {
			return true
		}
	}
	return false
}

// Categories returns all recognized categories in priority order.
func Categories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}
