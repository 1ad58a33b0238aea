package extractor

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"VisaDecisions/internal/ports"
)

// ErrNoTable is returned when a document has no recognizable table.
var ErrNoTable = errors.New("no table found in document")

// ErrNotRegistered is returned when no extractor handles a file extension.
var ErrNotRegistered = errors.New("no extractor registered")

// Registry keeps a mapping from file extensions to extractors.
type Registry struct {
	extractors map[string]ports.RecordExtractor
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: map[string]ports.RecordExtractor{}}
}

// Register adds or replaces the extractor for an extension such as ".pdf".
func (r *Registry) Register(ext string, extractor ports.RecordExtractor) {
	if r.extractors == nil {
		r.extractors = map[string]ports.RecordExtractor{}
	}
	r.extractors[normalizeExt(ext)] = extractor
}

// Resolve returns the extractor for a filename based on its extension.
func (r *Registry) Resolve(filename string) (ports.RecordExtractor, error) {
	ext := normalizeExt(filepath.Ext(filename))
	if extractor, ok := r.extractors[ext]; ok {
		return extractor, nil
	}
	return nil, fmt.Errorf("%w for %q", ErrNotRegistered, ext)
}

// Supports reports whether filename has a registered extension.
func (r *Registry) Supports(filename string) bool {
	_, ok := r.extractors[normalizeExt(filepath.Ext(filename))]
	return ok
}

// Extensions lists registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.extractors))
	for ext := range r.extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
