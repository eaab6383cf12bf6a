// Package walk enumerates analyzable files under a directory.
package walk

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dshills/perfguard/internal/source"
)

// DefaultMaxFiles caps how many files a single enumeration returns.
const DefaultMaxFiles = 5000

// ErrTooManyFiles is returned alongside the capped list when more files
// matched than MaxFiles allows.
var ErrTooManyFiles = errors.New("file limit reached")

// DefaultExclude holds directories and generated files that are never analyzed.
var DefaultExclude = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/dist/**",
	"**/build/**",
	"**/coverage/**",
	"**/.next/**",
	"**/.performance-snapshots/**",
	"**/*.min.js",
	"**/*.d.ts",
}

// Options selects files. Patterns use doublestar syntax and are matched
// against slash-separated paths relative to the walk root. An empty
// Include accepts every supported file.
type Options struct {
	Include  []string
	Exclude  []string
	MaxFiles int

	// NoDefaultExcludes drops DefaultExclude from the exclusion list.
	NoDefaultExcludes bool
}

func (o Options) excludes() []string {
	if o.NoDefaultExcludes {
		return o.Exclude
	}
	return append(append([]string{}, DefaultExclude...), o.Exclude...)
}

// ValidatePatterns reports the first malformed pattern.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	return nil
}

// Enumerate returns the supported files under root that pass the include
// and exclude patterns, sorted, relative to root with forward slashes.
// When more than MaxFiles match, the first MaxFiles are returned together
// with ErrTooManyFiles.
func Enumerate(root string, opts Options) ([]string, error) {
	if err := ValidatePatterns(opts.Include); err != nil {
		return nil, err
	}
	excludes := opts.excludes()
	if err := ValidatePatterns(excludes); err != nil {
		return nil, err
	}
	limit := opts.MaxFiles
	if limit <= 0 {
		limit = DefaultMaxFiles
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil // skip unreadable entries
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if matchAny(excludes, rel) || matchAny(excludes, rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !source.Supported(rel) {
			return nil
		}
		if matchAny(excludes, rel) {
			return nil
		}
		if len(opts.Include) > 0 && !matchAny(opts.Include, rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk.Enumerate: %w", err)
	}

	sort.Strings(files)
	if len(files) > limit {
		return files[:limit], ErrTooManyFiles
	}
	return files, nil
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
