// Package fs provides glob resolution and content fingerprints over the project tree.
package fs

import (
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.trai.ch/tend/internal/core/domain"
	"go.trai.ch/tend/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.PathResolver = (*Resolver)(nil)

// Resolver implements ports.PathResolver using doublestar patterns.
type Resolver struct{}

// NewResolver creates a new Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve expands patterns against root. Matches of one pattern are sorted,
// patterns keep their declared order, and a path is only reported once.
// A "!pattern" removes earlier matches.
func (r *Resolver) Resolve(root string, patterns []string) ([]string, error) {
	var result []string
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		if negated, ok := strings.CutPrefix(pattern, "!"); ok {
			negated = normalize(root, negated)
			result = slices.DeleteFunc(result, func(p string) bool {
				if matched, _ := doublestar.Match(negated, p); matched {
					delete(seen, p)
					return true
				}
				return false
			})
			continue
		}

		matches, err := r.glob(root, pattern)
		if err != nil {
			return nil, err
		}
		slices.Sort(matches)
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			result = append(result, m)
		}
	}

	return result, nil
}

func (r *Resolver) glob(root, pattern string) ([]string, error) {
	clean := normalize(root, pattern)

	if !strings.HasPrefix(clean, "../") && clean != ".." {
		matches, err := doublestar.Glob(os.DirFS(root), clean, doublestar.WithFilesOnly())
		if err != nil {
			return nil, zerr.With(domain.Classify(domain.ErrGlobFailed, err), "pattern", pattern)
		}
		return matches, nil
	}

	// Patterns escaping the root are resolved on the real filesystem.
	abs := filepath.Join(root, filepath.FromSlash(clean))
	matches, err := doublestar.FilepathGlob(abs, doublestar.WithFilesOnly())
	if err != nil {
		return nil, zerr.With(domain.Classify(domain.ErrGlobFailed, err), "pattern", pattern)
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		rel, relErr := filepath.Rel(root, m)
		if relErr != nil {
			continue
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out, nil
}

// Match reports whether rel is selected by patterns. The last matching
// pattern wins, so a later "!pattern" excludes and a later pattern re-includes.
func (r *Resolver) Match(patterns []string, rel string) bool {
	rel = filepath.ToSlash(rel)
	selected := false
	for _, pattern := range patterns {
		negated, isNegated := strings.CutPrefix(pattern, "!")
		if matched, err := doublestar.Match(path.Clean(negated), rel); err == nil && matched {
			selected = !isNegated
		}
	}
	return selected
}

// Bases returns the sorted set of absolute directories that must be watched
// to observe patterns. Directories nested inside another base are dropped
// because watches are recursive.
func (r *Resolver) Bases(root string, patterns []string) []string {
	var bases []string
	for _, pattern := range patterns {
		if strings.HasPrefix(pattern, "!") {
			continue
		}
		base, _ := doublestar.SplitPattern(normalize(root, pattern))
		if !hasMeta(pattern) {
			base = path.Dir(normalize(root, pattern))
		}
		bases = append(bases, filepath.Clean(filepath.Join(root, filepath.FromSlash(base))))
	}

	slices.Sort(bases)
	bases = slices.Compact(bases)

	out := bases[:0]
	for _, b := range bases {
		if len(out) > 0 && isWithin(out[len(out)-1], b) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// normalize converts pattern to a cleaned slash pattern relative to root.
func normalize(root, pattern string) string {
	if filepath.IsAbs(pattern) {
		if rel, err := filepath.Rel(root, pattern); err == nil {
			pattern = rel
		}
	}
	return path.Clean(filepath.ToSlash(pattern))
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{\\")
}

func isWithin(parent, child string) bool {
	if parent == child {
		return true
	}
	rel, err := filepath.Rel(parent, child)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
