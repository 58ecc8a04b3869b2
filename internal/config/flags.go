package config

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/fab/internal/tools"
)

// FlagsResolver resolves the compile/preprocess flag vector for one
// source path: common flags for the tool category plus
// any path-pattern override whose glob matches. Macro substitution
// ($source, $output) is the scheduler's job, applied after resolution.
type FlagsResolver struct {
	cfg *Config
}

// NewFlagsResolver builds a resolver bound to cfg's CommonFlags and
// FlagOverrides.
func NewFlagsResolver(cfg *Config) *FlagsResolver {
	return &FlagsResolver{cfg: cfg}
}

// Flags returns the resolved flag vector for path under category:
// the category's common flags, followed by the flags of every override
// whose glob pattern matches path, in declaration order (later overrides
// can repeat or override an earlier flag — first-match-wins is left to
// the underlying tool's own argument precedence).
func (r *FlagsResolver) Flags(category tools.Category, path string) []string {
	var flags []string
	flags = append(flags, r.cfg.CommonFlags[category]...)

	for _, override := range r.cfg.FlagOverrides {
		matched, err := doublestar.PathMatch(override.Pattern, path)
		if err != nil || !matched {
			continue
		}
		flags = append(flags, override.Flags...)
	}
	return flags
}

// MatchSources expands the glob patterns under root (the source
// directory) into a sorted, de-duplicated list of matching file paths, using
// doublestar so "**/*.f90"-style recursive patterns work the same as the
// override patterns above.
func MatchSources(root string, patterns []string) ([]string, error) {
	fsys := os.DirFS(root)
	seen := make(map[string]struct{})
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			seen[filepath.Join(root, m)] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}
