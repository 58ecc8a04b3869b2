package symbollinker

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/hbollon/go-edlib"

	"github.com/standardbeagle/fab/internal/debug"
	fabErrors "github.com/standardbeagle/fab/internal/errors"
	"github.com/standardbeagle/fab/internal/types"
)

// ExtractResult is the outcome of resolving one root symbol to a
// BuildTree: the closed set of files plus every unresolved dependency
// encountered along the way (always warnings, never fatal).
type ExtractResult struct {
	Tree       types.BuildTree
	Unresolved []*fabErrors.UnresolvedSymbolWarning
}

// ExtractTree resolves root (a program or subroutine entry symbol) to its
// closed build sub-tree within files (every analysed file in the
// project, keyed by path):
//
//  1. the root's defining file is added to the tree;
//  2. for each added file, every symbol_dep's defining file is added,
//     and every file_dep / mo_commented_file_dep is added directly;
//  3. every symbol named in unreferencedDeps is force-injected along with
//     its own transitive closure, even if nothing in the tree references
//     it;
//  4. a symbol_dep that resolves to no known definition is recorded as an
//     UnresolvedSymbolWarning (with a nearest-name suggestion) rather than
//     aborting extraction.
//
// The frontier is a sorted work list (re-sorted on every pop) so that,
// given the same inputs, extraction always visits files in the same
// order — the basis for the idempotence property ExtractTree(ExtractTree
// (tree,r),r) == ExtractTree(tree,r).
func ExtractTree(files map[string]types.AnalysedFile, table *SymbolTable, root string, unreferencedDeps []string) (*ExtractResult, error) {
	rootPath, ok := table.Lookup(root)
	if !ok {
		return nil, fabErrors.NewConfigError("root_symbol", root, fmt.Errorf("no analysed file defines symbol %q", root))
	}

	result := &ExtractResult{Tree: make(types.BuildTree)}
	visited := make(map[string]bool)
	frontier := []string{rootPath}

	enqueueSymbol := func(sym, requiredBy string) {
		if defPath, ok := table.Lookup(sym); ok {
			frontier = append(frontier, defPath)
			return
		}
		warning := fabErrors.NewUnresolvedSymbolWarning(sym, requiredBy)
		if suggestion, ok := suggestSymbol(sym, table.Symbols()); ok {
			warning = warning.WithSuggestion(suggestion)
		}
		result.Unresolved = append(result.Unresolved, warning)
	}

	for _, sym := range unreferencedDeps {
		enqueueSymbol(sym, "unreferenced_deps")
	}

	for len(frontier) > 0 {
		sort.Strings(frontier)
		path := frontier[0]
		frontier = frontier[1:]

		if visited[path] {
			continue
		}
		af, ok := files[path]
		if !ok {
			continue
		}
		visited[path] = true
		result.Tree[path] = af

		for _, sym := range af.SymbolDeps().Sorted() {
			enqueueSymbol(sym, path)
		}
		for _, fdep := range af.FileDeps().Sorted() {
			frontier = append(frontier, fdep)
		}
		for _, commented := range af.CommentedFileDeps().Sorted() {
			if resolved, ok := resolveCommentedDep(files, commented); ok {
				frontier = append(frontier, resolved)
			} else {
				debug.LogAnalysis("DEPENDS ON comment %q in %s did not resolve to a known C file", commented, path)
			}
		}
	}

	sort.Slice(result.Unresolved, func(i, j int) bool {
		return result.Unresolved[i].Symbol < result.Unresolved[j].Symbol
	})
	return result, nil
}

// resolveCommentedDep lowers a `! DEPENDS ON: foo.c`-style basename hint
// through the set of analysed files, matching by basename.
// Ties are broken by the sorted-first path, matching the symbol table's
// own tie-break rule.
func resolveCommentedDep(files map[string]types.AnalysedFile, basename string) (string, bool) {
	var candidates []string
	for path := range files {
		if filepath.Base(path) == basename {
			candidates = append(candidates, path)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Strings(candidates)
	return candidates[0], true
}

// suggestSymbol finds the nearest-by-edit-distance known symbol to an
// unresolved one, for the UnresolvedSymbolWarning's "did you mean" hint.
// A lookup failure (e.g. an empty candidate list) simply yields no
// suggestion; it never escalates an already-non-fatal warning into an
// error.
func suggestSymbol(symbol string, known []string) (string, bool) {
	if len(known) == 0 {
		return "", false
	}
	match, err := edlib.FuzzySearch(symbol, known, edlib.Levenshtein)
	if err != nil || match == "" || match == symbol {
		return "", false
	}
	return match, true
}
