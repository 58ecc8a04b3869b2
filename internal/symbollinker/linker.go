package symbollinker

import (
	"path/filepath"
	"sort"

	"github.com/standardbeagle/fab/internal/debug"
	"github.com/standardbeagle/fab/internal/types"
)

// LinkDependencies runs the post-analysis linking pass: every symbol
// dependency that resolves through the symbol table becomes a concrete
// file dependency of the depending file, and every `! DEPENDS ON:`
// comment hint is lowered through the analysed C files by basename into
// a file dependency too. After this pass, scheduling can work purely on
// file_deps without re-consulting the symbol table.
//
// Self-dependencies (a file calling a symbol it defines itself) are
// dropped: they carry no ordering information and would otherwise pin
// every file into its own dependency set.
func LinkDependencies(files map[string]types.AnalysedFile, table *SymbolTable) {
	byBasename := indexByBasename(files)

	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		af := files[path]
		fortran, isFortran := af.(*types.AnalysedFortran)
		c, isC := af.(*types.AnalysedC)

		for _, sym := range af.SymbolDeps().Sorted() {
			defPath, ok := table.Lookup(sym)
			if !ok || defPath == path {
				continue
			}
			switch {
			case isFortran:
				fortran.AddFileDep(defPath)
			case isC:
				c.AddFileDep(defPath)
			}
		}

		if !isFortran {
			continue
		}
		for _, basename := range fortran.MOCommentedFileDeps.Sorted() {
			if resolved, ok := byBasename[basename]; ok {
				fortran.AddFileDep(resolved)
			} else {
				debug.LogAnalysis("DEPENDS ON hint %q in %s matches no analysed file", basename, path)
			}
		}
	}
}

// indexByBasename maps each analysed file's basename to its path; ties
// go to the lexicographically first path, mirroring the symbol table's
// own tie-break.
func indexByBasename(files map[string]types.AnalysedFile) map[string]string {
	index := make(map[string]string, len(files))
	for path := range files {
		base := filepath.Base(path)
		if prev, ok := index[base]; !ok || path < prev {
			index[base] = path
		}
	}
	return index
}
