// Package symbollinker implements the symbol table and tree extractor:
// it maps every symbol defined anywhere in an analysed
// project to the file that defines it, then resolves one root symbol to
// the closed sub-tree of files required to build it.
package symbollinker

import (
	"fmt"
	"sort"

	"github.com/standardbeagle/fab/internal/types"
)

// SymbolTable is a symbol→defining-path index built by unioning every
// analysed file's symbol_defs. A symbol defined in more than one file is
// a DuplicateSymbol warning; the winner is always the lexicographically
// first path, so resolution is deterministic regardless of analysis
// order.
type SymbolTable struct {
	defs map[string]string
}

// DuplicateSymbol reports a symbol defined in more than one analysed
// file. It is always a warning: extraction proceeds using the
// sorted-first path as the winner.
type DuplicateSymbol struct {
	Symbol string
	Winner string
	Loser  string
}

func (d *DuplicateSymbol) Error() string {
	return fmt.Sprintf("duplicate symbol %q defined in %s and %s; using %s", d.Symbol, d.Winner, d.Loser, d.Winner)
}

// BuildSymbolTable unions the symbol_defs of every analysed file into one
// table, returning any DuplicateSymbol warnings encountered (never
// fatal).
func BuildSymbolTable(files []types.AnalysedFile) (*SymbolTable, []*DuplicateSymbol) {
	bySymbol := make(map[string][]string)
	for _, f := range files {
		for sym := range f.SymbolDefs() {
			bySymbol[sym] = append(bySymbol[sym], f.Path())
		}
	}

	symbols := make([]string, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	table := &SymbolTable{defs: make(map[string]string, len(bySymbol))}
	var warnings []*DuplicateSymbol
	for _, sym := range symbols {
		paths := bySymbol[sym]
		sort.Strings(paths)
		table.defs[sym] = paths[0]
		for _, loser := range paths[1:] {
			warnings = append(warnings, &DuplicateSymbol{Symbol: sym, Winner: paths[0], Loser: loser})
		}
	}
	return table, warnings
}

// Lookup returns the path defining sym, if any.
func (t *SymbolTable) Lookup(sym string) (string, bool) {
	path, ok := t.defs[sym]
	return path, ok
}

// Symbols returns every defined symbol name, sorted, for fuzzy-matching
// suggestions on an unresolved dependency.
func (t *SymbolTable) Symbols() []string {
	out := make([]string, 0, len(t.defs))
	for sym := range t.defs {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
