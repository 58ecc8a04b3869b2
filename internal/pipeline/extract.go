package pipeline

import (
	"context"
	"fmt"

	"github.com/standardbeagle/fab/internal/debug"
	"github.com/standardbeagle/fab/internal/symbollinker"
	"github.com/standardbeagle/fab/internal/types"
)

// ExtractBuildTrees resolves each configured root symbol to its closed
// build sub-tree and publishes the root→tree map under KeyBuildTrees.
// Unresolved symbols are warnings, reported and carried on; a root
// symbol that resolves to no file at all is fatal (there is nothing to
// build).
type ExtractBuildTrees struct{}

func (s *ExtractBuildTrees) Name() string { return "extract_build_trees" }

func (s *ExtractBuildTrees) Run(ctx context.Context, rt *Runtime) error {
	analysed, err := Get[map[string]types.AnalysedFile](rt.Store, KeyAnalysedFiles)
	if err != nil {
		return err
	}
	table, err := Get[*symbollinker.SymbolTable](rt.Store, KeySymbolTable)
	if err != nil {
		return err
	}

	trees := make(map[string]types.BuildTree, len(rt.Config.RootSymbols))
	for _, root := range rt.Config.RootSymbols {
		result, err := symbollinker.ExtractTree(analysed, table, root, rt.Config.UnreferencedDeps)
		if err != nil {
			return err
		}
		for _, warning := range result.Unresolved {
			fmt.Println("warning:", warning.Error())
		}
		debug.LogAnalysis("tree for %s: %d files, %d unresolved", root, len(result.Tree), len(result.Unresolved))
		trees[root] = result.Tree
	}

	rt.Store.Set(KeyBuildTrees, trees)
	return nil
}
