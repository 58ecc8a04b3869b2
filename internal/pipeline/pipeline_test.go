package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/fab/internal/config"
	"github.com/standardbeagle/fab/internal/tools"
	"github.com/standardbeagle/fab/internal/types"
)

// seedWorkspace lays out a small mixed Fortran/C project under a temp
// workspace and returns its Config. No preprocessor or compiler tools
// are configured: preprocessing passes sources through, which is all
// the analysis stages need.
func seedWorkspace(t *testing.T) *config.Config {
	t.Helper()
	ws := t.TempDir()
	cfg := config.Default()
	cfg.WorkspaceRoot = ws
	cfg.ProjectLabel = "demo"
	cfg.RootSymbols = []string{"demo_main"}
	cfg.Multiprocessing = true

	src := cfg.SourceDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "lib"), 0755))

	write := func(rel, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(src, rel), []byte(content), 0644))
	}

	write("main.f90", `
program demo_main
  use helper_mod
  call run_helper
end program demo_main
`)
	write("lib/helper.f90", `
module helper_mod
contains
  subroutine run_helper
    ! DEPENDS ON: util.o
  end subroutine
end module helper_mod
`)
	write("lib/util.c", `
#include "util.h"
#include <stdio.h>

int util_impl(int x) { return x + 1; }
`)
	write("lib/orphan.f90", `
module orphan_mod
end module orphan_mod
`)
	return cfg
}

func analysisSteps() []Step {
	return []Step{
		&FindSourceFiles{},
		&CPragmaInjector{},
		&Preprocess{},
		&Analyse{},
		&ExtractBuildTrees{},
	}
}

func runAnalysis(t *testing.T, cfg *config.Config) *Runtime {
	t.Helper()
	rt := &Runtime{Config: cfg, Store: NewStore(), ToolBox: tools.NewToolBox()}
	require.NoError(t, NewDriver(analysisSteps()...).Run(context.Background(), rt))
	return rt
}

func TestPipelineAnalysesAndExtracts(t *testing.T) {
	cfg := seedWorkspace(t)
	rt := runAnalysis(t, cfg)

	analysed, err := Get[map[string]types.AnalysedFile](rt.Store, KeyAnalysedFiles)
	require.NoError(t, err)
	assert.Len(t, analysed, 4)

	trees, err := Get[map[string]types.BuildTree](rt.Store, KeyBuildTrees)
	require.NoError(t, err)
	tree, ok := trees["demo_main"]
	require.True(t, ok)

	var names []string
	for path := range tree {
		names = append(names, filepath.Base(path))
	}
	assert.Contains(t, names, "main.f90")
	assert.Contains(t, names, "helper.f90")
	assert.Contains(t, names, "util.c", "DEPENDS ON: util.o pulls the C file in by basename")
	assert.NotContains(t, names, "orphan.f90", "unreferenced module stays out of the tree")
}

func TestPipelineDependsOnCarriesIntoFileDeps(t *testing.T) {
	cfg := seedWorkspace(t)
	rt := runAnalysis(t, cfg)

	analysed, err := Get[map[string]types.AnalysedFile](rt.Store, KeyAnalysedFiles)
	require.NoError(t, err)

	var helper types.AnalysedFile
	var utilPath string
	for path, af := range analysed {
		switch filepath.Base(path) {
		case "helper.f90":
			helper = af
		case "util.c":
			utilPath = path
		}
	}
	require.NotNil(t, helper)
	require.NotEmpty(t, utilPath)
	assert.True(t, helper.FileDeps().Contains(utilPath),
		"post-analysis linking must lower the comment hint into file_deps")
}

func TestPipelineSecondRunReusesAnalysis(t *testing.T) {
	cfg := seedWorkspace(t)
	first := runAnalysis(t, cfg)
	second := runAnalysis(t, cfg)

	firstAnalysed, err := Get[map[string]types.AnalysedFile](first.Store, KeyAnalysedFiles)
	require.NoError(t, err)
	secondAnalysed, err := Get[map[string]types.AnalysedFile](second.Store, KeyAnalysedFiles)
	require.NoError(t, err)

	require.Len(t, secondAnalysed, len(firstAnalysed))
	for path, af := range firstAnalysed {
		got, ok := secondAnalysed[path]
		require.True(t, ok, "path %s missing on second run", path)
		assert.Equal(t, af.SymbolDefs().Sorted(), got.SymbolDefs().Sorted())
		assert.Equal(t, af.FileDeps().Sorted(), got.FileDeps().Sorted())
	}

	// The analysis cache is populated under _prebuild.
	records, err := filepath.Glob(filepath.Join(cfg.PrebuildDir(), "analysis", "*.an"))
	require.NoError(t, err)
	assert.NotEmpty(t, records)
}

func TestPragmaInjectorAnnotatesIncludes(t *testing.T) {
	cfg := seedWorkspace(t)
	rt := &Runtime{Config: cfg, Store: NewStore(), ToolBox: tools.NewToolBox()}
	require.NoError(t, NewDriver(&FindSourceFiles{}, &CPragmaInjector{}).Run(context.Background(), rt))

	pragmad, err := Get[[]string](rt.Store, KeyPragmadC)
	require.NoError(t, err)
	require.Len(t, pragmad, 1)

	content, err := os.ReadFile(pragmad[0])
	require.NoError(t, err)
	text := string(content)

	userIdx := strings.Index(text, pragmaUsrIncludeStart)
	sysIdx := strings.Index(text, pragmaSysIncludeStart)
	require.GreaterOrEqual(t, userIdx, 0)
	require.GreaterOrEqual(t, sysIdx, 0)
	assert.Less(t, userIdx, strings.Index(text, `#include "util.h"`))
	assert.Contains(t, text, pragmaUsrIncludeEnd)
	assert.Contains(t, text, pragmaSysIncludeEnd)
}

func TestFindSourceFilesFailsOnEmptyWorkspace(t *testing.T) {
	cfg := config.Default()
	cfg.WorkspaceRoot = t.TempDir()
	cfg.ProjectLabel = "empty"
	require.NoError(t, os.MkdirAll(cfg.SourceDir(), 0755))

	rt := &Runtime{Config: cfg, Store: NewStore(), ToolBox: tools.NewToolBox()}
	err := (&FindSourceFiles{}).Run(context.Background(), rt)
	assert.Error(t, err)
}
