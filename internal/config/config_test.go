package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/fab/internal/tools"
)

const sampleKDL = `
project {
    label "um_atmos"
}
workspace "/scratch/fab-workspace"
root_symbol "um_main"
root_symbol "recon"
unreferenced_dep "legacy_io"
multiprocessing true
parallelism 8
compile_timeout_seconds 300
tool "FORTRAN_COMPILER" {
    name "gfortran"
    exec "gfortran"
    module_flag "-J"
}
tool "C_COMPILER" {
    exec "gcc"
}
common_flags "FORTRAN_COMPILER" "-O2" "-fopenmp"
flag_override "**/*_mpi.f90" "-DUSE_MPI"
`

func loadSample(t *testing.T) *Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".fab.kdl")
	require.NoError(t, os.WriteFile(path, []byte(sampleKDL), 0644))
	cfg, err := Load(path)
	require.NoError(t, err)
	return cfg
}

func TestLoadSampleConfig(t *testing.T) {
	cfg := loadSample(t)

	assert.Equal(t, "um_atmos", cfg.ProjectLabel)
	assert.Equal(t, "/scratch/fab-workspace", cfg.WorkspaceRoot)
	assert.Equal(t, []string{"um_main", "recon"}, cfg.RootSymbols)
	assert.Equal(t, []string{"legacy_io"}, cfg.UnreferencedDeps)
	assert.True(t, cfg.Multiprocessing)
	assert.Equal(t, 8, cfg.Parallelism)
	assert.Equal(t, 300, cfg.CompileTimeoutSeconds)

	fc := cfg.Tools[tools.CatFortranCompiler]
	assert.Equal(t, "gfortran", fc.Name)
	assert.Equal(t, "-J", fc.ModuleFlag)
	assert.Equal(t, "gcc", cfg.Tools[tools.CatCCompiler].Name, "name defaults to exec when omitted")

	assert.Equal(t, []string{"-O2", "-fopenmp"}, cfg.CommonFlags[tools.CatFortranCompiler])
	require.Len(t, cfg.FlagOverrides, 1)
	assert.Equal(t, "**/*_mpi.f90", cfg.FlagOverrides[0].Pattern)
}

func TestWorkspaceLayout(t *testing.T) {
	cfg := loadSample(t)
	assert.Equal(t, "/scratch/fab-workspace/um_atmos", cfg.ProjectDir())
	assert.Equal(t, "/scratch/fab-workspace/um_atmos/source", cfg.SourceDir())
	assert.Equal(t, "/scratch/fab-workspace/um_atmos/build_output", cfg.BuildOutputDir())
	assert.Equal(t, "/scratch/fab-workspace/um_atmos/_prebuild", cfg.PrebuildDir())
	assert.Equal(t, "/scratch/fab-workspace/um_atmos/metrics", cfg.MetricsDir())
}

func TestValidatorAcceptsSample(t *testing.T) {
	assert.NoError(t, NewValidator().Validate(loadSample(t)))
}

func TestValidatorRejectsMissingRootSymbol(t *testing.T) {
	cfg := loadSample(t)
	cfg.RootSymbols = nil
	assert.Error(t, NewValidator().Validate(cfg))
}

func TestValidatorRejectsRelativeWorkspace(t *testing.T) {
	cfg := loadSample(t)
	cfg.WorkspaceRoot = "relative/path"
	assert.Error(t, NewValidator().Validate(cfg))
}

func TestValidatorRejectsEmptyWorkspace(t *testing.T) {
	cfg := loadSample(t)
	cfg.WorkspaceRoot = ""
	assert.Error(t, NewValidator().Validate(cfg))
}

func TestFlagsResolverAppliesOverrides(t *testing.T) {
	cfg := loadSample(t)
	resolver := NewFlagsResolver(cfg)

	plain := resolver.Flags(tools.CatFortranCompiler, "/scratch/src/core/solver.f90")
	assert.Equal(t, []string{"-O2", "-fopenmp"}, plain)

	mpi := resolver.Flags(tools.CatFortranCompiler, "/scratch/src/comms/halo_mpi.f90")
	assert.Equal(t, []string{"-O2", "-fopenmp", "-DUSE_MPI"}, mpi)
}

func TestEffectiveParallelism(t *testing.T) {
	cfg := Default()
	cfg.Parallelism = 3
	assert.Equal(t, 3, cfg.EffectiveParallelism())

	cfg.Parallelism = 0
	assert.GreaterOrEqual(t, cfg.EffectiveParallelism(), 1)
}

func TestMatchSources(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0755))
	for _, name := range []string{"a.f90", "sub/b.f90", "sub/c.c", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x"), 0644))
	}

	matches, err := MatchSources(root, []string{"**/*.f90", "**/*.c"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.f90"),
		filepath.Join(root, "sub", "b.f90"),
		filepath.Join(root, "sub", "c.c"),
	}, matches)
}
