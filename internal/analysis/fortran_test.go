package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/fab/internal/types"
)

func analyseFortran(t *testing.T, src string) *types.AnalysedFortran {
	t.Helper()
	af, err := NewFortranAnalyser().Analyse("/src/unit.f90", []byte(src), types.FileHash(1))
	require.NoError(t, err)
	fortran, ok := af.(*types.AnalysedFortran)
	require.True(t, ok, "expected AnalysedFortran, got %T", af)
	return fortran
}

func TestFortranModuleAndProgramDefs(t *testing.T) {
	af := analyseFortran(t, `
module My_Mod
end module My_Mod

program Main_Prog
end program Main_Prog
`)
	assert.True(t, af.ModuleDefs.Contains("my_mod"))
	assert.True(t, af.SymDefs.Contains("my_mod"), "module def must also be a symbol def")
	assert.True(t, af.SymDefs.Contains("main_prog"))
	assert.False(t, af.ModuleDefs.Contains("main_prog"), "a program is a symbol def, not a module def")
}

func TestFortranSubroutineAndFunctionDefs(t *testing.T) {
	af := analyseFortran(t, `
subroutine Do_Work(x)
end subroutine

pure real function Area(r)
end function
`)
	assert.True(t, af.SymDefs.Contains("do_work"))
	assert.True(t, af.SymDefs.Contains("area"))
}

func TestFortranUseIsModuleAndSymbolDep(t *testing.T) {
	af := analyseFortran(t, `
module consumer
  use Provider_Mod
  use, intrinsic :: iso_fortran_env
end module
`)
	assert.True(t, af.ModuleDeps.Contains("provider_mod"))
	assert.True(t, af.SymDeps.Contains("provider_mod"), "use must add to symbol deps too")
	assert.True(t, af.ModuleDeps.Contains("iso_fortran_env"))
}

func TestFortranCallAddsSymbolDepUnlessLocallyDefined(t *testing.T) {
	af := analyseFortran(t, `
subroutine local_helper
end subroutine

subroutine driver
  call local_helper
  call External_Routine(1, 2)
end subroutine
`)
	assert.True(t, af.SymDeps.Contains("external_routine"))
	assert.False(t, af.SymDeps.Contains("local_helper"), "locally defined callee is not a dep")
}

func TestFortranDependsOnObjectComment(t *testing.T) {
	af := analyseFortran(t, `
subroutine wrapper
! DEPENDS ON: bar.o
end subroutine
`)
	assert.True(t, af.MOCommentedFileDeps.Contains("bar.c"), "a .o hint lowers to the .c source name")
}

func TestFortranDependsOnSymbolComment(t *testing.T) {
	af := analyseFortran(t, `
subroutine wrapper
! DEPENDS ON: Some_Sym
end subroutine
`)
	assert.True(t, af.SymDeps.Contains("some_sym"))
}

func TestFortranInterfaceBlockDefinesNoSymbols(t *testing.T) {
	af := analyseFortran(t, `
module m
  interface
    subroutine hidden_proto(x)
    end subroutine
  end interface
end module
`)
	assert.False(t, af.SymDefs.Contains("hidden_proto"), "interface bodies are walked but define nothing")
	assert.True(t, af.ModuleDefs.Contains("m"))
}

func TestFortranSubmoduleDefinesNoTopLevelSymbols(t *testing.T) {
	af := analyseFortran(t, `
submodule (parent) impl
  subroutine buried
  end subroutine
end submodule
`)
	assert.False(t, af.SymDefs.Contains("buried"))
	assert.False(t, af.ModuleDefs.Contains("impl"))
}

func TestFortranEmptySource(t *testing.T) {
	af, err := NewFortranAnalyser().Analyse("/src/empty.f90", []byte("\n! just a comment\n\n"), types.FileHash(1))
	require.NoError(t, err)
	_, ok := af.(*types.EmptySourceFile)
	assert.True(t, ok, "comment-only file should analyse as EmptySourceFile, got %T", af)
}

func TestFortranInvariantsHold(t *testing.T) {
	af := analyseFortran(t, `
module m
  use other_mod
contains
  subroutine s
    call something_else
  end subroutine
end module
`)
	assert.True(t, af.ModuleDefs.IsSubset(af.SymDefs))
	assert.True(t, af.ModuleDeps.IsSubset(af.SymDeps))
}
