package types

import "testing"

func TestAnalysedFortranModuleDefsSubsetOfSymbolDefs(t *testing.T) {
	af := NewAnalysedFortran("/src/foo.f90", FileHash(1))
	af.AddModuleDef("mod_foo")
	af.AddSymbolDef("helper_sub")

	if !af.ModuleDefs.IsSubset(af.SymDefs) {
		t.Fatalf("module_defs %v not a subset of symbol_defs %v", af.ModuleDefs, af.SymDefs)
	}
	if !af.SymDefs.Contains("mod_foo") {
		t.Fatalf("expected symbol_defs to contain mod_foo")
	}
}

func TestAnalysedFortranModuleDepsSubsetOfSymbolDeps(t *testing.T) {
	af := NewAnalysedFortran("/src/foo.f90", FileHash(1))
	af.AddModuleDep("mod_bar")
	af.AddSymbolDep("some_external_func")

	if !af.ModuleDeps.IsSubset(af.SymDeps) {
		t.Fatalf("module_deps %v not a subset of symbol_deps %v", af.ModuleDeps, af.SymDeps)
	}
	if !af.SymDeps.Contains("mod_bar") {
		t.Fatalf("expected symbol_deps to contain mod_bar")
	}
}

func TestAnalysedFortranCommentedFileDepsIndependent(t *testing.T) {
	af := NewAnalysedFortran("/src/foo.f90", FileHash(1))
	af.AddCommentedFileDep("legacy_kernel.c")

	if af.FileDeps().Contains("legacy_kernel.c") {
		t.Fatalf("commented file deps must not leak into plain file_deps")
	}
	if !af.CommentedFileDeps().Contains("legacy_kernel.c") {
		t.Fatalf("expected commented_file_deps to contain legacy_kernel.c")
	}
}

func TestAnalysedCHasNoModuleConcept(t *testing.T) {
	ac := NewAnalysedC("/src/foo.c", FileHash(2))
	ac.AddSymbolDef("do_work")
	ac.AddSymbolDep("malloc")
	ac.AddFileDep("/src/foo.h")

	if len(ac.CommentedFileDeps()) != 0 {
		t.Fatalf("C analyser output should never carry commented file deps")
	}
	if !ac.SymbolDefs().Contains("do_work") || !ac.SymbolDeps().Contains("malloc") {
		t.Fatalf("symbol def/dep not recorded")
	}
}

func TestAnalysedX90HasNoSymbolDefs(t *testing.T) {
	ax := NewAnalysedX90("/src/foo.x90", FileHash(3))
	ax.KernelDeps.Add("some_kernel_mod")

	if len(ax.SymbolDefs()) != 0 {
		t.Fatalf("x90 files define no symbols of their own")
	}
	if !ax.SymbolDeps().Contains("some_kernel_mod") {
		t.Fatalf("expected kernel dep to surface as a symbol dep")
	}
}

func TestEmptySourceFileAllSetsEmpty(t *testing.T) {
	e := &EmptySourceFile{FPath: "/src/blank.f90"}

	if len(e.SymbolDefs()) != 0 || len(e.SymbolDeps()) != 0 || len(e.FileDeps()) != 0 || len(e.CommentedFileDeps()) != 0 {
		t.Fatalf("empty source file must report every set empty")
	}
	if e.Hash() != 0 {
		t.Fatalf("empty source file has no content hash")
	}
}

func TestBuildTreeKeyedByAbsolutePath(t *testing.T) {
	af := NewAnalysedFortran("/src/foo.f90", FileHash(1))
	bt := BuildTree{af.Path(): af}

	got, ok := bt["/src/foo.f90"]
	if !ok {
		t.Fatalf("expected build tree lookup by absolute path to succeed")
	}
	if got.Hash() != FileHash(1) {
		t.Fatalf("unexpected hash from build tree entry")
	}
}

func TestStringSetUnionAndSorted(t *testing.T) {
	a := NewStringSet("b", "a")
	b := NewStringSet("c")
	a.Union(b)

	sorted := a.Sorted()
	if len(sorted) != 3 || sorted[0] != "a" || sorted[1] != "b" || sorted[2] != "c" {
		t.Fatalf("unexpected sorted union: %v", sorted)
	}
}
