// Package types holds the data model shared by every pipeline stage:
// content hashes, the analysed-file union, build trees and compiled
// files. Entities that would otherwise reference each other cyclically
// (analysed files via file_deps) are identified by path string keys into
// flat maps rather than by embedding pointers, so graph walks are a
// visited-set traversal and never a pointer cycle.
package types

import "sort"

// FileHash is a 32-bit content checksum. Two files with identical bytes
// always hash to the same FileHash; no path or mtime is folded in.
type FileHash uint32

// FlagsHash is a 32-bit checksum of a canonicalised (ordered) flag vector.
type FlagsHash uint32

// StringSet is a set of strings, used for both symbol names and absolute
// file paths depending on context.
type StringSet map[string]struct{}

// NewStringSet builds a StringSet from zero or more initial members.
func NewStringSet(items ...string) StringSet {
	s := make(StringSet, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

// Add inserts item into the set.
func (s StringSet) Add(item string) { s[item] = struct{}{} }

// Contains reports whether item is a member of the set.
func (s StringSet) Contains(item string) bool {
	_, ok := s[item]
	return ok
}

// Union adds every member of other into s.
func (s StringSet) Union(other StringSet) {
	for item := range other {
		s[item] = struct{}{}
	}
}

// IsSubset reports whether every member of s is also a member of other.
func (s StringSet) IsSubset(other StringSet) bool {
	for item := range s {
		if !other.Contains(item) {
			return false
		}
	}
	return true
}

// Sorted returns the set's members in ascending order, for deterministic
// iteration (frontier work lists, symbol table tie-breaks).
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for item := range s {
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

// AnalysedFile is implemented by every analyser output so the symbol table and tree extractor can treat Fortran,
// C, X90 and empty files uniformly.
type AnalysedFile interface {
	Path() string
	Hash() FileHash
	SymbolDefs() StringSet
	SymbolDeps() StringSet
	FileDeps() StringSet
	CommentedFileDeps() StringSet
}

// AnalysedFortran is the output of the Fortran Analyser for one
// preprocessed compilation unit.
//
// Invariants (enforced by construction, not validated after the fact):
// ModuleDefs is always a subset of SymbolDefs, and ModuleDeps is always a
// subset of SymbolDeps, because AddModuleDef/AddModuleDep populate both
// sets together. All names are lower-cased by the caller before being
// added (Fortran identifiers are case-insensitive).
type AnalysedFortran struct {
	FPath               string
	FileHashV           FileHash
	ModuleDefs          StringSet
	SymDefs             StringSet
	ModuleDeps          StringSet
	SymDeps             StringSet
	FDeps               StringSet
	MOCommentedFileDeps StringSet
}

// NewAnalysedFortran creates an AnalysedFortran with empty dependency sets.
func NewAnalysedFortran(fpath string, hash FileHash) *AnalysedFortran {
	return &AnalysedFortran{
		FPath:               fpath,
		FileHashV:           hash,
		ModuleDefs:          NewStringSet(),
		SymDefs:             NewStringSet(),
		ModuleDeps:          NewStringSet(),
		SymDeps:             NewStringSet(),
		FDeps:               NewStringSet(),
		MOCommentedFileDeps: NewStringSet(),
	}
}

// AddModuleDef records a `module X` definition: X becomes both a module
// def and a symbol def. A `program X` is recorded with AddSymbolDef only.
func (af *AnalysedFortran) AddModuleDef(name string) {
	af.ModuleDefs.Add(name)
	af.SymDefs.Add(name)
}

// AddSymbolDef records a subroutine/function definition.
func (af *AnalysedFortran) AddSymbolDef(name string) { af.SymDefs.Add(name) }

// AddModuleDep records a `use Y`: Y becomes both a module dep and a
// symbol dep.
func (af *AnalysedFortran) AddModuleDep(name string) {
	af.ModuleDeps.Add(name)
	af.SymDeps.Add(name)
}

// AddSymbolDep records a `call Z` or a referenced external function.
func (af *AnalysedFortran) AddSymbolDep(name string) { af.SymDeps.Add(name) }

// AddFileDep records a direct file-level dependency.
func (af *AnalysedFortran) AddFileDep(path string) { af.FDeps.Add(path) }

// AddCommentedFileDep records a `! DEPENDS ON: foo.o` hint, contributing
// "foo.c" (Met Office legacy naming).
func (af *AnalysedFortran) AddCommentedFileDep(name string) { af.MOCommentedFileDeps.Add(name) }

func (af *AnalysedFortran) Path() string                 { return af.FPath }
func (af *AnalysedFortran) Hash() FileHash              { return af.FileHashV }
func (af *AnalysedFortran) SymbolDefs() StringSet       { return af.SymDefs }
func (af *AnalysedFortran) SymbolDeps() StringSet       { return af.SymDeps }
func (af *AnalysedFortran) FileDeps() StringSet         { return af.FDeps }
func (af *AnalysedFortran) CommentedFileDeps() StringSet { return af.MOCommentedFileDeps }

// AnalysedC is the output of the C Analyser for one preprocessed,
// pragma-annotated translation unit.
type AnalysedC struct {
	FPath     string
	FileHashV FileHash
	SymDefs   StringSet
	SymDeps   StringSet
	FDeps     StringSet
}

// NewAnalysedC creates an AnalysedC with empty dependency sets.
func NewAnalysedC(fpath string, hash FileHash) *AnalysedC {
	return &AnalysedC{
		FPath:     fpath,
		FileHashV: hash,
		SymDefs:   NewStringSet(),
		SymDeps:   NewStringSet(),
		FDeps:     NewStringSet(),
	}
}

func (ac *AnalysedC) AddSymbolDef(name string) { ac.SymDefs.Add(name) }
func (ac *AnalysedC) AddSymbolDep(name string) { ac.SymDeps.Add(name) }
func (ac *AnalysedC) AddFileDep(path string)   { ac.FDeps.Add(path) }

func (ac *AnalysedC) Path() string                { return ac.FPath }
func (ac *AnalysedC) Hash() FileHash              { return ac.FileHashV }
func (ac *AnalysedC) SymbolDefs() StringSet       { return ac.SymDefs }
func (ac *AnalysedC) SymbolDeps() StringSet       { return ac.SymDeps }
func (ac *AnalysedC) FileDeps() StringSet         { return ac.FDeps }
func (ac *AnalysedC) CommentedFileDeps() StringSet { return NewStringSet() }

// AnalysedX90 is the output of a PSyclone X90 analyser. No X90 analyser
// ships with this core (PSyclone wrapping is an external collaborator);
// the type and its Artefact Store slot exist so a future
// analyser has a typed home without reshaping the union.
type AnalysedX90 struct {
	FPath      string
	FileHashV  FileHash
	KernelDeps StringSet
}

func NewAnalysedX90(fpath string, hash FileHash) *AnalysedX90 {
	return &AnalysedX90{FPath: fpath, FileHashV: hash, KernelDeps: NewStringSet()}
}

func (ax *AnalysedX90) Path() string                { return ax.FPath }
func (ax *AnalysedX90) Hash() FileHash              { return ax.FileHashV }
func (ax *AnalysedX90) SymbolDefs() StringSet       { return NewStringSet() }
func (ax *AnalysedX90) SymbolDeps() StringSet       { return ax.KernelDeps }
func (ax *AnalysedX90) FileDeps() StringSet         { return NewStringSet() }
func (ax *AnalysedX90) CommentedFileDeps() StringSet { return NewStringSet() }

// EmptySourceFile marks a source file whose parse tree had no meaningful
// content (e.g. a file containing only comments after preprocessing).
type EmptySourceFile struct {
	FPath string
}

func (e *EmptySourceFile) Path() string                { return e.FPath }
func (e *EmptySourceFile) Hash() FileHash              { return 0 }
func (e *EmptySourceFile) SymbolDefs() StringSet       { return NewStringSet() }
func (e *EmptySourceFile) SymbolDeps() StringSet       { return NewStringSet() }
func (e *EmptySourceFile) FileDeps() StringSet         { return NewStringSet() }
func (e *EmptySourceFile) CommentedFileDeps() StringSet { return NewStringSet() }

// BuildTree is the closed set of analysed files required to build one
// entry symbol, keyed by absolute path.
type BuildTree map[string]AnalysedFile

// CompiledFile records the outcome of compiling one source file. Its
// cache key is the tuple (source_hash, flags_hash, module_deps_hashes).
type CompiledFile struct {
	InputFPath       string
	OutputFPath      string
	SourceHash       FileHash
	FlagsHash        FlagsHash
	ModuleDepsHashes map[string]FileHash
}
