// Package scheduler drives compilation of one build tree: it layers the
// tree by file dependencies, feeds ready files to a fixed-size worker
// pool, and reuses prior objects through the compile cache whenever a
// file's fingerprint (source hash, flags hash, transitive module
// interface hashes) is unchanged.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/fab/internal/cache"
	"github.com/standardbeagle/fab/internal/debug"
	fabErrors "github.com/standardbeagle/fab/internal/errors"
	"github.com/standardbeagle/fab/internal/hasher"
	"github.com/standardbeagle/fab/internal/tools"
	"github.com/standardbeagle/fab/internal/types"
)

// Compiler is the capability the scheduler needs from a compiler tool.
// tools.Compiler satisfies it; tests substitute fakes that never shell
// out.
type Compiler interface {
	Name() string
	Compile(ctx context.Context, inputPath, objectPath string, addFlags []string) error
}

// FlagsResolver resolves the flag vector for one source path under one
// tool category. config.FlagsResolver satisfies it.
type FlagsResolver interface {
	Flags(category tools.Category, path string) []string
}

// Options configures a Scheduler for one run.
type Options struct {
	FortranCompiler Compiler
	CCompiler       Compiler

	// FortranModuleFlag is the compiler's module-output-directory flag
	// ("-J" for gfortran, "-module" for ifort). Empty disables module
	// artefact collection.
	FortranModuleFlag string

	Resolver FlagsResolver
	Cache    *cache.CompileCache

	// WorkDir receives the per-compile scratch directories (object and
	// module output before they are moved into the cache).
	WorkDir string

	// Workers is the pool size; values < 1 mean one worker.
	Workers int

	// CompileTimeout bounds each compiler subprocess; zero means no
	// timeout.
	CompileTimeout time.Duration
}

// Scheduler compiles one build tree. A Scheduler is single-use: create
// one per tree per run.
type Scheduler struct {
	opts Options

	mu           sync.RWMutex
	moduleHashes map[string]types.FileHash
}

// New returns a Scheduler for opts.
func New(opts Options) *Scheduler {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Scheduler{opts: opts, moduleHashes: make(map[string]types.FileHash)}
}

// compileEvent is what a worker reports back to the coordinator when a
// file finishes (successfully or not).
type compileEvent struct {
	path     string
	compiled *types.CompiledFile
	err      error
}

// Build compiles every file in tree in dependency order and returns the
// per-file compile records, keyed by source path. On failure it returns
// every CompileError gathered across the run as one MultiError; files
// depending (transitively) on a failed file are skipped, everything else
// still compiles.
func (s *Scheduler) Build(ctx context.Context, tree types.BuildTree) (map[string]*types.CompiledFile, error) {
	deps, parents := dependencyGraph(tree)
	moduleOwner := indexModuleOwners(tree)

	pending := make(map[string]int, len(tree))
	var ready []string
	for path := range tree {
		pending[path] = len(deps[path])
		if pending[path] == 0 {
			ready = append(ready, path)
		}
	}
	sort.Strings(ready)
	debug.LogSchedule("tree of %d files, initial level of %d", len(tree), len(ready))

	work := make(chan string)
	events := make(chan compileEvent)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.opts.Workers; i++ {
		g.Go(func() error {
			for path := range work {
				compiled, err := s.compileOne(gctx, tree, moduleOwner, path)
				select {
				case events <- compileEvent{path: path, compiled: compiled, err: err}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	compiled := make(map[string]*types.CompiledFile, len(tree))
	skipped := make(map[string]bool)
	var failures []error
	remaining := len(tree)
	inFlight := 0

	for remaining > 0 {
		if len(ready) == 0 && inFlight == 0 {
			// Nothing runnable and nothing running: the remaining files
			// form a dependency cycle.
			var stuck []string
			for path := range tree {
				if _, done := compiled[path]; !done && !skipped[path] {
					stuck = append(stuck, path)
				}
			}
			sort.Strings(stuck)
			failures = append(failures, fmt.Errorf("dependency cycle among %d files: %v", len(stuck), stuck))
			break
		}

		var next string
		var dispatch chan string
		if len(ready) > 0 {
			next = ready[0]
			dispatch = work
		}

		select {
		case dispatch <- next:
			ready = ready[1:]
			inFlight++
			continue
		case ev := <-events:
			remaining--
			inFlight--
			if ev.err != nil {
				failures = append(failures, ev.err)
				skipped[ev.path] = true
				remaining -= skipDependents(ev.path, parents, skipped, compiled)
				continue
			}
			if ev.compiled != nil {
				compiled[ev.path] = ev.compiled
			}
			for _, parent := range parents[ev.path] {
				if skipped[parent] {
					continue
				}
				pending[parent]--
				if pending[parent] == 0 {
					ready = insertSorted(ready, parent)
				}
			}
		case <-gctx.Done():
			close(work)
			_ = g.Wait()
			return compiled, gctx.Err()
		}
	}

	close(work)
	if err := g.Wait(); err != nil {
		failures = append(failures, err)
	}

	if len(failures) > 0 {
		sort.Slice(failures, func(i, j int) bool { return failures[i].Error() < failures[j].Error() })
		return compiled, fabErrors.NewMultiError(failures)
	}
	return compiled, nil
}

// dependencyGraph restricts each file's file_deps to members of the tree
// and builds the reverse (parents) relation.
func dependencyGraph(tree types.BuildTree) (deps map[string][]string, parents map[string][]string) {
	deps = make(map[string][]string, len(tree))
	parents = make(map[string][]string, len(tree))
	for path, af := range tree {
		for _, dep := range af.FileDeps().Sorted() {
			if dep == path {
				continue
			}
			if _, inTree := tree[dep]; !inTree {
				continue
			}
			deps[path] = append(deps[path], dep)
			parents[dep] = append(parents[dep], path)
		}
	}
	for _, ps := range parents {
		sort.Strings(ps)
	}
	return deps, parents
}

// indexModuleOwners maps every Fortran module name defined in the tree
// to its defining file.
func indexModuleOwners(tree types.BuildTree) map[string]string {
	owners := make(map[string]string)
	for path, af := range tree {
		fortran, ok := af.(*types.AnalysedFortran)
		if !ok {
			continue
		}
		for module := range fortran.ModuleDefs {
			if prev, dup := owners[module]; !dup || path < prev {
				owners[module] = path
			}
		}
	}
	return owners
}

// skipDependents transitively marks everything depending on failed as
// skipped, returning how many not-yet-finished files were removed from
// the schedule.
func skipDependents(failed string, parents map[string][]string, skipped map[string]bool, compiled map[string]*types.CompiledFile) int {
	count := 0
	frontier := []string{failed}
	for len(frontier) > 0 {
		path := frontier[0]
		frontier = frontier[1:]
		for _, parent := range parents[path] {
			if skipped[parent] {
				continue
			}
			if _, done := compiled[parent]; done {
				continue
			}
			skipped[parent] = true
			count++
			debug.LogSchedule("skipping %s: depends on failed %s", parent, failed)
			frontier = append(frontier, parent)
		}
	}
	return count
}

func insertSorted(list []string, item string) []string {
	i := sort.SearchStrings(list, item)
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = item
	return list
}

// compileOne runs the per-file compile contract: resolve
// flags, compute the fingerprint over source hash, flags hash and the
// module interface hashes of every used module defined inside the tree,
// then reuse or produce the cached object.
func (s *Scheduler) compileOne(ctx context.Context, tree types.BuildTree, moduleOwner map[string]string, path string) (*types.CompiledFile, error) {
	af := tree[path]
	if _, empty := af.(*types.EmptySourceFile); empty {
		return nil, nil
	}

	compiler, category, err := s.compilerFor(af)
	if err != nil {
		return nil, err
	}

	flags := s.opts.Resolver.Flags(category, path)
	flags = substituteMacro(flags, "$source", path)
	// $output is substituted at invocation time: the object path is
	// derived from the fingerprint, which must itself cover the flags,
	// so the flag vector is hashed with the macro still in place.
	flagsHash := hasher.HashFlags(flags)

	moduleDepsHashes := s.moduleDepsHashes(af, moduleOwner, path)
	fingerprint := cache.Fingerprint(af.Hash(), flagsHash, moduleDepsHashes)

	var definedModules []string
	fortran, isFortran := af.(*types.AnalysedFortran)
	if isFortran {
		definedModules = fortran.ModuleDefs.Sorted()
	}

	basename := filepath.Base(path)
	result, err := s.opts.Cache.GetOrCompile(basename, fingerprint, definedModules, func() (*cache.Result, error) {
		return s.invokeCompiler(ctx, compiler, path, basename, fingerprint, flags, definedModules)
	})
	if err != nil {
		return nil, err
	}

	if err := s.recordModuleHashes(result); err != nil {
		return nil, err
	}

	return &types.CompiledFile{
		InputFPath:       path,
		OutputFPath:      result.ObjectPath,
		SourceHash:       af.Hash(),
		FlagsHash:        flagsHash,
		ModuleDepsHashes: moduleDepsHashes,
	}, nil
}

func (s *Scheduler) compilerFor(af types.AnalysedFile) (Compiler, tools.Category, error) {
	switch af.(type) {
	case *types.AnalysedC:
		if s.opts.CCompiler == nil {
			return nil, "", fabErrors.NewToolUnavailable(string(tools.CatCCompiler), "", fmt.Errorf("no C compiler configured"))
		}
		return s.opts.CCompiler, tools.CatCCompiler, nil
	default:
		if s.opts.FortranCompiler == nil {
			return nil, "", fabErrors.NewToolUnavailable(string(tools.CatFortranCompiler), "", fmt.Errorf("no Fortran compiler configured"))
		}
		return s.opts.FortranCompiler, tools.CatFortranCompiler, nil
	}
}

// moduleDepsHashes gathers the stored interface hash of every module the
// file uses that is defined by another file in the tree. Dependency
// ordering guarantees the defining unit already compiled, so its module
// hash is always present.
func (s *Scheduler) moduleDepsHashes(af types.AnalysedFile, moduleOwner map[string]string, path string) map[string]types.FileHash {
	fortran, ok := af.(*types.AnalysedFortran)
	if !ok {
		return nil
	}
	hashes := make(map[string]types.FileHash)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for module := range fortran.ModuleDeps {
		owner, defined := moduleOwner[module]
		if !defined || owner == path {
			continue
		}
		if h, present := s.moduleHashes[module]; present {
			hashes[module] = h
		}
	}
	return hashes
}

// recordModuleHashes hashes each module artefact the finished compile
// produced (whether freshly built or reused from the cache) and
// publishes it for dependents' fingerprints. Dependents are only
// scheduled after this file's event drains, so their reads are always
// ordered after these writes.
func (s *Scheduler) recordModuleHashes(result *cache.Result) error {
	for module, modPath := range result.ModulePaths {
		h, err := hasher.HashFile(modPath)
		if err != nil {
			return fabErrors.NewCacheCorruption(modPath, err)
		}
		s.mu.Lock()
		s.moduleHashes[module] = h
		s.mu.Unlock()
	}
	return nil
}

// invokeCompiler performs the actual cache-miss compile: object and
// module output land in a scratch directory, then move into the cache
// under the computed fingerprint.
func (s *Scheduler) invokeCompiler(ctx context.Context, compiler Compiler, path, basename, fingerprint string, flags []string, definedModules []string) (*cache.Result, error) {
	scratch, err := os.MkdirTemp(s.opts.WorkDir, "compile-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratch)

	objPath := filepath.Join(scratch, basename+".o")
	addFlags := substituteMacro(flags, "$output", objPath)
	if len(definedModules) > 0 && s.opts.FortranModuleFlag != "" {
		addFlags = append(addFlags, s.opts.FortranModuleFlag, scratch)
	}

	cctx := ctx
	if s.opts.CompileTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, s.opts.CompileTimeout)
		defer cancel()
	}

	debug.LogSchedule("compiling %s (fingerprint %s)", path, fingerprint)
	if err := compiler.Compile(cctx, path, objPath, addFlags); err != nil {
		return nil, fabErrors.NewCompileError(path, compiler.Name(), addFlags, err)
	}

	objContent, err := os.ReadFile(objPath)
	if err != nil {
		return nil, fabErrors.NewCompileError(path, compiler.Name(), addFlags, fmt.Errorf("compiler produced no object file: %w", err))
	}

	modules := make(map[string][]byte, len(definedModules))
	for _, module := range definedModules {
		data, err := os.ReadFile(filepath.Join(scratch, module+".mod"))
		if err != nil {
			return nil, fabErrors.NewCompileError(path, compiler.Name(), addFlags, fmt.Errorf("compiler produced no module file for %s: %w", module, err))
		}
		modules[module] = data
	}

	return s.opts.Cache.Store(basename, fingerprint, objContent, modules)
}

// substituteMacro replaces macro with value in every flag, including
// flags where the macro is embedded ("-o$output").
func substituteMacro(flags []string, macro, value string) []string {
	out := make([]string, len(flags))
	for i, flag := range flags {
		out[i] = strings.ReplaceAll(flag, macro, value)
	}
	return out
}
