package pipeline

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/standardbeagle/fab/internal/cache"
	"github.com/standardbeagle/fab/internal/config"
	"github.com/standardbeagle/fab/internal/debug"
	"github.com/standardbeagle/fab/internal/scheduler"
	"github.com/standardbeagle/fab/internal/tools"
	"github.com/standardbeagle/fab/internal/types"
)

// Compile drives the build scheduler over every extracted build tree,
// publishing the per-root object lists under KeyObjectFiles. One compile
// cache instance is shared across all roots in the run, so a file common
// to several trees compiles at most once.
type Compile struct{}

func (s *Compile) Name() string { return "compile" }

func (s *Compile) Run(ctx context.Context, rt *Runtime) error {
	trees, err := Get[map[string]types.BuildTree](rt.Store, KeyBuildTrees)
	if err != nil {
		return err
	}

	compileCache, err := cache.NewCompileCache(filepath.Join(rt.Config.PrebuildDir(), "compile"))
	if err != nil {
		return err
	}

	fortranTool, cTool, moduleFlag := compilersFrom(rt)

	workers := rt.Config.EffectiveParallelism()
	if !rt.Config.Multiprocessing {
		workers = 1
	}
	opts := scheduler.Options{
		FortranCompiler:   fortranTool,
		CCompiler:         cTool,
		FortranModuleFlag: moduleFlag,
		Resolver:          config.NewFlagsResolver(rt.Config),
		Cache:             compileCache,
		WorkDir:           rt.Config.BuildOutputDir(),
		Workers:           workers,
		CompileTimeout:    time.Duration(rt.Config.CompileTimeoutSeconds) * time.Second,
	}

	roots := make([]string, 0, len(trees))
	for root := range trees {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	objects := make(map[string][]string, len(trees))
	for _, root := range roots {
		sched := scheduler.New(opts)
		compiled, err := sched.Build(ctx, trees[root])
		if err != nil {
			return err
		}
		paths := make([]string, 0, len(compiled))
		for _, cf := range compiled {
			paths = append(paths, cf.OutputFPath)
		}
		sort.Strings(paths)
		objects[root] = paths
		debug.LogSchedule("root %s: %d objects", root, len(paths))
	}

	rt.Store.Set(KeyObjectFiles, objects)
	return nil
}

// compilersFrom pulls the configured compiler tools out of the tool box.
// A missing category is only an error once a tree actually needs it, so
// both lookups are soft here; the scheduler raises ToolUnavailable at
// the first file that has no compiler.
func compilersFrom(rt *Runtime) (fortran, c scheduler.Compiler, moduleFlag string) {
	if tool, terr := rt.ToolBox.GetTool(tools.CatFortranCompiler); terr == nil {
		if compiler, ok := tool.(*tools.Compiler); ok {
			fortran = compiler
			moduleFlag = compiler.ModuleFlag
		}
	}
	if tool, terr := rt.ToolBox.GetTool(tools.CatCCompiler); terr == nil {
		if compiler, ok := tool.(*tools.Compiler); ok {
			c = compiler
		}
	}
	return fortran, c, moduleFlag
}
