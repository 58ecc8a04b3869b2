package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/standardbeagle/fab/internal/config"
	"github.com/standardbeagle/fab/internal/debug"
	"github.com/standardbeagle/fab/internal/tools"
)

// ArchiveObjects bundles each root's object files into one static
// archive under the build output directory, publishing the root→archive
// map under KeyObjectArchives. Skipped entirely (with an empty map) when
// no AR tool is configured, since archiving is an optional convenience
// before linking.
type ArchiveObjects struct{}

func (s *ArchiveObjects) Name() string { return "archive_objects" }

func (s *ArchiveObjects) Run(ctx context.Context, rt *Runtime) error {
	objects, err := Get[map[string][]string](rt.Store, KeyObjectFiles)
	if err != nil {
		return err
	}

	archives := make(map[string]string)
	tool, err := rt.ToolBox.GetTool(tools.CatArchiver)
	if err != nil {
		rt.Store.Set(KeyObjectArchives, archives)
		return nil
	}
	archiver, ok := tool.(*tools.Archiver)
	if !ok {
		rt.Store.Set(KeyObjectArchives, archives)
		return nil
	}

	roots := sortedKeys(objects)
	for _, root := range roots {
		if len(objects[root]) == 0 {
			continue
		}
		out := filepath.Join(rt.Config.BuildOutputDir(), "lib"+root+".a")
		if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
			return err
		}
		if err := archiver.Create(ctx, out, objects[root]); err != nil {
			return err
		}
		archives[root] = out
		debug.LogTool("archived %d objects for %s into %s", len(objects[root]), root, out)
	}

	rt.Store.Set(KeyObjectArchives, archives)
	return nil
}

// LinkExecutables links each root's archive (or raw objects, when no
// archive was produced) into one executable named after the root symbol,
// publishing the paths under KeyExecutables. With no LINKER tool
// configured the step publishes an empty list and the run stops at
// object production.
type LinkExecutables struct{}

func (s *LinkExecutables) Name() string { return "link_executables" }

func (s *LinkExecutables) Run(ctx context.Context, rt *Runtime) error {
	objects, err := Get[map[string][]string](rt.Store, KeyObjectFiles)
	if err != nil {
		return err
	}
	archives, err := Get[map[string]string](rt.Store, KeyObjectArchives)
	if err != nil {
		return err
	}

	executables := []string{}
	tool, err := rt.ToolBox.GetTool(tools.CatLinker)
	if err != nil {
		rt.Store.Set(KeyExecutables, executables)
		return nil
	}
	linker, ok := tool.(*tools.Linker)
	if !ok {
		return fmt.Errorf("tool registered for %s is %T, not a linker", tools.CatLinker, tool)
	}

	resolver := config.NewFlagsResolver(rt.Config)

	for _, root := range sortedKeys(objects) {
		inputs := objects[root]
		if archive, ok := archives[root]; ok {
			inputs = []string{archive}
		}
		out := filepath.Join(rt.Config.BuildOutputDir(), root)
		flags := resolver.Flags(tools.CatLinker, out)
		if err := linker.Link(ctx, inputs, out, flags); err != nil {
			return err
		}
		executables = append(executables, out)
	}
	sort.Strings(executables)
	rt.Store.Set(KeyExecutables, executables)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
