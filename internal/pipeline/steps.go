package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/standardbeagle/fab/internal/config"
	"github.com/standardbeagle/fab/internal/debug"
	"github.com/standardbeagle/fab/internal/tools"
)

// FindSourceFiles walks the workspace source directory and publishes
// every Fortran and C source path, sorted, under KeyAllSource.
type FindSourceFiles struct {
	// Patterns overrides the default source globs when non-empty.
	Patterns []string
}

var defaultSourcePatterns = []string{"**/*.f90", "**/*.F90", "**/*.f", "**/*.F", "**/*.c"}

func (s *FindSourceFiles) Name() string { return "find_source_files" }

func (s *FindSourceFiles) Run(ctx context.Context, rt *Runtime) error {
	patterns := s.Patterns
	if len(patterns) == 0 {
		patterns = defaultSourcePatterns
	}
	paths, err := config.MatchSources(rt.Config.SourceDir(), patterns)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no source files found under %s", rt.Config.SourceDir())
	}
	debug.Log("DRIVER", "found %d source files", len(paths))
	rt.Store.Set(KeyAllSource, paths)
	return nil
}

// Include-region pragmas injected around #include directives so the C
// analyser can tell user headers (which contribute to symbol resolution)
// from system headers (which are ignored). The C analyser matches these
// marker strings.
const (
	pragmaPrefix          = "#pragma fab "
	pragmaUsrIncludeStart = pragmaPrefix + "UsrIncludeStart"
	pragmaUsrIncludeEnd   = pragmaPrefix + "UsrIncludeEnd"
	pragmaSysIncludeStart = pragmaPrefix + "SysIncludeStart"
	pragmaSysIncludeEnd   = pragmaPrefix + "SysIncludeEnd"
)

// CPragmaInjector copies each C source into the build output directory
// with include-region pragmas bracketing every #include directive:
// quoted includes get Usr markers, angle-bracket includes get Sys
// markers. Publishes the annotated paths under KeyPragmadC.
type CPragmaInjector struct{}

func (s *CPragmaInjector) Name() string { return "c_pragma_injector" }

func (s *CPragmaInjector) Run(ctx context.Context, rt *Runtime) error {
	allSource, err := Get[[]string](rt.Store, KeyAllSource)
	if err != nil {
		return err
	}

	var pragmad []string
	for _, src := range allSource {
		if filepath.Ext(src) != ".c" {
			continue
		}
		out, err := outputPathFor(rt.Config, src, filepath.Ext(src))
		if err != nil {
			return err
		}
		if err := injectPragmas(src, out); err != nil {
			return err
		}
		pragmad = append(pragmad, out)
	}
	sort.Strings(pragmad)
	rt.Store.Set(KeyPragmadC, pragmad)
	return nil
}

func injectPragmas(src, dst string) error {
	content, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	var out strings.Builder
	for _, line := range strings.SplitAfter(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "#include \""):
			out.WriteString(pragmaUsrIncludeStart + "\n")
			out.WriteString(line)
			out.WriteString(pragmaUsrIncludeEnd + "\n")
		case strings.HasPrefix(trimmed, "#include <"):
			out.WriteString(pragmaSysIncludeStart + "\n")
			out.WriteString(line)
			out.WriteString(pragmaSysIncludeEnd + "\n")
		default:
			out.WriteString(line)
		}
	}
	return os.WriteFile(dst, []byte(out.String()), 0644)
}

// outputPathFor maps a source path into the build output directory,
// preserving its path relative to the source dir and replacing its
// extension with newExt.
func outputPathFor(cfg *config.Config, src, newExt string) (string, error) {
	rel, err := filepath.Rel(cfg.SourceDir(), src)
	if err != nil {
		return "", err
	}
	out := filepath.Join(cfg.BuildOutputDir(), strings.TrimSuffix(rel, filepath.Ext(rel))+newExt)
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return "", err
	}
	return out, nil
}

// Preprocess runs the configured Fortran preprocessor over every
// uppercase-extension Fortran source (".F90"/".F", the conventional
// marker for "needs preprocessing") and the C preprocessor over every
// pragma-annotated C file, publishing KeyPreprocessedFortran and
// KeyPreprocessedC. Lowercase Fortran sources pass through untouched.
// A category with no configured tool passes its files through as-is, so
// a project that grabs pre-preprocessed source needs no preprocessor in
// its tool box.
type Preprocess struct{}

func (s *Preprocess) Name() string { return "preprocess" }

func (s *Preprocess) Run(ctx context.Context, rt *Runtime) error {
	allSource, err := Get[[]string](rt.Store, KeyAllSource)
	if err != nil {
		return err
	}
	resolver := config.NewFlagsResolver(rt.Config)

	var fortran []string
	for _, src := range allSource {
		ext := filepath.Ext(src)
		switch ext {
		case ".F90", ".F":
			out, err := outputPathFor(rt.Config, src, strings.ToLower(ext))
			if err != nil {
				return err
			}
			if err := s.runTool(ctx, rt, resolver, tools.CatFortranPreprocessor, src, out); err != nil {
				return err
			}
			fortran = append(fortran, out)
		case ".f90", ".f":
			fortran = append(fortran, src)
		}
	}
	sort.Strings(fortran)
	rt.Store.Set(KeyPreprocessedFortran, fortran)

	pragmad, err := Get[[]string](rt.Store, KeyPragmadC)
	if err != nil {
		return err
	}
	var cOut []string
	for _, src := range pragmad {
		out := src
		if tool, err := rt.ToolBox.GetTool(tools.CatCPreprocessor); err == nil {
			out = strings.TrimSuffix(src, ".c") + ".pp.c"
			if err := preprocessOne(ctx, tool, resolver, tools.CatCPreprocessor, src, out); err != nil {
				return err
			}
		}
		cOut = append(cOut, out)
	}
	sort.Strings(cOut)
	rt.Store.Set(KeyPreprocessedC, cOut)
	return nil
}

func (s *Preprocess) runTool(ctx context.Context, rt *Runtime, resolver *config.FlagsResolver, cat tools.Category, src, out string) error {
	tool, err := rt.ToolBox.GetTool(cat)
	if err != nil {
		// Passthrough: copy bytes so downstream stages read from the
		// build output tree either way.
		content, rerr := os.ReadFile(src)
		if rerr != nil {
			return rerr
		}
		return os.WriteFile(out, content, 0644)
	}
	return preprocessOne(ctx, tool, resolver, cat, src, out)
}

func preprocessOne(ctx context.Context, tool tools.Tool, resolver *config.FlagsResolver, cat tools.Category, src, out string) error {
	flags := resolver.Flags(cat, src)
	args := make([]string, 0, len(flags)+2)
	for _, flag := range flags {
		flag = strings.ReplaceAll(flag, "$source", src)
		flag = strings.ReplaceAll(flag, "$output", out)
		args = append(args, flag)
	}
	args = append(args, src, out)
	_, err := tool.Run(ctx, args)
	return err
}
