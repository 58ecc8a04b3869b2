package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	"github.com/standardbeagle/fab/internal/tools"
)

// Load reads and parses a `.fab.kdl` file at path into a Config. Missing
// optional sections fall back to Default()'s zero-work values; the
// caller is expected to run Validator.Validate afterwards.
//
// Example:
//
//	project {
//	    label "um_atmos"
//	}
//	workspace "/scratch/fab-workspace"
//	root_symbol "um_main"
//	multiprocessing true
//	parallelism 8
//	tool "FORTRAN_COMPILER" {
//	    name "gfortran"
//	    exec "gfortran"
//	    module_flag "-J"
//	}
//	common_flags "FORTRAN_COMPILER" "-O2" "-fopenmp"
//	flag_override "**/*_mpi.f90" "-DUSE_MPI"
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	doc, err := kdl.Parse(strings.NewReader(string(content)))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg := Default()
	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				if nodeName(cn) == "label" {
					if s, ok := firstStringArg(cn); ok {
						cfg.ProjectLabel = s
					}
				}
			}
		case "workspace":
			if s, ok := firstStringArg(n); ok {
				cfg.WorkspaceRoot = expandEnv(s)
			}
		case "root_symbol":
			if s, ok := firstStringArg(n); ok {
				cfg.RootSymbols = append(cfg.RootSymbols, s)
			}
		case "unreferenced_dep":
			if s, ok := firstStringArg(n); ok {
				cfg.UnreferencedDeps = append(cfg.UnreferencedDeps, s)
			}
		case "multiprocessing":
			if b, ok := firstBoolArg(n); ok {
				cfg.Multiprocessing = b
			}
		case "parallelism":
			if v, ok := firstIntArg(n); ok {
				cfg.Parallelism = v
			}
		case "compile_timeout_seconds":
			if v, ok := firstIntArg(n); ok {
				cfg.CompileTimeoutSeconds = v
			}
		case "tool":
			parseToolNode(n, cfg)
		case "common_flags":
			args := collectStringArgs(n)
			if len(args) < 1 {
				continue
			}
			cat := tools.Category(args[0])
			cfg.CommonFlags[cat] = append(cfg.CommonFlags[cat], args[1:]...)
		case "flag_override":
			args := collectStringArgs(n)
			if len(args) < 1 {
				continue
			}
			cfg.FlagOverrides = append(cfg.FlagOverrides, FlagOverride{Pattern: args[0], Flags: args[1:]})
		}
	}

	if cfg.WorkspaceRoot != "" && !filepath.IsAbs(cfg.WorkspaceRoot) {
		if abs, err := filepath.Abs(cfg.WorkspaceRoot); err == nil {
			cfg.WorkspaceRoot = abs
		}
	}
	return cfg, nil
}

func parseToolNode(n *document.Node, cfg *Config) {
	args := collectStringArgs(n)
	if len(args) == 0 {
		return
	}
	cat := tools.Category(args[0])
	spec := ToolSpec{VersionArgs: []string{"--version"}}
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "name":
			if s, ok := firstStringArg(cn); ok {
				spec.Name = s
			}
		case "exec":
			if s, ok := firstStringArg(cn); ok {
				spec.ExecName = s
			}
		case "module_flag":
			if s, ok := firstStringArg(cn); ok {
				spec.ModuleFlag = s
			}
		}
	}
	if spec.Name == "" {
		spec.Name = spec.ExecName
	}
	cfg.Tools[cat] = spec
}

func expandEnv(s string) string { return os.ExpandEnv(s) }

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	s, ok := n.Arguments[0].Value.(string)
	return s, ok
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	b, ok := n.Arguments[0].Value.(bool)
	return b, ok
}

// collectStringArgs returns every string-valued positional argument on
// n, in order.
func collectStringArgs(n *document.Node) []string {
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
