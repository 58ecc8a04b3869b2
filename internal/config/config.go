// Package config loads and validates a build's declarative configuration
// (workspace paths, tool box, per-path flag overrides, multiprocessing)
// from a `.fab.kdl` file (github.com/sblinch/kdl-go).
package config

import (
	"path/filepath"
	"runtime"

	"github.com/standardbeagle/fab/internal/tools"
)

// ToolSpec names the concrete executable backing one tool-box category.
type ToolSpec struct {
	Name        string
	ExecName    string
	ModuleFlag  string // Fortran compilers only: -J/-module equivalent
	VersionArgs []string
}

// FlagOverride appends Flags to the common flag set for every source
// path matching Pattern, a doublestar glob (e.g. "**/*.f90").
type FlagOverride struct {
	Pattern string
	Flags   []string
}

// Config is the fully resolved build configuration, constructed once by
// the driver and passed by reference to every stage; there is no global
// mutable configuration.
type Config struct {
	ProjectLabel string
	WorkspaceRoot string // $FAB_WORKSPACE
	RootSymbols   []string
	UnreferencedDeps []string

	Multiprocessing bool
	Parallelism     int // 0 = default (hardware parallelism - 1)
	CompileTimeoutSeconds int

	Tools map[tools.Category]ToolSpec

	CommonFlags   map[tools.Category][]string
	FlagOverrides []FlagOverride
}

// ProjectDir is $FAB_WORKSPACE/<project_label>.
func (c *Config) ProjectDir() string {
	return filepath.Join(c.WorkspaceRoot, c.ProjectLabel)
}

// SourceDir is the grabbed/preprocessed source tree.
func (c *Config) SourceDir() string { return filepath.Join(c.ProjectDir(), "source") }

// BuildOutputDir holds preprocessed, pragma-injected sources and object
// output.
func (c *Config) BuildOutputDir() string { return filepath.Join(c.ProjectDir(), "build_output") }

// PrebuildDir holds the Analysis and Compile caches.
func (c *Config) PrebuildDir() string { return filepath.Join(c.ProjectDir(), "_prebuild") }

// MetricsDir holds per-stage timing JSON documents.
func (c *Config) MetricsDir() string { return filepath.Join(c.ProjectDir(), "metrics") }

// EffectiveParallelism resolves the configured worker-pool size: an
// explicit positive value, or hardware parallelism minus one (minimum 1).
func (c *Config) EffectiveParallelism() int {
	if c.Parallelism > 0 {
		return c.Parallelism
	}
	if n := runtime.NumCPU() - 1; n > 0 {
		return n
	}
	return 1
}

// Default returns a Config with every field at its zero-work default;
// callers normally load one from a .fab.kdl file instead.
func Default() *Config {
	return &Config{
		ProjectLabel: "project",
		Tools:        make(map[tools.Category]ToolSpec),
		CommonFlags:  make(map[tools.Category][]string),
	}
}
