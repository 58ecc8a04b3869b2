// Command fab drives an incremental Fortran/C build: it loads a
// .fab.kdl config, assembles a tool box, and runs the core pipeline
// (find sources, preprocess, analyse, extract build trees, compile,
// archive, link) against a shared artefact store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/fab/internal/cache"
	"github.com/standardbeagle/fab/internal/config"
	"github.com/standardbeagle/fab/internal/debug"
	fabErrors "github.com/standardbeagle/fab/internal/errors"
	"github.com/standardbeagle/fab/internal/pipeline"
	"github.com/standardbeagle/fab/internal/tools"
	"github.com/standardbeagle/fab/internal/version"
)

// Exit codes: 0 success, 1 compile/analysis error, 2 configuration error.
const (
	exitOK     = 0
	exitBuild  = 1
	exitConfig = 2
)

func main() {
	app := &cli.App{
		Name:    "fab",
		Usage:   "Incremental build engine for Fortran/C scientific codebases",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				Value:   ".fab.kdl",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Write a debug log under the workspace metrics directory",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Run the full pipeline for every configured root symbol",
				Action: runBuild,
			},
			{
				Name:  "clean",
				Usage: "Evict prebuild cache entries",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Delete entries last touched more than this long ago (e.g. 720h)",
					},
					&cli.IntFlag{
						Name:  "keep",
						Usage: "Keep only the N most recent entries per basename",
					},
				},
				Action: runClean,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "fab:", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps the error taxonomy onto the CLI exit codes.
func exitCodeFor(err error) int {
	var configErr *fabErrors.ConfigError
	if errors.As(err, &configErr) {
		return exitConfig
	}
	var toolErr *fabErrors.ToolUnavailable
	if errors.As(err, &toolErr) {
		return exitConfig
	}
	return exitBuild
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fabErrors.NewConfigError("config", c.String("config"), err)
	}
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = os.Getenv("FAB_WORKSPACE")
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildToolBox registers one Tool per configured category. Registration
// probes availability, so a misconfigured compiler fails here, before
// any work starts.
func buildToolBox(cfg *config.Config) (*tools.ToolBox, error) {
	tb := tools.NewToolBox()
	for category, spec := range cfg.Tools {
		var tool tools.Tool
		switch {
		case category.IsCompiler():
			tool = tools.NewCompiler(spec.Name, spec.ExecName, category, spec.ModuleFlag)
		case category == tools.CatCPreprocessor || category == tools.CatFortranPreprocessor:
			tool = tools.NewPreprocessor(spec.Name, spec.ExecName, category)
		case category == tools.CatLinker:
			tool = tools.NewLinker(spec.Name, spec.ExecName)
		case category == tools.CatArchiver:
			tool = tools.NewArchiver(spec.Name, spec.ExecName)
		default:
			tool = tools.NewCollaboratorTool(spec.Name, spec.ExecName, category)
		}
		if err := tb.AddTool(tool, false); err != nil {
			return nil, err
		}
	}
	return tb, nil
}

func runBuild(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	if c.Bool("debug") {
		if path, err := debug.InitDebugLogFile(cfg.MetricsDir()); err == nil {
			debug.EnableDebug = "true"
			defer debug.CloseDebugLog()
			fmt.Println("debug log:", path)
		}
	}

	tb, err := buildToolBox(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt := &pipeline.Runtime{Config: cfg, Store: pipeline.NewStore(), ToolBox: tb}
	driver := pipeline.NewDriver(
		&pipeline.FindSourceFiles{},
		&pipeline.CPragmaInjector{},
		&pipeline.Preprocess{},
		&pipeline.Analyse{},
		&pipeline.ExtractBuildTrees{},
		&pipeline.Compile{},
		&pipeline.ArchiveObjects{},
		&pipeline.LinkExecutables{},
	)
	if err := driver.Run(ctx, rt); err != nil {
		return err
	}

	executables, err := pipeline.Get[[]string](rt.Store, pipeline.KeyExecutables)
	if err != nil {
		return err
	}
	if len(executables) == 0 {
		objects, err := pipeline.Get[map[string][]string](rt.Store, pipeline.KeyObjectFiles)
		if err != nil {
			return err
		}
		for root, objs := range objects {
			fmt.Printf("compiled %d objects for %s (no linker configured)\n", len(objs), root)
		}
		return nil
	}
	for _, exe := range executables {
		fmt.Println("built", exe)
	}
	return nil
}

func runClean(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	olderThan := c.Duration("older-than")
	keep := c.Int("keep")
	if (olderThan > 0) == (keep > 0) {
		return fabErrors.NewConfigError("clean", "", fmt.Errorf("exactly one of --older-than or --keep must be given"))
	}

	var removed int
	if olderThan > 0 {
		removed, err = cache.EvictOlderThan(cfg.PrebuildDir(), olderThan)
	} else {
		removed, err = cache.EvictKeepNewest(cfg.PrebuildDir(), keep)
	}
	if err != nil {
		return err
	}
	fmt.Printf("removed %d cache entries\n", removed)
	return nil
}
