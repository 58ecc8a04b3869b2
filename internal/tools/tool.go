package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/standardbeagle/fab/internal/debug"
	fabErrors "github.com/standardbeagle/fab/internal/errors"
)

// Tool is anything the pipeline can invoke as a subprocess: a compiler,
// preprocessor, linker or archiver. Capability is expressed through this
// interface rather than a class hierarchy; the ToolBox holds a
// Category → Tool map of them.
type Tool interface {
	Name() string
	ExecName() string
	Category() Category
	IsAvailable() bool
	Run(ctx context.Context, args []string) (stdout string, err error)
}

// BaseTool implements the common run/availability machinery shared by
// every concrete tool. Embed it and add behavior-specific methods
// (Preprocess, Compile, Create) the way Preprocessor/Compiler/Archiver do.
type BaseTool struct {
	name        string
	execName    string
	category    Category
	flags       []string
	available   *bool
	versionArgs []string
}

// NewBaseTool constructs a BaseTool. versionArgs is the flag combination
// used by IsAvailable to probe the executable (usually {"--version"}).
func NewBaseTool(name, execName string, category Category, versionArgs []string) BaseTool {
	if versionArgs == nil {
		versionArgs = []string{"--version"}
	}
	return BaseTool{name: name, execName: execName, category: category, versionArgs: versionArgs}
}

func (t *BaseTool) Name() string        { return t.name }
func (t *BaseTool) ExecName() string    { return t.execName }
func (t *BaseTool) Category() Category  { return t.category }

// WithFlags returns a copy of the tool with persistent flags prepended
// to every invocation (used for e.g. a fixed include path).
func (t BaseTool) WithFlags(flags []string) BaseTool {
	t.flags = flags
	return t
}

// IsAvailable probes the executable with versionArgs. The result is
// cached; a tool that was available at startup is assumed to remain so
// for the life of the run.
func (t *BaseTool) IsAvailable() bool {
	if t.available != nil {
		return *t.available
	}
	_, err := t.run(context.Background(), t.versionArgs)
	ok := err == nil
	t.available = &ok
	return ok
}

// Run executes the tool with the base flags followed by args.
func (t *BaseTool) Run(ctx context.Context, args []string) (string, error) {
	full := make([]string, 0, len(t.flags)+len(args))
	full = append(full, t.flags...)
	full = append(full, args...)
	return t.run(ctx, full)
}

func (t *BaseTool) run(ctx context.Context, args []string) (string, error) {
	debug.LogTool("%s %v", t.execName, args)
	cmd := exec.CommandContext(ctx, t.execName, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := fmt.Sprintf("command failed: %s %v: %v", t.execName, args, err)
		if stderr.Len() > 0 {
			msg += "\n" + stderr.String()
		}
		return "", fabErrors.NewCompileError("", t.execName, args, fmt.Errorf("%s", msg))
	}
	return stdout.String(), nil
}
