package tools

import "context"

// Compiler compiles one preprocessed source file into one object file,
// optionally emitting a module interface file alongside it (Fortran
// `.mod` files land wherever -J/-module points, handled by addFlags).
type Compiler struct {
	BaseTool
	ModuleFlag string // e.g. "-J" for gfortran, "" for C compilers
}

// NewCompiler wraps execName (e.g. "gfortran", "gcc") under category,
// which must be CCompiler or FortranCompiler.
func NewCompiler(name, execName string, category Category, moduleFlag string) *Compiler {
	return &Compiler{
		BaseTool:   NewBaseTool(name, execName, category, []string{"--version"}),
		ModuleFlag: moduleFlag,
	}
}

// Compile runs the compiler against inputPath with -c, writing objectPath,
// with addFlags appended after the tool's persistent flags.
func (c *Compiler) Compile(ctx context.Context, inputPath, objectPath string, addFlags []string) error {
	args := make([]string, 0, len(addFlags)+4)
	args = append(args, "-c", inputPath, "-o", objectPath)
	args = append(args, addFlags...)
	_, err := c.Run(ctx, args)
	return err
}
