package tools

import "context"

// Linker links a set of object files and archives into one executable.
type Linker struct {
	BaseTool
}

// NewLinker wraps execName (e.g. "gfortran" used as a link driver) under
// category LINKER.
func NewLinker(name, execName string) *Linker {
	return &Linker{BaseTool: NewBaseTool(name, execName, CatLinker, []string{"--version"})}
}

// Link produces outputPath from objectPaths and any additional libraries
// or link flags in addFlags.
func (l *Linker) Link(ctx context.Context, objectPaths []string, outputPath string, addFlags []string) error {
	args := make([]string, 0, len(objectPaths)+len(addFlags)+2)
	args = append(args, objectPaths...)
	args = append(args, "-o", outputPath)
	args = append(args, addFlags...)
	_, err := l.Run(ctx, args)
	return err
}
