package tools

import "context"

// Archiver wraps `ar`, bundling object files produced for one module
// into a static archive consumable by the Linker.
type Archiver struct {
	BaseTool
}

// NewArchiver wraps execName (conventionally "ar") under category AR.
func NewArchiver(name, execName string) *Archiver {
	return &Archiver{BaseTool: NewBaseTool(name, execName, CatArchiver, []string{"--version"})}
}

// Create builds outputPath containing members, equivalent to `ar cr
// outputPath members...`.
func (a *Archiver) Create(ctx context.Context, outputPath string, members []string) error {
	args := make([]string, 0, len(members)+2)
	args = append(args, "cr", outputPath)
	args = append(args, members...)
	_, err := a.Run(ctx, args)
	return err
}
