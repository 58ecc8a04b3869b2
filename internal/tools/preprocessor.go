package tools

import "context"

// Preprocessor runs a C or Fortran preprocessor over one input file,
// producing one output file plus whatever macro/include flags the
// config layer resolved for it.
type Preprocessor struct {
	BaseTool
}

// NewPreprocessor wraps execName (e.g. "cpp", "fpp") under category,
// which must be CPreprocessor or FortranPreprocessor.
func NewPreprocessor(name, execName string, category Category) *Preprocessor {
	return &Preprocessor{BaseTool: NewBaseTool(name, execName, category, []string{"--version"})}
}

// Preprocess runs the preprocessor against inputPath, writing outputPath,
// with addFlags appended after the tool's persistent flags.
func (p *Preprocessor) Preprocess(ctx context.Context, inputPath, outputPath string, addFlags []string) error {
	args := make([]string, 0, len(addFlags)+2)
	args = append(args, addFlags...)
	args = append(args, inputPath, outputPath)
	_, err := p.Run(ctx, args)
	return err
}
