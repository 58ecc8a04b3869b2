// Package analysis implements the Fortran and C analysers: each turns
// one preprocessed compilation unit into an
// AnalysedFile recording what it defines and what it depends on.
package analysis

import (
	"regexp"
	"strings"

	"github.com/standardbeagle/fab/internal/debug"
	"github.com/standardbeagle/fab/internal/types"
)

// FortranAnalyser extracts module/program/subroutine definitions and
// use/call/DEPENDS-ON dependencies from a preprocessed Fortran unit.
// Tree-sitter has no Fortran grammar, so unlike the C analyser this is a
// hand-rolled line scanner. Every construct it needs (unit headers, use,
// call, comment directives) is line-oriented, which keeps a purpose-built
// scanner simpler and more predictable than a general AST.
type FortranAnalyser struct{}

// NewFortranAnalyser returns a FortranAnalyser. It carries no state; a
// single instance may be shared across concurrent analysis workers.
func NewFortranAnalyser() *FortranAnalyser { return &FortranAnalyser{} }

var (
	reModule     = regexp.MustCompile(`(?i)^\s*module\s+([a-z_][a-z0-9_]*)\s*$`)
	reEndModule  = regexp.MustCompile(`(?i)^\s*end\s*module\b`)
	reSubmodule  = regexp.MustCompile(`(?i)^\s*submodule\b`)
	reProgram    = regexp.MustCompile(`(?i)^\s*program\s+([a-z_][a-z0-9_]*)`)
	reEndProgram = regexp.MustCompile(`(?i)^\s*end\s*program\b`)
	reProcDef    = regexp.MustCompile(`(?i)^\s*(?:recursive\s+)?(?:pure\s+)?(?:elemental\s+)?(?:[a-z0-9_()* ]+\s+)?(subroutine|function)\s+([a-z_][a-z0-9_]*)`)
	reEndProc    = regexp.MustCompile(`(?i)^\s*end\s*(?:subroutine|function)\b`)
	reInterface  = regexp.MustCompile(`(?i)^\s*interface\b`)
	reEndIface   = regexp.MustCompile(`(?i)^\s*end\s*interface\b`)
	reContains   = regexp.MustCompile(`(?i)^\s*contains\s*$`)
	reUse        = regexp.MustCompile(`(?i)^\s*use\s*(?:,\s*\w+\s*(?:::)?\s*)?(?:::\s*)?([a-z_][a-z0-9_]*)`)
	reCall       = regexp.MustCompile(`(?i)\bcall\s+([a-z_][a-z0-9_]*)`)
	reDependsOn  = regexp.MustCompile(`(?i)^\s*!\s*DEPENDS\s+ON\s*:\s*(\S+)\s*$`)
	reBlankOrCmt = regexp.MustCompile(`^\s*(!.*)?$`)
)

// Analyse scans content (already preprocessed) and produces an
// AnalysedFortran, or an EmptySourceFile when the unit has no meaningful
// content (only blank lines and comments after preprocessing).
func (a *FortranAnalyser) Analyse(fpath string, content []byte, hash types.FileHash) (types.AnalysedFile, error) {
	lines := strings.Split(string(content), "\n")

	meaningful := false
	for _, line := range lines {
		if !reBlankOrCmt.MatchString(line) {
			meaningful = true
			break
		}
	}
	if !meaningful {
		return &types.EmptySourceFile{FPath: fpath}, nil
	}

	af := types.NewAnalysedFortran(fpath, hash)

	ifaceDepth := 0
	inSubmodule := false

	for _, raw := range lines {
		line := joinedContinuation(raw)

		if reInterface.MatchString(line) {
			ifaceDepth++
			continue
		}
		if reEndIface.MatchString(line) {
			if ifaceDepth > 0 {
				ifaceDepth--
			}
			continue
		}
		if reSubmodule.MatchString(line) {
			inSubmodule = true
			continue
		}
		if reContains.MatchString(line) {
			continue
		}

		if m := reDependsOn.FindStringSubmatch(line); m != nil {
			target := m[1]
			if strings.HasSuffix(strings.ToLower(target), ".o") {
				base := strings.TrimSuffix(target, target[len(target)-2:])
				af.AddCommentedFileDep(strings.ToLower(base) + ".c")
			} else {
				af.AddSymbolDep(strings.ToLower(target))
			}
			continue
		}

		if reEndModule.MatchString(line) || reEndProgram.MatchString(line) || reEndProc.MatchString(line) {
			continue
		}

		// Definitions are only ever top-level (module/program headers,
		// and subroutine/function headers outside an interface block).
		if ifaceDepth == 0 && !inSubmodule {
			if m := reModule.FindStringSubmatch(line); m != nil {
				af.AddModuleDef(strings.ToLower(m[1]))
				continue
			}
			if m := reProgram.FindStringSubmatch(line); m != nil {
				af.AddSymbolDef(strings.ToLower(m[1]))
				continue
			}
			if m := reProcDef.FindStringSubmatch(line); m != nil {
				af.AddSymbolDef(strings.ToLower(m[2]))
				continue
			}
		}

		if m := reUse.FindStringSubmatch(line); m != nil {
			af.AddModuleDep(strings.ToLower(m[1]))
			continue
		}

		for _, m := range reCall.FindAllStringSubmatch(line, -1) {
			name := strings.ToLower(m[1])
			if !af.SymDefs.Contains(name) {
				af.AddSymbolDep(name)
			}
		}
	}

	debug.LogAnalysis("fortran %s: %d module_defs, %d symbol_defs, %d symbol_deps",
		fpath, len(af.ModuleDefs), len(af.SymDefs), len(af.SymDeps))

	return af, nil
}

// joinedContinuation strips a trailing free-form continuation marker
// ("&") so a single logical statement split across display lines is
// still matched by the single-line regexes above. The pipeline always
// feeds one physical line at a time, so continuations are handled by
// simply dropping the marker rather than re-joining multi-line buffers —
// none of the constructs this analyser recognises (module/program/
// subroutine/function headers, use, call, DEPENDS ON) are split across a
// continuation in practice.
func joinedContinuation(line string) string {
	trimmed := strings.TrimRight(line, " \t\r")
	return strings.TrimSuffix(trimmed, "&")
}
