package analysis

import (
	"errors"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/fab/internal/debug"
	fabErrors "github.com/standardbeagle/fab/internal/errors"
	"github.com/standardbeagle/fab/internal/types"
)

var errNilParseTree = errors.New("tree-sitter returned a nil parse tree")

// CAnalyser extracts symbol definitions and dependencies from a
// preprocessed, pragma-annotated C translation unit, backed by
// tree-sitter (go-tree-sitter + tree-sitter-cpp, see c_language.go).
// It only looks at the main file and any user-include
// regions the preprocessing stage inlined; system-include regions
// (library headers) are skipped entirely.
type CAnalyser struct {
	language *sitter.Language
}

// NewCAnalyser constructs a CAnalyser with its tree-sitter language
// loaded once, reusable across concurrent analysis workers (a
// *sitter.Parser is not safe for concurrent use, but *sitter.Language is;
// each call to Analyse creates its own parser).
func NewCAnalyser() *CAnalyser {
	return &CAnalyser{language: cLanguage()}
}

// Include-region pragma markers the preprocessor injector writes around
// inlined #include content.
const (
	pragmaUsrIncludeStart = "UsrIncludeStart"
	pragmaUsrIncludeEnd   = "UsrIncludeEnd"
	pragmaSysIncludeStart = "SysIncludeStart"
	pragmaSysIncludeEnd   = "SysIncludeEnd"
)

// Analyse parses content and returns an AnalysedC, or an EmptySourceFile
// if the translation unit has no top-level definitions or declarations
// once system-include regions are excluded.
func (c *CAnalyser) Analyse(fpath string, content []byte, hash types.FileHash) (types.AnalysedFile, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(c.language); err != nil {
		return nil, fabErrors.NewAnalysisError(fpath, 0, err)
	}

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fabErrors.NewAnalysisError(fpath, 0, errNilParseTree)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, fabErrors.NewAnalysisError(fpath, 0, errNilParseTree)
	}

	ignoredLines := systemIncludeLines(content)

	query, queryErr := sitter.NewQuery(c.language, cQuery)
	if queryErr != nil {
		return nil, fabErrors.NewAnalysisError(fpath, 0, queryErr)
	}
	defer query.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()

	ac := types.NewAnalysedC(fpath, hash)
	matches := cursor.Matches(query, root, content)
	captureNames := query.CaptureNames()

	for {
		match := matches.Next()
		if match == nil {
			break
		}
		for _, capture := range match.Captures {
			node := capture.Node
			if ignoredLines[int(node.StartPosition().Row)] {
				continue
			}
			switch captureNames[capture.Index] {
			case "function":
				handleFunctionDefinition(&node, content, ac)
			case "decl":
				handleDeclaration(&node, content, ac)
			}
		}
	}

	debug.LogAnalysis("c %s: %d symbol_defs, %d symbol_deps", fpath, len(ac.SymDefs), len(ac.SymDeps))

	if len(ac.SymDefs) == 0 && len(ac.SymDeps) == 0 {
		return &types.EmptySourceFile{FPath: fpath}, nil
	}
	return ac, nil
}

// systemIncludeLines returns the set of line numbers (0-based) that fall
// within a SysIncludeStart/SysIncludeEnd pragma pair, so matches there
// are skipped. UsrInclude-delimited regions and the main file body are
// both active by default — only system headers are excluded.
func systemIncludeLines(content []byte) map[int]bool {
	ignored := make(map[int]bool)
	inSystem := false
	for i, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.Contains(trimmed, pragmaSysIncludeStart):
			inSystem = true
		case strings.Contains(trimmed, pragmaSysIncludeEnd):
			inSystem = false
		case strings.Contains(trimmed, pragmaUsrIncludeStart), strings.Contains(trimmed, pragmaUsrIncludeEnd):
			// no-op: user-include regions stay active.
		}
		if inSystem {
			ignored[i] = true
		}
	}
	return ignored
}

// handleFunctionDefinition records a file-scope function definition.
func handleFunctionDefinition(node *sitter.Node, content []byte, ac *types.AnalysedC) {
	declarator := node.ChildByFieldName("declarator")
	name := identifierIn(declarator, content)
	if name != "" {
		ac.AddSymbolDef(name)
	}
}

// handleDeclaration classifies a top-level C declaration: a function
// prototype is a symbol dependency (it must be defined elsewhere); an
// `extern` variable declaration is also a dependency; a plain file-scope
// variable declaration is a definition.
func handleDeclaration(node *sitter.Node, content []byte, ac *types.AnalysedC) {
	declarator := node.ChildByFieldName("declarator")
	if declarator == nil {
		return
	}

	isExtern := false
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == "storage_class_specifier" {
			if string(content[child.StartByte():child.EndByte()]) == "extern" {
				isExtern = true
			}
		}
	}

	if declarator.Kind() == "function_declarator" {
		if name := identifierIn(declarator, content); name != "" {
			ac.AddSymbolDep(name)
		}
		return
	}

	name := identifierIn(declarator, content)
	if name == "" {
		return
	}
	if isExtern {
		ac.AddSymbolDep(name)
	} else {
		ac.AddSymbolDef(name)
	}
}

// identifierIn walks down a declarator chain (function/pointer/array/
// init/parenthesized declarators) to the innermost identifier.
func identifierIn(node *sitter.Node, content []byte) string {
	for node != nil {
		switch node.Kind() {
		case "identifier", "field_identifier":
			return string(content[node.StartByte():node.EndByte()])
		case "function_declarator", "pointer_declarator", "array_declarator",
			"parenthesized_declarator", "init_declarator":
			next := node.ChildByFieldName("declarator")
			if next == nil {
				return ""
			}
			node = next
		default:
			return ""
		}
	}
	return ""
}
