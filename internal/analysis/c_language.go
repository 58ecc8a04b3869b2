package analysis

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
)

// cLanguage constructs the tree-sitter Language for C translation
// units. The C++ grammar is a strict syntactic superset for the
// constructs the C analyser queries (function definitions, declarations,
// preproc directives), so it stands in for a dedicated C grammar.
func cLanguage() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_cpp.Language())
}

const cQuery = `
(translation_unit (function_definition) @function)
(translation_unit (declaration) @decl)
`
