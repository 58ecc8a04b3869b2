// Package errors defines the typed error taxonomy raised by every
// pipeline stage. Each type carries the context a CLI user needs to
// act on it (which file, which flag, which tool) and unwraps to its
// underlying cause for errors.Is/As.
package errors

import (
	"fmt"
	"time"
)

// ErrorType tags an error by the stage that raised it.
type ErrorType string

const (
	ErrorTypeConfig          ErrorType = "config"
	ErrorTypeAnalysis        ErrorType = "analysis"
	ErrorTypeUnresolvedSymbol ErrorType = "unresolved_symbol"
	ErrorTypeCompile         ErrorType = "compile"
	ErrorTypeToolUnavailable ErrorType = "tool_unavailable"
	ErrorTypeCacheCorruption ErrorType = "cache_corruption"
)

// ConfigError reports a malformed or missing .fab.kdl setting.
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{Field: field, Value: value, Underlying: err, Timestamp: time.Now()}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %q): %v", e.Field, e.Value, e.Underlying)
}

func (e *ConfigError) Unwrap() error { return e.Underlying }

// AnalysisError reports a Fortran or C analyser failure on one file.
// It is fatal to the file it names but never aborts the rest of the run.
type AnalysisError struct {
	FilePath   string
	Line       int
	Underlying error
	Timestamp  time.Time
}

func NewAnalysisError(path string, line int, err error) *AnalysisError {
	return &AnalysisError{FilePath: path, Line: line, Underlying: err, Timestamp: time.Now()}
}

func (e *AnalysisError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("analysis error in %s:%d: %v", e.FilePath, e.Line, e.Underlying)
	}
	return fmt.Sprintf("analysis error in %s: %v", e.FilePath, e.Underlying)
}

func (e *AnalysisError) Unwrap() error { return e.Underlying }

// UnresolvedSymbolWarning reports a symbol dependency that no analysed
// file defines. It is a warning, not a build failure: the tree extractor
// records it and continues, optionally attaching a fuzzy-matched
// suggestion for the nearest known symbol name.
type UnresolvedSymbolWarning struct {
	Symbol      string
	RequiredBy  string
	Suggestion  string
	Timestamp   time.Time
}

func NewUnresolvedSymbolWarning(symbol, requiredBy string) *UnresolvedSymbolWarning {
	return &UnresolvedSymbolWarning{Symbol: symbol, RequiredBy: requiredBy, Timestamp: time.Now()}
}

// WithSuggestion attaches a "did you mean" candidate symbol name.
func (e *UnresolvedSymbolWarning) WithSuggestion(name string) *UnresolvedSymbolWarning {
	e.Suggestion = name
	return e
}

func (e *UnresolvedSymbolWarning) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unresolved symbol %q required by %s (did you mean %q?)", e.Symbol, e.RequiredBy, e.Suggestion)
	}
	return fmt.Sprintf("unresolved symbol %q required by %s", e.Symbol, e.RequiredBy)
}

// CompileError reports a non-zero exit from a compiler/preprocessor
// invocation on one source file.
type CompileError struct {
	FilePath   string
	ToolName   string
	Args       []string
	Underlying error
	Timestamp  time.Time
}

func NewCompileError(path, tool string, args []string, err error) *CompileError {
	return &CompileError{FilePath: path, ToolName: tool, Args: args, Underlying: err, Timestamp: time.Now()}
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s failed compiling %s: %v", e.ToolName, e.FilePath, e.Underlying)
}

func (e *CompileError) Unwrap() error { return e.Underlying }

// ToolUnavailable reports that a required tool category has no
// available implementation on this machine (version check failed,
// binary missing from PATH).
type ToolUnavailable struct {
	Category   string
	ToolName   string
	Underlying error
	Timestamp  time.Time
}

func NewToolUnavailable(category, toolName string, err error) *ToolUnavailable {
	return &ToolUnavailable{Category: category, ToolName: toolName, Underlying: err, Timestamp: time.Now()}
}

func (e *ToolUnavailable) Error() string {
	return fmt.Sprintf("tool %s (category %s) unavailable: %v", e.ToolName, e.Category, e.Underlying)
}

func (e *ToolUnavailable) Unwrap() error { return e.Underlying }

// CacheCorruption reports an analysis or compile cache record that
// failed to decode. The caller should treat the entry as a miss and
// may delete the offending file; it must never fail the build.
type CacheCorruption struct {
	CachePath  string
	Underlying error
	Timestamp  time.Time
}

func NewCacheCorruption(path string, err error) *CacheCorruption {
	return &CacheCorruption{CachePath: path, Underlying: err, Timestamp: time.Now()}
}

func (e *CacheCorruption) Error() string {
	return fmt.Sprintf("corrupt cache entry at %s: %v", e.CachePath, e.Underlying)
}

func (e *CacheCorruption) Unwrap() error { return e.Underlying }

// MultiError aggregates independent failures from a fanned-out stage
// (e.g. several files failing analysis in the same pass) into one error
// value without losing any of them.
type MultiError struct {
	Errors []error
}

// NewMultiError builds a MultiError, dropping any nil entries.
func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

func (e *MultiError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	default:
		return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
	}
}

// Unwrap exposes the aggregated errors for errors.Is/As (Go 1.20+
// multi-error unwrapping).
func (e *MultiError) Unwrap() []error { return e.Errors }

// HasErrors reports whether the aggregate is non-empty.
func (e *MultiError) HasErrors() bool { return len(e.Errors) > 0 }
