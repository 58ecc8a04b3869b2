package config

import (
	"fmt"
	"path/filepath"

	fabErrors "github.com/standardbeagle/fab/internal/errors"
)

// Validator checks a Config for the conditions that are fatal before
// any work starts: a missing root symbol, or a bad workspace
// root.
type Validator struct{}

// NewValidator returns a Validator. It carries no state.
func NewValidator() *Validator { return &Validator{} }

// Validate returns a ConfigError for the first problem found, or nil.
func (v *Validator) Validate(cfg *Config) error {
	if cfg.WorkspaceRoot == "" {
		return fabErrors.NewConfigError("workspace_root", "", fmt.Errorf("workspace root must be set (did you set $FAB_WORKSPACE?)"))
	}
	if !filepath.IsAbs(cfg.WorkspaceRoot) {
		return fabErrors.NewConfigError("workspace_root", cfg.WorkspaceRoot, fmt.Errorf("workspace root must be an absolute path"))
	}
	if cfg.ProjectLabel == "" {
		return fabErrors.NewConfigError("project_label", "", fmt.Errorf("project label must be set"))
	}
	if len(cfg.RootSymbols) == 0 {
		return fabErrors.NewConfigError("root_symbols", "", fmt.Errorf("at least one root symbol is required to build a target"))
	}
	if cfg.CompileTimeoutSeconds < 0 {
		return fabErrors.NewConfigError("compile_timeout_seconds", fmt.Sprintf("%d", cfg.CompileTimeoutSeconds), fmt.Errorf("must not be negative"))
	}
	return nil
}
