package tools

import (
	"fmt"
	"sync"

	"github.com/standardbeagle/fab/internal/debug"
	fabErrors "github.com/standardbeagle/fab/internal/errors"
)

// ToolBox holds at most one Tool per Category for a build run. It is the
// single point the scheduler, analysers and pipeline driver go through
// to find "the Fortran compiler" or "the archiver" without knowing which
// concrete executable backs it.
type ToolBox struct {
	mu      sync.Mutex
	tools   map[Category]Tool
}

// NewToolBox returns an empty ToolBox.
func NewToolBox() *ToolBox {
	return &ToolBox{tools: make(map[Category]Tool)}
}

// AddTool registers tool for its category. If silentReplace is false and
// a tool already occupies that category, the previous tool is logged as
// replaced rather than silently dropped.
func (tb *ToolBox) AddTool(tool Tool, silentReplace bool) error {
	if !tool.IsAvailable() {
		return fabErrors.NewToolUnavailable(string(tool.Category()), tool.Name(), fmt.Errorf("version probe failed"))
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	if existing, ok := tb.tools[tool.Category()]; ok && !silentReplace {
		debug.LogTool("replacing tool %q with %q for category %s", existing.Name(), tool.Name(), tool.Category())
	}
	tb.tools[tool.Category()] = tool
	return nil
}

// GetTool returns the tool registered for category, or an error if none
// was registered. Every category a build will actually use must be
// configured explicitly in .fab.kdl; there is no implicit default
// compiler to silently select.
func (tb *ToolBox) GetTool(category Category) (Tool, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tool, ok := tb.tools[category]
	if !ok {
		return nil, fabErrors.NewToolUnavailable(string(category), "", fmt.Errorf("no tool configured for category %s", category))
	}
	return tool, nil
}

// MustGetTool is GetTool for call sites that have already validated
// configuration completeness and want a panic on an internal bug rather
// than propagating an error that should be impossible.
func (tb *ToolBox) MustGetTool(category Category) Tool {
	tool, err := tb.GetTool(category)
	if err != nil {
		panic(err)
	}
	return tool
}
