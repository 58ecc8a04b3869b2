package tools

import (
	"context"
	"testing"
)

// fakeTool is a Tool stand-in that never shells out, for exercising the
// ToolBox without depending on a real compiler being on PATH.
type fakeTool struct {
	name      string
	execName  string
	category  Category
	available bool
}

func (f *fakeTool) Name() string       { return f.name }
func (f *fakeTool) ExecName() string   { return f.execName }
func (f *fakeTool) Category() Category { return f.category }
func (f *fakeTool) IsAvailable() bool  { return f.available }
func (f *fakeTool) Run(ctx context.Context, args []string) (string, error) {
	return "", nil
}

func TestToolBoxAddAndGet(t *testing.T) {
	tb := NewToolBox()
	gfortran := &fakeTool{name: "gfortran", execName: "gfortran", category: CatFortranCompiler, available: true}

	if err := tb.AddTool(gfortran, false); err != nil {
		t.Fatalf("unexpected error adding available tool: %v", err)
	}

	got, err := tb.GetTool(CatFortranCompiler)
	if err != nil {
		t.Fatalf("unexpected error getting tool: %v", err)
	}
	if got.Name() != "gfortran" {
		t.Fatalf("got tool %q, want gfortran", got.Name())
	}
}

func TestToolBoxRejectsUnavailableTool(t *testing.T) {
	tb := NewToolBox()
	broken := &fakeTool{name: "broken-cc", execName: "broken-cc", category: CatCCompiler, available: false}

	if err := tb.AddTool(broken, false); err == nil {
		t.Fatalf("expected error adding unavailable tool")
	}
}

func TestToolBoxGetUnconfiguredCategory(t *testing.T) {
	tb := NewToolBox()
	if _, err := tb.GetTool(CatLinker); err == nil {
		t.Fatalf("expected error for unconfigured category")
	}
}

func TestToolBoxReplace(t *testing.T) {
	tb := NewToolBox()
	first := &fakeTool{name: "gcc-12", execName: "gcc-12", category: CatCCompiler, available: true}
	second := &fakeTool{name: "gcc-13", execName: "gcc-13", category: CatCCompiler, available: true}

	if err := tb.AddTool(first, false); err != nil {
		t.Fatal(err)
	}
	if err := tb.AddTool(second, true); err != nil {
		t.Fatal(err)
	}

	got, _ := tb.GetTool(CatCCompiler)
	if got.Name() != "gcc-13" {
		t.Fatalf("expected replacement to take effect, got %q", got.Name())
	}
}

func TestCategoryIsCompiler(t *testing.T) {
	if !CatCCompiler.IsCompiler() {
		t.Fatalf("expected CatCCompiler.IsCompiler() true")
	}
	if !CatFortranCompiler.IsCompiler() {
		t.Fatalf("expected CatFortranCompiler.IsCompiler() true")
	}
	if CatLinker.IsCompiler() {
		t.Fatalf("expected CatLinker.IsCompiler() false")
	}
}
