package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/fab/internal/types"
)

func analyseC(t *testing.T, src string) *types.AnalysedC {
	t.Helper()
	af, err := NewCAnalyser().Analyse("/src/unit.c", []byte(src), types.FileHash(1))
	require.NoError(t, err)
	c, ok := af.(*types.AnalysedC)
	require.True(t, ok, "expected AnalysedC, got %T", af)
	return c
}

func TestCFunctionDefinitionIsSymbolDef(t *testing.T) {
	c := analyseC(t, `
int add(int a, int b) { return a + b; }
static void helper(void) {}
`)
	assert.True(t, c.SymDefs.Contains("add"))
	assert.True(t, c.SymDefs.Contains("helper"))
}

func TestCPrototypeIsSymbolDep(t *testing.T) {
	c := analyseC(t, `
double external_fn(double x);

double wrapper(double x) { return external_fn(x); }
`)
	assert.True(t, c.SymDeps.Contains("external_fn"))
	assert.True(t, c.SymDefs.Contains("wrapper"))
}

func TestCExternVariableIsDepNotDef(t *testing.T) {
	c := analyseC(t, `
extern int shared_counter;
int local_counter = 0;
int bump(void) { return shared_counter + local_counter; }
`)
	assert.True(t, c.SymDeps.Contains("shared_counter"))
	assert.True(t, c.SymDefs.Contains("local_counter"))
	assert.False(t, c.SymDefs.Contains("shared_counter"))
}

func TestCSystemIncludeRegionIgnored(t *testing.T) {
	c := analyseC(t, `#pragma fab SysIncludeStart
void from_system_header(void);
#pragma fab SysIncludeEnd
#pragma fab UsrIncludeStart
void from_user_header(void);
#pragma fab UsrIncludeEnd
void mine(void) {}
`)
	assert.False(t, c.SymDeps.Contains("from_system_header"), "system-include declarations are ignored")
	assert.True(t, c.SymDeps.Contains("from_user_header"), "user-include declarations participate")
	assert.True(t, c.SymDefs.Contains("mine"))
}

func TestCEmptyTranslationUnit(t *testing.T) {
	af, err := NewCAnalyser().Analyse("/src/empty.c", []byte("/* nothing here */\n"), types.FileHash(1))
	require.NoError(t, err)
	_, ok := af.(*types.EmptySourceFile)
	assert.True(t, ok, "expected EmptySourceFile, got %T", af)
}
