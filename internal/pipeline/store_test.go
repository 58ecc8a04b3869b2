package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/fab/internal/types"
)

func TestStoreSetAndGet(t *testing.T) {
	s := NewStore()
	s.Set(KeyAllSource, []string{"/src/a.f90"})

	got, err := Get[[]string](s, KeyAllSource)
	require.NoError(t, err)
	assert.Equal(t, []string{"/src/a.f90"}, got)
}

func TestStoreMissingKeyIsPreciseError(t *testing.T) {
	s := NewStore()
	_, err := Get[[]string](s, KeyBuildTrees)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build_trees")
	assert.Contains(t, err.Error(), "never written")
}

func TestStoreWrongTypeIsPreciseError(t *testing.T) {
	s := NewStore()
	s.Set(KeyAnalysedFiles, "not a map")

	_, err := Get[map[string]types.AnalysedFile](s, KeyAnalysedFiles)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysed_files")
}

func TestStoreHas(t *testing.T) {
	s := NewStore()
	assert.False(t, s.Has(KeySymbolTable))
	s.Set(KeySymbolTable, struct{}{})
	assert.True(t, s.Has(KeySymbolTable))
}

func TestMustGetPanicsOnMissing(t *testing.T) {
	s := NewStore()
	assert.Panics(t, func() { MustGet[[]string](s, KeyExecutables) })
}
