package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	stamp := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, stamp, stamp))
	return path
}

func TestEvictOlderThan(t *testing.T) {
	dir := t.TempDir()
	old := writeAged(t, dir, "foo.f90.11112222.o", 48*time.Hour)
	fresh := writeAged(t, dir, "foo.f90.33334444.o", time.Minute)
	stray := writeAged(t, dir, "notes.txt", 48*time.Hour)

	removed, err := EvictOlderThan(dir, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, stray, "non-cache files are never touched")
}

func TestEvictKeepNewest(t *testing.T) {
	dir := t.TempDir()
	oldest := writeAged(t, dir, "foo.f90.aaaa0001.o", 3*time.Hour)
	middle := writeAged(t, dir, "foo.f90.aaaa0002.o", 2*time.Hour)
	newest := writeAged(t, dir, "foo.f90.aaaa0003.o", time.Hour)
	other := writeAged(t, dir, "bar.c.bbbb0001.o", 5*time.Hour)

	removed, err := EvictKeepNewest(dir, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.NoFileExists(t, oldest)
	assert.FileExists(t, middle)
	assert.FileExists(t, newest)
	assert.FileExists(t, other, "grouping is per-basename")
}
