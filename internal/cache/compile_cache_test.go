package cache

import (
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/fab/internal/types"
)

func TestFingerprintDeterministic(t *testing.T) {
	deps := map[string]types.FileHash{"mod_a": 1, "mod_b": 2}
	f1 := Fingerprint(types.FileHash(10), types.FlagsHash(20), deps)
	f2 := Fingerprint(types.FileHash(10), types.FlagsHash(20), deps)
	assert.Equal(t, f1, f2)
}

func TestFingerprintSensitiveToEachInput(t *testing.T) {
	base := Fingerprint(types.FileHash(10), types.FlagsHash(20), map[string]types.FileHash{"m": 1})

	assert.NotEqual(t, base, Fingerprint(types.FileHash(11), types.FlagsHash(20), map[string]types.FileHash{"m": 1}))
	assert.NotEqual(t, base, Fingerprint(types.FileHash(10), types.FlagsHash(21), map[string]types.FileHash{"m": 1}))
	assert.NotEqual(t, base, Fingerprint(types.FileHash(10), types.FlagsHash(20), map[string]types.FileHash{"m": 2}))
}

func TestCompileCacheRoundTrip(t *testing.T) {
	cc, err := NewCompileCache(t.TempDir())
	require.NoError(t, err)

	obj := []byte{0x7f, 'E', 'L', 'F', 1, 2, 3}
	mod := []byte("module interface bytes")
	res, err := cc.Store("foo.f90", "cafe0123", obj, map[string][]byte{"foo_mod": mod})
	require.NoError(t, err)

	hit, ok := cc.Lookup("foo.f90", "cafe0123", []string{"foo_mod"})
	require.True(t, ok)
	assert.Equal(t, res.ObjectPath, hit.ObjectPath)

	gotObj, err := os.ReadFile(hit.ObjectPath)
	require.NoError(t, err)
	assert.Equal(t, obj, gotObj, "object bytes must round-trip exactly")

	gotMod, err := os.ReadFile(hit.ModulePaths["foo_mod"])
	require.NoError(t, err)
	assert.Equal(t, mod, gotMod)
}

func TestCompileCacheMissingModuleIsMiss(t *testing.T) {
	cc, err := NewCompileCache(t.TempDir())
	require.NoError(t, err)

	res, err := cc.Store("foo.f90", "cafe0123", []byte("obj"), map[string][]byte{"foo_mod": []byte("mod")})
	require.NoError(t, err)

	require.NoError(t, os.Remove(res.ModulePaths["foo_mod"]))

	_, ok := cc.Lookup("foo.f90", "cafe0123", []string{"foo_mod"})
	assert.False(t, ok, "an entry missing any required module artefact is absent (self-healing)")
}

func TestCompileCacheUnknownKeyIsMiss(t *testing.T) {
	cc, err := NewCompileCache(t.TempDir())
	require.NoError(t, err)
	_, ok := cc.Lookup("foo.f90", "0000000000000000", nil)
	assert.False(t, ok)
}

func TestGetOrCompileInvokesOnceForConcurrentRequests(t *testing.T) {
	cc, err := NewCompileCache(t.TempDir())
	require.NoError(t, err)

	var invocations atomic.Int32
	var started sync.WaitGroup
	release := make(chan struct{})

	compile := func() (*Result, error) {
		invocations.Add(1)
		<-release
		return cc.Store("foo.f90", "feed5678", []byte("obj"), nil)
	}

	const callers = 8
	results := make([]*Result, callers)
	var done sync.WaitGroup
	for i := 0; i < callers; i++ {
		started.Add(1)
		done.Add(1)
		go func() {
			started.Done()
			defer done.Done()
			res, err := cc.GetOrCompile("foo.f90", "feed5678", nil, compile)
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	started.Wait()
	close(release)
	done.Wait()

	assert.Equal(t, int32(1), invocations.Load(), "at most one compile per fingerprint within a run")
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, results[0].ObjectPath, res.ObjectPath)
	}
}

func TestGetOrCompileHitSkipsCompile(t *testing.T) {
	cc, err := NewCompileCache(t.TempDir())
	require.NoError(t, err)

	_, err = cc.Store("foo.f90", "0a0b0c0d", []byte("obj"), nil)
	require.NoError(t, err)

	res, err := cc.GetOrCompile("foo.f90", "0a0b0c0d", nil, func() (*Result, error) {
		t.Fatal("compile must not run on a cache hit")
		return nil, nil
	})
	require.NoError(t, err)
	assert.NotNil(t, res)
}
