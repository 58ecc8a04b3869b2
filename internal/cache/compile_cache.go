package cache

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/standardbeagle/fab/internal/debug"
	"github.com/standardbeagle/fab/internal/types"
)

// CompileCache is the content-addressed object-file store: entries live under dir as "<basename>.<fingerprint>.o" plus, for
// Fortran, one "<module>.<fingerprint>.mod" per module the source
// defines. A golang.org/x/sync/singleflight.Group collapses concurrent
// requests for the same fingerprint into a single in-flight compile,
// directly implementing the at-most-one-compile-per-fingerprint
// invariant without a hand-rolled wait/notify map.
type CompileCache struct {
	dir   string
	group singleflight.Group
}

// NewCompileCache opens (creating if necessary) the compile cache rooted
// at dir.
func NewCompileCache(dir string) (*CompileCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &CompileCache{dir: dir}, nil
}

// Fingerprint computes the cache key for one compile unit: a hash of
// the source hash, the flags hash, and every transitive module interface
// hash the compile depends on, sorted by module name so the result is
// independent of map iteration order.
func Fingerprint(sourceHash types.FileHash, flagsHash types.FlagsHash, moduleDepsHashes map[string]types.FileHash) string {
	h := xxhash.New()
	var buf [4]byte

	binary.BigEndian.PutUint32(buf[:], uint32(sourceHash))
	h.Write(buf[:])
	binary.BigEndian.PutUint32(buf[:], uint32(flagsHash))
	h.Write(buf[:])

	names := make([]string, 0, len(moduleDepsHashes))
	for m := range moduleDepsHashes {
		names = append(names, m)
	}
	sort.Strings(names)
	for _, m := range names {
		h.Write([]byte(m))
		binary.BigEndian.PutUint32(buf[:], uint32(moduleDepsHashes[m]))
		h.Write(buf[:])
	}

	return fmt.Sprintf("%016x", h.Sum64())
}

// Result is what a successful compile-cache hit or a fresh compile
// produces: the object file path plus the path of every module interface
// file the compile unit defined.
type Result struct {
	ObjectPath  string
	ModulePaths map[string]string // module name (lower-case) -> .mod path
}

func (cc *CompileCache) objectPath(basename, fingerprint string) string {
	return filepath.Join(cc.dir, fmt.Sprintf("%s.%s.o", basename, fingerprint))
}

func (cc *CompileCache) modulePath(module, fingerprint string) string {
	return filepath.Join(cc.dir, fmt.Sprintf("%s.%s.mod", module, fingerprint))
}

// Lookup reports a cache hit only if the object file AND every module
// file requiredModules names both exist on disk; any artefact missing is
// treated as a miss (self-healing).
func (cc *CompileCache) Lookup(basename, fingerprint string, requiredModules []string) (*Result, bool) {
	objPath := cc.objectPath(basename, fingerprint)
	if !fileExists(objPath) {
		return nil, false
	}
	res := &Result{ObjectPath: objPath, ModulePaths: make(map[string]string, len(requiredModules))}
	for _, m := range requiredModules {
		modPath := cc.modulePath(m, fingerprint)
		if !fileExists(modPath) {
			return nil, false
		}
		res.ModulePaths[m] = modPath
	}
	return res, true
}

// Store writes objContent and every entry of modules (module name ->
// .mod bytes) atomically under fingerprint, returning the resulting
// Result.
func (cc *CompileCache) Store(basename, fingerprint string, objContent []byte, modules map[string][]byte) (*Result, error) {
	objPath := cc.objectPath(basename, fingerprint)
	if err := writeAtomic(objPath, objContent, 0644); err != nil {
		return nil, err
	}

	res := &Result{ObjectPath: objPath, ModulePaths: make(map[string]string, len(modules))}
	for module, data := range modules {
		modPath := cc.modulePath(module, fingerprint)
		if err := writeAtomic(modPath, data, 0644); err != nil {
			return nil, err
		}
		res.ModulePaths[module] = modPath
	}
	debug.LogCache("stored %s (fingerprint %s)", basename, fingerprint)
	return res, nil
}

// GetOrCompile looks up fingerprint, and on a miss invokes compile exactly
// once even if multiple callers request the same fingerprint
// concurrently (at-most-one invariant); every other concurrent caller for
// the same key blocks on and receives the first caller's result.
func (cc *CompileCache) GetOrCompile(basename, fingerprint string, requiredModules []string, compile func() (*Result, error)) (*Result, error) {
	if res, ok := cc.Lookup(basename, fingerprint, requiredModules); ok {
		debug.LogCache("hit %s (fingerprint %s)", basename, fingerprint)
		return res, nil
	}

	v, err, shared := cc.group.Do(fingerprint, func() (interface{}, error) {
		if res, ok := cc.Lookup(basename, fingerprint, requiredModules); ok {
			return res, nil
		}
		return compile()
	})
	if err != nil {
		return nil, err
	}
	if shared {
		debug.LogCache("joined in-flight compile for fingerprint %s", fingerprint)
	}
	return v.(*Result), nil
}
