package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/standardbeagle/fab/internal/debug"
	fabErrors "github.com/standardbeagle/fab/internal/errors"
	"github.com/standardbeagle/fab/internal/types"
)

// recordMarker is appended after every analysis record's JSON payload. A
// reader that doesn't find it as the final byte treats the record as
// absent, so an interrupted write never yields a readable record.
const recordMarker = 0x1A

// analysisRecord is the on-disk encoding for one AnalysedFile. Kind picks
// which of the optional fields apply; the encoding round-trips exactly.
type analysisRecord struct {
	Kind                string   `json:"kind"`
	FPath               string   `json:"fpath"`
	FileHash            uint32   `json:"file_hash"`
	ModuleDefs          []string `json:"module_defs,omitempty"`
	SymbolDefs          []string `json:"symbol_defs,omitempty"`
	ModuleDeps          []string `json:"module_deps,omitempty"`
	SymbolDeps          []string `json:"symbol_deps,omitempty"`
	FileDeps            []string `json:"file_deps,omitempty"`
	MOCommentedFileDeps []string `json:"mo_commented_file_deps,omitempty"`
	KernelDeps          []string `json:"kernel_deps,omitempty"`
}

const (
	kindFortran = "fortran"
	kindC       = "c"
	kindX90     = "x90"
	kindEmpty   = "empty"
)

func toRecord(af types.AnalysedFile) analysisRecord {
	switch v := af.(type) {
	case *types.AnalysedFortran:
		return analysisRecord{
			Kind:                kindFortran,
			FPath:               v.FPath,
			FileHash:            uint32(v.FileHashV),
			ModuleDefs:          v.ModuleDefs.Sorted(),
			SymbolDefs:          v.SymDefs.Sorted(),
			ModuleDeps:          v.ModuleDeps.Sorted(),
			SymbolDeps:          v.SymDeps.Sorted(),
			FileDeps:            v.FDeps.Sorted(),
			MOCommentedFileDeps: v.MOCommentedFileDeps.Sorted(),
		}
	case *types.AnalysedC:
		return analysisRecord{
			Kind:       kindC,
			FPath:      v.FPath,
			FileHash:   uint32(v.FileHashV),
			SymbolDefs: v.SymDefs.Sorted(),
			SymbolDeps: v.SymDeps.Sorted(),
			FileDeps:   v.FDeps.Sorted(),
		}
	case *types.AnalysedX90:
		return analysisRecord{
			Kind:       kindX90,
			FPath:      v.FPath,
			FileHash:   uint32(v.FileHashV),
			KernelDeps: v.KernelDeps.Sorted(),
		}
	case *types.EmptySourceFile:
		return analysisRecord{Kind: kindEmpty, FPath: v.FPath}
	default:
		panic(fmt.Sprintf("cache: unknown AnalysedFile type %T", af))
	}
}

func fromRecord(r analysisRecord) types.AnalysedFile {
	hash := types.FileHash(r.FileHash)
	switch r.Kind {
	case kindFortran:
		af := types.NewAnalysedFortran(r.FPath, hash)
		for _, m := range r.ModuleDefs {
			af.AddModuleDef(m)
		}
		for _, s := range r.SymbolDefs {
			af.AddSymbolDef(s)
		}
		for _, m := range r.ModuleDeps {
			af.AddModuleDep(m)
		}
		for _, s := range r.SymbolDeps {
			af.AddSymbolDep(s)
		}
		for _, f := range r.FileDeps {
			af.AddFileDep(f)
		}
		for _, c := range r.MOCommentedFileDeps {
			af.AddCommentedFileDep(c)
		}
		return af
	case kindC:
		ac := types.NewAnalysedC(r.FPath, hash)
		for _, s := range r.SymbolDefs {
			ac.AddSymbolDef(s)
		}
		for _, s := range r.SymbolDeps {
			ac.AddSymbolDep(s)
		}
		for _, f := range r.FileDeps {
			ac.AddFileDep(f)
		}
		return ac
	case kindX90:
		ax := types.NewAnalysedX90(r.FPath, hash)
		for _, k := range r.KernelDeps {
			ax.KernelDeps.Add(k)
		}
		return ax
	case kindEmpty:
		return &types.EmptySourceFile{FPath: r.FPath}
	default:
		return nil
	}
}

// AnalysisCache persists AnalysedFile records under dir, keyed by
// (basename, file_hash), and tracks a path→hash manifest across runs so
// it can classify the current file set into unchanged/changed/new/removed.
type AnalysisCache struct {
	dir string

	mu       sync.Mutex
	manifest map[string]types.FileHash
}

const manifestFileName = "analysis_manifest.json"

// NewAnalysisCache opens (creating if necessary) the analysis cache
// rooted at dir and loads its prior-run manifest, if any.
func NewAnalysisCache(dir string) (*AnalysisCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	c := &AnalysisCache{dir: dir, manifest: make(map[string]types.FileHash)}

	data, err := os.ReadFile(filepath.Join(dir, manifestFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}
	var raw map[string]uint32
	if err := json.Unmarshal(data, &raw); err != nil {
		// A corrupt manifest is a cache-wide miss, not a fatal error.
		debug.LogCache("corrupt analysis manifest at %s, starting fresh: %v", dir, err)
		return c, nil
	}
	for path, hash := range raw {
		c.manifest[path] = types.FileHash(hash)
	}
	return c, nil
}

func recordPath(dir, fpath string, hash types.FileHash) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%08x.an", filepath.Base(fpath), uint32(hash)))
}

// Partition classifies current (path→file_hash of every source file in
// this run) against the prior manifest: unchanged entries have a valid
// cache record and an identical hash; changed/new/removed are queued for
// re-analysis or purge. All four slices are sorted for deterministic
// downstream processing.
func (c *AnalysisCache) Partition(current map[string]types.FileHash) (unchanged, changed, added, removed []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for path, hash := range current {
		prior, ok := c.manifest[path]
		if !ok {
			added = append(added, path)
			continue
		}
		if prior != hash {
			changed = append(changed, path)
			continue
		}
		if fileExists(recordPath(c.dir, path, hash)) {
			unchanged = append(unchanged, path)
		} else {
			// Self-healing: the manifest says this should be cached but
			// the record is missing or was never validated. Treat it as
			// changed rather than failing the run.
			changed = append(changed, path)
		}
	}
	for path := range c.manifest {
		if _, ok := current[path]; !ok {
			removed = append(removed, path)
		}
	}

	sort.Strings(unchanged)
	sort.Strings(changed)
	sort.Strings(added)
	sort.Strings(removed)
	return
}

// Load reads the cached AnalysedFile for (path, hash). A missing file, a
// missing terminal marker, or a decode failure are all treated as a miss
// (CacheCorruption is logged, never returned as a fatal error).
func (c *AnalysisCache) Load(path string, hash types.FileHash) (types.AnalysedFile, bool) {
	data, err := os.ReadFile(recordPath(c.dir, path, hash))
	if err != nil {
		return nil, false
	}
	if len(data) == 0 || data[len(data)-1] != recordMarker {
		debug.LogCache("%v", fabErrors.NewCacheCorruption(recordPath(c.dir, path, hash), fmt.Errorf("missing terminal marker")))
		return nil, false
	}
	var r analysisRecord
	if err := json.Unmarshal(data[:len(data)-1], &r); err != nil {
		debug.LogCache("%v", fabErrors.NewCacheCorruption(recordPath(c.dir, path, hash), err))
		return nil, false
	}
	af := fromRecord(r)
	if af == nil {
		return nil, false
	}
	return af, true
}

// Store persists af's record under its path and hash, atomically.
func (c *AnalysisCache) Store(af types.AnalysedFile) error {
	r := toRecord(af)
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	payload = append(payload, recordMarker)
	return writeAtomic(recordPath(c.dir, af.Path(), af.Hash()), payload, 0644)
}

// Commit replaces the manifest with current (path→hash for every file in
// this run, including ones reused unchanged) and purges cache records for
// any path present in the old manifest but absent from current.
func (c *AnalysisCache) Commit(current map[string]types.FileHash) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for path, hash := range c.manifest {
		if _, ok := current[path]; !ok {
			os.Remove(recordPath(c.dir, path, hash))
		}
	}

	c.manifest = make(map[string]types.FileHash, len(current))
	raw := make(map[string]uint32, len(current))
	for path, hash := range current {
		c.manifest[path] = hash
		raw[path] = uint32(hash)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(c.dir, manifestFileName), data, 0644)
}
