package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/standardbeagle/fab/internal/analysis"
	"github.com/standardbeagle/fab/internal/cache"
	"github.com/standardbeagle/fab/internal/debug"
	fabErrors "github.com/standardbeagle/fab/internal/errors"
	"github.com/standardbeagle/fab/internal/hasher"
	"github.com/standardbeagle/fab/internal/symbollinker"
	"github.com/standardbeagle/fab/internal/types"
)

// Analyse hashes every preprocessed source file, partitions the set
// against the analysis cache, re-analyses only what changed, and
// publishes the aggregated KeyAnalysedFiles map and KeySymbolTable.
// Individual parse failures never stop the other files; they are
// gathered and raised as one composite error at the stage boundary.
type Analyse struct{}

func (s *Analyse) Name() string { return "analyse" }

// analyseResult is the message an analysis worker sends the collector.
type analyseResult struct {
	path string
	file types.AnalysedFile
	err  error
}

func (s *Analyse) Run(ctx context.Context, rt *Runtime) error {
	fortran, err := Get[[]string](rt.Store, KeyPreprocessedFortran)
	if err != nil {
		return err
	}
	cFiles, err := Get[[]string](rt.Store, KeyPreprocessedC)
	if err != nil {
		return err
	}

	analysisCache, err := cache.NewAnalysisCache(filepath.Join(rt.Config.PrebuildDir(), "analysis"))
	if err != nil {
		return err
	}

	var errs []error

	// Hash first: a file that cannot be read is reported and skipped
	// from everything downstream, never fatal to the run.
	currentHashes := make(map[string]types.FileHash)
	isC := make(map[string]bool, len(cFiles))
	all := make([]string, 0, len(fortran)+len(cFiles))
	all = append(all, fortran...)
	for _, path := range cFiles {
		isC[path] = true
		all = append(all, path)
	}
	sort.Strings(all)
	for _, path := range all {
		h, err := hasher.HashFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		currentHashes[path] = h
	}

	unchanged, changed, added, removed := analysisCache.Partition(currentHashes)
	debug.LogAnalysis("%d unchanged, %d changed, %d new, %d removed",
		len(unchanged), len(changed), len(added), len(removed))

	analysed := make(map[string]types.AnalysedFile, len(currentHashes))
	for _, path := range unchanged {
		if af, ok := analysisCache.Load(path, currentHashes[path]); ok {
			analysed[path] = af
		} else {
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)

	toAnalyse := make([]string, 0, len(changed)+len(added))
	toAnalyse = append(toAnalyse, changed...)
	toAnalyse = append(toAnalyse, added...)
	sort.Strings(toAnalyse)

	results := make(chan analyseResult)
	workers := int64(rt.Config.EffectiveParallelism())
	if !rt.Config.Multiprocessing {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(workers)
	g.Go(func() error {
		defer close(results)
		inner, ictx := errgroup.WithContext(gctx)
		fortranAnalyser := analysis.NewFortranAnalyser()
		cAnalyser := analysis.NewCAnalyser()
		for _, path := range toAnalyse {
			if err := sem.Acquire(ictx, 1); err != nil {
				return err
			}
			inner.Go(func() error {
				defer sem.Release(1)
				af, err := analyseOne(path, currentHashes[path], isC[path], fortranAnalyser, cAnalyser)
				select {
				case results <- analyseResult{path: path, file: af, err: err}:
					return nil
				case <-ictx.Done():
					return ictx.Err()
				}
			})
		}
		return inner.Wait()
	})

	// Collector: persist each record to the analysis cache as soon as it
	// arrives, so an interrupted run resumes from whatever completed.
	for res := range results {
		if res.err != nil {
			errs = append(errs, res.err)
			continue
		}
		analysed[res.path] = res.file
		if err := analysisCache.Store(res.file); err != nil {
			debug.LogCache("failed to persist analysis record for %s: %v", res.path, err)
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := analysisCache.Commit(currentHashes); err != nil {
		debug.LogCache("failed to commit analysis manifest: %v", err)
	}

	table, duplicates := symbollinker.BuildSymbolTable(collectAnalysed(analysed))
	for _, dup := range duplicates {
		debug.LogAnalysis("warning: %v", dup)
	}
	symbollinker.LinkDependencies(analysed, table)

	rt.Store.Set(KeyAnalysedFiles, analysed)
	rt.Store.Set(KeySymbolTable, table)

	if len(errs) > 0 {
		return fabErrors.NewMultiError(errs)
	}
	return nil
}

func analyseOne(path string, hash types.FileHash, c bool, fa *analysis.FortranAnalyser, ca *analysis.CAnalyser) (types.AnalysedFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fabErrors.NewAnalysisError(path, 0, err)
	}
	if c {
		return ca.Analyse(path, content, hash)
	}
	return fa.Analyse(path, content, hash)
}

func collectAnalysed(analysed map[string]types.AnalysedFile) []types.AnalysedFile {
	paths := make([]string, 0, len(analysed))
	for path := range analysed {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	files := make([]types.AnalysedFile, 0, len(paths))
	for _, path := range paths {
		files = append(files, analysed[path])
	}
	return files
}
