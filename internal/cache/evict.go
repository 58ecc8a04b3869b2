package cache

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// EvictOlderThan deletes every cache entry under dir whose mtime is
// older than age, returning how many files were removed. It recognises
// the cache's own artefact extensions only, so stray files are left
// alone.
func EvictOlderThan(dir string, age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age)
	removed := 0
	err := walkCacheEntries(dir, func(path string, info os.FileInfo) error {
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// EvictKeepNewest keeps only the keep most-recently-modified entries per
// basename (the part of the filename before the content key) and deletes
// the rest, returning how many files were removed.
func EvictKeepNewest(dir string, keep int) (int, error) {
	groups := make(map[string][]struct {
		path  string
		mtime time.Time
	})
	err := walkCacheEntries(dir, func(path string, info os.FileInfo) error {
		base := entryBasename(filepath.Base(path))
		groups[base] = append(groups[base], struct {
			path  string
			mtime time.Time
		}{path, info.ModTime()})
		return nil
	})
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entries := range groups {
		if len(entries) <= keep {
			continue
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].mtime.After(entries[j].mtime) })
		for _, entry := range entries[keep:] {
			if err := os.Remove(entry.path); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

var cacheEntryExtensions = map[string]bool{".o": true, ".mod": true, ".an": true}

func walkCacheEntries(dir string, fn func(path string, info os.FileInfo) error) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || !cacheEntryExtensions[filepath.Ext(path)] {
			return nil
		}
		return fn(path, info)
	})
}

// entryBasename strips the trailing ".<key>.<ext>" from a cache entry
// filename, leaving the source basename (or module name) the entry
// belongs to.
func entryBasename(name string) string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i]
	}
	return name
}
