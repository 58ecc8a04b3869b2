// Package cache implements the analysis and compile caches: two
// content-addressed, disk-backed stores under
// $FAB_WORKSPACE/<project>/_prebuild/ sharing one write discipline —
// write to a temp file in the same directory, then rename into place —
// so a crash mid-write can never leave a record a reader accepts.
package cache

import (
	"os"
	"path/filepath"
)

// writeAtomic writes data to path via a temp file in the same directory
// followed by an os.Rename, so readers never observe a partially written
// file.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// fileExists reports whether path exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
