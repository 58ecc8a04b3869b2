// Package hasher computes the content fingerprints the rest of the
// pipeline keys its caches on: a file's byte content, and a compile
// unit's canonicalised flag vector.
package hasher

import (
	"bufio"
	"hash/adler32"
	"io"
	"os"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/fab/internal/errors"
	"github.com/standardbeagle/fab/internal/types"
)

// HashFile returns the Adler-32 checksum of path's contents. Two files
// with byte-identical content always return the same hash regardless of
// path or mtime; legacy prebuild folders were populated with this exact
// algorithm, so compatibility requires staying on it rather than
// switching to a faster non-streaming hash.
//
// An IO error here is fatal to the file it names but must never abort
// the run: callers report it and skip the file from downstream analysis.
func HashFile(path string) (types.FileHash, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.NewAnalysisError(path, 0, err)
	}
	defer f.Close()

	h := adler32.New()
	if _, err := io.Copy(h, bufio.NewReader(f)); err != nil {
		return 0, errors.NewAnalysisError(path, 0, err)
	}
	return types.FileHash(h.Sum32()), nil
}

// HashBytes is HashFile's in-memory counterpart, used when the content
// is already held (e.g. a preprocessor output captured via pipe).
func HashBytes(content []byte) types.FileHash {
	return types.FileHash(adler32.Checksum(content))
}

// HashFlags canonicalises a flag vector (stable sort, so argument order
// never perturbs the cache key) and returns a 64-bit xxHash folded to 32
// bits. Flags are not file content; there is no legacy-format constraint
// here, so the fast hash wins over Adler-32's weaker avalanche.
func HashFlags(flags []string) types.FlagsHash {
	sorted := make([]string, len(flags))
	copy(sorted, flags)
	sort.Strings(sorted)

	d := xxhash.New()
	for _, flag := range sorted {
		_, _ = d.WriteString(flag)
		_, _ = d.Write([]byte{0}) // separator so "-Ifoo" + "bar" != "-Ifoob" + "ar"
	}
	sum := d.Sum64()
	return types.FlagsHash(uint32(sum) ^ uint32(sum>>32))
}
