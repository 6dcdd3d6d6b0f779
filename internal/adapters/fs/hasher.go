package fs

import (
	"encoding/binary"
	"errors"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/tend/internal/core/domain"
	"go.trai.ch/tend/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Fingerprinter = (*Hasher)(nil)

// Hasher computes xxhash fingerprints over file sets.
type Hasher struct{}

// NewHasher creates a new Hasher.
func NewHasher() *Hasher {
	return &Hasher{}
}

// ComputeFileHash computes the XXHash of a file's content.
func (h *Hasher) ComputeFileHash(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, zerr.With(domain.Classify(domain.ErrFileReadFailed, err), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
	}

	return hasher.Sum64(), nil
}

// Fingerprint hashes the sorted relative paths together with their contents.
// A missing file contributes its name and a marker, so deletions change the result.
func (h *Hasher) Fingerprint(root string, paths []string) (uint64, error) {
	sorted := slices.Clone(paths)
	slices.Sort(sorted)

	digest := xxhash.New()
	for _, rel := range sorted {
		_, _ = digest.WriteString(rel)
		_, _ = digest.Write([]byte{0})

		abs := filepath.Join(root, filepath.FromSlash(rel))
		if _, err := os.Stat(abs); errors.Is(err, iofs.ErrNotExist) {
			_, _ = digest.Write([]byte{0xff})
			continue
		}

		hash, err := h.ComputeFileHash(abs)
		if err != nil {
			return 0, err
		}
		if err := binary.Write(digest, binary.LittleEndian, hash); err != nil {
			return 0, zerr.Wrap(err, "failed to write hash to digest")
		}
	}
	return digest.Sum64(), nil
}
