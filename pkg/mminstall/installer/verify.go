package installer

import (
	"os"
	"path/filepath"

	"github.com/jamesainslie/mminstall/pkg/mminstall/download"
)

// verifyOnDisk checks that a ledger-satisfied artifact is still present and
// unmodified. Extracted archives are only checked for their directory.
func (r *run) verifyOnDisk(a *artifact) (bool, string) {
	if !r.opts.VerifyOnDisk {
		return true, ""
	}
	if a.decompress {
		info, err := os.Stat(a.destDir)
		if err != nil || !info.IsDir() {
			return false, "target directory missing"
		}
		return true, ""
	}

	path := filepath.Join(a.destDir, a.recordedFile)
	info, err := os.Stat(path)
	if err != nil {
		return false, "file missing"
	}
	if !info.Mode().IsRegular() {
		return false, "not a regular file"
	}

	algo := download.AlgorithmFor(a.hash)
	sum, err := r.fileHash(path, info, algo)
	if err != nil {
		return false, err.Error()
	}
	if !download.Matches(a.hash, sum) {
		return false, "hash mismatch"
	}
	return true, ""
}

// fileHash hashes path, consulting the hash cache first.
func (r *run) fileHash(path string, info os.FileInfo, algo download.Algorithm) (string, error) {
	c := r.opts.HashCache
	if c != nil {
		sum, ok, err := c.FileHash(path, info.Size(), info.ModTime(), string(algo))
		if err != nil {
			r.log.Debug("hash cache lookup failed", "path", path, "error", err)
		} else if ok {
			return sum, nil
		}
	}

	sum, err := download.HashFile(path, algo)
	if err != nil {
		return "", err
	}
	if c != nil {
		if err := c.PutFileHash(path, info.Size(), info.ModTime(), string(algo), sum); err != nil {
			r.log.Debug("hash cache store failed", "path", path, "error", err)
		}
	}
	return sum, nil
}
