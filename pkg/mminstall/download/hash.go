package download

import (
	"crypto/sha1" //nolint:gosec // sha1 digests are what pack authors publish
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// Algorithm names a content digest.
type Algorithm string

const (
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

// ErrBadDigest is returned for an expected hash that is not a usable hex digest.
var ErrBadDigest = errors.New("invalid digest")

// New returns a fresh hash for a.
func (a Algorithm) New() hash.Hash {
	switch a {
	case SHA256:
		return sha256.New()
	case SHA512:
		return sha512.New()
	default:
		return sha1.New() //nolint:gosec
	}
}

// ParseDigest splits an expected digest into its algorithm and lowercase hex.
// A "sha1:", "sha256:" or "sha512:" prefix selects the algorithm explicitly;
// otherwise it is inferred from the hex length (40, 64 or 128).
func ParseDigest(expected string) (Algorithm, string, error) {
	s := strings.TrimSpace(expected)
	var algo Algorithm
	if name, rest, ok := strings.Cut(s, ":"); ok {
		algo = Algorithm(strings.ToLower(name))
		switch algo {
		case SHA1, SHA256, SHA512:
		default:
			return "", "", fmt.Errorf("%w: unknown algorithm %q", ErrBadDigest, name)
		}
		s = rest
	}
	if s == "" {
		return "", "", fmt.Errorf("%w: empty", ErrBadDigest)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", "", fmt.Errorf("%w: not hex", ErrBadDigest)
	}

	byLength := map[int]Algorithm{40: SHA1, 64: SHA256, 128: SHA512}
	inferred, ok := byLength[len(s)]
	switch {
	case algo == "" && !ok:
		return "", "", fmt.Errorf("%w: %d hex characters matches no known algorithm", ErrBadDigest, len(s))
	case algo == "":
		algo = inferred
	case inferred != algo:
		return "", "", fmt.Errorf("%w: wrong length %d for %s", ErrBadDigest, len(s), algo)
	}
	return algo, strings.ToLower(s), nil
}

// AlgorithmFor returns the algorithm that produced expected, defaulting to
// SHA1 when it cannot be determined.
func AlgorithmFor(expected string) Algorithm {
	algo, _, err := ParseDigest(expected)
	if err != nil {
		return SHA1
	}
	return algo
}

// Matches compares an expected digest (optionally prefixed) with a computed
// hex digest, ignoring case.
func Matches(expected, actual string) bool {
	s := strings.TrimSpace(expected)
	if _, rest, ok := strings.Cut(s, ":"); ok {
		s = rest
	}
	return strings.EqualFold(s, actual)
}

// HashFile returns the lowercase hex digest of the file at path.
func HashFile(path string, algo Algorithm) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }() // read-only

	h := algo.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
