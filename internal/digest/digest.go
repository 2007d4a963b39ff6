// Package digest computes content hashes of individual files.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

// Algorithm names a supported content hash.
type Algorithm string

const (
	SHA256    Algorithm = "sha256"
	BLAKE3    Algorithm = "blake3"
	BLAKE2b   Algorithm = "blake2b-256"
	Default             = SHA256
	HexLength           = 64 // every supported algorithm yields 256 bits
)

// Algorithms lists the supported algorithms in display order.
var Algorithms = []Algorithm{SHA256, BLAKE3, BLAKE2b}

// ErrUnknownAlgorithm is returned for algorithm names not in Algorithms.
var ErrUnknownAlgorithm = errors.New("unknown digest algorithm")

// ErrNotRegular is the cause of a ReadError for directories, devices, sockets and the like.
var ErrNotRegular = errors.New("not a regular file")

// ParseAlgorithm accepts a case-insensitive algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	name := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	if name == "" {
		return Default, nil
	}
	for _, a := range Algorithms {
		if a == name {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// ReadError reports a file that could not be hashed.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Hasher computes hex digests with a fixed algorithm. It is safe for
// concurrent use; every call allocates its own hash state.
type Hasher struct {
	algo Algorithm
}

// New returns a Hasher for algo.
func New(algo Algorithm) (*Hasher, error) {
	parsed, err := ParseAlgorithm(string(algo))
	if err != nil {
		return nil, err
	}
	return &Hasher{algo: parsed}, nil
}

// Algorithm returns the algorithm this Hasher uses.
func (h *Hasher) Algorithm() Algorithm {
	return h.algo
}

func (h *Hasher) newHash() hash.Hash {
	switch h.algo {
	case BLAKE3:
		return blake3.New()
	case BLAKE2b:
		// Only fails for keys longer than 64 bytes.
		b, _ := blake2b.New256(nil)
		return b
	default:
		return sha256.New()
	}
}

// Sum hashes everything read from r.
func (h *Hasher) Sum(r io.Reader) (string, error) {
	hh := h.newHash()
	if _, err := io.Copy(hh, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(hh.Sum(nil)), nil
}

// Digest hashes the full content of the regular file at path.
func (h *Hasher) Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &ReadError{Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", &ReadError{Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return "", &ReadError{Path: path, Err: ErrNotRegular}
	}

	sum, err := h.Sum(f)
	if err != nil {
		return "", &ReadError{Path: path, Err: err}
	}
	return sum, nil
}

// ValidHex reports whether s looks like a digest produced by a Hasher.
func ValidHex(s string) bool {
	if len(s) != HexLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}
