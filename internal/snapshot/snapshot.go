// Package snapshot holds the path-to-digest mapping captured by one scan of a
// directory tree.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// Snapshot maps a normalized file path to its hex digest.
// Paths are relative to the scanned root and always use '/' as separator,
// so the same file gets the same key regardless of platform or working directory.
type Snapshot map[string]string

// Len returns the number of files in the snapshot.
func (s Snapshot) Len() int {
	return len(s)
}

// Paths returns all keys in sorted order.
func (s Snapshot) Paths() []string {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Equal reports whether both snapshots hold the same paths with the same digests.
// A nil snapshot equals an empty one.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for p, d := range s {
		od, ok := other[p]
		if !ok || od != d {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (s Snapshot) Clone() Snapshot {
	c := make(Snapshot, len(s))
	for p, d := range s {
		c[p] = d
	}
	return c
}

// NormalizePath converts an OS-specific relative path into key form.
func NormalizePath(rel string) string {
	return path.Clean(filepath.ToSlash(rel))
}

// IsNormalized reports whether p is a valid snapshot key: relative, clean,
// slash-separated, valid UTF-8 and not escaping the root.
func IsNormalized(p string) bool {
	if p == "" || p == "." || p == ".." {
		return false
	}
	if path.IsAbs(p) || strings.HasPrefix(p, "../") {
		return false
	}
	if !utf8.ValidString(p) {
		return false
	}
	return path.Clean(p) == p
}

// Canonical returns the compact JSON encoding of s with keys in sorted
// order. A nil snapshot encodes as {}.
func (s Snapshot) Canonical() []byte {
	if s == nil {
		return []byte("{}")
	}
	// encoding/json writes map keys sorted.
	data, _ := json.Marshal(map[string]string(s))
	return data
}

// Fingerprint returns "sha256:" followed by the hex SHA-256 of Canonical.
// Two snapshots have the same fingerprint exactly when they are Equal.
func (s Snapshot) Fingerprint() string {
	sum := sha256.Sum256(s.Canonical())
	return "sha256:" + hex.EncodeToString(sum[:])
}
