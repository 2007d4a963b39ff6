package digest

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"", SHA256, false},
		{"sha256", SHA256, false},
		{"SHA256", SHA256, false},
		{" blake3 ", BLAKE3, false},
		{"blake2b-256", BLAKE2b, false},
		{"md5", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownAlgorithm)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDigest_KnownValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	h, err := New(SHA256)
	require.NoError(t, err)

	sum, err := h.Digest(path)
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", sum)
}

func TestDigest_AllAlgorithmsProduceValidHex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("some file content"), 0644))

	seen := make(map[string]Algorithm)
	for _, algo := range Algorithms {
		h, err := New(algo)
		require.NoError(t, err)
		assert.Equal(t, algo, h.Algorithm())

		sum, err := h.Digest(path)
		require.NoError(t, err)
		assert.True(t, ValidHex(sum), "%s produced %q", algo, sum)

		prev, dup := seen[sum]
		assert.False(t, dup, "%s and %s produced the same digest", algo, prev)
		seen[sum] = algo
	}
}

func TestDigest_MissingFile(t *testing.T) {
	h, err := New(SHA256)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "missing")
	_, err = h.Digest(path)

	var readErr *ReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, path, readErr.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDigest_Directory(t *testing.T) {
	h, err := New(SHA256)
	require.NoError(t, err)

	_, err = h.Digest(t.TempDir())
	assert.ErrorIs(t, err, ErrNotRegular)
}

func TestNew_RejectsUnknown(t *testing.T) {
	_, err := New("crc32")
	assert.True(t, errors.Is(err, ErrUnknownAlgorithm))
}

func TestValidHex(t *testing.T) {
	assert.True(t, ValidHex("2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"))
	assert.False(t, ValidHex("2CF24DBA5FB0A30E26E83B2AC5B9E29E1B161E5C1FA7425E73043362938B9824"))
	assert.False(t, ValidHex("abc"))
	assert.False(t, ValidHex(""))
}

// TestSum_Deterministic tests that identical bytes always hash identically
// and that a single appended byte changes the digest.
func TestSum_Deterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	for _, algo := range Algorithms {
		h, err := New(algo)
		require.NoError(t, err)

		properties.Property(string(algo)+" is a function of content", prop.ForAll(
			func(content string) bool {
				a, err := h.Sum(bytes.NewReader([]byte(content)))
				if err != nil {
					return false
				}
				b, err := h.Sum(bytes.NewReader([]byte(content)))
				if err != nil {
					return false
				}
				c, err := h.Sum(bytes.NewReader([]byte(content + "!")))
				if err != nil {
					return false
				}
				return a == b && a != c
			},
			gen.AnyString(),
		))
	}

	properties.TestingRun(t)
}
