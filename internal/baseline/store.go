package baseline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"github.com/zeebo/xxh3"

	"fim/internal/digest"
	"fim/internal/snapshot"
)

// DefaultPath is the baseline file used when none is configured.
const DefaultPath = "baseline.json"

// Store persists a single current baseline in one JSON file.
type Store struct {
	path string
	fs   afero.Fs
	mu   sync.Mutex // serializes Save and Delete
}

// Option configures a Store.
type Option func(*Store)

// WithFs makes the store use fsys instead of the OS filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(s *Store) {
		s.fs = fsys
	}
}

// NewStore creates a store backed by the file at path.
func NewStore(path string, opts ...Option) *Store {
	if path == "" {
		path = DefaultPath
	}
	s := &Store{path: filepath.Clean(path), fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the baseline file location.
func (s *Store) Path() string {
	return s.path
}

// Checksum computes the content checksum of a baseline. It covers the
// algorithm and files only, so re-baselining an unchanged tree yields the
// same value regardless of when or from where it ran.
func Checksum(algorithm string, files snapshot.Snapshot) string {
	data := []byte(`{"algorithm":`)
	algJSON, _ := json.Marshal(algorithm)
	data = append(data, algJSON...)
	data = append(data, `,"files":`...)
	data = append(data, files.Canonical()...)
	data = append(data, '}')
	return fmt.Sprintf("xxh3:%016x", xxh3.Hash(data))
}

// TempPattern returns the filepath.Match pattern of the temporary files Save
// writes next to the baseline at path.
func TempPattern(path string) string {
	return filepath.Join(filepath.Dir(path), tempPrefix(path)+"*")
}

func tempPrefix(path string) string {
	return "." + filepath.Base(path) + ".tmp-"
}

// Save atomically replaces the stored baseline with b. The document is
// written to a temporary file next to the target and renamed over it, so a
// reader sees either the previous or the new baseline, never a partial one.
func (s *Store) Save(b Baseline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.Version == 0 {
		b.Version = FormatVersion
	}
	if b.Files == nil {
		b.Files = snapshot.Snapshot{}
	}
	for p := range b.Files {
		if !snapshot.IsNormalized(p) {
			return fmt.Errorf("encode baseline: invalid path %q", p)
		}
	}
	b.Checksum = Checksum(b.Algorithm, b.Files)

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encode baseline: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create baseline directory: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, dir, tempPrefix(s.path)+"*")
	if err != nil {
		return fmt.Errorf("create temp baseline: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = s.fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp baseline: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp baseline: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp baseline: %w", err)
	}
	if err := s.fs.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("chmod temp baseline: %w", err)
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace baseline: %w", err)
	}
	committed = true

	return nil
}

// Load reads and verifies the stored baseline. It returns a *NotFoundError
// when nothing has been saved and a *CorruptError when the file cannot be
// parsed or fails verification.
func (s *Store) Load() (Baseline, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Baseline{}, &NotFoundError{Path: s.path}
		}
		return Baseline{}, fmt.Errorf("read baseline: %w", err)
	}

	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return Baseline{}, &CorruptError{Path: s.path, Err: err}
	}
	if err := verify(b); err != nil {
		return Baseline{}, &CorruptError{Path: s.path, Err: err}
	}
	if b.Files == nil {
		b.Files = snapshot.Snapshot{}
	}

	return b, nil
}

// Summarize loads the baseline and returns its metadata.
func (s *Store) Summarize() (Summary, error) {
	b, err := s.Load()
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Path:        s.path,
		Root:        b.Root,
		Algorithm:   b.Algorithm,
		CreatedAt:   b.CreatedAt,
		Files:       b.Files.Len(),
		Fingerprint: b.Files.Fingerprint(),
	}, nil
}

// Delete removes the stored baseline.
func (s *Store) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.Remove(s.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &NotFoundError{Path: s.path}
		}
		return fmt.Errorf("delete baseline: %w", err)
	}
	return nil
}

// Exists checks if a baseline file is present.
func (s *Store) Exists() bool {
	_, err := s.fs.Stat(s.path)
	return err == nil
}

// verify rejects documents that parsed as JSON but are not baselines we wrote.
func verify(b Baseline) error {
	if b.Version != FormatVersion {
		return fmt.Errorf("unsupported version %d", b.Version)
	}
	if _, err := digest.ParseAlgorithm(b.Algorithm); err != nil || b.Algorithm == "" {
		return fmt.Errorf("unsupported algorithm %q", b.Algorithm)
	}
	for p, d := range b.Files {
		if !snapshot.IsNormalized(p) {
			return fmt.Errorf("invalid path key %q", p)
		}
		if !digest.ValidHex(d) {
			return fmt.Errorf("invalid digest for %q", p)
		}
	}
	if want := Checksum(b.Algorithm, b.Files); b.Checksum != want {
		return fmt.Errorf("checksum mismatch: stored %q, computed %q", b.Checksum, want)
	}
	return nil
}
