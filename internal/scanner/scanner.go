// Package scanner walks a directory tree and hashes every regular file in it.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"fim/internal/digest"
	"fim/internal/log"
	"fim/internal/snapshot"
)

var (
	// ErrNotDirectory is the cause of a ScanError whose root is not a directory.
	ErrNotDirectory = errors.New("not a directory")
	// ErrSymlinkCycle is the cause of a ScanError when a followed symlink
	// leads back to a directory that is already being traversed.
	ErrSymlinkCycle = errors.New("symlink cycle")
	// ErrInvalidName is the cause of a ReadError for an entry whose name is
	// not valid UTF-8 and so cannot be stored as a snapshot key.
	ErrInvalidName = errors.New("file name is not valid UTF-8")
)

// ScanError reports a scan that could not produce a complete snapshot.
type ScanError struct {
	Root string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Root, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// Options controls what a scan includes and how it treats failures.
type Options struct {
	// FollowSymlinks hashes symlinked files by target content and descends
	// into symlinked directories. When false, symlinks are ignored.
	FollowSymlinks bool
	// SkipUnreadable records unreadable files in Result.Skipped instead of
	// aborting the scan.
	SkipUnreadable bool
	// Exclude holds path.Match patterns tested against both the relative
	// path and the base name of every file and directory.
	Exclude []string
	// SkipPaths holds absolute paths that are never scanned.
	SkipPaths []string
	// SkipPatterns holds filepath.Match patterns tested against the absolute
	// path of every entry. Matches are never scanned.
	SkipPatterns []string
	// Workers bounds concurrent hashing. Zero means runtime.NumCPU().
	Workers int
	Logger  *log.Logger
}

// Validate checks the exclude patterns.
func (o Options) Validate() error {
	for _, pattern := range o.Exclude {
		if _, err := path.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}
	for _, pattern := range o.SkipPatterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid skip pattern %q: %w", pattern, err)
		}
	}
	if o.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", o.Workers)
	}
	return nil
}

// Result is the outcome of a successful scan.
type Result struct {
	Root    string // Absolute, cleaned root that was scanned
	Files   snapshot.Snapshot
	Skipped []*digest.ReadError // Only populated with SkipUnreadable
}

// Scanner produces snapshots of directory trees.
type Scanner struct {
	opts         Options
	skip         map[string]bool
	skipPatterns []string
	workers      int
	logger       *log.Logger
}

// New creates a Scanner with opts.
func New(opts Options) (*Scanner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s := &Scanner{
		opts:    opts,
		skip:    make(map[string]bool, len(opts.SkipPaths)),
		workers: opts.Workers,
		logger:  opts.Logger,
	}
	if s.workers == 0 {
		s.workers = runtime.NumCPU()
	}
	if s.logger == nil {
		s.logger = log.Discard()
	}
	for _, p := range opts.SkipPaths {
		if abs, err := filepath.Abs(p); err == nil {
			s.skip[abs] = true
		}
	}
	for _, p := range opts.SkipPatterns {
		if abs, err := filepath.Abs(p); err == nil {
			s.skipPatterns = append(s.skipPatterns, abs)
		}
	}
	return s, nil
}

// Scan walks root and hashes every regular file below it with h.
func (s *Scanner) Scan(ctx context.Context, root string, h *digest.Hasher) (*Result, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &ScanError{Root: root, Err: err}
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, &ScanError{Root: abs, Err: err}
	}
	if !info.IsDir() {
		return nil, &ScanError{Root: abs, Err: ErrNotDirectory}
	}

	realPath, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, &ScanError{Root: abs, Err: err}
	}

	w := &walker{scanner: s, ancestors: map[string]bool{realPath: true}}
	if err := w.walk(ctx, abs, realPath, ""); err != nil {
		return nil, &ScanError{Root: abs, Err: err}
	}

	files, skipped, err := s.hash(ctx, w.jobs, h)
	if err != nil {
		return nil, &ScanError{Root: abs, Err: err}
	}

	s.logger.Debug("scan complete", "root", abs, "files", files.Len(), "skipped", len(w.unread)+len(skipped))

	return &Result{
		Root:    abs,
		Files:   files,
		Skipped: append(w.unread, skipped...),
	}, nil
}

// hash digests every job with at most s.workers goroutines. Each job writes
// only its own slot; the snapshot is assembled after all workers finish.
func (s *Scanner) hash(ctx context.Context, jobs []job, h *digest.Hasher) (snapshot.Snapshot, []*digest.ReadError, error) {
	sums := make([]string, len(jobs))
	failures := make([]*digest.ReadError, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sum, err := h.Digest(j.abs)
			if err != nil {
				var readErr *digest.ReadError
				if s.opts.SkipUnreadable && errors.As(err, &readErr) {
					failures[i] = readErr
					return nil
				}
				return err
			}
			sums[i] = sum
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	files := make(snapshot.Snapshot, len(jobs))
	var skipped []*digest.ReadError
	for i, j := range jobs {
		if failures[i] != nil {
			skipped = append(skipped, failures[i])
			continue
		}
		files[j.rel] = sums[i]
	}
	return files, skipped, nil
}
