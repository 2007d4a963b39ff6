// Package monitor orchestrates baseline creation and integrity checks.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"fim/internal/baseline"
	"fim/internal/digest"
	"fim/internal/drift"
	"fim/internal/events"
	"fim/internal/log"
	"fim/internal/scanner"
	"fim/internal/snapshot"
)

// Monitor is the surface shared by the command line, the menu and the shell.
type Monitor interface {
	CreateBaseline(ctx context.Context, root string) (baseline.Baseline, error)
	CheckIntegrity(ctx context.Context, root string) (drift.Report, error)
	Status() (Status, error)
	Reset() error
}

// Scanner produces a snapshot of a directory tree.
type Scanner interface {
	Scan(ctx context.Context, root string, h *digest.Hasher) (*scanner.Result, error)
}

// Store persists the current baseline.
type Store interface {
	Path() string
	Save(b baseline.Baseline) error
	Load() (baseline.Baseline, error)
	Delete() error
}

// Status describes the stored baseline without rescanning.
type Status struct {
	Path        string    `json:"path" yaml:"path"`
	Root        string    `json:"root" yaml:"root"`
	Algorithm   string    `json:"algorithm" yaml:"algorithm"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
	Files       int       `json:"files" yaml:"files"`
	Fingerprint string    `json:"fingerprint" yaml:"fingerprint"`
	Checksum    string    `json:"checksum" yaml:"checksum"`
}

// Service implements Monitor on top of a scanner, a baseline store and an
// event sink. It holds no per-root state; every operation takes its root.
type Service struct {
	scanner   Scanner
	store     Store
	sink      events.Sink
	algorithm digest.Algorithm
	logger    *log.Logger
	now       func() time.Time
}

var _ Monitor = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithAlgorithm sets the digest algorithm used for new baselines. Checks
// always use the algorithm recorded in the baseline.
func WithAlgorithm(algo digest.Algorithm) Option {
	return func(s *Service) {
		s.algorithm = algo
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now for baseline timestamps and events.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Service. A nil sink discards events.
func New(sc Scanner, store Store, sink events.Sink, opts ...Option) *Service {
	s := &Service{
		scanner:   sc,
		store:     store,
		sink:      sink,
		algorithm: digest.Default,
		logger:    log.Discard(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sink == nil {
		s.sink = events.Multi()
	}
	return s
}

// CreateBaseline scans root and replaces the stored baseline with the result.
func (s *Service) CreateBaseline(ctx context.Context, root string) (baseline.Baseline, error) {
	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID, "op", "baseline")

	abs, err := filepath.Abs(root)
	if err != nil {
		return baseline.Baseline{}, fmt.Errorf("resolve root: %w", err)
	}

	h, err := digest.New(s.algorithm)
	if err != nil {
		return baseline.Baseline{}, err
	}

	logger.Debug("scanning", "root", abs, "algorithm", h.Algorithm())
	res, err := s.scanner.Scan(ctx, abs, h)
	if err != nil {
		return baseline.Baseline{}, err
	}
	s.recordSkipped(logger, res.Skipped)

	b := baseline.Baseline{
		Version:   baseline.FormatVersion,
		Root:      res.Root,
		Algorithm: string(h.Algorithm()),
		CreatedAt: s.now().UTC().Truncate(time.Second),
		Files:     res.Files,
	}
	if err := s.store.Save(b); err != nil {
		return baseline.Baseline{}, fmt.Errorf("save baseline: %w", err)
	}
	b.Checksum = baseline.Checksum(b.Algorithm, b.Files)

	logger.Info("baseline created", "root", b.Root, "files", b.Files.Len(), "path", s.store.Path())
	s.emit(logger, "Baseline created with %d files for %s", b.Files.Len(), b.Root)
	return b, nil
}

// CheckIntegrity loads the stored baseline, rescans root with the
// baseline's algorithm and classifies the differences. Without a usable
// baseline nothing is scanned.
func (s *Service) CheckIntegrity(ctx context.Context, root string) (drift.Report, error) {
	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID, "op", "check")

	abs, err := filepath.Abs(root)
	if err != nil {
		return drift.Report{}, fmt.Errorf("resolve root: %w", err)
	}

	b, err := s.store.Load()
	if err != nil {
		var corrupt *baseline.CorruptError
		switch {
		case errors.Is(err, baseline.ErrNotFound):
			s.emit(logger, "No baseline found for %s. Create one first.", abs)
		case errors.As(err, &corrupt):
			s.emit(logger, "Baseline is corrupt: %v", corrupt.Err)
		}
		return drift.Report{}, err
	}

	if b.Root != "" && filepath.Clean(b.Root) != abs {
		logger.Warn("baseline was created for a different root", "baseline_root", b.Root, "root", abs)
	}

	h, err := digest.New(digest.Algorithm(b.Algorithm))
	if err != nil {
		return drift.Report{}, &baseline.CorruptError{Path: s.store.Path(), Err: err}
	}

	res, err := s.scanner.Scan(ctx, abs, h)
	if err != nil {
		return drift.Report{}, err
	}
	s.recordSkipped(logger, res.Skipped)

	report := drift.NewReport(withoutSkipped(b.Files, res.Root, res.Skipped), res.Files)
	report.RunID = runID
	report.Root = res.Root
	report.Algorithm = b.Algorithm
	report.BaselineTime = b.CreatedAt
	report.CheckedAt = s.now().UTC()

	r := report.Result
	logger.Info("integrity check complete", "root", res.Root, "files", report.Files,
		"modified", len(r.Modified), "added", len(r.Added), "deleted", len(r.Deleted))

	if !r.HasChanges() {
		s.emit(logger, "Integrity check: No changes detected in %s", res.Root)
		return report, nil
	}

	s.emit(logger, "Integrity check: Changes detected in %s (modified=%d added=%d deleted=%d)",
		res.Root, len(r.Modified), len(r.Added), len(r.Deleted))
	for _, p := range r.Modified {
		s.emit(logger, "Modified: %s", p)
	}
	for _, p := range r.Added {
		s.emit(logger, "Added: %s", p)
	}
	for _, p := range r.Deleted {
		s.emit(logger, "Deleted: %s", p)
	}
	return report, nil
}

// Status reports the stored baseline's metadata.
func (s *Service) Status() (Status, error) {
	b, err := s.store.Load()
	if err != nil {
		return Status{}, err
	}
	return Status{
		Path:        s.store.Path(),
		Root:        b.Root,
		Algorithm:   b.Algorithm,
		CreatedAt:   b.CreatedAt,
		Files:       b.Files.Len(),
		Fingerprint: b.Files.Fingerprint(),
		Checksum:    b.Checksum,
	}, nil
}

// Reset deletes the stored baseline.
func (s *Service) Reset() error {
	logger := s.logger.With("run_id", uuid.NewString(), "op", "reset")
	if err := s.store.Delete(); err != nil {
		return err
	}
	logger.Info("baseline removed", "path", s.store.Path())
	s.emit(logger, "Baseline removed")
	return nil
}

// SelectFolder records that an operator picked dir for monitoring.
func (s *Service) SelectFolder(dir string) {
	s.emit(s.logger, "Folder selected: %s", dir)
}

func (s *Service) recordSkipped(logger *log.Logger, skipped []*digest.ReadError) {
	for _, e := range skipped {
		s.emit(logger, "Skipped unreadable file: %s: %v", e.Path, e.Err)
	}
}

// withoutSkipped drops the baseline entries at or below paths that could not
// be read during this scan, so they are not reported as deleted.
func withoutSkipped(files snapshot.Snapshot, root string, skipped []*digest.ReadError) snapshot.Snapshot {
	if len(skipped) == 0 {
		return files
	}
	kept := files.Clone()
	for _, e := range skipped {
		rel, err := filepath.Rel(root, e.Path)
		if err != nil {
			continue
		}
		rel = snapshot.NormalizePath(rel)
		if rel == "." {
			// Nothing under the root can be vouched for.
			return snapshot.Snapshot{}
		}
		for p := range kept {
			if p == rel || strings.HasPrefix(p, rel+"/") {
				delete(kept, p)
			}
		}
	}
	return kept
}

// emit records an event. A sink failure is logged and otherwise ignored.
func (s *Service) emit(logger *log.Logger, format string, args ...any) {
	e := events.New(s.now(), format, args...)
	if err := s.sink.Record(e); err != nil {
		logger.WithError(err).Error("failed to record event", "message", e.Message)
	}
}
