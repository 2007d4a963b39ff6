package monitor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fim/internal/baseline"
	"fim/internal/digest"
	"fim/internal/drift"
	"fim/internal/events"
	"fim/internal/log"
	"fim/internal/scanner"
	"fim/internal/snapshot"
)

var fixed = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

type fixture struct {
	root     string
	store    *baseline.Store
	sink     *events.Memory
	scanner  *countingScanner
	service  *Service
	logBuf   *bytes.Buffer
	basePath string
}

// countingScanner wraps the real scanner and counts scans.
type countingScanner struct {
	inner *scanner.Scanner
	scans int
}

func (c *countingScanner) Scan(ctx context.Context, root string, h *digest.Hasher) (*scanner.Result, error) {
	c.scans++
	return c.inner.Scan(ctx, root, h)
}

func newFixture(t *testing.T, opts scanner.Options, svcOpts ...Option) *fixture {
	t.Helper()

	root := t.TempDir()
	basePath := filepath.Join(t.TempDir(), "baseline.json")

	inner, err := scanner.New(opts)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := log.New(log.Config{Level: log.LevelDebug, Output: &buf})

	f := &fixture{
		root:     root,
		store:    baseline.NewStore(basePath),
		sink:     &events.Memory{},
		scanner:  &countingScanner{inner: inner},
		logBuf:   &buf,
		basePath: basePath,
	}
	opts2 := append([]Option{WithLogger(logger), WithClock(func() time.Time { return fixed })}, svcOpts...)
	f.service = New(f.scanner, f.store, f.sink, opts2...)
	return f
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	p := filepath.Join(f.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func TestScenarioA_ModifiedAndAdded(t *testing.T) {
	f := newFixture(t, scanner.Options{})
	f.write(t, "a.txt", "hello")
	f.write(t, "b.txt", "world")

	b, err := f.service.CreateBaseline(context.Background(), f.root)
	require.NoError(t, err)
	require.Equal(t, 2, b.Files.Len())
	assert.NotEqual(t, b.Files["a.txt"], b.Files["b.txt"])
	assert.Equal(t, f.root, b.Root)
	assert.Equal(t, "sha256", b.Algorithm)
	assert.Equal(t, baseline.Checksum(b.Algorithm, b.Files), b.Checksum)

	f.write(t, "a.txt", "hello!")
	f.write(t, "c.txt", "new")

	report, err := f.service.CheckIntegrity(context.Background(), f.root)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt"}, report.Result.Modified)
	assert.Equal(t, []string{"c.txt"}, report.Result.Added)
	assert.Empty(t, report.Result.Deleted)
	assert.True(t, report.HasChanges)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, f.root, report.Root)
	assert.Equal(t, fixed, report.BaselineTime)
	assert.Equal(t, 3, report.Files)

	assert.Equal(t, []string{
		"Baseline created with 2 files for " + f.root,
		"Integrity check: Changes detected in " + f.root + " (modified=1 added=1 deleted=0)",
		"Modified: a.txt",
		"Added: c.txt",
	}, f.sink.Messages())
}

func TestScenarioB_EmptyDirectory(t *testing.T) {
	f := newFixture(t, scanner.Options{})

	b, err := f.service.CreateBaseline(context.Background(), f.root)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Files.Len())

	report, err := f.service.CheckIntegrity(context.Background(), f.root)
	require.NoError(t, err)
	assert.False(t, report.HasChanges)
	assert.Empty(t, report.Changes)
	assert.Equal(t, "Integrity check: No changes detected in "+f.root, f.sink.Messages()[1])
}

func TestScenarioC_NoBaselineDoesNotScan(t *testing.T) {
	f := newFixture(t, scanner.Options{})
	f.write(t, "a.txt", "hello")

	_, err := f.service.CheckIntegrity(context.Background(), f.root)

	var notFound *baseline.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.ErrorIs(t, err, baseline.ErrNotFound)
	assert.Equal(t, 0, f.scanner.scans)
	assert.Equal(t, []string{"No baseline found for " + f.root + ". Create one first."}, f.sink.Messages())
}

func TestScenarioD_Deleted(t *testing.T) {
	f := newFixture(t, scanner.Options{})
	f.write(t, "a.txt", "hello")
	f.write(t, "sub/b.txt", "world")

	_, err := f.service.CreateBaseline(context.Background(), f.root)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(f.root, "sub", "b.txt")))

	report, err := f.service.CheckIntegrity(context.Background(), f.root)
	require.NoError(t, err)
	assert.Equal(t, drift.Result{Modified: []string{}, Added: []string{}, Deleted: []string{"sub/b.txt"}}, report.Result)
	assert.Contains(t, f.sink.Messages(), "Deleted: sub/b.txt")
}

func TestCreateBaseline_Idempotent(t *testing.T) {
	f := newFixture(t, scanner.Options{})
	f.write(t, "a.txt", "hello")
	f.write(t, "x/y/z.txt", "deep")

	_, err := f.service.CreateBaseline(context.Background(), f.root)
	require.NoError(t, err)
	first, err := os.ReadFile(f.basePath)
	require.NoError(t, err)

	_, err = f.service.CreateBaseline(context.Background(), f.root)
	require.NoError(t, err)
	second, err := os.ReadFile(f.basePath)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCreateBaseline_ChecksumIgnoresClock(t *testing.T) {
	f := newFixture(t, scanner.Options{})
	f.write(t, "a.txt", "hello")

	first, err := f.service.CreateBaseline(context.Background(), f.root)
	require.NoError(t, err)

	later := New(f.scanner, f.store, f.sink, WithClock(func() time.Time { return fixed.Add(time.Hour) }))
	second, err := later.CreateBaseline(context.Background(), f.root)
	require.NoError(t, err)

	assert.NotEqual(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, first.Checksum, second.Checksum)
}

func TestCreateBaseline_RelativeRoot(t *testing.T) {
	f := newFixture(t, scanner.Options{})
	f.write(t, "a.txt", "hello")
	t.Chdir(filepath.Dir(f.root))

	b, err := f.service.CreateBaseline(context.Background(), filepath.Base(f.root))
	require.NoError(t, err)
	assert.Equal(t, f.root, b.Root)
}

func TestCreateBaseline_Algorithm(t *testing.T) {
	f := newFixture(t, scanner.Options{}, WithAlgorithm(digest.BLAKE3))
	f.write(t, "a.txt", "hello")

	b, err := f.service.CreateBaseline(context.Background(), f.root)
	require.NoError(t, err)
	assert.Equal(t, "blake3", b.Algorithm)

	// Checks keep using the recorded algorithm even if the default changes.
	other := New(f.scanner, f.store, f.sink, WithAlgorithm(digest.SHA256))
	report, err := other.CheckIntegrity(context.Background(), f.root)
	require.NoError(t, err)
	assert.False(t, report.HasChanges)
	assert.Equal(t, "blake3", report.Algorithm)
}

func TestCreateBaseline_UnknownAlgorithm(t *testing.T) {
	f := newFixture(t, scanner.Options{}, WithAlgorithm("md5"))
	_, err := f.service.CreateBaseline(context.Background(), f.root)
	assert.ErrorIs(t, err, digest.ErrUnknownAlgorithm)
	assert.Equal(t, 0, f.scanner.scans)
}

func TestCreateBaseline_ScanFailureKeepsPreviousBaseline(t *testing.T) {
	f := newFixture(t, scanner.Options{})
	f.write(t, "a.txt", "hello")
	_, err := f.service.CreateBaseline(context.Background(), f.root)
	require.NoError(t, err)

	_, err = f.service.CreateBaseline(context.Background(), filepath.Join(f.root, "missing"))
	var scanErr *scanner.ScanError
	require.ErrorAs(t, err, &scanErr)

	b, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, f.root, b.Root)
}

func TestCheckIntegrity_CorruptBaseline(t *testing.T) {
	f := newFixture(t, scanner.Options{})
	require.NoError(t, os.WriteFile(f.basePath, []byte("{not json"), 0644))

	_, err := f.service.CheckIntegrity(context.Background(), f.root)
	assert.ErrorIs(t, err, baseline.ErrCorrupt)
	assert.Equal(t, 0, f.scanner.scans)
	require.Len(t, f.sink.Messages(), 1)
	assert.True(t, strings.HasPrefix(f.sink.Messages()[0], "Baseline is corrupt: "))
}

func TestCheckIntegrity_DifferentRootWarns(t *testing.T) {
	f := newFixture(t, scanner.Options{})
	f.write(t, "a.txt", "hello")
	_, err := f.service.CreateBaseline(context.Background(), f.root)
	require.NoError(t, err)

	copyRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(copyRoot, "a.txt"), []byte("hello"), 0644))

	report, err := f.service.CheckIntegrity(context.Background(), copyRoot)
	require.NoError(t, err)
	assert.False(t, report.HasChanges)
	assert.Contains(t, f.logBuf.String(), "baseline was created for a different root")
}

func TestSkippedFilesAreEvents(t *testing.T) {
	f := newFixture(t, scanner.Options{FollowSymlinks: true, SkipUnreadable: true})
	f.write(t, "a.txt", "hello")
	dangling := filepath.Join(f.root, "dangling")
	require.NoError(t, os.Symlink(filepath.Join(f.root, "nowhere"), dangling))

	b, err := f.service.CreateBaseline(context.Background(), f.root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, b.Files.Paths())

	msgs := f.sink.Messages()
	require.Len(t, msgs, 2)
	assert.True(t, strings.HasPrefix(msgs[0], "Skipped unreadable file: "+dangling+": "), msgs[0])
	assert.Equal(t, "Baseline created with 1 files for "+f.root, msgs[1])
}

func TestStatusAndReset(t *testing.T) {
	f := newFixture(t, scanner.Options{})

	_, err := f.service.Status()
	assert.ErrorIs(t, err, baseline.ErrNotFound)
	assert.ErrorIs(t, f.service.Reset(), baseline.ErrNotFound)

	f.write(t, "a.txt", "hello")
	b, err := f.service.CreateBaseline(context.Background(), f.root)
	require.NoError(t, err)

	st, err := f.service.Status()
	require.NoError(t, err)
	assert.Equal(t, f.basePath, st.Path)
	assert.Equal(t, f.root, st.Root)
	assert.Equal(t, 1, st.Files)
	assert.Equal(t, fixed, st.CreatedAt)
	assert.Equal(t, b.Checksum, st.Checksum)
	assert.True(t, strings.HasPrefix(st.Fingerprint, "sha256:"))
	assert.Equal(t, 1, f.scanner.scans)

	require.NoError(t, f.service.Reset())
	assert.Equal(t, "Baseline removed", f.sink.Messages()[len(f.sink.Messages())-1])
	assert.False(t, f.store.Exists())
}

type failingSink struct{}

func (failingSink) Record(events.Event) error { return errors.New("disk full") }

func TestSinkFailureDoesNotAbort(t *testing.T) {
	f := newFixture(t, scanner.Options{})
	var buf bytes.Buffer
	svc := New(f.scanner, f.store, failingSink{}, WithLogger(log.New(log.Config{Level: log.LevelError, Output: &buf})))

	_, err := svc.CreateBaseline(context.Background(), f.root)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "failed to record event")
	assert.Contains(t, buf.String(), "disk full")
	assert.Contains(t, buf.String(), "run_id=")
}

func TestSelectFolder(t *testing.T) {
	f := newFixture(t, scanner.Options{})
	f.service.SelectFolder("/srv/data")
	assert.Equal(t, []string{"Folder selected: /srv/data"}, f.sink.Messages())
}

func TestNilSink(t *testing.T) {
	f := newFixture(t, scanner.Options{})
	svc := New(f.scanner, f.store, nil)
	_, err := svc.CreateBaseline(context.Background(), f.root)
	assert.NoError(t, err)
}

func TestCheckIntegrity_SkippedFileIsNotDeleted(t *testing.T) {
	f := newFixture(t, scanner.Options{FollowSymlinks: true, SkipUnreadable: true})
	f.write(t, "a.txt", "hello")
	target := filepath.Join(t.TempDir(), "target.txt")
	require.NoError(t, os.WriteFile(target, []byte("linked"), 0644))
	require.NoError(t, os.Symlink(target, filepath.Join(f.root, "link.txt")))

	b, err := f.service.CreateBaseline(context.Background(), f.root)
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt", "link.txt"}, b.Files.Paths())

	// The link now dangles and cannot be read.
	require.NoError(t, os.Remove(target))

	report, err := f.service.CheckIntegrity(context.Background(), f.root)
	require.NoError(t, err)
	assert.False(t, report.HasChanges)
	assert.Empty(t, report.Result.Deleted)
	assert.Contains(t, f.sink.Messages()[len(f.sink.Messages())-2], "Skipped unreadable file: ")
}

func TestCheckIntegrity_InvalidNameIsStable(t *testing.T) {
	f := newFixture(t, scanner.Options{SkipUnreadable: true})
	f.write(t, "a.txt", "hello")
	if err := os.WriteFile(filepath.Join(f.root, "bad\xff.txt"), []byte("x"), 0644); err != nil {
		t.Skipf("filesystem rejects non-UTF-8 names: %v", err)
	}

	b, err := f.service.CreateBaseline(context.Background(), f.root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, b.Files.Paths())

	for range 2 {
		report, err := f.service.CheckIntegrity(context.Background(), f.root)
		require.NoError(t, err)
		assert.False(t, report.HasChanges)
	}
}

func TestWithoutSkipped(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "data")
	files := snapshot.Snapshot{"a.txt": "x", "sub/b.txt": "y", "subway.txt": "z"}

	tests := []struct {
		name    string
		skipped []*digest.ReadError
		want    snapshot.Snapshot
	}{
		{"none", nil, files},
		{"file", []*digest.ReadError{{Path: filepath.Join(root, "a.txt")}}, snapshot.Snapshot{"sub/b.txt": "y", "subway.txt": "z"}},
		{"directory", []*digest.ReadError{{Path: filepath.Join(root, "sub")}}, snapshot.Snapshot{"a.txt": "x", "subway.txt": "z"}},
		{"root", []*digest.ReadError{{Path: root}}, snapshot.Snapshot{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, withoutSkipped(files, root, tt.skipped))
		})
	}
	assert.Len(t, files, 3)
}
