package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"unicode/utf8"

	"fim/internal/digest"
)

// job is one regular file to hash.
type job struct {
	rel string // snapshot key
	abs string // path used to open the file
}

type walker struct {
	scanner   *Scanner
	ancestors map[string]bool // resolved paths of directories on the current descent
	jobs      []job
	unread    []*digest.ReadError
}

// unreadable applies the read-failure policy: record and continue, or abort.
func (w *walker) unreadable(p string, err error) error {
	readErr := &digest.ReadError{Path: p, Err: err}
	if w.scanner.opts.SkipUnreadable {
		w.scanner.logger.Warn("skipping unreadable path", "path", p, "error", err)
		w.unread = append(w.unread, readErr)
		return nil
	}
	return readErr
}

// skipped reports whether abs is one of the scanner's own files.
func (w *walker) skipped(abs string) bool {
	if w.scanner.skip[abs] {
		return true
	}
	for _, pattern := range w.scanner.skipPatterns {
		if ok, _ := filepath.Match(pattern, abs); ok {
			return true
		}
	}
	return false
}

func (w *walker) excluded(rel, name string) bool {
	for _, pattern := range w.scanner.opts.Exclude {
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// walk visits dir, reached at absolute path dir with symlinks resolved to
// realPath, and records its files under the key prefix rel.
func (w *walker) walk(ctx context.Context, dir, realPath, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if rel == "" {
			// An unreadable root yields no snapshot at all.
			return &digest.ReadError{Path: dir, Err: err}
		}
		return w.unreadable(dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		abs := filepath.Join(dir, name)
		key := path.Join(rel, name)

		if w.skipped(abs) || w.excluded(key, name) {
			continue
		}
		if !utf8.ValidString(name) {
			if err := w.unreadable(abs, fmt.Errorf("%w: %q", ErrInvalidName, name)); err != nil {
				return err
			}
			continue
		}

		mode := entry.Type()
		switch {
		case mode&fs.ModeSymlink != 0:
			if err := w.symlink(ctx, abs, key); err != nil {
				return err
			}

		case mode.IsDir():
			childReal := filepath.Join(realPath, name)
			w.ancestors[childReal] = true
			err := w.walk(ctx, abs, childReal, key)
			delete(w.ancestors, childReal)
			if err != nil {
				return err
			}

		case mode.IsRegular():
			w.jobs = append(w.jobs, job{rel: key, abs: abs})

		default:
			// Devices, sockets and pipes have no stable content.
			w.scanner.logger.Debug("skipping special file", "path", key, "mode", mode.String())
		}
	}

	return nil
}

func (w *walker) symlink(ctx context.Context, abs, key string) error {
	if !w.scanner.opts.FollowSymlinks {
		w.scanner.logger.Debug("not following symlink", "path", key)
		return nil
	}

	target, err := os.Stat(abs)
	if err != nil {
		return w.unreadable(abs, err)
	}

	switch {
	case target.IsDir():
		realPath, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return w.unreadable(abs, err)
		}
		if w.ancestors[realPath] {
			return fmt.Errorf("%w: %s -> %s", ErrSymlinkCycle, key, realPath)
		}
		w.ancestors[realPath] = true
		err = w.walk(ctx, abs, realPath, key)
		delete(w.ancestors, realPath)
		return err

	case target.Mode().IsRegular():
		w.jobs = append(w.jobs, job{rel: key, abs: abs})

	default:
		w.scanner.logger.Debug("skipping symlink to special file", "path", key)
	}
	return nil
}
