// Package tui provides the interactive front ends: a menu loop built on huh
// and a full-screen shell built on bubbletea.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fim/internal/baseline"
	"fim/internal/drift"
	"fim/internal/monitor"
)

// FolderSelector is implemented by monitors that record folder selection.
type FolderSelector interface {
	SelectFolder(dir string)
}

// LogSource supplies the event log shown in the shell.
type LogSource interface {
	Today() (string, error)
}

// ValidateDir accepts an existing directory.
func ValidateDir(dir string) error {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return errors.New("folder must not be empty")
	}
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("folder %s does not exist", dir)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a folder", dir)
	}
	return nil
}

// selectFolder validates dir and returns its absolute form.
func selectFolder(m monitor.Monitor, dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if err := ValidateDir(dir); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if fs, ok := m.(FolderSelector); ok {
		fs.SelectFolder(abs)
	}
	return abs, nil
}

// createBaseline runs CreateBaseline and returns a one-line outcome.
func createBaseline(ctx context.Context, m monitor.Monitor, root string) (string, error) {
	b, err := m.CreateBaseline(ctx, root)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Baseline created with %d files.", b.Files.Len()), nil
}

// checkIntegrity runs CheckIntegrity and renders the report.
func checkIntegrity(ctx context.Context, m monitor.Monitor, root string, theme drift.Theme) (string, error) {
	report, err := m.CheckIntegrity(ctx, root)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(drift.FormatCLIWith(report, theme), "\n"), nil
}

func status(m monitor.Monitor) (string, error) {
	st, err := m.Status()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Baseline %s: %d files in %s, %s, created %s",
		st.Path, st.Files, st.Root, st.Algorithm, st.CreatedAt.Local().Format("2006-01-02 15:04:05")), nil
}

// describe turns an operation error into the line shown to the operator.
func describe(err error) string {
	switch {
	case errors.Is(err, baseline.ErrNotFound):
		return "No baseline found. Create one first."
	case errors.Is(err, baseline.ErrCorrupt):
		return "Baseline is corrupt. Create a new one."
	default:
		return "Error: " + err.Error()
	}
}
