package cli

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/pterm/pterm"

	"fim/internal/drift"
	"fim/internal/monitor"
	"fim/internal/tui"
)

// isTerminal reports whether w is a character device.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// theme styles CLI reports when stdout is a terminal.
func (a *App) theme() drift.Theme {
	if !isTerminal(a.stdout) {
		return drift.Theme{}
	}
	return tui.ReportTheme()
}

// withSpinner runs fn, showing a spinner on stderr while it runs when
// stdout is a terminal.
func (a *App) withSpinner(text string, fn func() error) error {
	if !isTerminal(a.stdout) {
		return fn()
	}

	spinner, err := pterm.DefaultSpinner.
		WithStyle(pterm.NewStyle(pterm.FgCyan)).
		WithDelay(100 * time.Millisecond).
		WithRemoveWhenDone(true).
		WithWriter(a.stderr).
		Start(text)
	if err != nil {
		return fn()
	}

	err = fn()
	_ = spinner.Stop()
	return err
}

// statusTable renders st as a two-column table.
func statusTable(st monitor.Status) (string, error) {
	data := pterm.TableData{
		{"Field", "Value"},
		{"Baseline", st.Path},
		{"Root", st.Root},
		{"Algorithm", st.Algorithm},
		{"Created", st.CreatedAt.Local().Format(time.RFC3339)},
		{"Files", strconv.Itoa(st.Files)},
		{"Fingerprint", st.Fingerprint},
		{"Checksum", st.Checksum},
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return "", err
	}
	return table + "\n", nil
}
