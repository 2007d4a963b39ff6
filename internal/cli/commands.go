package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fim/internal/baseline"
	"fim/internal/drift"
	"fim/internal/tui"
)

// Report formats accepted by check --format.
const (
	FormatCLI  = "cli"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCI   = "ci"
)

func (a *App) baselineCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "baseline [DIR]",
		Aliases: []string{"init"},
		Short:   "Record the current state of DIR as the baseline",
		Long: `Scan DIR (default: the configured root) and replace the stored baseline
with the digest of every file found.`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := a.rootDir(args)
			var b baseline.Baseline
			err := a.withSpinner("Scanning "+root+"...", func() error {
				var err error
				b, err = a.service.CreateBaseline(cmd.Context(), root)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Baseline created with %d files.\n", b.Files.Len())
			return nil
		},
	}
}

func (a *App) checkCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "check [DIR]",
		Short: "Compare DIR against the stored baseline",
		Long: `Rescan DIR (default: the configured root) with the baseline's digest
algorithm and report modified, added and deleted files.

Exit status is 0 when nothing changed and 3 when changes were found.`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("format") && isCI() {
				format = FormatCI
			}
			render, err := a.renderer(format)
			if err != nil {
				return err
			}

			root := a.rootDir(args)
			var report drift.Report
			err = a.withSpinner("Checking "+root+"...", func() error {
				var err error
				report, err = a.service.CheckIntegrity(cmd.Context(), root)
				return err
			})
			if err != nil {
				return err
			}

			out, err := render(report)
			if err != nil {
				return err
			}
			fmt.Fprint(a.stdout, out)

			if report.HasChanges {
				return ErrChangesDetected
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", FormatCLI, "report format: cli, json, yaml or ci")
	return cmd
}

// renderer returns the report formatter for format.
func (a *App) renderer(format string) (func(drift.Report) (string, error), error) {
	switch strings.ToLower(format) {
	case FormatCLI:
		theme := a.theme()
		return func(r drift.Report) (string, error) { return drift.FormatCLIWith(r, theme), nil }, nil
	case FormatJSON:
		return func(r drift.Report) (string, error) {
			s, err := drift.FormatJSON(r)
			return s + "\n", err
		}, nil
	case FormatYAML:
		return drift.FormatYAML, nil
	case FormatCI:
		return func(r drift.Report) (string, error) { return drift.FormatCI(r), nil }, nil
	default:
		return nil, &UsageError{Err: fmt.Errorf("unknown format %q (want cli, json, yaml or ci)", format)}
	}
}

// isCI reports whether the CI environment variable is set to a true value.
func isCI() bool {
	v, err := strconv.ParseBool(os.Getenv("CI"))
	return err == nil && v
}

func (a *App) statusCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored baseline without scanning",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.service.Status()
			if err != nil {
				return err
			}
			if asJSON {
				data, err := json.MarshalIndent(st, "", "  ")
				if err != nil {
					return fmt.Errorf("encode status: %w", err)
				}
				fmt.Fprintln(a.stdout, string(data))
				return nil
			}
			table, err := statusTable(st)
			if err != nil {
				return err
			}
			fmt.Fprint(a.stdout, table)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print status as JSON")
	return cmd
}

func (a *App) resetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete the stored baseline",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.service.Reset(); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, "Baseline removed.")
			return nil
		},
	}
}

func (a *App) menuCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "menu [DIR]",
		Short: "Interactive menu for creating baselines and checking integrity",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			menu := tui.NewMenu(a.service, a.rootDir(args), a.stdout).WithTheme(a.theme())
			return menu.Run(cmd.Context())
		},
	}
}

func (a *App) shellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell [DIR]",
		Short: "Full-screen shell with folder selection and the event log",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.RunShell(cmd.Context(), a.service, a.files, a.rootDir(args))
		},
	}
}
