// Package cli implements the fim command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"fim/internal/baseline"
	"fim/internal/config"
	"fim/internal/digest"
	"fim/internal/events"
	"fim/internal/log"
	"fim/internal/monitor"
	"fim/internal/scanner"
)

// App holds the state shared by the commands of one invocation. It is
// populated by the root command's pre-run hook from the resolved config.
type App struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	dir    string // where fim.yaml is looked up

	cfg     config.Config
	logger  *log.Logger
	files   *events.FileSink
	service *monitor.Service
}

// NewApp creates an App writing to stdout and stderr that reads its config
// file from dir.
func NewApp(stdout, stderr io.Writer, dir string) *App {
	return &App{
		stdin:  os.Stdin,
		stdout: stdout,
		stderr: stderr,
		dir:    dir,
	}
}

// Execute runs the command line in args and returns the exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	app := NewApp(stdout, stderr, dir)
	return app.Execute(ctx, args)
}

// Execute runs args against a fresh command tree.
func (a *App) Execute(ctx context.Context, args []string) int {
	cmd := a.RootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(a.stdin)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	err := cmd.ExecuteContext(ctx)
	a.report(err)
	return ExitCode(err)
}

// report prints the operator-facing line for err.
func (a *App) report(err error) {
	var corrupt *baseline.CorruptError
	switch {
	case err == nil, errors.Is(err, ErrChangesDetected):
	case errors.Is(err, baseline.ErrNotFound):
		fmt.Fprintln(a.stderr, "No baseline found. Create one first.")
	case errors.As(err, &corrupt):
		fmt.Fprintf(a.stderr, "Baseline is corrupt: %v\n", corrupt.Err)
	default:
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
	}
}

// RootCommand builds the command tree.
func (a *App) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "fim",
		Short: "File integrity monitor",
		Long: `fim records a baseline of content digests for every file below a
directory and later reports which files were modified, added or deleted.`,
		Args:              usageArgs(cobra.NoArgs),
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		a.baselineCommand(),
		a.checkCommand(),
		a.statusCommand(),
		a.resetCommand(),
		a.menuCommand(),
		a.shellCommand(),
	)
	return root
}

// usageArgs marks argument validation failures as usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &UsageError{Err: err}
		}
		return nil
	}
}

// setup resolves the configuration and wires the monitor.
func (a *App) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags(), a.dir)
	if err != nil {
		return &UsageError{Err: err}
	}
	a.cfg = cfg

	logCfg := cfg.LogConfig()
	logCfg.Output = a.stderr
	a.logger = log.New(logCfg)
	if cfg.File != "" {
		a.logger.Debug("loaded config", "file", cfg.File)
	}

	sc, err := scanner.New(scanner.Options{
		FollowSymlinks: cfg.FollowSymlinks,
		SkipUnreadable: cfg.SkipUnreadable,
		Exclude:        cfg.Exclude,
		SkipPaths:      []string{cfg.Baseline, cfg.LogDir},
		SkipPatterns:   []string{baseline.TempPattern(cfg.Baseline)},
		Workers:        cfg.Workers,
		Logger:         a.logger,
	})
	if err != nil {
		return &UsageError{Err: err}
	}

	a.files = events.NewFileSink(cfg.LogDir)
	sink := events.Multi(a.files, events.LogSink{Logger: a.logger})

	a.service = monitor.New(sc, baseline.NewStore(cfg.Baseline), sink,
		monitor.WithAlgorithm(digest.Algorithm(cfg.Algorithm)),
		monitor.WithLogger(a.logger),
	)
	return nil
}

// rootDir picks the directory argument, falling back to the configured root.
func (a *App) rootDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return a.cfg.Root
}
