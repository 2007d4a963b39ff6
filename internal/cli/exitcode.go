package cli

import (
	"errors"

	"fim/internal/baseline"
)

// Exit codes returned by Execute.
const (
	ExitOK         = 0 // success, or a check with no changes
	ExitError      = 1
	ExitUsage      = 2 // bad flags, arguments or configuration
	ExitChanges    = 3 // a check found changes
	ExitNoBaseline = 4
	ExitCorrupt    = 5
)

// ErrChangesDetected is returned by the check command when the tree
// differs from its baseline. It is an outcome, not a failure.
var ErrChangesDetected = errors.New("changes detected")

// UsageError wraps invalid command-line input.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string {
	return e.Err.Error()
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	var usage *UsageError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrChangesDetected):
		return ExitChanges
	case errors.Is(err, baseline.ErrNotFound):
		return ExitNoBaseline
	case errors.Is(err, baseline.ErrCorrupt):
		return ExitCorrupt
	case errors.As(err, &usage):
		return ExitUsage
	default:
		return ExitError
	}
}
