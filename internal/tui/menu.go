package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"

	"fim/internal/drift"
	"fim/internal/monitor"
)

// Menu choices.
const (
	ChoiceCreate = "create"
	ChoiceCheck  = "check"
	ChoiceStatus = "status"
	ChoiceFolder = "folder"
	ChoiceExit   = "exit"
)

// Menu is the interactive loop offering the monitor's operations.
type Menu struct {
	monitor monitor.Monitor
	root    string
	out     io.Writer
	in      io.Reader
	theme   drift.Theme

	// prompts are replaced in tests
	choose    func(root string) (string, error)
	askFolder func(current string) (string, error)
}

// NewMenu creates a menu operating on root. Output goes to out.
func NewMenu(m monitor.Monitor, root string, out io.Writer) *Menu {
	menu := &Menu{
		monitor: m,
		root:    root,
		out:     out,
		in:      os.Stdin,
		theme:   drift.Theme{},
	}
	menu.choose = menu.promptChoice
	menu.askFolder = menu.promptFolder
	return menu
}

// WithTheme sets the report theme.
func (m *Menu) WithTheme(theme drift.Theme) *Menu {
	m.theme = theme
	return m
}

// Root returns the folder currently monitored.
func (m *Menu) Root() string {
	return m.root
}

// Run shows the menu until the operator exits or ctx is cancelled.
func (m *Menu) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		choice, err := m.choose(m.root)
		if err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return err
		}
		if quit := m.Handle(ctx, choice); quit {
			return nil
		}
	}
}

// Handle performs one menu choice and prints its outcome. It reports
// whether the loop should stop.
func (m *Menu) Handle(ctx context.Context, choice string) bool {
	var (
		msg string
		err error
	)

	switch choice {
	case ChoiceCreate:
		msg, err = createBaseline(ctx, m.monitor, m.root)
	case ChoiceCheck:
		msg, err = checkIntegrity(ctx, m.monitor, m.root, m.theme)
	case ChoiceStatus:
		msg, err = status(m.monitor)
	case ChoiceFolder:
		var dir string
		dir, err = m.askFolder(m.root)
		if err == nil {
			dir, err = selectFolder(m.monitor, dir)
		}
		if err == nil {
			m.root = dir
			msg = "Monitoring " + dir
		}
	case ChoiceExit:
		fmt.Fprintln(m.out, "Exiting...")
		return true
	default:
		msg = "Invalid option. Please try again."
	}

	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false
		}
		msg = describe(err)
	}
	fmt.Fprintln(m.out, msg)
	return false
}

func (m *Menu) promptChoice(root string) (string, error) {
	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("File Integrity Monitor").
				Description("Folder: "+root).
				Options(
					huh.NewOption("Create Baseline", ChoiceCreate),
					huh.NewOption("Check Integrity", ChoiceCheck),
					huh.NewOption("Show Status", ChoiceStatus),
					huh.NewOption("Change Folder", ChoiceFolder),
					huh.NewOption("Exit", ChoiceExit),
				).
				Value(&choice),
		),
	).WithInput(m.in).WithOutput(m.out)

	if err := form.Run(); err != nil {
		return "", err
	}
	return choice, nil
}

func (m *Menu) promptFolder(current string) (string, error) {
	dir := current
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Folder to monitor").
				Value(&dir).
				Validate(ValidateDir),
		),
	).WithInput(m.in).WithOutput(m.out)

	if err := form.Run(); err != nil {
		return "", err
	}
	return dir, nil
}
