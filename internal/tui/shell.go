package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"fim/internal/drift"
	"fim/internal/monitor"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")).
			Bold(true)

	logStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)
)

// ReportTheme styles drift reports with the shell's palette.
func ReportTheme() drift.Theme {
	render := func(s lipgloss.Style) func(string) string { return s.Render }
	return drift.Theme{
		Header:   render(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))),
		Clean:    render(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))),
		Modified: render(lipgloss.NewStyle().Foreground(lipgloss.Color("214"))),
		Added:    render(lipgloss.NewStyle().Foreground(lipgloss.Color("10"))),
		Deleted:  render(lipgloss.NewStyle().Foreground(lipgloss.Color("9"))),
	}
}

type shellKeyMap struct {
	Select key.Binding
	Create key.Binding
	Check  key.Binding
	Reload key.Binding
	Quit   key.Binding
}

var shellKeys = shellKeyMap{
	Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select folder")),
	Create: key.NewBinding(key.WithKeys("ctrl+b"), key.WithHelp("ctrl+b", "create baseline")),
	Check:  key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "check integrity")),
	Reload: key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "reload log")),
	Quit:   key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
}

// operationDoneMsg carries the outcome of an operation run off the UI loop.
type operationDoneMsg struct {
	status string
	err    error
}

// logLoadedMsg carries a fresh copy of today's event log.
type logLoadedMsg struct {
	content string
	err     error
}

// Shell is the bubbletea model of the full-screen shell: a folder input,
// create and check actions, and a scrolling view of today's event log.
type Shell struct {
	ctx     context.Context
	monitor monitor.Monitor
	logs    LogSource
	theme   drift.Theme

	root   string
	input  textinput.Model
	log    viewport.Model
	status string
	err    error
	busy   bool
}

// NewShell creates the shell model for root.
func NewShell(ctx context.Context, m monitor.Monitor, logs LogSource, root string) Shell {
	input := textinput.New()
	input.Prompt = "Folder: "
	input.Placeholder = "path to monitor"
	input.SetValue(root)
	input.Focus()

	return Shell{
		ctx:     ctx,
		monitor: m,
		logs:    logs,
		theme:   ReportTheme(),
		root:    root,
		input:   input,
		log:     viewport.New(80, 12),
		status:  "Monitoring " + root,
	}
}

// Root returns the folder currently monitored.
func (s Shell) Root() string {
	return s.root
}

// Status returns the last status line.
func (s Shell) Status() string {
	return s.status
}

// Err returns the error of the last operation, if any.
func (s Shell) Err() error {
	return s.err
}

func (s Shell) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, s.loadLog())
}

func (s Shell) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.log.Width = max(msg.Width-2, 20)
		s.log.Height = max(msg.Height-10, 3)
		s.input.Width = max(msg.Width-len(s.input.Prompt)-2, 10)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, shellKeys.Quit):
			return s, tea.Quit
		case s.busy:
			// One operation at a time.
			return s, nil
		case key.Matches(msg, shellKeys.Select):
			dir, err := selectFolder(s.monitor, s.input.Value())
			if err != nil {
				s.err = err
				s.status = ""
				return s, nil
			}
			s.root, s.err = dir, nil
			s.input.SetValue(dir)
			s.status = "Monitoring " + dir
			return s, s.loadLog()
		case key.Matches(msg, shellKeys.Create):
			return s.start("Creating baseline...", func() (string, error) {
				return createBaseline(s.ctx, s.monitor, s.root)
			})
		case key.Matches(msg, shellKeys.Check):
			return s.start("Checking integrity...", func() (string, error) {
				return checkIntegrity(s.ctx, s.monitor, s.root, s.theme)
			})
		case key.Matches(msg, shellKeys.Reload):
			return s, s.loadLog()
		}

	case operationDoneMsg:
		s.busy = false
		s.status, s.err = msg.status, msg.err
		return s, s.loadLog()

	case logLoadedMsg:
		if msg.err != nil {
			s.err = msg.err
			return s, nil
		}
		s.log.SetContent(msg.content)
		s.log.GotoBottom()
		return s, nil
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	cmds = append(cmds, cmd)
	s.log, cmd = s.log.Update(msg)
	cmds = append(cmds, cmd)
	return s, tea.Batch(cmds...)
}

// start marks the shell busy and runs op as a command.
func (s Shell) start(status string, op func() (string, error)) (tea.Model, tea.Cmd) {
	s.busy = true
	s.err = nil
	s.status = status
	return s, func() tea.Msg {
		out, err := op()
		return operationDoneMsg{status: out, err: err}
	}
}

func (s Shell) loadLog() tea.Cmd {
	logs := s.logs
	return func() tea.Msg {
		if logs == nil {
			return logLoadedMsg{}
		}
		content, err := logs.Today()
		return logLoadedMsg{content: content, err: err}
	}
}

func (s Shell) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("File Integrity Monitor"))
	b.WriteString("\n")
	b.WriteString(s.input.View())
	b.WriteString("\n\n")

	switch {
	case s.err != nil:
		b.WriteString(errorStyle.Render(describe(s.err)))
	case s.status != "":
		b.WriteString(statusStyle.Render(s.status))
	}
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("Event log"))
	b.WriteString("\n")
	b.WriteString(logStyle.Render(s.log.View()))
	b.WriteString("\n")

	help := []string{}
	for _, k := range []key.Binding{shellKeys.Select, shellKeys.Create, shellKeys.Check, shellKeys.Reload, shellKeys.Quit} {
		h := k.Help()
		help = append(help, fmt.Sprintf("%s %s", h.Key, h.Desc))
	}
	b.WriteString(helpStyle.Render(strings.Join(help, " • ")))

	return b.String()
}

// RunShell runs the shell full screen until the operator quits.
func RunShell(ctx context.Context, m monitor.Monitor, logs LogSource, root string) error {
	program := tea.NewProgram(NewShell(ctx, m, logs, root), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run shell: %w", err)
	}
	return nil
}
