package drift

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Theme decorates the pieces of a CLI report. The zero value prints plain text.
type Theme struct {
	Header   func(string) string
	Clean    func(string) string
	Modified func(string) string
	Added    func(string) string
	Deleted  func(string) string
}

func apply(f func(string) string, s string) string {
	if f == nil {
		return s
	}
	return f(s)
}

func (t Theme) forType(ct ChangeType) func(string) string {
	switch ct {
	case Modified:
		return t.Modified
	case Added:
		return t.Added
	default:
		return t.Deleted
	}
}

// FormatCLI formats a report for terminal output without styling.
func FormatCLI(report Report) string {
	return FormatCLIWith(report, Theme{})
}

// FormatCLIWith formats a report for terminal output using theme.
func FormatCLIWith(report Report, theme Theme) string {
	if !report.HasChanges {
		return apply(theme.Clean, "✓ No changes detected.") + "\n"
	}

	var sb strings.Builder
	r := report.Result
	sb.WriteString(apply(theme.Header, fmt.Sprintf("! Changes detected: %d modified, %d added, %d deleted",
		len(r.Modified), len(r.Added), len(r.Deleted))))
	sb.WriteString("\n")

	for _, change := range report.Changes {
		label := fmt.Sprintf("%-9s", capitalize(string(change.Type))+":")
		sb.WriteString("    ")
		sb.WriteString(apply(theme.forType(change.Type), label))
		sb.WriteString(" ")
		sb.WriteString(change.Path)
		sb.WriteString("\n")
	}

	return sb.String()
}

// FormatCI formats a report as GitHub Actions warning annotations.
func FormatCI(report Report) string {
	if !report.HasChanges {
		return ""
	}

	var sb strings.Builder
	for _, change := range report.Changes {
		var msg string
		switch change.Type {
		case Modified:
			msg = "File content changed since baseline"
		case Added:
			msg = "File added since baseline"
		case Deleted:
			msg = "File deleted since baseline"
		}
		sb.WriteString(fmt.Sprintf("::warning file=%s::%s\n", change.Path, msg))
	}

	sb.WriteString(fmt.Sprintf("\n⚠️  Integrity drift detected: %d change(s) in %s\n", len(report.Changes), report.Root))
	return sb.String()
}

// FormatJSON formats a report as indented JSON.
func FormatJSON(report Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FormatYAML formats a report as YAML.
func FormatYAML(report Report) (string, error) {
	data, err := yaml.Marshal(report)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
