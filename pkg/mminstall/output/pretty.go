package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// PrettyFormatter renders a styled table for terminals.
type PrettyFormatter struct{}

// Format writes the styled report.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Report) error {
	w.WriteString(f.header(r))
	w.WriteString("\n")
	w.WriteString(f.table(r))
	w.WriteString(f.footer(r))
	w.WriteString("\n")

	if len(r.Warnings) > 0 {
		w.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
		w.WriteString("\n")
		for _, warning := range r.Warnings {
			w.WriteString(WarningStyle.Render("  " + warning))
			w.WriteString("\n")
		}
	}
	return nil
}

func (f *PrettyFormatter) header(r *Report) string {
	line := func(label, value string) string {
		return LabelStyle.Render(label) + " " + ValueStyle.Render(value)
	}
	lines := []string{line("Install dir:", r.InstallDir), line("Manifest:", r.ManifestPath)}

	var info []string
	if r.PackVersion != "" {
		info = append(info, line("Pack:", r.PackVersion))
	}
	if r.InstallerVersion != "" {
		info = append(info, line("Installed by:", r.InstallerVersion))
	}
	info = append(info, line("Side:", r.Side))
	if r.CanStart {
		info = append(info, SuccessStyle.Render("ready to install"))
	} else {
		info = append(info, ErrorStyle.Render("cannot start"))
	}
	lines = append(lines, strings.Join(info, "  "))

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) table(r *Report) string {
	if len(r.Entries) == 0 {
		return MutedStyle.Render("  No manifest entries\n")
	}

	kindW, nameW, stateW := len("KIND"), len("NAME"), len("STATE")
	for _, e := range r.Entries {
		kindW = max(kindW, len(e.Kind))
		nameW = max(nameW, lipgloss.Width(e.Name))
		stateW = max(stateW, len(e.State))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "  %s  %s  %s  %s\n",
		TableHeaderStyle.Render(padRight("KIND", kindW)),
		TableHeaderStyle.Render(padRight("NAME", nameW)),
		TableHeaderStyle.Render(padRight("STATE", stateW)),
		TableHeaderStyle.Render("FILE"))

	for _, e := range r.Entries {
		file := e.FileName
		if e.Note != "" {
			file = strings.TrimSpace(file + " (" + e.Note + ")")
		}
		fmt.Fprintf(&sb, "  %s  %s  %s  %s\n",
			MutedStyle.Render(padRight(e.Kind, kindW)),
			ValueStyle.Render(padRight(e.Name, nameW)),
			StateStyle(e.State).Render(padRight(string(e.State), stateW)),
			MutedStyle.Render(file))
	}
	return sb.String()
}

func (f *PrettyFormatter) footer(r *Report) string {
	count := func(s State) string {
		return LabelStyle.Render(string(s)+":") + " " + StateStyle(s).Render(fmt.Sprintf("%d", r.Count(s)))
	}
	parts := []string{
		count(StateInstalled), count(StateDrifted), count(StatePending), count(StateSkipped),
		MutedStyle.Render("Use -o plain for unformatted output"),
	}
	return FooterBox.Render(strings.Join(parts, "  "))
}

func padRight(s string, width int) string {
	if n := lipgloss.Width(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func init() {
	Register("pretty", func() Formatter { return &PrettyFormatter{} })
}

var _ Formatter = (*PrettyFormatter)(nil)
