package tui

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/mminstall/pkg/mminstall/event"
	"github.com/jamesainslie/mminstall/pkg/mminstall/installer"
	"github.com/jamesainslie/mminstall/pkg/mminstall/logging"
)

// ErrInterrupted is returned by Run when the user quits before the run
// finishes. Completed artifacts are kept and the next run resumes.
var ErrInterrupted = errors.New("install interrupted")

const maxLogLines = 5

// Options configures the progress view.
type Options struct {
	InstallDir string
	Version    string

	// Start begins the run. It is called once from Init.
	Start func() (<-chan installer.Outcome, error)

	// Events carries the run's events, usually a Broadcaster subscription.
	Events <-chan event.Event

	// Logs optionally carries log entries shown under the progress bar.
	Logs <-chan logging.Entry
}

type (
	eventMsg        event.Event
	eventsClosedMsg struct{}
	logMsg          logging.Entry
	outcomeMsg      installer.Outcome
)

// Model is the install progress view.
type Model struct {
	opts Options

	bar     progress.Model
	spinner spinner.Model

	phase    event.Phase
	detail   string
	fraction float64
	alerts   []event.Event
	logs     []logging.Entry

	started     time.Time
	done        bool
	interrupted bool
	outcome     installer.Outcome

	width  int
	height int
}

// NewModel creates the view for opts.
func NewModel(opts Options) Model {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return Model{
		opts:    opts,
		bar:     progress.New(progress.WithDefaultGradient()),
		spinner: s,
		started: time.Now(),
		width:   80,
		height:  24,
	}
}

// Init starts the run and begins listening for its events.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.start(),
		m.waitEvent(),
		m.waitLog(),
	)
}

func (m Model) start() tea.Cmd {
	return func() tea.Msg {
		ch, err := m.opts.Start()
		if err != nil {
			return outcomeMsg{Err: err}
		}
		return outcomeMsg(<-ch)
	}
}

func (m Model) waitEvent() tea.Cmd {
	if m.opts.Events == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-m.opts.Events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(e)
	}
}

func (m Model) waitLog() tea.Cmd {
	if m.opts.Logs == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-m.opts.Logs
		if !ok {
			return nil
		}
		return logMsg(e)
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(m.width-8, 10)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if !m.done {
				m.interrupted = true
			}
			return m, tea.Quit
		case "q", "esc", "enter":
			if m.done {
				return m, tea.Quit
			}
		}
		return m, nil

	case eventMsg:
		m.apply(event.Event(msg))
		return m, m.waitEvent()

	case eventsClosedMsg:
		return m, nil

	case logMsg:
		m.logs = append(m.logs, logging.Entry(msg))
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
		return m, m.waitLog()

	case outcomeMsg:
		m.done = true
		m.outcome = installer.Outcome(msg)
		if m.outcome.Err == nil {
			m.fraction = 1
		}
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) apply(e event.Event) {
	switch e.Type {
	case event.TypeChangePhase:
		m.phase = e.Phase
		m.detail = ""
	case event.TypeChangeDetail:
		m.detail = e.Detail
	case event.TypeUpdateProgress:
		m.fraction = min(max(e.Progress, m.fraction), 1)
	case event.TypeAddAlert:
		m.alerts = append(m.alerts, e)
	}
}

// View renders the model.
func (m Model) View() string {
	contentWidth := max(m.width-4, 40)
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(m.renderHeader(contentWidth))
	b.WriteString("\n")
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n\n")

	switch {
	case m.done && m.outcome.Err != nil:
		b.WriteString(errorTextStyle.Render("  " + failureText(m.outcome.Err)))
	case m.done:
		b.WriteString(successTextStyle.Render("  Installation complete"))
	default:
		b.WriteString("  " + m.spinner.View() + " " + phaseStyle.Render(PhaseLabel(m.phase)))
	}
	b.WriteString("\n")
	if m.detail != "" && !m.done {
		b.WriteString(mutedTextStyle.Render("    " + truncate(m.detail, contentWidth-6)))
	}
	b.WriteString("\n\n  ")
	b.WriteString(m.bar.ViewAs(m.fraction))
	b.WriteString("\n\n")

	for _, a := range m.alerts {
		style := mutedTextStyle
		if a.Level == event.LevelWarning {
			style = warningTextStyle
		}
		b.WriteString(style.Render("  ! " + AlertText(a.Key)))
		b.WriteString("\n")
	}

	if m.done {
		b.WriteString(m.renderSummary())
		b.WriteString("\n")
		b.WriteString(mutedTextStyle.Render("  Press q to exit"))
		b.WriteString("\n")
	} else if len(m.logs) > 0 {
		b.WriteString("\n")
		for _, e := range m.logs {
			line := fmt.Sprintf("  %s %-9s %s", e.Time.Format("15:04:05"), e.Component, e.Message)
			b.WriteString(mutedTextStyle.Render(truncate(line, contentWidth)))
			b.WriteString("\n")
		}
	}

	content := b.String()
	if pad := m.height - 2 - (strings.Count(content, "\n") + 1); pad > 0 {
		content += strings.Repeat("\n", pad)
	}
	return outerBoxStyle.Width(m.width - 2).Render(content)
}

func (m Model) renderHeader(width int) string {
	title := titleStyle.Render("  mminstall " + m.opts.Version)
	hint := mutedTextStyle.Render(filepath.Base(m.opts.InstallDir))
	spacing := max(width-lipgloss.Width(title)-lipgloss.Width(hint), 1)
	return title + strings.Repeat(" ", spacing) + hint
}

func (m Model) renderSummary() string {
	s := m.outcome.Summary
	if s == nil {
		return ""
	}
	line := fmt.Sprintf("  %d downloaded, %d updated, %d up to date  •  %s  •  %s",
		s.Count(installer.ActionDownloaded),
		s.Count(installer.ActionRedownloaded),
		s.Count(installer.ActionSkipped),
		humanize.Bytes(uint64(s.Bytes())),
		s.Duration().Round(time.Millisecond))
	return mutedTextStyle.Render(line)
}

// Interrupted reports whether the user quit before the run finished.
func (m Model) Interrupted() bool { return m.interrupted }

// Outcome returns the finished run, if any.
func (m Model) Outcome() (installer.Outcome, bool) { return m.outcome, m.done }

// Run shows the progress view until the user exits and returns the run's
// outcome.
func Run(opts Options) (installer.Outcome, error) {
	p := tea.NewProgram(NewModel(opts), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return installer.Outcome{}, fmt.Errorf("running progress view: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return installer.Outcome{}, errors.New("unexpected model type")
	}
	if out, done := m.Outcome(); done {
		return out, nil
	}
	return installer.Outcome{}, ErrInterrupted
}

// PhaseLabel is the display name of a phase.
func PhaseLabel(p event.Phase) string {
	switch p {
	case event.PhasePrepareWorkspace:
		return "Preparing workspace"
	case event.PhaseDownloadModLoader:
		return "Installing mod loader"
	case event.PhaseDownloadMods:
		return "Installing mods"
	case event.PhaseDownloadResources:
		return "Installing resources"
	case event.PhaseAddProfile:
		return "Adding launcher profile"
	case event.PhaseLaunchModLoader:
		return "Opening mod loader installer"
	case "":
		return "Starting"
	default:
		return string(p)
	}
}

// AlertText is the display text of an alert key.
func AlertText(key string) string {
	switch key {
	case event.AlertFailedAddProfile:
		return "Could not add the launcher profile; add it manually."
	case event.AlertFailedLaunchModLoader:
		return "Could not open the mod loader installer; run it from the install folder."
	case event.AlertLaunchModLoader:
		return "The mod loader installer was opened; finish it to complete the setup."
	default:
		return key
	}
}

func failureText(err error) string {
	if errors.Is(err, installer.ErrInstallFailed) {
		return "Installation failed; run 'mminstall logs' for details"
	}
	return "Error: " + err.Error()
}

func truncate(s string, n int) string {
	if n < 4 || lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
