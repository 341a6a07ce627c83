package monitor

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/letsur-dev/claude-peak/internal/activity"
	"github.com/letsur-dev/claude-peak/internal/forecast"
	"github.com/letsur-dev/claude-peak/internal/output"
	"github.com/letsur-dev/claude-peak/internal/poller"
	"github.com/letsur-dev/claude-peak/internal/types"
	"github.com/letsur-dev/claude-peak/internal/update"
)

// Monitor is the live dashboard: a terminal observer of the poller's
// published state. It never talks to the API itself.
type Monitor struct {
	options Options
}

type Options struct {
	Poller   *poller.Poller
	Activity *activity.Monitor
	Update   *update.Result
	Version  string
	NoColor  bool
}

func New(opts Options) *Monitor {
	return &Monitor{options: opts}
}

func (m *Monitor) Start(ctx context.Context) error {
	p := tea.NewProgram(
		initialModel(m.options),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	return err
}

type model struct {
	options Options
	state   poller.State
	tps     float64
	now     time.Time
}

type tickMsg time.Time

type refreshDoneMsg struct{}

func initialModel(opts Options) model {
	return model{
		options: opts,
		state:   opts.Poller.State(),
		now:     time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			return m, m.refreshCmd()
		}

	case tickMsg:
		m.now = time.Time(msg)
		m.state = m.options.Poller.State()
		if m.options.Activity != nil {
			m.tps = m.options.Activity.TokensPerSecond(m.now)
		}
		return m, tickCmd()

	case refreshDoneMsg:
		m.state = m.options.Poller.State()
	}

	return m, nil
}

// refreshCmd triggers an out-of-cycle fetch. The poller's in-flight
// guard makes this safe to mash.
func (m model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		m.options.Poller.FetchNow(context.Background())
		return refreshDoneMsg{}
	}
}

func (m model) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).MarginBottom(1)
	faintStyle := lipgloss.NewStyle().Faint(true)
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#e74c3c"))
	if !m.options.NoColor {
		headerStyle = headerStyle.Foreground(lipgloss.Color("205"))
	}

	content := headerStyle.Render("Claude Peak") + "\n\n"

	switch {
	case m.state.NeedsLogin:
		content += "Not logged in. Run `claude-peak login` to connect your account.\n"
	case m.state.Usage == nil:
		content += "Waiting for first fetch...\n"
	default:
		usage := m.state.Usage
		content += m.bucketLine("5-hour    ", usage.FiveHour)
		content += m.bucketLine("7-day     ", usage.SevenDay)
		if usage.SevenDayOpus != nil {
			content += m.bucketLine("7-day Opus", *usage.SevenDayOpus)
		}
		content += "\n"
		proj := forecast.Project(usage.FiveHour, forecast.FiveHourWindow, m.now)
		content += fmt.Sprintf("Projected at reset: %.0f%% (%s)\n", proj.ProjectedPct, proj.Indicator())
		if m.state.UsageDelta > 0 {
			content += fmt.Sprintf("Delta: +%.1f%% per poll\n", m.state.UsageDelta)
		}
		extra := "disabled"
		if usage.ExtraUsage.IsEnabled {
			extra = "enabled"
		}
		content += faintStyle.Render(fmt.Sprintf("Extra usage %s · fetched %s", extra, usage.FetchedAt.Format("15:04:05"))) + "\n"
	}

	if m.tps > 0 {
		content += fmt.Sprintf("\n%.0f tokens/sec\n", m.tps)
	}

	if m.state.Err != "" {
		content += "\n" + errStyle.Render(m.state.Err) + "\n"
	}
	if m.state.IsFetching {
		content += "\n" + faintStyle.Render("fetching...") + "\n"
	}
	if m.options.Update != nil && m.options.Update.UpdateAvailable {
		content += fmt.Sprintf("\nUpdate available: v%s (current v%s)\n", m.options.Update.LatestVersion, m.options.Version)
	}

	content += "\n" + faintStyle.Render("Press 'q' to quit, 'r' to refresh")
	return content
}

func (m model) bucketLine(label string, b types.UsageBucket) string {
	pctText := fmt.Sprintf("%3d%%", b.Percentage())
	if !m.options.NoColor {
		pctText = lipgloss.NewStyle().Foreground(output.PercentColor(b.Utilization)).Render(pctText)
	}
	return fmt.Sprintf("%s %s %s  resets in %s\n", label, pctText, output.Bar(b.Utilization, 20), b.TimeUntilReset(m.now))
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
