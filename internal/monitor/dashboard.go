package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/learnd/internal/insight"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30

	topInsights  = 5
	topMeta      = 3
	textMaxWidth = 48
)

var levelOrder = []insight.Level{
	insight.LevelHypothesis,
	insight.LevelEmerging,
	insight.LevelProbable,
	insight.LevelConfirmed,
	insight.LevelVerified,
}

// Model is the bubbletea model of the learning dashboard.
type Model struct {
	serverURL  string
	interval   time.Duration
	lastUpdate time.Time
	snapshot   Snapshot
	err        error
	quitting   bool

	insightHistory    []float64
	confidenceHistory []float64
	connectionHistory []float64

	confidenceBar progress.Model
}

// k9s-inspired color scheme
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a dashboard polling serverURL every interval.
func NewModel(serverURL string, interval time.Duration) Model {
	return Model{
		serverURL: serverURL,
		interval:  interval,
		confidenceBar: progress.New(
			progress.WithGradient("#ff0000", "#00ff00"),
			progress.WithWidth(30),
		),
		insightHistory:    make([]float64, 0, historySize),
		confidenceHistory: make([]float64, 0, historySize),
		connectionHistory: make([]float64, 0, historySize),
	}
}

// levelBadge colors a confidence level.
func levelBadge(level insight.Level) string {
	switch level {
	case insight.LevelVerified, insight.LevelConfirmed:
		return healthyStyle.Render(string(level))
	case insight.LevelProbable, insight.LevelEmerging:
		return warningStyle.Render(string(level))
	default:
		return dimStyle.Render(string(level))
	}
}

func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	spark.Draw()

	return sparklineStyle.Render(spark.View())
}

type tickMsg time.Time
type snapshotMsg Snapshot
type errMsg error

// Init starts auto-refresh and the first fetch.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		fetchSnapshot(m.serverURL),
	)
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshot(serverURL string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		snap, err := NewClient(serverURL).Snapshot(ctx)
		if err != nil {
			return errMsg(err)
		}
		return snapshotMsg(snap)
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, fetchSnapshot(m.serverURL)
		}

	case tickMsg:
		return m, tea.Batch(
			tick(m.interval),
			fetchSnapshot(m.serverURL),
		)

	case snapshotMsg:
		snap := Snapshot(msg)
		m.snapshot = snap
		m.insightHistory = appendToHistory(m.insightHistory, float64(len(snap.Insights)))
		m.confidenceHistory = appendToHistory(m.confidenceHistory, snap.MeanConfidence())
		m.connectionHistory = appendToHistory(m.connectionHistory, float64(snap.Connections))
		m.lastUpdate = time.Now()
		m.err = nil
		return m, nil

	case errMsg:
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return m.renderError()
	}
	return m.renderDashboard()
}

func (m Model) renderError() string {
	header := headerStyle.Render("learnd Dashboard")

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(errorStyle.Render("⚠ Cannot reach learnd") + "\n\n")
	b.WriteString(dimStyle.Render("URL: ") + valueStyle.Render(m.serverURL) + "\n")
	b.WriteString(dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n\n")
	b.WriteString(dimStyle.Render("Start the server with: learnd serve") + "\n")
	b.WriteString(footerStyle.Render("[q] quit  [r] retry") + "\n")

	return containerStyle.Render(header + "\n" + b.String())
}

func (m Model) renderDashboard() string {
	snap := m.snapshot
	var b strings.Builder

	lastUpdate := "Never"
	if !m.lastUpdate.IsZero() {
		lastUpdate = m.lastUpdate.Format("3:04:05 PM")
	}
	b.WriteString(headerStyle.Render(" learnd Monitor ") + "\n")
	b.WriteString(healthyStyle.Render("✓ CONNECTED") + "   " + dimStyle.Render(lastUpdate) + "\n")

	b.WriteString("\n" + sectionStyle.Render("┃ Insights") + "\n")
	b.WriteString(labelStyle.Render("  Active: ") +
		valueStyle.Render(fmt.Sprintf("%d", len(snap.Insights))) +
		"   " + createSparkline(m.insightHistory) + "\n")
	b.WriteString(labelStyle.Render("  Mean confidence: ") +
		valueStyle.Render(FormatConfidence(snap.MeanConfidence())) +
		"   " + createSparkline(m.confidenceHistory) + "\n")

	counts := snap.LevelCounts()
	levels := make([]string, 0, len(levelOrder))
	for _, level := range levelOrder {
		levels = append(levels, fmt.Sprintf("%s=%d", levelBadge(level), counts[level]))
	}
	b.WriteString(labelStyle.Render("  Levels: ") + strings.Join(levels, "  ") + "\n")

	for i, in := range snap.Insights {
		if i == topInsights {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  … %d more", len(snap.Insights)-topInsights)) + "\n")
			break
		}
		b.WriteString("  " + m.confidenceBar.ViewAs(in.Confidence) + " " +
			levelBadge(in.Level) + " " +
			dimStyle.Render(string(in.Category)) + " " +
			valueStyle.Render(Truncate(in.Description, textMaxWidth)) + "\n")
	}

	b.WriteString("\n" + sectionStyle.Render("┃ Experiments") + "\n")
	if len(snap.Experiments) == 0 {
		b.WriteString(dimStyle.Render("  none running") + "\n")
	}
	for _, exp := range snap.Experiments {
		b.WriteString(labelStyle.Render("  "+Truncate(exp.Hypothesis, textMaxWidth)) + " " +
			dimStyle.Render(FormatAge(time.Since(exp.StartedAt))) + "\n")
		for _, variant := range exp.Variants {
			b.WriteString(dimStyle.Render("    "+variant+": ") +
				valueStyle.Render(FormatVariant(exp.Results[variant], exp.Observations[variant])) + "\n")
		}
	}

	b.WriteString("\n" + sectionStyle.Render("┃ Knowledge") + "\n")
	b.WriteString(labelStyle.Render("  Connections: ") +
		valueStyle.Render(fmt.Sprintf("%d", snap.Connections)) +
		"   " + createSparkline(m.connectionHistory) + "\n")
	b.WriteString(labelStyle.Render("  Concepts: ") +
		valueStyle.Render(fmt.Sprintf("%d", snap.Concepts)) + "\n")

	b.WriteString("\n" + sectionStyle.Render("┃ Reflection") + "\n")
	if len(snap.MetaInsights) == 0 {
		b.WriteString(dimStyle.Render("  no meta-insights yet") + "\n")
	}
	for i, meta := range snap.MetaInsights {
		if i == topMeta {
			break
		}
		b.WriteString("  " + warningStyle.Render(string(meta.Type)) + " " +
			valueStyle.Render(Truncate(meta.Text, textMaxWidth)) + " " +
			dimStyle.Render(FormatConfidence(meta.Confidence)) + "\n")
	}

	footer := footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerStyle.Render(fmt.Sprintf("Auto: %v", m.interval))
	b.WriteString("\n" + footer)

	return containerStyle.Render(b.String())
}
