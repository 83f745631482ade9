package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer provides rich terminal UI using bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *sweepModel
	tracker *ProgressTracker
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer. It fails when the output is not a
// terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	tracker := NewProgressTracker()
	model := newSweepModel(tracker, cfg.Workspace)

	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	r.ctx, r.cancel = context.WithCancel(ctx)

	var opts []tea.ProgramOption
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	opts = append(opts, tea.WithAltScreen())

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()

	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.Apply(event)

	if r.program != nil {
		r.program.Send(progressUpdateMsg(event))
	}
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.AddError(event)

	if r.program != nil {
		r.program.Send(errorMsg(event))
	}
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.SetStage(StageComplete)

	if r.program != nil {
		r.program.Send(completeMsg(stats))
	}
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}

	if r.program != nil {
		r.program.Quit()

		// An unresponsive program must not hang shutdown on Ctrl+C.
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
		}
	}

	return nil
}

// Message types for bubbletea
type progressUpdateMsg ProgressEvent
type errorMsg ErrorEvent
type completeMsg CompletionStats
type tickMsg time.Time

// sweepModel is the bubbletea model for sweep progress.
type sweepModel struct {
	tracker     *ProgressTracker
	width       int
	height      int
	quitting    bool
	complete    bool
	stats       CompletionStats
	spinner     spinner.Model
	progressBar progress.Model
	styles      Styles
	workspace   string
}

func newSweepModel(tracker *ProgressTracker, workspace string) *sweepModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	p := progress.New(
		progress.WithSolidFill(ColorLime),
		progress.WithWidth(50),
		progress.WithoutPercentage(),
	)

	return &sweepModel{
		tracker:     tracker,
		spinner:     s,
		progressBar: p,
		styles:      DefaultStyles(),
		width:       80,
		height:      24,
		workspace:   workspace,
	}
}

// Init implements tea.Model.
func (m *sweepModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *sweepModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progressBar.Width = msg.Width - 20
		if m.progressBar.Width < 20 {
			m.progressBar.Width = 20
		}

	case progressUpdateMsg, errorMsg:
		// The renderer already folded these into the tracker.
		return m, nil

	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *sweepModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}

	if m.complete {
		return m.renderComplete()
	}

	contentWidth := m.width - 4
	if contentWidth < 40 {
		contentWidth = 40
	}

	stats := m.tracker.Stats()
	sections := []string{
		m.renderStages(stats.Stage),
		m.renderDivider(contentWidth),
		m.renderProgress(stats),
		m.renderTiming(stats),
		m.renderDivider(contentWidth),
		m.renderMAPHistory(contentWidth),
	}

	if leaders := m.tracker.Leaders(); len(leaders) > 0 {
		sections = append(sections, m.renderDivider(contentWidth), m.renderLeaders(leaders, contentWidth))
	}

	if stats.Config != "" {
		sections = append(sections, m.renderDivider(contentWidth))
		sections = append(sections, m.styles.Dim.Render(truncateLabel(stats.Config, contentWidth-2)))
	}

	title := "cranbench sweep"
	if m.workspace != "" {
		title = fmt.Sprintf("cranbench sweep • %s", m.workspace)
	}
	panel := m.wrapInPanel(title, strings.Join(sections, "\n"), contentWidth)

	return panel + "\n" + m.renderStatusBar(stats)
}

// renderStages renders the pipeline stage indicators for the most recent event.
func (m *sweepModel) renderStages(current Stage) string {
	stages := []struct {
		stage Stage
		name  string
	}{
		{StageParsing, "Parse"},
		{StageBuilding, "Build"},
		{StageSearching, "Search"},
		{StageWriting, "Write"},
		{StageEvaluating, "Eval"},
	}

	var parts []string
	for _, s := range stages {
		var icon string
		var style lipgloss.Style

		switch {
		case s.stage < current:
			icon = "●"
			style = m.styles.Success
		case s.stage == current:
			icon = m.spinner.View()
			style = m.styles.Active
		default:
			icon = "○"
			style = m.styles.Dim
		}

		parts = append(parts, style.Render(icon+" "+s.name))
	}

	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

func (m *sweepModel) renderProgress(stats ProgressStats) string {
	if stats.Total == 0 {
		return fmt.Sprintf("%s %s...\n%s",
			m.spinner.View(),
			stats.Stage.String(),
			m.styles.Dim.Render("Preparing..."))
	}

	bar := m.progressBar.ViewAs(stats.Progress)
	pct := m.styles.Active.Render(fmt.Sprintf("%3.0f%%", stats.Progress*100))
	count := m.styles.Label.Render(fmt.Sprintf("%d / %d configurations", stats.Current, stats.Total))

	return fmt.Sprintf("%s  %s\n%s", bar, pct, count)
}

// renderTiming renders per-configuration time, ETA and the best MAP so far.
func (m *sweepModel) renderTiming(stats ProgressStats) string {
	var parts []string

	per := "Per config: -"
	if stats.Throughput.Last > 0 {
		per = fmt.Sprintf("Per config: %s (avg: %s)",
			formatDuration(stats.Throughput.Last), formatDuration(stats.Throughput.Avg))
	}
	parts = append(parts, m.styles.Speed.Render(per))

	if e := stats.ETA; e > 0 {
		parts = append(parts, m.styles.Label.Render("ETA: "+formatDuration(e)))
	}

	if stats.HasBest {
		parts = append(parts, m.styles.Active.Render(fmt.Sprintf("Best MAP: %.4f", stats.BestMAP)))
	}

	return strings.Join(parts, m.styles.Dim.Render("  •  "))
}

func (m *sweepModel) renderMAPHistory(width int) string {
	sparkWidth := width - 10
	if sparkWidth < 10 {
		sparkWidth = 10
	}

	spark := m.tracker.RenderMAPHistory(sparkWidth)
	return m.styles.Sparkline.Render(spark) + " " + m.styles.Dim.Render("map ─")
}

// renderLeaders lists the best configurations so far with their MAP.
func (m *sweepModel) renderLeaders(leaders []Leader, width int) string {
	lines := make([]string, len(leaders))
	for i, l := range leaders {
		label := truncateLabel(l.Config, width-14)
		style := m.styles.Label
		if i == 0 {
			style = m.styles.Active
		}
		lines[i] = style.Render(fmt.Sprintf("%d. %-*s %.4f", i+1, width-14, label, l.MAP))
	}
	return strings.Join(lines, "\n")
}

func (m *sweepModel) renderDivider(width int) string {
	return m.styles.Border.Render(strings.Repeat("─", width))
}

func (m *sweepModel) wrapInPanel(title, content string, width int) string {
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDarkGray)).
		Padding(0, 1).
		Width(width)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Header.Render(title),
		panel.Render(content),
	)
}

func (m *sweepModel) renderStatusBar(stats ProgressStats) string {
	var parts []string

	if stats.WarnCount > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", stats.WarnCount)))
	}
	if stats.ErrorCount > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", stats.ErrorCount)))
	}

	if len(parts) == 0 {
		return m.styles.Dim.Render("q to quit")
	}

	sep := m.styles.Dim.Render("  │  ")
	return strings.Join(parts, sep) + sep + m.styles.Dim.Render("q to quit")
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", h, m)
}

func (m *sweepModel) renderComplete() string {
	contentWidth := m.width - 4
	if contentWidth < 40 {
		contentWidth = 40
	}

	var lines []string
	lines = append(lines, m.styles.Success.Render("✓ Sweep Complete"), "")

	row := func(label string, value string) {
		lines = append(lines, fmt.Sprintf("%-16s %s", m.styles.Label.Render(label), m.styles.Active.Render(value)))
	}
	row("Configurations:", fmt.Sprintf("%d", m.stats.Configurations))
	row("Evaluated:", fmt.Sprintf("%d", m.stats.Succeeded))
	row("Duration:", formatDuration(m.stats.Duration))
	if m.stats.BestConfig != "" {
		row("Best:", fmt.Sprintf("%s (map %.4f)", m.stats.BestConfig, m.stats.BestMAP))
	}

	if m.stats.Failed > 0 || m.stats.Unevaluated > 0 {
		lines = append(lines, "")
		if m.stats.Failed > 0 {
			lines = append(lines, m.styles.Error.Render(fmt.Sprintf("✗ %d failed", m.stats.Failed)))
		}
		if m.stats.Unevaluated > 0 {
			lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("⚠ %d not evaluated", m.stats.Unevaluated)))
		}
	}

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorLime)).
		Padding(1, 2).
		Width(contentWidth)

	return panel.Render(strings.Join(lines, "\n")) + "\n"
}

// truncateLabel shortens a configuration label to maxLen, keeping its tail,
// which holds the boost fields.
func truncateLabel(label string, maxLen int) string {
	if label == "" || len(label) <= maxLen {
		return label
	}
	if maxLen < 4 {
		return "..."
	}
	return "..." + label[len(label)-maxLen+3:]
}

var _ Renderer = (*TUIRenderer)(nil)
