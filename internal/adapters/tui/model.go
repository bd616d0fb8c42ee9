// Package tui provides the live tracking dashboard using the Bubbletea
// framework.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/xvierd/notetime/internal/domain"
)

// Snapshot is everything the dashboard renders in one frame.
type Snapshot struct {
	State    domain.TrackingState
	Today    *domain.AggregatedStats
	Timeline []domain.TimelineEntry
	Now      time.Time
}

// Command is a tracker control request issued from the keyboard.
type Command string

const (
	CommandStart  Command = "start"
	CommandStop   Command = "stop"
	CommandPause  Command = "pause"
	CommandResume Command = "resume"
)

// Options configures a dashboard Model.
type Options struct {
	// Fetch returns the current snapshot. It is called off the UI goroutine.
	Fetch func() (Snapshot, error)
	// OnCommand applies a control command. Nil disables the s and p keys.
	OnCommand func(Command) error
	// DailyGoal is the tracked time that fills the progress bar.
	DailyGoal time.Duration
}

// breakdownKind selects which ranked list the table shows.
type breakdownKind int

const (
	kindFiles breakdownKind = iota
	kindFolders
	kindTags
	kindCategories
	kindCount
)

func (k breakdownKind) String() string {
	switch k {
	case kindFiles:
		return "Files"
	case kindFolders:
		return "Folders"
	case kindTags:
		return "Tags"
	default:
		return "Categories"
	}
}

func (k breakdownKind) items(s *domain.AggregatedStats) []domain.BreakdownItem {
	if s == nil {
		return nil
	}
	switch k {
	case kindFiles:
		return s.Files
	case kindFolders:
		return s.Folders
	case kindTags:
		return s.Tags
	default:
		return s.Categories
	}
}

const (
	colorTitle    = lipgloss.Color("#A78BFA")
	colorTracking = lipgloss.Color("#10B981")
	colorPaused   = lipgloss.Color("#F59E0B")
	colorStopped  = lipgloss.Color("#6B7280")
	colorError    = lipgloss.Color("#EF4444")
	colorHelp     = lipgloss.Color("#9CA3AF")
)

// tickMsg is sent on every refresh tick.
type tickMsg time.Time

// snapshotMsg carries a snapshot fetched asynchronously.
type snapshotMsg struct {
	snap Snapshot
	err  error
}

// commandMsg reports the outcome of a control command.
type commandMsg struct {
	cmd Command
	err error
}

// Model is the dashboard state.
type Model struct {
	opts     Options
	snap     Snapshot
	loaded   bool
	err      error
	kind     breakdownKind
	table    table.Model
	progress progress.Model
	width    int
	height   int
}

// NewModel creates a dashboard model.
func NewModel(opts Options) Model {
	t := table.New(
		table.WithColumns(columns(60)),
		table.WithFocused(true),
		table.WithHeight(8),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(colorTitle)
	t.SetStyles(styles)

	return Model{
		opts:     opts,
		table:    t,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
}

// columns sizes the breakdown table for a terminal width.
func columns(width int) []table.Column {
	name := width - 36
	if name < 16 {
		name = 16
	}
	return []table.Column{
		{Title: "Name", Width: name},
		{Title: "Time", Width: 10},
		{Title: "Sessions", Width: 9},
		{Title: "Share", Width: 7},
	}
}

// Init starts the refresh loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(fetchCmd(m.opts.Fetch), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchCmd(fetch func() (Snapshot, error)) tea.Cmd {
	if fetch == nil {
		return nil
	}
	return func() tea.Msg {
		snap, err := fetch()
		return snapshotMsg{snap: snap, err: err}
	}
}

func commandCmd(apply func(Command) error, c Command) tea.Cmd {
	return func() tea.Msg {
		return commandMsg{cmd: c, err: apply(c)}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetColumns(columns(msg.Width))
		m.progress.Width = max(10, min(msg.Width-20, 50))
		return m, nil

	case tickMsg:
		return m, tea.Batch(fetchCmd(m.opts.Fetch), tickCmd())

	case snapshotMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.snap = msg.snap
		m.loaded = true
		m.refreshRows()
		return m, nil

	case commandMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("%s: %w", msg.cmd, msg.err)
			return m, nil
		}
		return m, fetchCmd(m.opts.Fetch)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.kind = (m.kind + 1) % kindCount
			m.refreshRows()
			return m, nil
		case "s":
			if m.opts.OnCommand == nil {
				return m, nil
			}
			if m.snap.State.IsTracking {
				return m, commandCmd(m.opts.OnCommand, CommandStop)
			}
			return m, commandCmd(m.opts.OnCommand, CommandStart)
		case "p":
			if m.opts.OnCommand == nil || !m.snap.State.IsTracking {
				return m, nil
			}
			if m.snap.State.IsPaused {
				return m, commandCmd(m.opts.OnCommand, CommandResume)
			}
			return m, commandCmd(m.opts.OnCommand, CommandPause)
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// refreshRows rebuilds the table from the selected breakdown.
func (m *Model) refreshRows() {
	items := m.kind.items(m.snap.Today)
	rows := make([]table.Row, 0, len(items))
	for _, it := range items {
		rows = append(rows, table.Row{
			it.Name,
			formatSeconds(it.TotalTime),
			fmt.Sprint(it.SessionCount),
			fmt.Sprintf("%.1f%%", it.Percentage),
		})
	}
	m.table.SetRows(rows)
}

// View renders the dashboard.
func (m Model) View() string {
	if m.width == 0 || !m.loaded {
		if m.err != nil {
			return lipgloss.NewStyle().Foreground(colorError).Render("Error: " + m.err.Error())
		}
		return "Loading..."
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(colorTitle)
	dimStyle := lipgloss.NewStyle().Foreground(colorHelp)

	sections := []string{
		titleStyle.Render("notetime"),
		"",
		m.viewSession(),
		"",
		m.viewToday(),
		"",
		m.viewTabs(),
		m.table.View(),
		"",
		dimStyle.Render("[s] start/stop  [p] pause/resume  [tab] breakdown  [q] quit"),
	}
	if m.err != nil {
		sections = append(sections, lipgloss.NewStyle().Foreground(colorError).Render("Error: "+m.err.Error()))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	if m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) viewSession() string {
	st := m.snap.State
	color := statusColor(st.Status())
	label := statusLabel(st)
	status := lipgloss.NewStyle().Bold(true).Foreground(color).Render(label)

	s := st.CurrentSession
	if s == nil {
		return status
	}
	lines := []string{
		status,
		s.File.Path,
		renderBigClock(formatClock(s.Elapsed(m.snap.Now)), color, m.width),
	}
	if !st.LastActiveTime.IsZero() {
		lines = append(lines, lipgloss.NewStyle().Foreground(colorHelp).Render("last active "+relativeTime(st.LastActiveTime, m.snap.Now)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) viewToday() string {
	today := m.snap.Today
	if today == nil {
		return "No activity yet"
	}
	header := fmt.Sprintf("Today: %s in %d sessions", formatSeconds(today.TotalTime), today.TotalSessions)
	if today.IsFallback {
		header += fmt.Sprintf(" (showing %s)", today.SourceDate)
	}
	if m.opts.DailyGoal <= 0 {
		return header
	}
	goal := m.opts.DailyGoal.Seconds()
	ratio := today.TotalTime / goal
	if ratio > 1 {
		ratio = 1
	}
	bar := fmt.Sprintf("%s %s / %s", m.progress.ViewAs(ratio), formatSeconds(today.TotalTime), formatSeconds(goal))
	return lipgloss.JoinVertical(lipgloss.Left, header, bar)
}

func (m Model) viewTabs() string {
	active := lipgloss.NewStyle().Bold(true).Underline(true).Foreground(colorTitle)
	inactive := lipgloss.NewStyle().Foreground(colorHelp)
	var tabs []string
	for k := breakdownKind(0); k < kindCount; k++ {
		style := inactive
		if k == m.kind {
			style = active
		}
		tabs = append(tabs, style.Render(k.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, joinWith(tabs, "  ")...)
}

func joinWith(parts []string, sep string) []string {
	out := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			out = append(out, sep)
		}
		out = append(out, p)
	}
	return out
}

func statusLabel(st domain.TrackingState) string {
	label := domain.GetStatusLabel(st.Status())
	if st.IsPaused {
		if reason := domain.GetPauseReasonLabel(st.PauseReason); reason != "" {
			label += " (" + reason + ")"
		}
	}
	return label
}

func statusColor(s domain.TrackerStatus) lipgloss.Color {
	switch s {
	case domain.StatusTracking:
		return colorTracking
	case domain.StatusPaused:
		return colorPaused
	default:
		return colorStopped
	}
}

// formatClock formats an elapsed duration as M:SS or H:MM:SS.
func formatClock(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
