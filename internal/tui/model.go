// Package tui is the terminal watch client: a live view of one group's
// chores, or of all the user's groups, kept current by a session.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dukerupert/mindthecat/internal/chore"
	"github.com/dukerupert/mindthecat/internal/tracker"
)

const bannerTTL = 15 * time.Second

// Controller is the part of session.Session the model drives.
type Controller interface {
	SelectGroup(ctx context.Context, groupID string)
	LeaveGroup()
	ShowGroups(ctx context.Context)
	Refresh(ctx context.Context) bool
}

type mode int

const (
	modeLoading mode = iota
	modeGroup
	modeCards
)

type clearBannerMsg struct{ at time.Time }

type Model struct {
	ctx          context.Context
	ctrl         Controller
	events       <-chan tea.Msg
	initialGroup string

	mode     mode
	view     *tracker.GroupView
	cards    []tracker.Card
	cursor   int
	banner   *BannerMsg
	status   string
	quitting bool
}

// New returns a model that starts on initialGroup, or on the group list
// when it is empty.
func New(ctx context.Context, ctrl Controller, events <-chan tea.Msg, initialGroup string) Model {
	return Model{
		ctx:          ctx,
		ctrl:         ctrl,
		events:       events,
		initialGroup: initialGroup,
	}
}

func (m Model) Init() tea.Cmd {
	start := func() tea.Msg {
		if m.initialGroup != "" {
			m.ctrl.SelectGroup(m.ctx, m.initialGroup)
		} else {
			m.ctrl.ShowGroups(m.ctx)
		}
		return nil
	}
	return tea.Batch(waitForEvent(m.events), start)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case GroupViewMsg:
		m.mode = modeGroup
		m.view = msg.View
		m.status = "updated " + msg.View.GeneratedAt.Format("15:04:05")
		return m, waitForEvent(m.events)
	case CardsMsg:
		m.mode = modeCards
		m.cards = msg.Cards
		if m.cursor >= len(m.cards) {
			m.cursor = max(len(m.cards)-1, 0)
		}
		return m, waitForEvent(m.events)
	case BannerMsg:
		m.banner = &msg
		at := msg.At
		return m, tea.Batch(
			waitForEvent(m.events),
			tea.Tick(bannerTTL, func(time.Time) tea.Msg { return clearBannerMsg{at: at} }),
		)
	case clearBannerMsg:
		if m.banner != nil && m.banner.At.Equal(msg.at) {
			m.banner = nil
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit
	case "r":
		m.status = "refreshing"
		return m, func() tea.Msg {
			m.ctrl.Refresh(m.ctx)
			return nil
		}
	case "x":
		m.banner = nil
		return m, nil
	}

	switch m.mode {
	case modeCards:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.cards)-1 {
				m.cursor++
			}
		case "enter":
			if len(m.cards) == 0 {
				return m, nil
			}
			groupID := m.cards[m.cursor].Group.ID
			m.status = "loading " + m.cards[m.cursor].Group.Name
			return m, func() tea.Msg {
				m.ctrl.SelectGroup(m.ctx, groupID)
				return nil
			}
		}
	case modeGroup:
		switch msg.String() {
		case "esc", "backspace", "g":
			m.status = "groups"
			return m, func() tea.Msg {
				m.ctrl.LeaveGroup()
				m.ctrl.ShowGroups(m.ctx)
				return nil
			}
		}
	}
	return m, nil
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	goodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	urgentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	selectStyle  = lipgloss.NewStyle().Bold(true).Reverse(true)
	bannerStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("9")).Padding(0, 1)
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

const barWidth = 20

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var lines []string
	switch m.mode {
	case modeLoading:
		lines = append(lines, headerStyle.Render("mindthecat"), dimStyle.Render("loading..."))
	case modeGroup:
		lines = append(lines, m.groupLines()...)
	case modeCards:
		lines = append(lines, m.cardLines()...)
	}

	if m.banner != nil {
		lines = append(lines, "", bannerStyle.Render(urgentStyle.Bold(true).Render(m.banner.Title)+"\n"+m.banner.Body))
	}

	footer := "r refresh · q quit"
	switch m.mode {
	case modeCards:
		footer = "↑/↓ move · enter open · " + footer
	case modeGroup:
		footer = "esc groups · " + footer
	}
	if m.status != "" {
		footer = m.status + " · " + footer
	}
	lines = append(lines, "", footerStyle.Render(footer))
	return strings.Join(lines, "\n")
}

func (m Model) groupLines() []string {
	v := m.view
	lines := []string{headerStyle.Render(fmt.Sprintf("%d of %d chores overdue", v.Stats.OverdueCount, v.Stats.Total))}
	if len(v.Chores) == 0 {
		return append(lines, dimStyle.Render("no chores yet"))
	}
	for _, cv := range v.Chores {
		lines = append(lines, choreLine(cv))
	}
	return lines
}

func choreLine(cv tracker.ChoreView) string {
	name := fmt.Sprintf("%-24s", truncate(cv.Chore.Name, 24))
	if cv.Progress == nil {
		note := "no schedule"
		if cv.Chore.IntervalValue != nil {
			note = "never done"
		}
		return name + " " + dimStyle.Render(strings.Repeat("·", barWidth)) + " " + dimStyle.Render(note)
	}
	p := *cv.Progress
	style := statusStyle(p.Status)
	return name + " " + style.Render(bar(p.Percent, barWidth)) + " " + style.Render(p.TimeText) +
		dimStyle.Render("  last done "+cv.LastDoneText)
}

func (m Model) cardLines() []string {
	lines := []string{headerStyle.Render("Your groups")}
	if len(m.cards) == 0 {
		return append(lines, dimStyle.Render("you are not in any group"))
	}
	for i, c := range m.cards {
		text := fmt.Sprintf("%-24s %d/%d overdue", truncate(c.Group.Name, 24), c.Stats.OverdueCount, c.Stats.Total)
		if c.Stats.MostUrgent != nil {
			text += "  next: " + c.Stats.MostUrgent.Name
		}
		if c.IsAdmin {
			text += dimStyle.Render("  admin")
		}
		if i == m.cursor {
			text = selectStyle.Render(text)
		}
		lines = append(lines, text)
	}
	return lines
}

func statusStyle(s chore.Status) lipgloss.Style {
	switch s {
	case chore.StatusUrgent:
		return urgentStyle
	case chore.StatusWarning:
		return warningStyle
	default:
		return goodStyle
	}
}

// bar renders percent (0..100) as a fixed-width bar.
func bar(percent float64, width int) string {
	filled := int(percent/100*float64(width) + 0.5)
	filled = min(max(filled, 0), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
