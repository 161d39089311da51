package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/benvon/soonish/internal/models"
	"github.com/benvon/soonish/internal/planner"
)

var (
	accentColor = lipgloss.Color("#7D56F4")
	subtleColor = lipgloss.Color("#6C6C6C")
	warnColor   = lipgloss.Color("#FF6B6B")
	doneColor   = lipgloss.Color("#73F59F")

	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	subtleStyle  = lipgloss.NewStyle().Foreground(subtleColor)
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(warnColor)
	doneStyle    = lipgloss.NewStyle().Foreground(doneColor).Strikethrough(true)
	assistStyle  = lipgloss.NewStyle().Foreground(accentColor)
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(subtleColor).
			Padding(0, 1)
)

// renderPlanLine formats a plan as one list line: status, title, when
func renderPlanLine(p *models.Plan, now time.Time) string {
	var b strings.Builder
	switch {
	case p.IsCompleted:
		b.WriteString(doneStyle.Render("✓ " + p.Title))
	case p.IsArchived:
		b.WriteString(subtleStyle.Render("▪ " + p.Title))
	default:
		b.WriteString("• " + p.Title)
	}

	if when := whenText(p, now); when != "" {
		style := subtleStyle
		if planner.IsDeadlineNear(p, now) {
			style = warnStyle
		}
		b.WriteString("  " + style.Render(when))
	}
	b.WriteString("  " + subtleStyle.Render(shortID(p)))
	return b.String()
}

// whenText joins the period text and the remaining-time text
func whenText(p *models.Plan, now time.Time) string {
	parts := make([]string, 0, 2)
	if text := planner.PeriodDisplayText(p, now); text != "" {
		parts = append(parts, text)
	}
	if text := planner.RemainingText(p, now); text != "" {
		parts = append(parts, text)
	}
	return strings.Join(parts, " / ")
}

func renderPlanDetail(p *models.Plan, now time.Time) string {
	lines := []string{
		headingStyle.Render(p.Title),
		fmt.Sprintf("id:        %s", p.ID),
		fmt.Sprintf("mode:      %s", p.Kind().DisplayName()),
	}
	if preset, ok := p.PeriodPreset(); ok {
		lines = append(lines, fmt.Sprintf("preset:    %s", preset.DisplayName()))
	}
	if preset, ok := p.DeadlinePreset(); ok {
		lines = append(lines, fmt.Sprintf("preset:    %s", preset.DisplayName()))
	}
	if start, end := p.PeriodStart(), p.PeriodEnd(); start != nil && end != nil {
		lines = append(lines, fmt.Sprintf("period:    %s – %s", start.Format(time.DateOnly), end.Format(time.DateOnly)))
	}
	if deadline := p.Deadline(); deadline != nil {
		lines = append(lines, fmt.Sprintf("deadline:  %s", deadline.Format(time.DateOnly)))
	}
	if when := whenText(p, now); when != "" {
		lines = append(lines, fmt.Sprintf("when:      %s", when))
	}
	if p.Memo != nil {
		lines = append(lines, fmt.Sprintf("memo:      %s", *p.Memo))
	}
	lines = append(lines,
		fmt.Sprintf("completed: %v", p.IsCompleted),
		fmt.Sprintf("archived:  %v", p.IsArchived),
		subtleStyle.Render(fmt.Sprintf("created %s, updated %s", p.CreatedAt.Format(time.RFC3339), p.UpdatedAt.Format(time.RFC3339))),
	)
	return boxStyle.Render(strings.Join(lines, "\n"))
}

// renderBoard formats every visible bucket followed by the anytime backlog
func renderBoard(board *planner.Board) string {
	now := board.GeneratedAt
	var b strings.Builder
	for _, section := range board.Sections {
		b.WriteString(headingStyle.Render(fmt.Sprintf("%s (%d)", section.DisplayName, len(section.Entries))))
		b.WriteString("\n")
		if len(section.Entries) == 0 {
			b.WriteString(subtleStyle.Render("  —"))
			b.WriteString("\n")
		}
		for _, e := range section.Entries {
			b.WriteString("  " + renderPlanLine(e.Plan, now) + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(headingStyle.Render(fmt.Sprintf("%s (%d)", planner.TextSomeday, len(board.Someday))))
	b.WriteString("\n")
	for _, e := range board.Someday {
		b.WriteString("  " + renderPlanLine(e.Plan, now) + "\n")
	}
	b.WriteString(subtleStyle.Render("as of " + now.Format("2006-01-02 15:04")))
	return b.String()
}

func shortID(p *models.Plan) string {
	return p.ID.String()[:8]
}
