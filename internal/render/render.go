// Package render draws the month grid and the task list for the terminal.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"calplan/internal/assistant"
	"calplan/internal/calendar"
	"calplan/internal/model"
)

const cellWidth = 5

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	weekdayStyle = lipgloss.NewStyle().
			Width(cellWidth).
			Align(lipgloss.Right).
			Foreground(lipgloss.Color("241"))

	dayStyle = lipgloss.NewStyle().
			Width(cellWidth).
			Align(lipgloss.Right).
			Foreground(lipgloss.Color("252"))

	eventStyle = dayStyle.
			Foreground(lipgloss.Color("39")).
			Bold(true)

	todayStyle = dayStyle.
			Foreground(lipgloss.Color("214")).
			Underline(true)

	selectedStyle = dayStyle.
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("205"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Italic(true)

	dangerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// Month draws snap as a week-per-row grid. Days with events carry a "*",
// the selected day is bracketed.
func Month(snap calendar.Snapshot, weekStart time.Weekday) string {
	width := cellWidth * 7
	title := fmt.Sprintf("%s %d", snap.Month.Month, snap.Month.Year)

	lines := []string{
		lipgloss.PlaceHorizontal(width, lipgloss.Center, titleStyle.Render(title)),
		weekdayHeader(weekStart),
	}
	for i := 0; i < len(snap.Cells); i += 7 {
		end := min(i+7, len(snap.Cells))
		row := make([]string, 0, 7)
		for _, c := range snap.Cells[i:end] {
			row = append(row, renderCell(c))
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}

	switch {
	case snap.State == calendar.Error && snap.Err != nil:
		lines = append(lines, dangerStyle.Render("error: "+snap.Err.Error()))
	case snap.State == calendar.Loading:
		lines = append(lines, statusStyle.Render("loading "+snap.Target.String()+"..."))
	}
	if snap.Month != snap.Target {
		lines = append(lines, statusStyle.Render("showing "+snap.Month.String()+", requested "+snap.Target.String()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func weekdayHeader(weekStart time.Weekday) string {
	names := make([]string, 7)
	for i := range names {
		names[i] = weekdayStyle.Render(((weekStart + time.Weekday(i)) % 7).String()[:2])
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, names...)
}

func renderCell(c model.DayCell) string {
	if c.IsPadding() {
		return dayStyle.Render("")
	}
	text := fmt.Sprint(c.Day)
	if c.HasEvent {
		text += "*"
	}
	switch {
	case c.IsSelected:
		return selectedStyle.Render("[" + text + "]")
	case c.IsToday:
		return todayStyle.Render(text)
	case c.HasEvent:
		return eventStyle.Render(text)
	}
	return dayStyle.Render(text)
}

// Tasks lists tasks one per line in loc.
func Tasks(tasks []model.Task, loc *time.Location) string {
	if len(tasks) == 0 {
		return statusStyle.Render("no planned tasks")
	}
	var b strings.Builder
	for i, t := range tasks {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(timeStyle.Render(span(t.Start, t.End, loc)))
		b.WriteString("  ")
		title := t.Title
		if title == assistant.SentinelTitle {
			title = dangerStyle.Render(title)
		}
		b.WriteString(title)
		b.WriteString(timeStyle.Render("  (" + t.ID + ")"))
		if t.Details.Location != "" {
			b.WriteString(" @ " + t.Details.Location)
		}
	}
	return b.String()
}

// Events lists events one per line in loc.
func Events(events []model.EventRecord, loc *time.Location) string {
	if len(events) == 0 {
		return statusStyle.Render("no events")
	}
	var b strings.Builder
	for i, e := range events {
		if i > 0 {
			b.WriteByte('\n')
		}
		when := span(e.Start, e.End, loc)
		if e.AllDay {
			when = e.Start.In(loc).Format("2006-01-02") + " all day"
		}
		b.WriteString(timeStyle.Render(when))
		b.WriteString("  " + e.Title)
		b.WriteString(timeStyle.Render("  (" + e.ID + ")"))
	}
	return b.String()
}

func span(start, end time.Time, loc *time.Location) string {
	if start.IsZero() {
		return "unscheduled"
	}
	s := start.In(loc)
	out := s.Format("2006-01-02 15:04")
	if end.IsZero() {
		return out
	}
	e := end.In(loc)
	if e.Year() == s.Year() && e.YearDay() == s.YearDay() {
		return out + "-" + e.Format("15:04")
	}
	return out + " - " + e.Format("2006-01-02 15:04")
}
