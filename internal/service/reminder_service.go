package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"event-calendar/internal/model"
)

// ReminderService builds human-readable texts for chat notifications.
type ReminderService struct {
	calendar *CalendarService
	labels   model.Labels
}

func NewReminderService(calendar *CalendarService, labels model.Labels) *ReminderService {
	return &ReminderService{calendar: calendar, labels: labels}
}

// DailyAgenda lists the events covering now's civil date.
func (s *ReminderService) DailyAgenda(ctx context.Context, now time.Time) (string, error) {
	events, err := s.calendar.EventsOnDay(ctx, now)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString("📅 <b>Agenda</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format(model.DateLayout)))

	if len(events) == 0 {
		builder.WriteString("— nothing planned today\n")
		return strings.TrimSpace(builder.String()), nil
	}
	for _, ev := range events {
		builder.WriteString(formatDayEvent(ev))
	}
	return strings.TrimSpace(builder.String()), nil
}

// UpcomingText renders the upcoming list.
func (s *ReminderService) UpcomingText(ctx context.Context, limit int, excludeCategory string) (string, error) {
	events, err := s.calendar.ListUpcoming(ctx, limit, excludeCategory)
	if err != nil {
		return "", err
	}
	var builder strings.Builder
	builder.WriteString("🔜 <b>Latest events</b>\n")
	if len(events) == 0 {
		builder.WriteString("— no events yet\n")
	}
	for _, ev := range events {
		builder.WriteString(fmt.Sprintf("• %s <i>(%s)</i> · %s\n",
			html.EscapeString(ev.Name), html.EscapeString(categoryLabel(ev.CategoryName)), ev.StartText()))
	}
	return strings.TrimSpace(builder.String()), nil
}

// MonthText renders a month view as a monospace grid. Days with tagged
// events get a '*', days with other events a '+'.
func (s *ReminderService) MonthText(view *MonthView) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("<b>%s %d</b>\n<pre>", html.EscapeString(s.labels.Month(view.Month)), view.Year))
	for _, wd := range s.labels.Weekdays {
		builder.WriteString(fmt.Sprintf("%-4s", html.EscapeString(shortLabel(wd, 3))))
	}
	builder.WriteByte('\n')
	for _, week := range view.Weeks {
		for _, cell := range week {
			builder.WriteString(cellText(cell))
		}
		builder.WriteByte('\n')
	}
	builder.WriteString("</pre>")
	builder.WriteString(fmt.Sprintf("Events this month: %d", view.EventCount))
	return builder.String()
}

func cellText(cell DayCell) string {
	if cell.Blank() {
		return "    "
	}
	mark := " "
	switch {
	case len(cell.Tags) > 0:
		mark = "*"
	case cell.Overflow > 0:
		mark = "+"
	}
	if cell.Today {
		return fmt.Sprintf("[%2d]", cell.Day)
	}
	return fmt.Sprintf("%2d%s ", cell.Day, mark)
}

func formatDayEvent(ev DayEvent) string {
	var sb strings.Builder

	icon := "🟢"
	if ev.Tag != "" {
		icon = "🔖"
	}
	sb.WriteString(fmt.Sprintf("%s %s <i>(%s)</i>", icon, html.EscapeString(ev.Name), html.EscapeString(categoryLabel(ev.CategoryName))))

	if !ev.StartDate.Equal(ev.EndDate) {
		sb.WriteString(fmt.Sprintf("\n   ⏳ %s – %s", ev.StartText(), ev.EndText()))
	}
	if desc := strings.TrimSpace(ev.Description); desc != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(desc)))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func categoryLabel(name string) string {
	if strings.TrimSpace(name) == "" {
		return "no category"
	}
	return name
}

func shortLabel(s string, max int) string {
	r := []rune(s)
	if len(r) > max {
		return string(r[:max])
	}
	return s
}
