package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"event-calendar/internal/model"
	"event-calendar/internal/repository"
)

// DefaultUpcomingLimit is used when ListUpcoming receives a non-positive limit.
const DefaultUpcomingLimit = 10

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// DayEvent is an event as shown on a day, with its category resolved.
type DayEvent struct {
	model.Event
	CategoryName string `json:"category"`
	Tag          string `json:"tag,omitempty"`
}

// DayCell is one grid position. Placeholders outside the month have Day == 0
// and no date.
type DayCell struct {
	Day      int        `json:"day"`
	Date     *time.Time `json:"date,omitempty"`
	Today    bool       `json:"today,omitempty"`
	Events   []DayEvent `json:"events,omitempty"`
	Tags     []string   `json:"tags,omitempty"`
	Overflow int        `json:"overflow,omitempty"`
}

// Count is the number of events covering the day.
func (c DayCell) Count() int {
	return len(c.Events)
}

// Blank reports whether the cell is a placeholder for another month's day.
func (c DayCell) Blank() bool {
	return c.Day == 0
}

// Week is a Monday-first row of seven cells.
type Week [7]DayCell

// MonthView is the pure data model of a month calendar page.
type MonthView struct {
	YearMonth
	Weeks      []Week    `json:"weeks"`
	Prev       YearMonth `json:"prev"`
	Next       YearMonth `json:"next"`
	EventCount int       `json:"event_count"`
}

// UpcomingEvent is an entry of the upcoming list.
type UpcomingEvent struct {
	model.Event
	CategoryName string `json:"category"`
}

// CalendarService builds month grids, day listings and the upcoming list.
type CalendarService struct {
	events     EventStore
	categories CategoryStore
	rules      model.TagRules
}

func NewCalendarService(events EventStore, categories CategoryStore, rules model.TagRules) *CalendarService {
	return &CalendarService{events: events, categories: categories, rules: rules}
}

// MonthWindow returns the half-open window [first of month, first of next month).
func MonthWindow(year int, month time.Month) (start, end time.Time) {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), nextMonthStart(year, month)
}

// nextMonthStart goes to day 28, adds four days and truncates to day 1.
// This lands in the following month for every month length and rolls
// December over to January of the next year.
func nextMonthStart(year int, month time.Month) time.Time {
	t := time.Date(year, month, 28, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 4)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func prevMonth(year int, month time.Month) YearMonth {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// BuildMonth produces the Monday-first grid for the month. today marks the
// cell whose civil date equals today's.
func (s *CalendarService) BuildMonth(ctx context.Context, year, month int, today time.Time) (*MonthView, error) {
	if month < 1 || month > 12 {
		return nil, invalid("month", "month must be between 1 and 12, got %d", month)
	}
	if year < 1 || year > 9999 {
		return nil, invalid("year", "year out of range: %d", year)
	}
	m := time.Month(month)
	start, end := MonthWindow(year, m)

	events, err := s.events.FindOverlapping(ctx, start, end)
	if err != nil {
		return nil, err
	}
	names, err := categoryNames(ctx, s.categories)
	if err != nil {
		return nil, err
	}

	last := end.AddDate(0, 0, -1)
	perDay := make(map[int][]DayEvent)
	for _, ev := range events {
		from := ev.StartDate
		if from.Before(start) {
			from = start
		}
		to := ev.EndDate
		if to.After(last) {
			to = last
		}
		de := s.dayEvent(ev, names)
		for d := from.Day(); d <= to.Day(); d++ {
			perDay[d] = append(perDay[d], de)
		}
	}

	ty, tm, td := today.Date()
	lead := (int(start.Weekday()) + 6) % 7
	days := last.Day()
	weeks := make([]Week, (lead+days+6)/7)
	for d := 1; d <= days; d++ {
		date := time.Date(year, m, d, 0, 0, 0, 0, time.UTC)
		cell := DayCell{
			Day:    d,
			Date:   &date,
			Today:  ty == year && tm == m && td == d,
			Events: perDay[d],
		}
		for _, de := range cell.Events {
			switch {
			case de.Tag != "":
				cell.Tags = append(cell.Tags, de.Tag)
			case !s.rules.Tagged(de.CategoryName):
				cell.Overflow++
			}
		}
		pos := lead + d - 1
		weeks[pos/7][pos%7] = cell
	}

	return &MonthView{
		YearMonth:  YearMonth{Year: year, Month: m},
		Weeks:      weeks,
		Prev:       prevMonth(year, m),
		Next:       YearMonth{Year: end.Year(), Month: end.Month()},
		EventCount: len(events),
	}, nil
}

// EventsOnDay lists events covering the given civil date.
func (s *CalendarService) EventsOnDay(ctx context.Context, day time.Time) ([]DayEvent, error) {
	events, err := s.events.FindOnDay(ctx, model.Date(day))
	if err != nil {
		return nil, err
	}
	names, err := categoryNames(ctx, s.categories)
	if err != nil {
		return nil, err
	}
	out := make([]DayEvent, len(events))
	for i, ev := range events {
		out[i] = s.dayEvent(ev, names)
	}
	return out, nil
}

// ListUpcoming returns the latest events by start date, newest first.
// A non-empty excludeCategory must name an existing category.
func (s *CalendarService) ListUpcoming(ctx context.Context, limit int, excludeCategory string) ([]UpcomingEvent, error) {
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}

	var excludeID *uint
	if excludeCategory != "" {
		cat, err := s.categories.FindByName(ctx, excludeCategory)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: excluded category %q does not exist", ErrUnknownCategory, excludeCategory)
		}
		if err != nil {
			return nil, err
		}
		excludeID = &cat.ID
	}

	events, err := s.events.ListLatest(ctx, limit, excludeID)
	if err != nil {
		return nil, err
	}
	names, err := categoryNames(ctx, s.categories)
	if err != nil {
		return nil, err
	}
	out := make([]UpcomingEvent, len(events))
	for i, ev := range events {
		out[i] = UpcomingEvent{Event: ev, CategoryName: names[ev.CategoryID]}
	}
	return out, nil
}

func (s *CalendarService) dayEvent(ev model.Event, names map[uint]string) DayEvent {
	name := names[ev.CategoryID]
	tag, _ := s.rules.Match(name, ev.Name)
	return DayEvent{Event: ev, CategoryName: name, Tag: tag}
}
