package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"event-calendar/internal/ics"
	"event-calendar/internal/model"
	"event-calendar/internal/service"
)

type calendarPage struct {
	Month    *service.MonthView
	Upcoming []service.UpcomingEvent
}

type dayPage struct {
	DateText   string
	Year       int
	Month      int
	MonthValue time.Month
	Events     []eventRow
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	today := s.today()
	http.Redirect(w, r, fmt.Sprintf("/calendar/%d/%d", today.Year(), int(today.Month())), http.StatusFound)
}

// handleCalendar handles GET /calendar/{year}/{month}
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	view, err := s.calendar.BuildMonth(r.Context(), year, month, s.today())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	upcoming, err := s.calendar.ListUpcoming(r.Context(), s.cfg.UpcomingLimit, s.cfg.UpcomingExcludeCategory)
	if err != nil {
		if errors.Is(err, service.ErrUnknownCategory) {
			s.log.Error("upcoming list misconfigured", "exclude_category", s.cfg.UpcomingExcludeCategory, "error", err)
		}
		s.fail(w, r, err)
		return
	}

	title := fmt.Sprintf("%s %d", s.cfg.Labels.Month(view.Month), view.Year)
	s.render(w, r, http.StatusOK, "calendar", title, calendarPage{Month: view, Upcoming: upcoming})
}

// handleDay handles GET /day/{day}/{month}/{year}
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	date, err := dayDate(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	events, err := s.calendar.EventsOnDay(r.Context(), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	data := dayPage{
		DateText:   date.Format(model.DateLayout),
		Year:       date.Year(),
		Month:      int(date.Month()),
		MonthValue: date.Month(),
		Events:     s.eventRows(events),
	}
	s.render(w, r, http.StatusOK, "day", data.DateText, data)
}

// handleAPICalendar handles GET /api/calendar/{year}/{month}
func (s *Server) handleAPICalendar(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		status, msg := s.classify(err)
		writeError(w, status, msg)
		return
	}
	view, err := s.calendar.BuildMonth(r.Context(), year, month, s.today())
	if err != nil {
		status, msg := s.classify(err)
		if status == http.StatusInternalServerError {
			s.log.Error("build month", "year", year, "month", month, "error", err)
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleAPIUpcoming handles GET /api/upcoming?limit=N&exclude=Category
func (s *Server) handleAPIUpcoming(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := parseInt(q.Get("limit"), s.cfg.UpcomingLimit)
	exclude := s.cfg.UpcomingExcludeCategory
	if q.Has("exclude") {
		exclude = q.Get("exclude")
	}

	events, err := s.calendar.ListUpcoming(r.Context(), limit, exclude)
	if err != nil {
		if errors.Is(err, service.ErrUnknownCategory) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("list upcoming", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// handleICS handles GET /calendar.ics
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	events, err := s.events.ListEvents(r.Context())
	if err != nil {
		s.log.Error("list events for ics", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	categories, err := s.categories.List(r.Context())
	if err != nil {
		s.log.Error("list categories for ics", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	names := make(map[uint]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	if err := ics.Export(w, "Events", r.Host, events, names, s.now()); err != nil {
		s.log.Error("write ics", "error", err)
	}
}

func yearMonth(r *http.Request) (int, int, error) {
	year, err := pathInt(r, "year")
	if err != nil {
		return 0, 0, err
	}
	month, err := pathInt(r, "month")
	if err != nil {
		return 0, 0, err
	}
	return year, month, nil
}

func dayDate(r *http.Request) (time.Time, error) {
	year, month, err := yearMonth(r)
	if err != nil {
		return time.Time{}, err
	}
	day, err := pathInt(r, "day")
	if err != nil {
		return time.Time{}, err
	}
	if month < 1 || month > 12 {
		return time.Time{}, &service.ValidationError{Field: "month", Message: fmt.Sprintf("month must be between 1 and 12, got %d", month)}
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow such as 31.02.; reject it instead.
	if date.Day() != day || int(date.Month()) != month || date.Year() != year {
		return time.Time{}, &service.ValidationError{Field: "day", Message: fmt.Sprintf("%d.%d.%d is not a valid date", day, month, year)}
	}
	return date, nil
}
