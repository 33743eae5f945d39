package web

import (
	"fmt"
	"net/http"
	"strconv"

	"event-calendar/internal/model"
	"event-calendar/internal/service"
)

type eventsPage struct {
	Events []eventRow
}

type eventForm struct {
	Action     string
	Input      service.EventInput
	Categories []model.Category
	Error      string
}

// handleEvents handles GET /events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.events.ListEvents(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	categories, err := s.categories.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	names := make(map[uint]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	dayEvents := make([]service.DayEvent, len(events))
	for i, ev := range events {
		dayEvents[i] = service.DayEvent{Event: ev, CategoryName: names[ev.CategoryID]}
	}
	s.render(w, r, http.StatusOK, "events", "Events", eventsPage{Events: s.eventRows(dayEvents)})
}

func (s *Server) handleAddEventForm(w http.ResponseWriter, r *http.Request) {
	s.renderEventForm(w, r, http.StatusOK, "Add event", "/add_event", service.EventInput{}, "")
}

// handleAddEvent handles POST /add_event
func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	input, err := eventInput(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ev, err := s.events.CreateEvent(r.Context(), input)
	if service.IsValidation(err) {
		s.renderEventForm(w, r, http.StatusUnprocessableEntity, "Add event", "/add_event", input, err.Error())
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("event created", "id", ev.ID, "name", ev.Name)
	redirect(w, r, "/events", fmt.Sprintf("Event %q created.", ev.Name))
}

func (s *Server) handleEditEventForm(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ev, err := s.events.GetEvent(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	input := service.EventInput{
		Name:        ev.Name,
		Description: ev.Description,
		StartDate:   ev.StartText(),
		EndDate:     ev.EndText(),
		CategoryID:  strconv.FormatUint(uint64(ev.CategoryID), 10),
	}
	s.renderEventForm(w, r, http.StatusOK, "Edit event", fmt.Sprintf("/edit_event/%d", id), input, "")
}

// handleEditEvent handles POST /edit_event/{id}
func (s *Server) handleEditEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	input, err := eventInput(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ev, err := s.events.UpdateEvent(r.Context(), id, input)
	if service.IsValidation(err) {
		s.renderEventForm(w, r, http.StatusUnprocessableEntity, "Edit event", fmt.Sprintf("/edit_event/%d", id), input, err.Error())
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("event updated", "id", ev.ID)
	redirect(w, r, "/events", fmt.Sprintf("Event %q saved.", ev.Name))
}

// handleDeleteEvent handles POST /delete_event/{id}
func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.events.DeleteEvent(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("event deleted", "id", id)
	redirect(w, r, "/events", "Event deleted.")
}

func (s *Server) renderEventForm(w http.ResponseWriter, r *http.Request, status int, title, action string, input service.EventInput, formErr string) {
	categories, err := s.categories.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, status, "event_form", title, eventForm{
		Action:     action,
		Input:      input,
		Categories: categories,
		Error:      formErr,
	})
}

func eventInput(r *http.Request) (service.EventInput, error) {
	if err := r.ParseForm(); err != nil {
		return service.EventInput{}, &service.ValidationError{Field: "form", Message: "malformed form data"}
	}
	return service.EventInput{
		Name:        r.PostForm.Get("name"),
		Description: r.PostForm.Get("description"),
		StartDate:   r.PostForm.Get("start_date"),
		EndDate:     r.PostForm.Get("end_date"),
		CategoryID:  r.PostForm.Get("category_id"),
	}, nil
}

func parseInt(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
