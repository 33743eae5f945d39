package service

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"event-calendar/internal/model"
	"event-calendar/internal/repository"
)

// EventInput is the raw form data for creating or editing an event.
// Dates use model.DateLayout (DD.MM.YYYY).
type EventInput struct {
	Name        string
	Description string
	StartDate   string
	EndDate     string
	CategoryID  string
}

// EventService wraps event CRUD and input validation.
type EventService struct {
	events     EventStore
	categories CategoryStore
	md         goldmark.Markdown
}

func NewEventService(events EventStore, categories CategoryStore) *EventService {
	return &EventService{
		events:     events,
		categories: categories,
		md:         goldmark.New(),
	}
}

func (s *EventService) CreateEvent(ctx context.Context, input EventInput) (*model.Event, error) {
	var event model.Event
	if err := s.apply(ctx, &event, input); err != nil {
		return nil, err
	}
	if err := s.events.Create(ctx, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *EventService) UpdateEvent(ctx context.Context, id uint, input EventInput) (*model.Event, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, event, input); err != nil {
		return nil, err
	}
	if err := s.events.Update(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *EventService) GetEvent(ctx context.Context, id uint) (*model.Event, error) {
	return s.events.GetByID(ctx, id)
}

func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.events.List(ctx)
}

func (s *EventService) DeleteEvent(ctx context.Context, id uint) error {
	return s.events.Delete(ctx, id)
}

// RenderDescription converts a markdown description to HTML.
func (s *EventService) RenderDescription(description string) template.HTML {
	if strings.TrimSpace(description) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(description), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(description))
	}
	return template.HTML(buf.String())
}

func (s *EventService) apply(ctx context.Context, event *model.Event, input EventInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return invalid("name", "name is required")
	}
	if len([]rune(name)) > 100 {
		return invalid("name", "name must be at most 100 characters")
	}

	start, err := ParseDate("start_date", input.StartDate)
	if err != nil {
		return err
	}
	end, err := ParseDate("end_date", input.EndDate)
	if err != nil {
		return err
	}

	categoryID, err := s.resolveCategory(ctx, input.CategoryID)
	if err != nil {
		return err
	}

	event.Name = name
	event.Description = strings.TrimSpace(input.Description)
	event.StartDate = start
	event.EndDate = end
	event.CategoryID = categoryID
	return nil
}

func (s *EventService) resolveCategory(ctx context.Context, raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, invalid("category_id", "choose a category")
	}
	if _, err := s.categories.GetByID(ctx, uint(id)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, invalid("category_id", "category %d does not exist", id)
		}
		return 0, err
	}
	return uint(id), nil
}

// ParseDate parses DD.MM.YYYY text into a civil date at UTC midnight.
func ParseDate(field, text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, invalid(field, "date is required")
	}
	t, err := time.Parse(model.DateLayout, text)
	if err != nil {
		return time.Time{}, invalid(field, "invalid date %q, expected DD.MM.YYYY", text)
	}
	return t, nil
}
