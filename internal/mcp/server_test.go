package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"event-calendar/internal/model"
	"event-calendar/internal/repository"
	"event-calendar/internal/service"
)

func newServices(t *testing.T) (*service.CalendarService, *service.CategoryService, *service.EventService) {
	t.Helper()
	db, err := repository.NewDB(fmt.Sprintf("file:mcp_%s?mode=memory&cache=shared", t.Name()), nil)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	catRepo := repository.NewCategoryRepository(db)
	eventRepo := repository.NewEventRepository(db)
	return service.NewCalendarService(eventRepo, catRepo, model.DefaultTagRules()),
		service.NewCategoryService(catRepo, eventRepo),
		service.NewEventService(eventRepo, catRepo)
}

func call(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if len(res.Content) == 0 {
		t.Fatal("empty result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content %T", res.Content[0])
	}
	return text.Text, res.IsError
}

func TestCalendarTools(t *testing.T) {
	calendar, categories, events := newServices(t)
	ctx := context.Background()
	cat, err := categories.Create(ctx, "Shift")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := events.CreateEvent(ctx, service.EventInput{
		Name: "Rest", StartDate: "28.02.2024", EndDate: "01.03.2024", CategoryID: fmt.Sprint(cat.ID),
	}); err != nil {
		t.Fatal(err)
	}
	now := func() time.Time { return time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC) }

	text, isErr := call(t, handleMonthCalendar(calendar, now), map[string]any{"year": 2024.0, "month": 2.0})
	if isErr {
		t.Fatalf("month_calendar error: %s", text)
	}
	var view service.MonthView
	if err := json.Unmarshal([]byte(text), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// 29 Feb 2024 is a Thursday in the fifth row.
	cell := view.Weeks[4][3]
	if cell.Day != 29 || !cell.Today || len(cell.Tags) != 1 || cell.Tags[0] != "marker-red-outline" {
		t.Fatalf("unexpected cell %+v", cell)
	}

	if _, isErr := call(t, handleMonthCalendar(calendar, now), map[string]any{"year": 2024.0, "month": 14.0}); !isErr {
		t.Fatal("month 14 should be a tool error")
	}

	text, isErr = call(t, handleEventsOnDay(calendar), map[string]any{"date": "2024-03-01"})
	if isErr {
		t.Fatalf("events_on_day error: %s", text)
	}
	var day []service.DayEvent
	if err := json.Unmarshal([]byte(text), &day); err != nil || len(day) != 1 {
		t.Fatalf("day = %v, %v", day, err)
	}
	if _, isErr := call(t, handleEventsOnDay(calendar), map[string]any{"date": "March 1"}); !isErr {
		t.Fatal("bad date should be a tool error")
	}

	if _, isErr := call(t, handleUpcoming(calendar), map[string]any{"exclude_category": "Missing"}); !isErr {
		t.Fatal("unknown exclude category should be a tool error")
	}
	text, _ = call(t, handleUpcoming(calendar), map[string]any{"limit": 5.0})
	var upcoming []service.UpcomingEvent
	if err := json.Unmarshal([]byte(text), &upcoming); err != nil || len(upcoming) != 1 {
		t.Fatalf("upcoming = %v, %v", upcoming, err)
	}

	text, _ = call(t, handleListCategories(categories), nil)
	var cats []CategoryResult
	if err := json.Unmarshal([]byte(text), &cats); err != nil || len(cats) != 1 || cats[0].Events != 1 {
		t.Fatalf("categories = %v, %v", cats, err)
	}
}
