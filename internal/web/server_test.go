package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"event-calendar/internal/config"
	"event-calendar/internal/model"
	"event-calendar/internal/repository"
	"event-calendar/internal/service"
)

type testEnv struct {
	srv        *Server
	handler    http.Handler
	categories *service.CategoryService
	events     *service.EventService
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB(fmt.Sprintf("file:web_%s?mode=memory&cache=shared", name), nil)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	cfg := &config.Config{
		ListenAddr:    "127.0.0.1:0",
		Location:      time.UTC,
		UpcomingLimit: 10,
		TagRules:      model.DefaultTagRules(),
		Labels:        model.DefaultLabels(),
	}
	if mutate != nil {
		mutate(cfg)
	}

	catRepo := repository.NewCategoryRepository(db)
	eventRepo := repository.NewEventRepository(db)
	categories := service.NewCategoryService(catRepo, eventRepo)
	events := service.NewEventService(eventRepo, catRepo)
	calendar := service.NewCalendarService(eventRepo, catRepo, cfg.TagRules)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := NewServer(cfg, log, calendar, events, categories)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.now = func() time.Time { return time.Date(2024, 2, 14, 9, 0, 0, 0, time.UTC) }
	return &testEnv{srv: srv, handler: srv.Handler(), categories: categories, events: events}
}

func (e *testEnv) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seed(t *testing.T) (*model.Category, *model.Event) {
	t.Helper()
	ctx := context.Background()
	cat, err := e.categories.Create(ctx, "Work")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	ev, err := e.events.CreateEvent(ctx, service.EventInput{
		Name:        "Office",
		Description: "desk **7**",
		StartDate:   "31.01.2024",
		EndDate:     "02.02.2024",
		CategoryID:  fmt.Sprint(cat.ID),
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return cat, ev
}

func TestIndexRedirectsToCurrentMonth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/", nil)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/calendar/2024/2" {
		t.Fatalf("got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestCalendarPage(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t)

	rec := env.do(t, http.MethodGet, "/calendar/2024/2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{
		"February 2024",
		`href="/calendar/2024/1"`,
		`href="/calendar/2024/3"`,
		`class="bg-success"`,
		`href="/day/1/2/2024"`,
		"marker-purple",
		"Office",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}

	for _, path := range []string{"/calendar/2024/13", "/calendar/2024/x"} {
		if rec := env.do(t, http.MethodGet, path, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
}

func TestCalendarPageShowsDayTotals(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	cat, err := env.categories.Create(ctx, "Work")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	for _, name := range []string{"Oncall", "Rota"} {
		if _, err := env.events.CreateEvent(ctx, service.EventInput{
			Name:       name,
			StartDate:  "20.02.2024",
			EndDate:    "20.02.2024",
			CategoryID: fmt.Sprint(cat.ID),
		}); err != nil {
			t.Fatalf("create event %q: %v", name, err)
		}
	}

	rec := env.do(t, http.MethodGet, "/calendar/2024/2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	start := strings.Index(body, `href="/day/20/2/2024"`)
	if start < 0 {
		t.Fatal("day 20 not linked")
	}
	cell, _, _ := strings.Cut(body[start:], "</td>")
	if !strings.Contains(cell, `day-count" title="events">2</span>`) {
		t.Fatalf("day 20 has no total: %s", cell)
	}
	if strings.Contains(cell, "bg-danger") {
		t.Fatalf("tagged events counted as overflow: %s", cell)
	}
	if strings.Count(body, "day-count") != 1 {
		t.Fatalf("days without events show a total")
	}
}

func TestCalendarPageMissingExcludedCategory(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.UpcomingExcludeCategory = "Nope" })
	rec := env.do(t, http.MethodGet, "/calendar/2024/2", nil)
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), "Nope") {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestDayPage(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t)

	rec := env.do(t, http.MethodGet, "/day/1/2/2024", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Office") || !strings.Contains(rec.Body.String(), "<strong>7</strong>") {
		t.Fatalf("day page missing event: %s", rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/day/3/2/2024", nil)
	if strings.Contains(rec.Body.String(), "Office") {
		t.Fatal("event listed on 3 Feb")
	}

	if rec := env.do(t, http.MethodGet, "/day/30/2/2024", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid date status = %d, want 400", rec.Code)
	}
}

func TestEventCRUD(t *testing.T) {
	env := newTestEnv(t, nil)
	cat, _ := env.seed(t)

	form := url.Values{
		"name":        {"Dentist"},
		"start_date":  {"2024-03-05"},
		"end_date":    {"05.03.2024"},
		"category_id": {fmt.Sprint(cat.ID)},
	}
	rec := env.do(t, http.MethodPost, "/add_event", form)
	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), "DD.MM.YYYY") {
		t.Fatalf("bad date: status = %d", rec.Code)
	}

	form.Set("start_date", "05.03.2024")
	rec = env.do(t, http.MethodPost, "/add_event", form)
	if rec.Code != http.StatusSeeOther || !strings.HasPrefix(rec.Header().Get("Location"), "/events?msg=") {
		t.Fatalf("create: status = %d location = %q", rec.Code, rec.Header().Get("Location"))
	}

	events, err := env.events.ListEvents(context.Background())
	if err != nil || len(events) != 2 {
		t.Fatalf("events = %v, %v", events, err)
	}
	id := events[1].ID

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/edit_event/%d", id), nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `value="05.03.2024"`) {
		t.Fatalf("edit form: status = %d", rec.Code)
	}

	form.Set("name", "Dentist (moved)")
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/edit_event/%d", id), form)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("edit: status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/events", nil)
	if !strings.Contains(rec.Body.String(), "Dentist (moved)") {
		t.Fatal("events list missing edited event")
	}

	if rec := env.do(t, http.MethodPost, fmt.Sprintf("/delete_event/%d", id), url.Values{}); rec.Code != http.StatusSeeOther {
		t.Fatalf("delete: status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, fmt.Sprintf("/edit_event/%d", id), nil); rec.Code != http.StatusNotFound {
		t.Fatalf("edit deleted: status = %d, want 404", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/delete_event/999", url.Values{}); rec.Code != http.StatusNotFound {
		t.Fatalf("delete missing: status = %d, want 404", rec.Code)
	}
}

func TestCategoryCRUD(t *testing.T) {
	env := newTestEnv(t, nil)
	cat, _ := env.seed(t)

	if rec := env.do(t, http.MethodPost, "/add_category", url.Values{"name": {""}}); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("blank name: status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/add_category", url.Values{"name": {"Holiday"}}); rec.Code != http.StatusSeeOther {
		t.Fatalf("create: status = %d", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/categories", nil)
	if !strings.Contains(rec.Body.String(), "Holiday") {
		t.Fatal("categories page missing new category")
	}

	if rec := env.do(t, http.MethodPost, fmt.Sprintf("/edit_category/%d", cat.ID), url.Values{"name": {"Shift"}}); rec.Code != http.StatusSeeOther {
		t.Fatalf("rename: status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/delete_category/%d", cat.ID), url.Values{})
	loc := rec.Header().Get("Location")
	if rec.Code != http.StatusSeeOther || !strings.HasPrefix(loc, "/categories?msg=") {
		t.Fatalf("delete referenced: status = %d location = %q", rec.Code, loc)
	}
	rec = env.do(t, http.MethodGet, loc, nil)
	if body := rec.Body.String(); !strings.Contains(body, "still used by events") || !strings.Contains(body, "Shift") {
		t.Fatalf("categories page after refused delete: %s", body)
	}
	if rec := env.do(t, http.MethodGet, "/edit_category/999", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("edit missing: status = %d, want 404", rec.Code)
	}
}

func TestAPICalendar(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t)

	rec := env.do(t, http.MethodGet, "/api/calendar/2024/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.Bytes()
	var view service.MonthView
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Year != 2024 || view.Month != time.January || len(view.Weeks) != 5 {
		t.Fatalf("unexpected view: year=%d month=%d weeks=%d", view.Year, view.Month, len(view.Weeks))
	}
	// 31 Jan 2024 is a Wednesday in the fifth row.
	cell := view.Weeks[4][2]
	if cell.Day != 31 || len(cell.Events) != 1 || cell.Events[0].CategoryName != "Work" {
		t.Fatalf("unexpected cell: %+v", cell)
	}

	var raw struct {
		Weeks [][]map[string]any `json:"weeks"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("decode raw: %v", err)
	}
	blank := raw.Weeks[4][3]
	if _, ok := blank["date"]; ok {
		t.Fatalf("placeholder has a date: %v", blank)
	}
	if _, ok := blank["events"]; ok {
		t.Fatalf("placeholder has events: %v", blank)
	}
	if _, ok := raw.Weeks[4][2]["date"]; !ok {
		t.Fatalf("day cell lost its date: %v", raw.Weeks[4][2])
	}

	if rec := env.do(t, http.MethodGet, "/api/calendar/2024/0", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("month 0: status = %d", rec.Code)
	}
}

func TestAPIUpcoming(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t)

	rec := env.do(t, http.MethodGet, "/api/upcoming?limit=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []service.UpcomingEvent
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil || len(got) != 1 {
		t.Fatalf("decode = %v, %v", got, err)
	}

	rec = env.do(t, http.MethodGet, "/api/upcoming?exclude=Work", nil)
	got = nil
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil || len(got) != 0 {
		t.Fatalf("exclude: %v, %v", got, err)
	}

	if rec := env.do(t, http.MethodGet, "/api/upcoming?exclude=Nope", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown exclude: status = %d", rec.Code)
	}
}

func TestICSFeed(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t)

	rec := env.do(t, http.MethodGet, "/calendar.ics", nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar") {
		t.Fatalf("status = %d type = %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "SUMMARY:Office") {
		t.Fatalf("feed missing event: %s", rec.Body.String())
	}
}

func TestBasicAuth(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.BasicAuthUser = "admin"
		c.BasicAuthPassword = "secret"
	})

	if rec := env.do(t, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Fatalf("health: status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/categories", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no creds: status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/categories", nil)
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("with creds: status = %d", rec.Code)
	}
}
