package ics

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"

	"event-calendar/internal/model"
)

func TestExportRoundTrip(t *testing.T) {
	events := []model.Event{
		{ID: 1, Name: "Trip", Description: "pack bags", StartDate: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC), CategoryID: 7},
		{ID: 2, Name: "Dentist", StartDate: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), CategoryID: 99},
	}

	var sb strings.Builder
	err := Export(&sb, "Events", "localhost", events, map[uint]string{7: "Trips"}, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := sb.String()
	for _, want := range []string{"DTSTART;VALUE=DATE:20240131", "DTEND;VALUE=DATE:20240203", "CATEGORIES:Trips", "UID:event-1@localhost"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ParseCalendar: %v", err)
	}
	parsed := cal.Events()
	if len(parsed) != 2 {
		t.Fatalf("got %d events, want 2", len(parsed))
	}
	if p := parsed[1].GetProperty(ical.ComponentPropertySummary); p == nil || p.Value != "Dentist" {
		t.Fatalf("summary = %+v", p)
	}
	if p := parsed[1].GetProperty(ical.ComponentPropertyCategories); p != nil {
		t.Fatalf("unexpected categories on unknown category: %v", p.Value)
	}
}
