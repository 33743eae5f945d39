// Package ics exports stored events as an iCalendar feed.
package ics

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"event-calendar/internal/model"
)

const productID = "-//event-calendar//EN"

// Export writes events as all-day VEVENTs. categoryNames resolves the
// CATEGORIES property; unknown ids are left without one.
func Export(w io.Writer, name, host string, events []model.Event, categoryNames map[uint]string, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, ev := range events {
		vev := cal.AddEvent(fmt.Sprintf("event-%d@%s", ev.ID, host))
		vev.SetDtStampTime(stamp.UTC())
		vev.SetSummary(ev.Name)
		if ev.Description != "" {
			vev.SetDescription(ev.Description)
		}
		vev.SetAllDayStartAt(model.Date(ev.StartDate))
		// DTEND of an all-day event is exclusive.
		vev.SetAllDayEndAt(model.Date(ev.EndDate).AddDate(0, 0, 1))
		if cat, ok := categoryNames[ev.CategoryID]; ok && cat != "" {
			vev.SetProperty(ical.ComponentPropertyCategories, cat)
		}
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}
