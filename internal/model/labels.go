package model

import "time"

// Labels holds display names for months and Monday-first weekdays.
type Labels struct {
	Months   [12]string
	Weekdays [7]string
}

func DefaultLabels() Labels {
	return Labels{
		Months: [12]string{
			"January", "February", "March", "April", "May", "June",
			"July", "August", "September", "October", "November", "December",
		},
		Weekdays: [7]string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"},
	}
}

// Month returns the display name for m, falling back to time.Month's name.
func (l Labels) Month(m time.Month) string {
	if m < time.January || m > time.December || l.Months[m-1] == "" {
		return m.String()
	}
	return l.Months[m-1]
}
