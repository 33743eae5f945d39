package model

import "time"

// DateLayout is the textual date format used on forms and in listings.
const DateLayout = "02.01.2006"

// Event is a named, categorized record occupying an inclusive date interval.
// StartDate and EndDate are civil dates stored at UTC midnight.
type Event struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `json:"description,omitempty"`
	StartDate   time.Time `gorm:"not null;index" json:"start_date"`
	EndDate     time.Time `gorm:"not null;index" json:"end_date"`
	CategoryID  uint      `gorm:"not null;index" json:"category_id"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

func (Event) TableName() string {
	return "event"
}

// StartText returns the start date in DateLayout.
func (e Event) StartText() string {
	return e.StartDate.Format(DateLayout)
}

// EndText returns the end date in DateLayout.
func (e Event) EndText() string {
	return e.EndDate.Format(DateLayout)
}

// Date truncates t to its civil date at UTC midnight.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
