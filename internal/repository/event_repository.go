package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"event-calendar/internal/model"
)

// EventRepository handles CRUD and date-range reads for events.
type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(ctx context.Context, event *model.Event) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (r *EventRepository) GetByID(ctx context.Context, id uint) (*model.Event, error) {
	var event model.Event
	if err := r.db.WithContext(ctx).First(&event, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &event, nil
}

func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	var events []model.Event
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func (r *EventRepository) Update(ctx context.Context, event *model.Event) error {
	res := r.db.WithContext(ctx).Model(event).Select("name", "description", "start_date", "end_date", "category_id").Updates(event)
	if res.Error != nil {
		return fmt.Errorf("update event: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *EventRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Event{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete event: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindOverlapping returns events intersecting the month window:
// start_date < windowEnd AND end_date >= windowStart.
func (r *EventRepository) FindOverlapping(ctx context.Context, windowStart, windowEnd time.Time) ([]model.Event, error) {
	var events []model.Event
	if err := r.db.WithContext(ctx).
		Where("start_date < ? AND end_date >= ?", windowEnd.UTC(), windowStart.UTC()).
		Order("id ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("find overlapping events: %w", err)
	}
	return events, nil
}

// FindOnDay returns events covering day, inclusive on both ends.
func (r *EventRepository) FindOnDay(ctx context.Context, day time.Time) ([]model.Event, error) {
	d := model.Date(day)
	var events []model.Event
	if err := r.db.WithContext(ctx).
		Where("start_date <= ? AND end_date >= ?", d, d).
		Order("id ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("find events on day: %w", err)
	}
	return events, nil
}

// ListLatest returns events ordered by start_date descending, ties in
// insertion order. A non-nil excludeCategoryID drops that category before
// the limit is applied.
func (r *EventRepository) ListLatest(ctx context.Context, limit int, excludeCategoryID *uint) ([]model.Event, error) {
	q := r.db.WithContext(ctx).Order("start_date DESC, id ASC")
	if excludeCategoryID != nil {
		q = q.Where("category_id <> ?", *excludeCategoryID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var events []model.Event
	if err := q.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list latest events: %w", err)
	}
	return events, nil
}

// CountByCategory returns how many events reference each category id.
func (r *EventRepository) CountByCategory(ctx context.Context) (map[uint]int64, error) {
	var rows []struct {
		CategoryID uint
		Count      int64
	}
	if err := r.db.WithContext(ctx).Model(&model.Event{}).
		Select("category_id, COUNT(*) AS count").
		Group("category_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count events by category: %w", err)
	}
	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.CategoryID] = row.Count
	}
	return counts, nil
}
