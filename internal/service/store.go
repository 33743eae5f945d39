package service

import (
	"context"
	"time"

	"event-calendar/internal/model"
)

// CategoryStore is the persistence contract the services rely on.
type CategoryStore interface {
	Create(ctx context.Context, category *model.Category) error
	List(ctx context.Context) ([]model.Category, error)
	GetByID(ctx context.Context, id uint) (*model.Category, error)
	FindByName(ctx context.Context, name string) (*model.Category, error)
	Update(ctx context.Context, category *model.Category) error
	Delete(ctx context.Context, id uint) error
}

// EventStore is the persistence contract for events, including the
// date-range reads used by the calendar.
type EventStore interface {
	Create(ctx context.Context, event *model.Event) error
	GetByID(ctx context.Context, id uint) (*model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
	Update(ctx context.Context, event *model.Event) error
	Delete(ctx context.Context, id uint) error
	FindOverlapping(ctx context.Context, windowStart, windowEnd time.Time) ([]model.Event, error)
	FindOnDay(ctx context.Context, day time.Time) ([]model.Event, error)
	ListLatest(ctx context.Context, limit int, excludeCategoryID *uint) ([]model.Event, error)
	CountByCategory(ctx context.Context) (map[uint]int64, error)
}

func categoryNames(ctx context.Context, store CategoryStore) (map[uint]string, error) {
	categories, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(categories))
	for _, cat := range categories {
		names[cat.ID] = cat.Name
	}
	return names, nil
}
