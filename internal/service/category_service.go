package service

import (
	"context"
	"strings"

	"event-calendar/internal/model"
)

// CategoryService provides CRUD around categories.
type CategoryService struct {
	repo   CategoryStore
	events EventStore
}

func NewCategoryService(repo CategoryStore, events EventStore) *CategoryService {
	return &CategoryService{repo: repo, events: events}
}

// CategoryUsage pairs a category with the number of events referencing it.
type CategoryUsage struct {
	model.Category
	Events int64
}

func (s *CategoryService) List(ctx context.Context) ([]model.Category, error) {
	return s.repo.List(ctx)
}

// ListWithUsage returns every category with its event count.
func (s *CategoryService) ListWithUsage(ctx context.Context) ([]CategoryUsage, error) {
	categories, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.events.CountByCategory(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CategoryUsage, len(categories))
	for i, cat := range categories {
		out[i] = CategoryUsage{Category: cat, Events: counts[cat.ID]}
	}
	return out, nil
}

func (s *CategoryService) Get(ctx context.Context, id uint) (*model.Category, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *CategoryService) Create(ctx context.Context, name string) (*model.Category, error) {
	name, err := categoryName(name)
	if err != nil {
		return nil, err
	}
	category := model.Category{Name: name}
	if err := s.repo.Create(ctx, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *CategoryService) Rename(ctx context.Context, id uint, name string) (*model.Category, error) {
	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if category.Name, err = categoryName(name); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// Delete removes a category; referenced categories are rejected by the store.
func (s *CategoryService) Delete(ctx context.Context, id uint) error {
	return s.repo.Delete(ctx, id)
}

func categoryName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", invalid("name", "name is required")
	}
	if len([]rune(name)) > 50 {
		return "", invalid("name", "name must be at most 50 characters")
	}
	return name, nil
}
