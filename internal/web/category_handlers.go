package web

import (
	"errors"
	"fmt"
	"net/http"

	"event-calendar/internal/repository"
	"event-calendar/internal/service"
)

type categoriesPage struct {
	Categories []service.CategoryUsage
}

type categoryForm struct {
	Action string
	Name   string
	Error  string
}

// handleCategories handles GET /categories
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.categories.ListWithUsage(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "categories", "Categories", categoriesPage{Categories: categories})
}

func (s *Server) handleAddCategoryForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "category_form", "Add category", categoryForm{Action: "/add_category"})
}

// handleAddCategory handles POST /add_category
func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	name := r.PostFormValue("name")
	cat, err := s.categories.Create(r.Context(), name)
	if service.IsValidation(err) {
		s.render(w, r, http.StatusUnprocessableEntity, "category_form", "Add category",
			categoryForm{Action: "/add_category", Name: name, Error: err.Error()})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("category created", "id", cat.ID, "name", cat.Name)
	redirect(w, r, "/categories", fmt.Sprintf("Category %q created.", cat.Name))
}

func (s *Server) handleEditCategoryForm(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cat, err := s.categories.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "category_form", "Edit category",
		categoryForm{Action: fmt.Sprintf("/edit_category/%d", id), Name: cat.Name})
}

// handleEditCategory handles POST /edit_category/{id}
func (s *Server) handleEditCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	name := r.PostFormValue("name")
	cat, err := s.categories.Rename(r.Context(), id, name)
	if service.IsValidation(err) {
		s.render(w, r, http.StatusUnprocessableEntity, "category_form", "Edit category",
			categoryForm{Action: fmt.Sprintf("/edit_category/%d", id), Name: name, Error: err.Error()})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	redirect(w, r, "/categories", fmt.Sprintf("Category %q saved.", cat.Name))
}

// handleDeleteCategory handles POST /delete_category/{id}
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.categories.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrCategoryInUse) {
			redirect(w, r, "/categories", "Category is still used by events and was not deleted.")
			return
		}
		s.fail(w, r, err)
		return
	}
	s.log.Info("category deleted", "id", id)
	redirect(w, r, "/categories", "Category deleted.")
}
