// Package web is the HTML and JSON presentation layer of the calendar.
package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"event-calendar/internal/config"
	"event-calendar/internal/repository"
	"event-calendar/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pageNames = []string{
	"calendar", "day", "events", "event_form", "categories", "category_form", "error",
}

// Server serves the calendar UI, the JSON API and the iCalendar feed.
type Server struct {
	cfg        *config.Config
	log        *slog.Logger
	calendar   *service.CalendarService
	events     *service.EventService
	categories *service.CategoryService
	pages      map[string]*template.Template
	mux        *http.ServeMux
	now        func() time.Time
}

// page is the envelope every template renders.
type page struct {
	Title string
	Flash string
	Data  any
}

func NewServer(cfg *config.Config, log *slog.Logger, calendar *service.CalendarService, events *service.EventService, categories *service.CategoryService) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		log:        log,
		calendar:   calendar,
		events:     events,
		categories: categories,
		mux:        http.NewServeMux(),
		now:        time.Now,
	}
	if err := s.parseTemplates(); err != nil {
		return nil, err
	}
	if err := s.registerRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// Mount adds an extra handler (e.g. the MCP endpoint) to the mux.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Handler returns the root handler, wrapped in basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.cfg.BasicAuthEnabled() {
		h = s.basicAuthMiddleware(h)
	}
	return s.logRequests(h)
}

// ListenAndServe runs the HTTP server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server starting", "listen", "http://"+s.cfg.ListenAddr, "basic_auth", s.cfg.BasicAuthEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) registerRoutes() error {
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return err
	}
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /calendar/{year}/{month}", s.handleCalendar)
	s.mux.HandleFunc("GET /day/{day}/{month}/{year}", s.handleDay)

	s.mux.HandleFunc("GET /events", s.handleEvents)
	s.mux.HandleFunc("GET /add_event", s.handleAddEventForm)
	s.mux.HandleFunc("POST /add_event", s.handleAddEvent)
	s.mux.HandleFunc("GET /edit_event/{id}", s.handleEditEventForm)
	s.mux.HandleFunc("POST /edit_event/{id}", s.handleEditEvent)
	s.mux.HandleFunc("POST /delete_event/{id}", s.handleDeleteEvent)

	s.mux.HandleFunc("GET /categories", s.handleCategories)
	s.mux.HandleFunc("GET /add_category", s.handleAddCategoryForm)
	s.mux.HandleFunc("POST /add_category", s.handleAddCategory)
	s.mux.HandleFunc("GET /edit_category/{id}", s.handleEditCategoryForm)
	s.mux.HandleFunc("POST /edit_category/{id}", s.handleEditCategory)
	s.mux.HandleFunc("POST /delete_category/{id}", s.handleDeleteCategory)

	s.mux.HandleFunc("GET /api/calendar/{year}/{month}", s.handleAPICalendar)
	s.mux.HandleFunc("GET /api/upcoming", s.handleAPIUpcoming)
	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)
	return nil
}

func (s *Server) parseTemplates() error {
	labels := s.cfg.Labels
	funcs := template.FuncMap{
		"monthName": labels.Month,
		"weekdays":  func() [7]string { return labels.Weekdays },
		"int":       func(m time.Month) int { return int(m) },
	}

	s.pages = make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		files := []string{"templates/layout.html", "templates/partials.html", "templates/" + name + ".html"}
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, files...)
		if err != nil {
			return fmt.Errorf("parse template %s: %w", name, err)
		}
		s.pages[name] = tmpl
	}
	return nil
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.log.Error("unknown template", "name", name)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	p := page{Title: title, Flash: r.URL.Query().Get("msg"), Data: data}
	if err := tmpl.ExecuteTemplate(w, "layout", p); err != nil {
		s.log.Error("render template", "name", name, "error", err)
	}
}

// fail maps service and store errors onto status codes and renders an error page.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message := s.classify(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	s.render(w, r, status, "error", http.StatusText(status), map[string]string{"Message": message})
}

func (s *Server) classify(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "Not found."
	case errors.Is(err, repository.ErrCategoryInUse):
		return http.StatusConflict, err.Error()
	case service.IsValidation(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrUnknownCategory):
		return http.StatusInternalServerError, "Configuration error: " + err.Error()
	default:
		return http.StatusInternalServerError, "Internal error."
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuthUser
	password := s.cfg.BasicAuthPassword

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Calendar", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) today() time.Time {
	return s.now().In(s.cfg.Location)
}

func redirect(w http.ResponseWriter, r *http.Request, path, msg string) {
	if msg != "" {
		path += "?msg=" + url.QueryEscape(msg)
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

func pathUint(r *http.Request, key string) (uint, error) {
	v, err := strconv.ParseUint(r.PathValue(key), 10, 64)
	if err != nil || v == 0 {
		return 0, repository.ErrNotFound
	}
	return uint(v), nil
}

func pathInt(r *http.Request, key string) (int, error) {
	v, err := strconv.Atoi(r.PathValue(key))
	if err != nil {
		return 0, &service.ValidationError{Field: key, Message: fmt.Sprintf("invalid %s %q", key, r.PathValue(key))}
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// eventRow is an event prepared for the listing templates.
type eventRow struct {
	service.DayEvent
	DescriptionHTML template.HTML
}

func (s *Server) eventRows(events []service.DayEvent) []eventRow {
	rows := make([]eventRow, len(events))
	for i, ev := range events {
		rows[i] = eventRow{DayEvent: ev, DescriptionHTML: s.events.RenderDescription(ev.Description)}
	}
	return rows
}
