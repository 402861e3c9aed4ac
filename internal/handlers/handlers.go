package handlers

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/felo/mailtail/internal/maildb"
)

// Handlers holds the HTTP handlers and their dependencies
type Handlers struct {
	db     *maildb.DB
	logger *slog.Logger
}

// New creates a new Handlers instance
func New(db *maildb.DB, logger *slog.Logger) *Handlers {
	return &Handlers{
		db:     db,
		logger: logger,
	}
}

// Routes returns the service router
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/find_mail", h.FindMail)
	return r
}
