package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all instrument routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/stocks", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/{ticker}", h.HandleGet)
		r.Patch("/{ticker}", h.HandleUpdate)
		r.Delete("/{ticker}", h.HandleDelete)
	})
}
