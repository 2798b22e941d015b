package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers archived run routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
		r.Get("/{id}/histogram", h.HandleGetHistogram)
		r.Delete("/{id}", h.HandleDelete)
	})
}
