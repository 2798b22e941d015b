package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the request/response simulation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/simulations", func(r chi.Router) {
		r.Post("/", h.HandleSimulate)
		r.Get("/defaults", h.HandleGetDefaults)
	})
}

// RegisterStreamRoutes registers long-lived routes that must not sit behind a request timeout
func (h *Handler) RegisterStreamRoutes(r chi.Router) {
	r.Get("/simulations/live", h.HandleLive)
}
