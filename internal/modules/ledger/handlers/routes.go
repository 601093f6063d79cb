package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all ledger routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.HandleGetAccounts)
			r.Post("/", h.HandleCreateAccount)
		})

		r.Route("/trades", func(r chi.Router) {
			r.Get("/", h.HandleGetTrades)
			r.Post("/", h.HandleCreateTrade)
		})
	})
}
