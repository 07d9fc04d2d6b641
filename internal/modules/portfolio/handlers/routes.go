package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/", h.HandleGetPortfolio)                // Holdings and summary
		r.Get("/holdings", h.HandleGetHoldings)         // Open positions
		r.Get("/holdings/{ticker}", h.HandleGetHolding) // One open position
		r.Get("/summary", h.HandleGetSummary)           // Portfolio totals

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.HandleGetTransactions)
			r.Post("/", h.HandleCreateTransaction)
			r.Delete("/{id}", h.HandleDeleteTransaction)
		})

		// CSV import
		r.Post("/import", h.HandleImport)
		r.Get("/import/template", h.HandleImportTemplate)

		r.Get("/benchmark", h.HandleGetBenchmark) // Ibovespa and CDI comparison
	})
}
