// Package handlers provides HTTP handlers for received dividends.
package handlers

import (
	"net/http"

	"github.com/aristath/stockwatch/internal/httpjson"
	"github.com/aristath/stockwatch/internal/modules/dividends"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles dividend HTTP requests
type Handler struct {
	service *dividends.Service
	log     zerolog.Logger
}

// NewHandler creates a new dividend handler
func NewHandler(service *dividends.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "dividends").Logger(),
	}
}

// RegisterRoutes registers all dividend routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/dividends", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/summary", h.HandleSummary)
		r.Delete("/{id}", h.HandleDelete)
	})
}

// HandleList returns received dividends, newest first.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := httpjson.QueryInt(r, "limit", 50)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	year, err := httpjson.QueryInt(r, "year", 0)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}

	list, err := h.service.List(r.Context(), dividends.Filter{
		Ticker: r.URL.Query().Get("ticker"),
		Year:   year,
		Limit:  limit,
	})
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	if list == nil {
		list = []dividends.DividendRecord{}
	}
	httpjson.Write(w, h.log, http.StatusOK, list)
}

// HandleCreate records a received dividend.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req dividends.CreateRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}

	d, err := h.service.Create(r.Context(), req)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusCreated, d)
}

// HandleDelete removes a dividend record.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathInt64(chi.URLParam(r, "id"), "id")
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSummary returns totals by stock, year and type.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	year, err := httpjson.QueryInt(r, "year", 0)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}

	summary, err := h.service.Summary(r.Context(), year)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, summary)
}
