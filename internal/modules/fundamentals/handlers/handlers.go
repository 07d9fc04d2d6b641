// Package handlers provides HTTP handlers for fundamentals history.
package handlers

import (
	"net/http"

	"github.com/aristath/stockwatch/internal/domain"
	"github.com/aristath/stockwatch/internal/httpjson"
	"github.com/aristath/stockwatch/internal/modules/fundamentals"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles fundamentals HTTP requests
type Handler struct {
	service *fundamentals.Service
	log     zerolog.Logger
}

// NewHandler creates a new fundamentals handler
func NewHandler(service *fundamentals.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "fundamentals").Logger(),
	}
}

// RegisterRoutes registers all fundamentals routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/fundamentals/{ticker}", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/latest", h.HandleLatest)
		r.Get("/compare", h.HandleCompare)
		r.Post("/refresh", h.HandleRefresh)
	})
}

// HandleList returns the snapshot history, newest first.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := httpjson.QueryInt(r, "limit", fundamentals.DefaultLimit)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}

	list, err := h.service.List(r.Context(), chi.URLParam(r, "ticker"), limit)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, list)
}

// HandleLatest returns the newest snapshot.
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Latest(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, snap)
}

// HandleCompare reports metric changes between ?date1 and ?date2.
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	date1, err := queryDate(r, "date1")
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	date2, err := queryDate(r, "date2")
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}

	c, err := h.service.Compare(r.Context(), chi.URLParam(r, "ticker"), date1, date2)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, c)
}

// HandleRefresh captures today's snapshot on demand.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Capture(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, snap)
}

func queryDate(r *http.Request, key string) (domain.Date, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return domain.Date{}, domain.NewValidationError(key, "is required")
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return domain.Date{}, domain.NewValidationError(key, "%v", err)
	}
	return d, nil
}
