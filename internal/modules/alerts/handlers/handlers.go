// Package handlers provides HTTP handlers for alerts.
package handlers

import (
	"net/http"

	"github.com/aristath/stockwatch/internal/httpjson"
	"github.com/aristath/stockwatch/internal/modules/alerts"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles alert HTTP requests
type Handler struct {
	service *alerts.Service
	log     zerolog.Logger
}

// NewHandler creates a new alert handler
func NewHandler(service *alerts.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "alerts").Logger(),
	}
}

// RegisterRoutes registers all alert routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/alerts", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/types", h.HandleTypes)
		r.Get("/history", h.HandleHistory)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Patch("/", h.HandleUpdate)
			r.Delete("/", h.HandleDelete)
			r.Post("/check", h.HandleCheck)
		})
	})
}

// HandleList returns alerts (?active_only=true).
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := httpjson.QueryBool(r, "active_only", false)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	list, err := h.service.List(r.Context(), activeOnly)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	if list == nil {
		list = []alerts.Alert{}
	}
	httpjson.Write(w, h.log, http.StatusOK, list)
}

// HandleCreate adds an alert.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req alerts.CreateRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	a, err := h.service.Create(r.Context(), req)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusCreated, a)
}

// HandleTypes returns the alert type catalogue.
func (h *Handler) HandleTypes(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, h.log, http.StatusOK, map[string]interface{}{"types": alerts.Catalogue})
}

// HandleHistory returns triggers newest first (?limit=50&alert_id=).
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := httpjson.QueryInt(r, "limit", 50)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	alertID, err := httpjson.QueryInt(r, "alert_id", 0)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	history, err := h.service.History(r.Context(), int64(alertID), limit)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	if history == nil {
		history = []alerts.HistoryEntry{}
	}
	httpjson.Write(w, h.log, http.StatusOK, history)
}

// HandleGet returns one alert.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathInt64(chi.URLParam(r, "id"), "id")
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, a)
}

// HandleUpdate patches an alert.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathInt64(chi.URLParam(r, "id"), "id")
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	var req alerts.UpdateRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	a, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, a)
}

// HandleDelete removes an alert.
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

// HandleCheck evaluates an alert now. 503 when no quote is available.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathInt64(chi.URLParam(r, "id"), "id")
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	result, err := h.service.Check(r.Context(), id)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, result)
}
