// Package handlers provides HTTP handlers for instrument management.
package handlers

import (
	"net/http"

	"github.com/aristath/stockwatch/internal/domain"
	"github.com/aristath/stockwatch/internal/httpjson"
	"github.com/aristath/stockwatch/internal/modules/instruments"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles instrument HTTP requests
type Handler struct {
	service *instruments.Service
	log     zerolog.Logger
}

// NewHandler creates a new instrument handler
func NewHandler(service *instruments.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "instruments").Logger(),
	}
}

// HandleList returns all instruments, optionally only active ones.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := httpjson.QueryBool(r, "active_only", true)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}

	list, err := h.service.List(r.Context(), instruments.ListFilter{
		ActiveOnly: activeOnly,
		Sector:     r.URL.Query().Get("sector"),
	})
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	if list == nil {
		list = []domain.Instrument{}
	}
	httpjson.Write(w, h.log, http.StatusOK, list)
}

// HandleGet returns one instrument by ticker.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	inst, err := h.service.Get(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, inst)
}

// HandleCreate registers a new instrument.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req instruments.CreateRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}

	inst, err := h.service.Create(r.Context(), req)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusCreated, inst)
}

// HandleUpdate patches an instrument.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req instruments.UpdateRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}

	inst, err := h.service.Update(r.Context(), chi.URLParam(r, "ticker"), req)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, inst)
}

// HandleDelete deletes or deactivates an instrument.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	deactivated, err := h.service.Delete(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	if deactivated {
		httpjson.Write(w, h.log, http.StatusOK, map[string]interface{}{
			"deactivated": true,
			"message":     "instrument has ledger history and was deactivated",
		})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
