// Package handlers provides HTTP handlers for quotes and analysis.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/aristath/stockwatch/internal/domain"
	"github.com/aristath/stockwatch/internal/httpjson"
	"github.com/aristath/stockwatch/internal/modules/instruments"
	"github.com/aristath/stockwatch/internal/modules/quotes"
	"github.com/aristath/stockwatch/internal/modules/scoring"
	"github.com/aristath/stockwatch/internal/modules/scoring/scorers"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles quote HTTP requests
type Handler struct {
	service     *quotes.Service
	instruments *instruments.Repository
	log         zerolog.Logger
}

// NewHandler creates a new quote handler
func NewHandler(service *quotes.Service, instrumentRepo *instruments.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		service:     service,
		instruments: instrumentRepo,
		log:         log.With().Str("handler", "quotes").Logger(),
	}
}

// RegisterRoutes registers all quote routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/quotes", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/sector/{sector}", h.HandleSector)
		r.Get("/{ticker}", h.HandleQuote)
		r.Get("/{ticker}/history", h.HandleHistory)
		r.Get("/{ticker}/analysis", h.HandleAnalysis)
	})
}

// instrumentQuote is one row of the quote board. Quote is null when no
// snapshot could be fetched.
type instrumentQuote struct {
	ID       int64             `json:"id"`
	Ticker   string            `json:"ticker"`
	Name     string            `json:"name"`
	Sector   *string           `json:"sector,omitempty"`
	Quote    *domain.Quote     `json:"quote"`
	Analysis *scoring.Analysis `json:"analysis,omitempty"`
}

// HandleList returns quotes for active instruments, ordered by ticker.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := httpjson.QueryInt(r, "limit", 20)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}

	list, err := h.instruments.List(r.Context(), instruments.ListFilter{ActiveOnly: true})
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	board := h.board(r, list)
	out := make([]instrumentQuote, 0, len(list))
	for _, inst := range list {
		out = append(out, instrumentQuote{
			ID:     inst.ID,
			Ticker: inst.Ticker,
			Name:   inst.Name,
			Sector: inst.Sector,
			Quote:  board[inst.Ticker],
		})
	}
	httpjson.Write(w, h.log, http.StatusOK, out)
}

// HandleSector returns quotes with analysis for the active instruments of a
// sector. Instruments without a quote are left out.
func (h *Handler) HandleSector(w http.ResponseWriter, r *http.Request) {
	sector := chi.URLParam(r, "sector")
	list, err := h.instruments.List(r.Context(), instruments.ListFilter{ActiveOnly: true, Sector: sector})
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	if len(list) == 0 {
		httpjson.WriteDomainError(w, h.log, fmt.Errorf("no instruments in sector %s: %w", sector, domain.ErrNotFound))
		return
	}

	board := h.board(r, list)
	out := make([]instrumentQuote, 0, len(list))
	for _, inst := range list {
		q := board[inst.Ticker]
		if q == nil {
			continue
		}
		a := scorers.Analyze(*q)
		out = append(out, instrumentQuote{
			ID:       inst.ID,
			Ticker:   inst.Ticker,
			Name:     inst.Name,
			Quote:    q,
			Analysis: &a,
		})
	}
	httpjson.Write(w, h.log, http.StatusOK, out)
}

// HandleQuote returns the snapshot for one ticker.
func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.Quote(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, q)
}

// HandleHistory returns daily bars and indicators (?period=6mo).
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.HistoryReport(r.Context(), chi.URLParam(r, "ticker"), r.URL.Query().Get("period"))
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, report)
}

// HandleAnalysis returns the snapshot with its rule-based score.
func (h *Handler) HandleAnalysis(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Analyze(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, a)
}

func (h *Handler) board(r *http.Request, list []domain.Instrument) map[string]*domain.Quote {
	tickers := make([]string, 0, len(list))
	for _, inst := range list {
		tickers = append(tickers, inst.Ticker)
	}
	return h.service.Batch(r.Context(), tickers)
}
