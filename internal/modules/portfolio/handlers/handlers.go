// Package handlers provides HTTP handlers for portfolio management.
package handlers

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/aristath/stockwatch/internal/httpjson"
	"github.com/aristath/stockwatch/internal/modules/benchmark"
	"github.com/aristath/stockwatch/internal/modules/importer"
	"github.com/aristath/stockwatch/internal/modules/portfolio"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// maxUploadBytes caps CSV uploads.
const maxUploadBytes = 5 << 20

// Importer reconciles an uploaded CSV into the ledger.
type Importer interface {
	Import(ctx context.Context, data []byte, opts importer.Options) (*importer.Result, error)
}

// Comparator compares portfolio performance with market benchmarks.
type Comparator interface {
	Compare(ctx context.Context, periodDays int) (*benchmark.Comparison, error)
}

// Handler handles portfolio HTTP requests
type Handler struct {
	service    *portfolio.Service
	importer   Importer
	comparator Comparator
	log        zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(
	service *portfolio.Service,
	importer Importer,
	comparator Comparator,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service:    service,
		importer:   importer,
		comparator: comparator,
		log:        log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleGetPortfolio returns holdings and summary from a single valuation pass.
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, overview)
}

// HandleGetHoldings returns open positions marked at current prices
func (h *Handler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.service.Holdings(r.Context())
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, holdings)
}

// HandleGetSummary returns portfolio totals
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, summary)
}

// HandleGetHolding returns one open position
func (h *Handler) HandleGetHolding(w http.ResponseWriter, r *http.Request) {
	holding, err := h.service.Holding(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, holding)
}

// HandleGetTransactions returns the transaction history, newest first
func (h *Handler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	limit, err := httpjson.QueryInt(r, "limit", 50)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	if limit < 0 {
		httpjson.WriteError(w, h.log, http.StatusBadRequest, "limit must not be negative")
		return
	}

	txns, err := h.service.ListTransactions(r.Context(), portfolio.TransactionFilter{
		Ticker: r.URL.Query().Get("ticker"),
		Limit:  limit,
	})
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	if txns == nil {
		txns = []portfolio.TransactionView{}
	}
	httpjson.Write(w, h.log, http.StatusOK, txns)
}

// HandleCreateTransaction records a buy or sell
func (h *Handler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req portfolio.CreateTransactionRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}

	txn, err := h.service.CreateTransaction(r.Context(), req)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusCreated, portfolio.NewTransactionView(*txn, ""))
}

// HandleDeleteTransaction removes a transaction if the remaining history stays valid
func (h *Handler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathInt64(chi.URLParam(r, "id"), "id")
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	if err := h.service.DeleteTransaction(r.Context(), id); err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleImport reconciles an uploaded CSV file (multipart field "file").
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	skip, err := httpjson.QueryBool(r, "skip_duplicates", true)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	create, err := httpjson.QueryBool(r, "create_missing_stocks", true)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		httpjson.WriteError(w, h.log, http.StatusBadRequest, "arquivo não fornecido")
		return
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".csv", ".txt":
	default:
		httpjson.WriteError(w, h.log, http.StatusBadRequest, "formato não suportado, envie um arquivo CSV ou TXT")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		httpjson.WriteError(w, h.log, http.StatusBadRequest, "erro ao ler arquivo")
		return
	}

	result, err := h.importer.Import(r.Context(), data, importer.Options{
		SkipDuplicates:      skip,
		CreateMissingStocks: create,
	})
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, result.Truncated())
}

// HandleImportTemplate serves an example CSV.
func (h *Handler) HandleImportTemplate(w http.ResponseWriter, r *http.Request) {
	httpjson.Attachment(w, "text/csv; charset=utf-8", importer.TemplateFilename)
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, importer.Template); err != nil {
		h.log.Error().Err(err).Msg("Failed to write import template")
	}
}

// HandleGetBenchmark compares the portfolio with Ibovespa and CDI over period_days.
func (h *Handler) HandleGetBenchmark(w http.ResponseWriter, r *http.Request) {
	days, err := httpjson.QueryInt(r, "period_days", benchmark.DefaultPeriodDays)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}

	comparison, err := h.comparator.Compare(r.Context(), days)
	if err != nil {
		httpjson.WriteDomainError(w, h.log, err)
		return
	}
	httpjson.Write(w, h.log, http.StatusOK, comparison)
}
