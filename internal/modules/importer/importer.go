package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aristath/stockwatch/internal/database"
	"github.com/aristath/stockwatch/internal/domain"
	"github.com/aristath/stockwatch/internal/events"
	"github.com/aristath/stockwatch/internal/modules/instruments"
	"github.com/aristath/stockwatch/internal/modules/portfolio"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Response caps; counts are always exact.
const (
	MaxReportedErrors   = 20
	MaxReportedWarnings = 10
)

const defaultNote = "Importado do CSV"

// Options control how rows are reconciled.
type Options struct {
	SkipDuplicates      bool
	CreateMissingStocks bool
}

// Result reports an import run.
type Result struct {
	BatchID            string   `json:"batch_id"`
	SuccessCount       int      `json:"success_count"`
	ErrorCount         int      `json:"error_count"`
	SkippedCount       int      `json:"skipped_count"`
	Errors             []string `json:"errors"`
	Warnings           []string `json:"warnings"`
	CreatedInstruments []string `json:"created_instruments"`
}

// Truncated returns a copy with errors and warnings capped for API responses.
func (r Result) Truncated() Result {
	if len(r.Errors) > MaxReportedErrors {
		r.Errors = r.Errors[:MaxReportedErrors]
	}
	if len(r.Warnings) > MaxReportedWarnings {
		r.Warnings = r.Warnings[:MaxReportedWarnings]
	}
	return r
}

func (r *Result) fail(line int, format string, args ...interface{}) {
	r.ErrorCount++
	r.Errors = append(r.Errors, RowError{Line: line, Message: fmt.Sprintf(format, args...)}.Error())
}

// Service imports CSV files into the ledger.
type Service struct {
	db          *sql.DB
	instruments *instruments.Repository
	portfolio   *portfolio.Service
	events      events.Emitter
	log         zerolog.Logger
}

// NewService creates an import service.
func NewService(instrumentRepo *instruments.Repository, portfolioService *portfolio.Service, emitter events.Emitter, log zerolog.Logger) *Service {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &Service{
		db:          instrumentRepo.DB(),
		instruments: instrumentRepo,
		portfolio:   portfolioService,
		events:      emitter,
		log:         log.With().Str("service", "importer").Logger(),
	}
}

type rowOutcome int

const (
	rowInserted rowOutcome = iota
	rowSkipped
)

// Import parses data and reconciles every row independently. Each row's
// instrument creation and transaction insert commit or roll back together,
// so a failing row never leaves a half-created instrument behind.
func (s *Service) Import(ctx context.Context, data []byte, opts Options) (*Result, error) {
	parsed, err := Parse(data)
	if err != nil {
		return nil, err
	}

	result := &Result{
		BatchID:            uuid.NewString(),
		Errors:             []string{},
		Warnings:           []string{},
		CreatedInstruments: []string{},
	}

	// Parse errors and good rows are reported in file order.
	pending := parsed.Errors
	for _, row := range parsed.Rows {
		for len(pending) > 0 && pending[0].Line < row.Line {
			result.ErrorCount++
			result.Errors = append(result.Errors, pending[0].Error())
			pending = pending[1:]
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.importRow(ctx, row, opts, result)
	}
	for _, e := range pending {
		result.ErrorCount++
		result.Errors = append(result.Errors, e.Error())
	}

	s.log.Info().
		Str("batch", result.BatchID).
		Int("success", result.SuccessCount).
		Int("skipped", result.SkippedCount).
		Int("errors", result.ErrorCount).
		Strs("created", result.CreatedInstruments).
		Msg("CSV import finished")

	s.events.Emit(events.ImportCompleted, "importer", map[string]interface{}{
		"batch_id":            result.BatchID,
		"success_count":       result.SuccessCount,
		"skipped_count":       result.SkippedCount,
		"error_count":         result.ErrorCount,
		"created_instruments": result.CreatedInstruments,
	})
	return result, nil
}

func (s *Service) importRow(ctx context.Context, row Row, opts Options, result *Result) {
	var (
		created bool
		outcome rowOutcome
	)

	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		created = false

		inst, err := s.instruments.GetByTickerWith(ctx, tx, row.Ticker)
		if err != nil {
			return err
		}
		if inst == nil {
			if !opts.CreateMissingStocks {
				return fmt.Errorf("ação %s não encontrada: %w", row.Ticker, domain.ErrNotFound)
			}
			inst = &domain.Instrument{
				Ticker:   row.Ticker,
				Name:     fmt.Sprintf("%s (Importado)", row.Ticker),
				IsActive: true,
			}
			if err := s.instruments.CreateWith(ctx, tx, inst); err != nil {
				return err
			}
			created = true
		}

		batch := result.BatchID
		notes := row.Notes
		if notes == "" {
			notes = defaultNote
		}
		txn := &domain.Transaction{
			InstrumentID: inst.ID,
			Ticker:       inst.Ticker,
			Type:         row.Type,
			Quantity:     row.Quantity,
			Price:        row.Price,
			Fees:         row.Fees,
			Date:         row.Date,
			Notes:        &notes,
			ImportBatch:  &batch,
		}

		if opts.SkipDuplicates && !created {
			dup, err := s.portfolio.Transactions().HasSameTradeWith(ctx, tx, *txn)
			if err != nil {
				return err
			}
			if dup {
				outcome = rowSkipped
				return nil
			}
		}

		outcome = rowInserted
		return s.portfolio.RecordWith(ctx, tx, txn)
	})

	switch {
	case err == nil && outcome == rowSkipped:
		result.SkippedCount++
	case err == nil:
		result.SuccessCount++
		if created {
			result.CreatedInstruments = append(result.CreatedInstruments, row.Ticker)
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"Linha %d: ação %s criada automaticamente como %q; verifique o nome em Ações",
				row.Line, row.Ticker, row.Ticker+" (Importado)"))
		}
	case errors.Is(err, domain.ErrNotFound):
		result.fail(row.Line, "ação %s não encontrada", row.Ticker)
	case errors.Is(err, domain.ErrInsufficientPosition):
		var ipe *domain.InsufficientPositionError
		if errors.As(err, &ipe) {
			result.fail(row.Line, "venda de %s %s excede a posição disponível (%s)",
				ipe.Requested.String(), row.Ticker, ipe.Available.String())
		} else {
			result.fail(row.Line, "venda de %s excede a posição disponível", row.Ticker)
		}
	case domain.IsValidation(err):
		result.fail(row.Line, "%s: %v", row.Ticker, err)
	default:
		s.log.Error().Err(err).Int("line", row.Line).Str("ticker", row.Ticker).Msg("Failed to import row")
		result.fail(row.Line, "erro ao salvar %s", row.Ticker)
	}
}
