// Package portfolio records ledger transactions and derives holdings from them.
package portfolio

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/stockwatch/internal/database"
	"github.com/aristath/stockwatch/internal/domain"
	"github.com/aristath/stockwatch/internal/events"
	"github.com/aristath/stockwatch/internal/modules/instruments"
	"github.com/aristath/stockwatch/internal/modules/ledger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// priceWorkers bounds concurrent price lookups while valuing holdings.
const priceWorkers = 4

// PriceProvider supplies live prices.
type PriceProvider interface {
	CurrentPrice(ctx context.Context, ticker string) (float64, error)
}

// QuoteProvider may be implemented by a PriceProvider to expose the day's
// change together with the price.
type QuoteProvider interface {
	Quote(ctx context.Context, ticker string) (*domain.Quote, error)
}

// CreateTransactionRequest is the input of Service.CreateTransaction.
type CreateTransactionRequest struct {
	Ticker   string                 `json:"ticker"`
	Type     domain.TransactionType `json:"type"`
	Quantity decimal.Decimal        `json:"quantity"`
	Price    decimal.Decimal        `json:"price"`
	Fees     decimal.Decimal        `json:"fees"`
	Date     domain.Date            `json:"date"`
	Notes    *string                `json:"notes"`
}

// Service implements portfolio use cases.
type Service struct {
	db          *sql.DB
	txns        *TransactionRepository
	instruments *instruments.Repository
	prices      PriceProvider
	events      events.Emitter
	log         zerolog.Logger
}

// NewService creates a portfolio service. prices may be nil, in which case
// every holding is reported without a valuation.
func NewService(
	txns *TransactionRepository,
	instrumentRepo *instruments.Repository,
	prices PriceProvider,
	emitter events.Emitter,
	log zerolog.Logger,
) *Service {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &Service{
		db:          txns.DB(),
		txns:        txns,
		instruments: instrumentRepo,
		prices:      prices,
		events:      emitter,
		log:         log.With().Str("service", "portfolio").Logger(),
	}
}

// Transactions returns the transaction repository.
func (s *Service) Transactions() *TransactionRepository {
	return s.txns
}

// ValidateTransaction checks the shape of a single ledger entry.
func ValidateTransaction(txn domain.Transaction) error {
	if !txn.Type.Valid() {
		return domain.NewValidationError("type", "must be buy or sell, got %q", txn.Type)
	}
	if !txn.Quantity.IsPositive() {
		return domain.NewValidationError("quantity", "must be greater than zero")
	}
	if txn.Price.IsNegative() {
		return domain.NewValidationError("price", "cannot be negative")
	}
	if txn.Fees.IsNegative() {
		return domain.NewValidationError("fees", "cannot be negative")
	}
	if txn.Date.IsZero() {
		return domain.NewValidationError("date", "is required")
	}
	return nil
}

// RecordWith appends txn to its instrument's ledger through q. The existing
// ledger plus txn is folded first, so a sell that would drive the quantity
// negative at any point is rejected before anything is written.
func (s *Service) RecordWith(ctx context.Context, q database.Querier, txn *domain.Transaction) error {
	if err := ValidateTransaction(*txn); err != nil {
		return err
	}

	existing, err := s.txns.ListByInstrumentWith(ctx, q, txn.InstrumentID)
	if err != nil {
		return err
	}
	if err := ledger.Validate(txn.Ticker, append(existing, *txn)); err != nil {
		return err
	}

	return s.txns.CreateWith(ctx, q, txn)
}

// CreateTransaction records a buy or sell for an existing instrument.
func (s *Service) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*domain.Transaction, error) {
	txn := &domain.Transaction{
		Ticker:   domain.NormalizeTicker(req.Ticker),
		Type:     req.Type,
		Quantity: req.Quantity,
		Price:    req.Price,
		Fees:     req.Fees,
		Date:     req.Date,
		Notes:    req.Notes,
	}
	if txn.Ticker == "" {
		return nil, domain.NewValidationError("ticker", "is required")
	}
	if err := ValidateTransaction(*txn); err != nil {
		return nil, err
	}

	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		inst, err := s.instruments.GetByTickerWith(ctx, tx, txn.Ticker)
		if err != nil {
			return err
		}
		if inst == nil {
			return fmt.Errorf("instrument %s: %w", txn.Ticker, domain.ErrNotFound)
		}
		txn.InstrumentID = inst.ID
		return s.RecordWith(ctx, tx, txn)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("id", txn.ID).
		Str("ticker", txn.Ticker).
		Str("type", string(txn.Type)).
		Str("quantity", txn.Quantity.String()).
		Msg("Transaction recorded")

	s.events.Emit(events.TransactionCreated, "portfolio", map[string]interface{}{
		"id": txn.ID, "ticker": txn.Ticker, "type": txn.Type,
	})
	return txn, nil
}

// DeleteTransaction removes a transaction. The remaining ledger is re-folded
// first; if it no longer holds (a later sell depended on the removed buy) the
// delete is rejected with the insufficient position error.
func (s *Service) DeleteTransaction(ctx context.Context, id int64) error {
	var removed *domain.Transaction

	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		txn, err := s.txns.GetByIDWith(ctx, tx, id)
		if err != nil {
			return err
		}
		if txn == nil {
			return fmt.Errorf("transaction %d: %w", id, domain.ErrNotFound)
		}

		history, err := s.txns.ListByInstrumentWith(ctx, tx, txn.InstrumentID)
		if err != nil {
			return err
		}
		remaining := make([]domain.Transaction, 0, len(history))
		for _, h := range history {
			if h.ID != id {
				remaining = append(remaining, h)
			}
		}
		if err := ledger.Validate(txn.Ticker, remaining); err != nil {
			return err
		}

		removed = txn
		return s.txns.DeleteWith(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.log.Info().Int64("id", id).Str("ticker", removed.Ticker).Msg("Transaction deleted")
	s.events.Emit(events.TransactionDeleted, "portfolio", map[string]interface{}{
		"id": id, "ticker": removed.Ticker,
	})
	return nil
}

// ListTransactions returns transactions newest first with their instrument names.
func (s *Service) ListTransactions(ctx context.Context, f TransactionFilter) ([]TransactionView, error) {
	txns, err := s.txns.List(ctx, f)
	if err != nil {
		return nil, err
	}
	names, err := s.instrumentIndex(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]TransactionView, 0, len(txns))
	for _, txn := range txns {
		views = append(views, newTransactionView(txn, names[txn.Ticker]))
	}
	return views, nil
}

// AllTransactions returns the whole ledger in fold order.
func (s *Service) AllTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return s.txns.ListAll(ctx)
}

// Positions folds the whole ledger, one position per instrument that has
// transactions, closed positions included.
func (s *Service) Positions(ctx context.Context) ([]ledger.Position, error) {
	txns, err := s.txns.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	groups := ledger.GroupByTicker(txns)
	positions := make([]ledger.Position, 0, len(groups))
	for ticker, history := range groups {
		p, err := ledger.Fold(ticker, history)
		if err != nil {
			return nil, fmt.Errorf("stored ledger for %s is inconsistent: %w", ticker, err)
		}
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Ticker < positions[j].Ticker
	})
	return positions, nil
}

// Overview is the full portfolio: open holdings plus their summary.
type Overview struct {
	Holdings []HoldingView `json:"holdings"`
	Summary  SummaryView   `json:"summary"`
}

// Overview values every position once and returns holdings and summary.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	positions, err := s.Positions(ctx)
	if err != nil {
		return nil, err
	}
	names, err := s.instrumentIndex(ctx)
	if err != nil {
		return nil, err
	}

	marks := s.mark(ctx, positions)

	holdings := make([]ledger.Holding, 0, len(positions))
	views := make([]HoldingView, 0, len(positions))
	for i, p := range positions {
		h := ledger.Holding{Position: p}
		if marks[i].ok {
			v := ledger.Value(p, marks[i].price)
			h.Valuation = &v
		}
		holdings = append(holdings, h)
		if p.Open() {
			views = append(views, newHoldingView(h, names[p.Ticker], marks[i]))
		}
	}

	return &Overview{
		Holdings: views,
		Summary:  newSummaryView(ledger.Summarize(holdings)),
	}, nil
}

// Holdings returns the open holdings valued at live prices.
func (s *Service) Holdings(ctx context.Context) ([]HoldingView, error) {
	o, err := s.Overview(ctx)
	if err != nil {
		return nil, err
	}
	return o.Holdings, nil
}

// Summary returns the aggregate of the open holdings.
func (s *Service) Summary(ctx context.Context) (*SummaryView, error) {
	o, err := s.Overview(ctx)
	if err != nil {
		return nil, err
	}
	return &o.Summary, nil
}

// Holding returns one open holding or domain.ErrNotFound.
func (s *Service) Holding(ctx context.Context, ticker string) (*HoldingView, error) {
	ticker = domain.NormalizeTicker(ticker)
	inst, err := s.instruments.GetByTicker(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, fmt.Errorf("instrument %s: %w", ticker, domain.ErrNotFound)
	}

	history, err := s.txns.ListByInstrumentWith(ctx, s.db, inst.ID)
	if err != nil {
		return nil, err
	}
	p, err := ledger.Fold(ticker, history)
	if err != nil {
		return nil, fmt.Errorf("stored ledger for %s is inconsistent: %w", ticker, err)
	}
	if !p.Open() {
		return nil, fmt.Errorf("holding %s: %w", ticker, domain.ErrNotFound)
	}

	m := s.lookup(ctx, ticker)
	h := ledger.Holding{Position: p}
	if m.ok {
		v := ledger.Value(p, m.price)
		h.Valuation = &v
	}
	view := newHoldingView(h, inst, m)
	return &view, nil
}

type mark struct {
	price    decimal.Decimal
	change   *float64
	quotedAt *time.Time
	stale    bool
	ok       bool
}

// mark looks up prices for the open positions. Closed positions and failed
// lookups get a zero mark.
func (s *Service) mark(ctx context.Context, positions []ledger.Position) []mark {
	marks := make([]mark, len(positions))

	var g errgroup.Group
	g.SetLimit(priceWorkers)
	for i, p := range positions {
		if !p.Open() {
			continue
		}
		i, ticker := i, p.Ticker
		g.Go(func() error {
			marks[i] = s.lookup(ctx, ticker)
			return nil
		})
	}
	_ = g.Wait()

	return marks
}

func (s *Service) lookup(ctx context.Context, ticker string) mark {
	if s.prices == nil {
		return mark{}
	}

	if qp, ok := s.prices.(QuoteProvider); ok {
		q, err := qp.Quote(ctx, ticker)
		if err != nil || q == nil || q.Price <= 0 {
			s.log.Warn().Err(err).Str("ticker", ticker).Msg("Quote unavailable, holding left unvalued")
			return mark{}
		}
		change := q.ChangePercent
		m := mark{price: decimal.NewFromFloat(q.Price), change: &change, stale: q.Stale, ok: true}
		if !q.UpdatedAt.IsZero() {
			at := q.UpdatedAt
			m.quotedAt = &at
		}
		return m
	}

	price, err := s.prices.CurrentPrice(ctx, ticker)
	if err != nil || price <= 0 {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Price unavailable, holding left unvalued")
		return mark{}
	}
	return mark{price: decimal.NewFromFloat(price), ok: true}
}

func (s *Service) instrumentIndex(ctx context.Context) (map[string]*domain.Instrument, error) {
	list, err := s.instruments.List(ctx, instruments.ListFilter{})
	if err != nil {
		return nil, err
	}
	index := make(map[string]*domain.Instrument, len(list))
	for i := range list {
		index[list[i].Ticker] = &list[i]
	}
	return index, nil
}
