package dividends

import (
	"context"
	"fmt"
	"sort"

	"github.com/aristath/stockwatch/internal/domain"
	"github.com/aristath/stockwatch/internal/events"
	"github.com/aristath/stockwatch/internal/modules/instruments"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CreateRequest is the input of Service.Create.
type CreateRequest struct {
	Ticker      string          `json:"ticker"`
	Type        DividendType    `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Shares      decimal.Decimal `json:"shares"`
	PaymentDate domain.Date     `json:"payment_date"`
	ExDate      *domain.Date    `json:"ex_date"`
	Notes       *string         `json:"notes"`
}

// StockTotal is the per-instrument line of a Summary.
type StockTotal struct {
	Ticker      string          `json:"ticker"`
	Name        string          `json:"name"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Count       int             `json:"count"`
}

// YearTotal is the per-year line of a Summary.
type YearTotal struct {
	Year        int             `json:"year"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Count       int             `json:"count"`
}

// Summary aggregates received dividends.
type Summary struct {
	TotalAmount decimal.Decimal                  `json:"total_amount"`
	TotalCount  int                              `json:"total_count"`
	ByStock     []StockTotal                     `json:"by_stock"`
	ByYear      []YearTotal                      `json:"by_year"`
	ByType      map[DividendType]decimal.Decimal `json:"by_type"`
}

// Service implements received dividend use cases.
type Service struct {
	repo        *DividendRepository
	instruments *instruments.Repository
	events      events.Emitter
	log         zerolog.Logger
}

// NewService creates a dividend service.
func NewService(repo *DividendRepository, instrumentRepo *instruments.Repository, emitter events.Emitter, log zerolog.Logger) *Service {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &Service{
		repo:        repo,
		instruments: instrumentRepo,
		events:      emitter,
		log:         log.With().Str("service", "dividends").Logger(),
	}
}

// Create records a received payout for an existing instrument.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*DividendRecord, error) {
	if !req.Type.Valid() {
		return nil, domain.NewValidationError("type", "must be dividendo, jcp or bonificacao, got %q", req.Type)
	}
	if !req.Amount.IsPositive() {
		return nil, domain.NewValidationError("amount", "must be greater than zero")
	}
	if !req.Shares.IsPositive() {
		return nil, domain.NewValidationError("shares", "must be greater than zero")
	}
	if req.PaymentDate.IsZero() {
		return nil, domain.NewValidationError("payment_date", "is required")
	}
	if req.ExDate != nil && req.ExDate.IsZero() {
		req.ExDate = nil
	}

	ticker := domain.NormalizeTicker(req.Ticker)
	inst, err := s.instruments.GetByTicker(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, fmt.Errorf("instrument %s: %w", ticker, domain.ErrNotFound)
	}

	d := &DividendRecord{
		InstrumentID: inst.ID,
		Ticker:       inst.Ticker,
		Name:         inst.Name,
		Type:         req.Type,
		Amount:       req.Amount,
		Shares:       req.Shares,
		PaymentDate:  req.PaymentDate,
		ExDate:       req.ExDate,
		Notes:        req.Notes,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}

	s.events.Emit(events.DividendRecorded, "dividends", map[string]interface{}{
		"id": d.ID, "ticker": d.Ticker, "type": d.Type, "amount": d.Amount,
	})
	return d, nil
}

// List returns records newest payment first.
func (s *Service) List(ctx context.Context, f Filter) ([]DividendRecord, error) {
	return s.repo.List(ctx, f)
}

// Delete removes a record.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Summary totals records, optionally restricted to one payment year. Stocks
// are ordered by total descending, years newest first.
func (s *Service) Summary(ctx context.Context, year int) (*Summary, error) {
	records, err := s.repo.List(ctx, Filter{Year: year})
	if err != nil {
		return nil, err
	}
	return Summarize(records), nil
}

// Summarize aggregates records.
func Summarize(records []DividendRecord) *Summary {
	sum := &Summary{
		TotalAmount: decimal.Zero,
		ByStock:     []StockTotal{},
		ByYear:      []YearTotal{},
		ByType:      make(map[DividendType]decimal.Decimal),
	}

	stocks := make(map[string]*StockTotal)
	years := make(map[int]*YearTotal)

	for _, d := range records {
		sum.TotalAmount = sum.TotalAmount.Add(d.Amount)
		sum.TotalCount++

		st, ok := stocks[d.Ticker]
		if !ok {
			st = &StockTotal{Ticker: d.Ticker, Name: d.Name}
			stocks[d.Ticker] = st
		}
		st.TotalAmount = st.TotalAmount.Add(d.Amount)
		st.Count++

		y := d.PaymentDate.Year()
		yt, ok := years[y]
		if !ok {
			yt = &YearTotal{Year: y}
			years[y] = yt
		}
		yt.TotalAmount = yt.TotalAmount.Add(d.Amount)
		yt.Count++

		sum.ByType[d.Type] = sum.ByType[d.Type].Add(d.Amount)
	}

	for _, st := range stocks {
		sum.ByStock = append(sum.ByStock, *st)
	}
	sort.Slice(sum.ByStock, func(i, j int) bool {
		a, b := sum.ByStock[i], sum.ByStock[j]
		if !a.TotalAmount.Equal(b.TotalAmount) {
			return a.TotalAmount.GreaterThan(b.TotalAmount)
		}
		return a.Ticker < b.Ticker
	})

	for _, yt := range years {
		sum.ByYear = append(sum.ByYear, *yt)
	}
	sort.Slice(sum.ByYear, func(i, j int) bool {
		return sum.ByYear[i].Year > sum.ByYear[j].Year
	})

	return sum
}
