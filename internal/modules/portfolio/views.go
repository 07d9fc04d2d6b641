package portfolio

import (
	"time"

	"github.com/aristath/stockwatch/internal/domain"
	"github.com/aristath/stockwatch/internal/modules/ledger"
	"github.com/shopspring/decimal"
)

// Money is rounded to cents and prices to four places, only here at the edge.
const (
	moneyPlaces = 2
	pricePlaces = 4
)

func money(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

func moneyPtr(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	r := money(*d)
	return &r
}

// HoldingView is an open position as served by the API. Valuation fields are
// null when no live price was available. Stale marks a valuation taken from an
// expired cached quote.
type HoldingView struct {
	Ticker          string           `json:"ticker"`
	Name            string           `json:"name"`
	Sector          *string          `json:"sector"`
	Quantity        decimal.Decimal  `json:"quantity"`
	AveragePrice    decimal.Decimal  `json:"average_price"`
	TotalInvested   decimal.Decimal  `json:"total_invested"`
	RealizedGain    decimal.Decimal  `json:"realized_gain"`
	CurrentPrice    *decimal.Decimal `json:"current_price"`
	CurrentValue    *decimal.Decimal `json:"current_value"`
	GainLoss        *decimal.Decimal `json:"gain_loss"`
	GainLossPercent *decimal.Decimal `json:"gain_loss_percent"`
	ChangeToday     *float64         `json:"change_today"`
	FirstBuyDate    *domain.Date     `json:"first_buy_date"`
	QuotedAt        *time.Time       `json:"quoted_at"`
	Stale           bool             `json:"stale"`
}

func newHoldingView(h ledger.Holding, inst *domain.Instrument, m mark) HoldingView {
	p := h.Position
	v := HoldingView{
		Ticker:        p.Ticker,
		Name:          p.Ticker,
		Quantity:      p.Quantity,
		AveragePrice:  p.AveragePrice.Round(pricePlaces),
		TotalInvested: money(p.TotalInvested),
		RealizedGain:  money(p.RealizedGain),
		FirstBuyDate:  p.FirstBuyDate,
	}
	if inst != nil {
		v.Name = inst.Name
		v.Sector = inst.Sector
	}
	if h.Valuation != nil {
		price := h.Valuation.CurrentPrice.Round(pricePlaces)
		value := money(h.Valuation.CurrentValue)
		gain := money(h.Valuation.GainLoss)
		v.CurrentPrice = &price
		v.CurrentValue = &value
		v.GainLoss = &gain
		v.GainLossPercent = moneyPtr(h.Valuation.GainLossPercent)
		v.ChangeToday = m.change
		v.QuotedAt = m.quotedAt
		v.Stale = m.stale
	}
	return v
}

// SummaryView aggregates the open holdings.
type SummaryView struct {
	TotalInvested        decimal.Decimal  `json:"total_invested"`
	CurrentValue         decimal.Decimal  `json:"current_value"`
	TotalGainLoss        decimal.Decimal  `json:"total_gain_loss"`
	TotalGainLossPercent *decimal.Decimal `json:"total_gain_loss_percent"`
	RealizedGain         decimal.Decimal  `json:"realized_gain"`
	HoldingsCount        int              `json:"holdings_count"`
	BestPerformer        *string          `json:"best_performer"`
	WorstPerformer       *string          `json:"worst_performer"`
	Unpriced             []string         `json:"unpriced"`
}

func newSummaryView(s ledger.Summary) SummaryView {
	v := SummaryView{
		TotalInvested:        money(s.TotalInvested),
		CurrentValue:         money(s.CurrentValue),
		TotalGainLoss:        money(s.TotalGainLoss),
		TotalGainLossPercent: moneyPtr(s.TotalGainLossPercent),
		RealizedGain:         money(s.RealizedGain),
		HoldingsCount:        s.HoldingsCount,
		Unpriced:             s.Unpriced,
	}
	if v.Unpriced == nil {
		v.Unpriced = []string{}
	}
	if s.BestPerformer != nil {
		v.BestPerformer = &s.BestPerformer.Ticker
	}
	if s.WorstPerformer != nil {
		v.WorstPerformer = &s.WorstPerformer.Ticker
	}
	return v
}

// TransactionView is a ledger entry as served by the API.
type TransactionView struct {
	ID           int64                  `json:"id"`
	InstrumentID int64                  `json:"instrument_id"`
	Ticker       string                 `json:"ticker"`
	Name         string                 `json:"name"`
	Type         domain.TransactionType `json:"type"`
	Quantity     decimal.Decimal        `json:"quantity"`
	Price        decimal.Decimal        `json:"price"`
	Fees         decimal.Decimal        `json:"fees"`
	TotalValue   decimal.Decimal        `json:"total_value"`
	Date         domain.Date            `json:"date"`
	Notes        *string                `json:"notes"`
	ImportBatch  *string                `json:"import_batch,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

func newTransactionView(txn domain.Transaction, inst *domain.Instrument) TransactionView {
	v := TransactionView{
		ID:           txn.ID,
		InstrumentID: txn.InstrumentID,
		Ticker:       txn.Ticker,
		Name:         txn.Ticker,
		Type:         txn.Type,
		Quantity:     txn.Quantity,
		Price:        txn.Price.Round(pricePlaces),
		Fees:         money(txn.Fees),
		TotalValue:   money(txn.TotalValue()),
		Date:         txn.Date,
		Notes:        txn.Notes,
		ImportBatch:  txn.ImportBatch,
		CreatedAt:    txn.CreatedAt,
	}
	if inst != nil {
		v.Name = inst.Name
	}
	return v
}

// NewTransactionView exposes a freshly created transaction with its name.
func NewTransactionView(txn domain.Transaction, name string) TransactionView {
	v := newTransactionView(txn, nil)
	if name != "" {
		v.Name = name
	}
	return v
}
