// Package ledger folds transaction histories into positions.
//
// Everything here is pure: callers fetch transactions, pass them in and get
// derived state back. Nothing is cached between calls, so a deleted or
// back-dated transaction is reflected by simply folding again.
package ledger

import (
	"math"
	"sort"

	"github.com/aristath/stockwatch/internal/domain"
	"github.com/shopspring/decimal"
)

// Position is the state of one instrument after folding its ledger.
type Position struct {
	Ticker        string
	Quantity      decimal.Decimal
	AveragePrice  decimal.Decimal
	TotalInvested decimal.Decimal
	RealizedGain  decimal.Decimal
	// FirstBuyDate is the first buy of the currently open position.
	FirstBuyDate *domain.Date
	Transactions int
}

// Open reports whether the position holds any quantity.
func (p Position) Open() bool {
	return p.Quantity.IsPositive()
}

// CostBasis is quantity × average price.
func (p Position) CostBasis() decimal.Decimal {
	return p.Quantity.Mul(p.AveragePrice)
}

// insertionKey orders transactions that share a date. Unsaved transactions
// (id 0) sort after every stored one.
func insertionKey(t domain.Transaction) int64 {
	if t.ID == 0 {
		return math.MaxInt64
	}
	return t.ID
}

// Sort orders transactions by date, then insertion order.
func Sort(txns []domain.Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		if !txns[i].Date.Equal(txns[j].Date) {
			return txns[i].Date.Before(txns[j].Date)
		}
		return insertionKey(txns[i]) < insertionKey(txns[j])
	})
}

// Apply folds one transaction into p. A sell larger than the held quantity
// returns an *domain.InsufficientPositionError and leaves p untouched.
func Apply(p Position, txn domain.Transaction) (Position, error) {
	switch txn.Type {
	case domain.TransactionBuy:
		totalCost := p.Quantity.Mul(p.AveragePrice).
			Add(txn.Quantity.Mul(txn.Price)).
			Add(txn.Fees)
		if !p.Open() {
			d := txn.Date
			p.FirstBuyDate = &d
		}
		p.Quantity = p.Quantity.Add(txn.Quantity)
		if p.Quantity.IsPositive() {
			p.AveragePrice = totalCost.Div(p.Quantity)
		} else {
			p.AveragePrice = decimal.Zero
		}
		p.TotalInvested = p.TotalInvested.Add(txn.Quantity.Mul(txn.Price)).Add(txn.Fees)

	case domain.TransactionSell:
		if txn.Quantity.GreaterThan(p.Quantity) {
			return p, &domain.InsufficientPositionError{
				Ticker:    txn.Ticker,
				Date:      txn.Date,
				Requested: txn.Quantity,
				Available: p.Quantity,
			}
		}
		p.Quantity = p.Quantity.Sub(txn.Quantity)
		p.TotalInvested = p.TotalInvested.Sub(txn.Quantity.Mul(p.AveragePrice))
		// Sell fees reduce realized proceeds; the average price is untouched.
		p.RealizedGain = p.RealizedGain.
			Add(txn.Quantity.Mul(txn.Price.Sub(p.AveragePrice))).
			Sub(txn.Fees)

	default:
		return p, domain.NewValidationError("type", "unknown transaction type %q", txn.Type)
	}

	if p.Quantity.IsZero() {
		p.AveragePrice = decimal.Zero
		p.TotalInvested = decimal.Zero
		p.FirstBuyDate = nil
	}
	p.Transactions++

	return p, nil
}

// Fold replays txns in (date, insertion) order and returns the resulting
// position. The input slice is not modified.
func Fold(ticker string, txns []domain.Transaction) (Position, error) {
	return FoldUntil(ticker, txns, nil)
}

// FoldUntil is Fold restricted to transactions dated on or before until.
// A nil until folds everything.
func FoldUntil(ticker string, txns []domain.Transaction, until *domain.Date) (Position, error) {
	ordered := make([]domain.Transaction, len(txns))
	copy(ordered, txns)
	Sort(ordered)

	p := Position{Ticker: ticker}
	for _, txn := range ordered {
		if until != nil && txn.Date.After(*until) {
			break
		}
		if txn.Ticker == "" {
			txn.Ticker = ticker
		}
		var err error
		if p, err = Apply(p, txn); err != nil {
			return p, err
		}
	}
	return p, nil
}

// Validate reports whether txns can be folded without breaking the position
// invariant at any prefix.
func Validate(ticker string, txns []domain.Transaction) error {
	_, err := Fold(ticker, txns)
	return err
}

// GroupByTicker splits a mixed transaction list per ticker.
func GroupByTicker(txns []domain.Transaction) map[string][]domain.Transaction {
	groups := make(map[string][]domain.Transaction)
	for _, txn := range txns {
		groups[txn.Ticker] = append(groups[txn.Ticker], txn)
	}
	return groups
}
